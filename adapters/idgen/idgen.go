// Package idgen provides ID generation implementations.
package idgen

import (
	"strings"
	"sync/atomic"

	"github.com/artpar/paymock/ports"
	"github.com/google/uuid"
)

// UUID generates resource-prefixed IDs backed by UUID v4, with the dashes
// stripped so the IDs look like upstream object IDs (cus_9f83..., ch_04aa...).
type UUID struct{}

// New generates a new prefixed ID.
func (UUID) New(prefix string) string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + raw[:24]
}

// Ensure interface compliance.
var _ ports.IDGenerator = UUID{}

// Sequential generates deterministic IDs (for testing).
type Sequential struct {
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential() *Sequential {
	return &Sequential{}
}

// New generates the next sequential ID with the given prefix.
func (s *Sequential) New(prefix string) string {
	n := atomic.AddUint64(&s.counter, 1)
	return prefix + "_" + uitoa(n)
}

// Reset resets the counter (for testing).
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)
