// Package clock provides the virtual clock behind ports.Clock.
//
// The clock runs in one of three modes. Real follows the wall clock.
// Accelerated scales wall time by a multiplier from an anchor taken when the
// mode was set. Manual stands still until advanced explicitly. Switching
// modes re-anchors at the current virtual time instead of jumping, except
// SetManual with an explicit timestamp and Reset, which are deliberate jumps.
package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/paymock/ports"
)

// Mode identifies how the clock derives the current time.
type Mode string

const (
	ModeReal        Mode = "real"
	ModeAccelerated Mode = "accelerated"
	ModeManual      Mode = "manual"
)

// ErrNotManual is returned by Advance outside manual mode. Advancing a
// running clock is almost always a test bug, so it fails loudly instead of
// being ignored.
var ErrNotManual = errors.New("clock: advance requires manual mode")

// Virtual is a controllable clock. The zero value is not usable; use New.
type Virtual struct {
	mu            sync.Mutex
	mode          Mode
	multiplier    float64
	anchorWall    time.Time
	anchorVirtual time.Time
	manual        time.Time
	wall          func() time.Time
}

// New creates a virtual clock in real mode.
func New() *Virtual {
	return &Virtual{mode: ModeReal, wall: time.Now}
}

// NewWithWall creates a virtual clock reading wall time from the given
// function (for testing the clock itself).
func NewWithWall(wall func() time.Time) *Virtual {
	return &Virtual{mode: ModeReal, wall: wall}
}

// Now returns the current virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now()
}

// now computes the current virtual time. Callers hold v.mu.
func (v *Virtual) now() time.Time {
	switch v.mode {
	case ModeAccelerated:
		elapsed := v.wall().Sub(v.anchorWall)
		scaled := time.Duration(float64(elapsed) * v.multiplier)
		return v.anchorVirtual.Add(scaled)
	case ModeManual:
		return v.manual
	default:
		return v.wall()
	}
}

// Mode returns the current mode.
func (v *Virtual) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Multiplier returns the acceleration factor, 1 outside accelerated mode.
func (v *Virtual) Multiplier() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode != ModeAccelerated {
		return 1
	}
	return v.multiplier
}

// SetReal switches to real mode. This is an explicit reset to wall time;
// virtual time accumulated in other modes is discarded.
func (v *Virtual) SetReal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mode = ModeReal
}

// SetAccelerated switches to accelerated mode, anchoring both wall and
// virtual time at the moment of the call so the switch is continuous.
func (v *Virtual) SetAccelerated(multiplier float64) error {
	if multiplier <= 0 {
		return fmt.Errorf("clock: multiplier must be > 0, got %v", multiplier)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.anchorVirtual = v.now()
	v.anchorWall = v.wall()
	v.mode = ModeAccelerated
	v.multiplier = multiplier
	return nil
}

// SetManual switches to manual mode frozen at the given time. A zero time
// freezes at the current virtual time (a continuous switch); anything else
// is an explicit jump.
func (v *Virtual) SetManual(at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if at.IsZero() {
		v.manual = v.now()
	} else {
		v.manual = at
	}
	v.mode = ModeManual
}

// Advance moves manual time forward by d. It returns ErrNotManual in any
// other mode.
func (v *Virtual) Advance(d time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode != ModeManual {
		return ErrNotManual
	}
	v.manual = v.manual.Add(d)
	return nil
}

// Reset returns the clock to its default state: real mode, no anchors.
func (v *Virtual) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mode = ModeReal
	v.multiplier = 0
	v.anchorWall = time.Time{}
	v.anchorVirtual = time.Time{}
	v.manual = time.Time{}
}

// Ensure interface compliance.
var _ ports.Clock = (*Virtual)(nil)
