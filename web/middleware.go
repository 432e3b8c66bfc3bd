package web

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/paymock/app"
	"github.com/artpar/paymock/domain/chaos"
)

// exemptFromChaos reports whether a path bypasses fault injection and
// idempotency handling. The control surface must stay reachable no matter
// how broken the simulated API is.
func exemptFromChaos(path string) bool {
	return strings.HasPrefix(path, "/v1/_sim") ||
		path == "/metrics" ||
		path == "/healthz"
}

// requestLogger logs every request and records request metrics.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")

		if h.metrics != nil {
			h.metrics.Request(r.Method, r.URL.Path, strconv.Itoa(status), elapsed.Seconds())
		}
	})
}

// chaosFaults consults the coordinator before the handler runs and
// short-circuits with a simulated fault when one fires. A timeout holds the
// response for the configured delay first. Endpoint overrides match the
// exact request path.
func (h *Handler) chaosFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromChaos(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		outcome := h.chaos.ShouldAPIFail(r.URL.Path)
		switch outcome.Kind {
		case chaos.OutcomeTimeout:
			delay := time.Duration(outcome.TimeoutMS) * time.Millisecond
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
			h.writeError(w, http.StatusRequestTimeout, apiError{
				Type:    "api_error",
				Code:    "request_timeout",
				Message: "Request timed out.",
			})
		case chaos.OutcomeRateLimit:
			h.writeError(w, http.StatusTooManyRequests, apiError{
				Type:    "rate_limit_error",
				Code:    "rate_limit",
				Message: "Too many requests. Please retry later.",
			})
		case chaos.OutcomeServerError:
			h.writeError(w, http.StatusInternalServerError, apiError{
				Type:    "api_error",
				Message: "Something went wrong on our end.",
			})
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// responseRecorder captures a handler's response so it can be cached and
// replayed for duplicate idempotency keys.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rec *responseRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	rec.body.Write(b)
	return rec.ResponseWriter.Write(b)
}

// idempotencyReplay deduplicates POST requests carrying an Idempotency-Key
// header. The first request executes and its response is cached; duplicates
// replay it byte for byte. Responses the caller should retry (5xx) are not
// cached.
func (h *Handler) idempotencyReplay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" || r.Method != http.MethodPost || exemptFromChaos(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if cached, ok := h.idempotency.Check(key); ok {
			for name, values := range cached.Header {
				for _, v := range values {
					w.Header().Add(name, v)
				}
			}
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(cached.StatusCode)
			w.Write(cached.Body)
			return
		}

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusInternalServerError {
			h.idempotency.Abandon(key)
			return
		}
		h.idempotency.Store(key, app.CachedResponse{
			StatusCode: rec.status,
			Header:     rec.Header().Clone(),
			Body:       append([]byte(nil), rec.body.Bytes()...),
		})
	})
}
