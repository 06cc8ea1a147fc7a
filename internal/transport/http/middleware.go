package http

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RequestLogger tags each request with an id and logs basic details and
// latency.
func RequestLogger(next http.Handler, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Printf(
			"request id=%s method=%s path=%s status=%d duration=%s",
			requestID,
			r.Method,
			r.URL.Path,
			rec.status,
			time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AdminChecker authorizes operator callers.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64, username string) (bool, error)
}

// AdminOnly rejects callers the registry does not recognize as operators.
// Identity comes from the X-User-ID and optional X-Username headers.
func AdminOnly(next http.Handler, registry AdminChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		username := r.Header.Get("X-Username")
		if userID == 0 && username == "" {
			writeError(w, http.StatusForbidden, codeForbidden, "operator identity required")
			return
		}

		ok, err := registry.IsAdmin(r.Context(), userID, username)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(withCallerID(r.Context(), userID)))
	})
}

type callerIDKey struct{}

func withCallerID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, callerIDKey{}, userID)
}

// CallerID returns the authenticated operator id, zero if absent.
func CallerID(ctx context.Context) int64 {
	id, _ := ctx.Value(callerIDKey{}).(int64)
	return id
}
