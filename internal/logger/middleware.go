package logger

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// query parameters that carry a user's phone number
var redactedParams = []string{"phone", "telefone"}

// statusRecorder remembers what the handler sent back
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.wroteHeader {
		return
	}
	sr.status = code
	sr.wroteHeader = true
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.WriteHeader(http.StatusOK)
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// requestState is shared between HTTPMiddleware and the handlers below it.
// Inner middleware derives new contexts, so the access log cannot read
// their values back; it reads this holder instead.
type requestState struct {
	user string
}

const requestStateKey contextKey = "request_state"

// SetUser records the authenticated user on the request's access log
// line. Outside HTTPMiddleware it does nothing.
func SetUser(ctx context.Context, user string) {
	if st, found := ctx.Value(requestStateKey).(*requestState); found {
		st.user = user
	}
}

// HTTPMiddleware tags each request with an ID and writes one access log
// line once the handler returns
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		reqLogger := Default().With("request_id", requestID)
		st := &requestState{}
		ctx := WithRequestID(r.Context(), requestID)
		ctx = WithLogger(ctx, reqLogger)
		ctx = context.WithValue(ctx, requestStateKey, st)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		// liveness checks would drown everything else
		if isHealthPath(r.URL.Path) {
			return
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if q := scrubQuery(r.URL.Query()); q != "" {
			attrs = append(attrs, "query", q)
		}
		if st.user != "" {
			attrs = append(attrs, "user", st.user)
		}
		reqLogger.Log(r.Context(), levelForStatus(rec.status), "http_request", attrs...)
	})
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// scrubQuery encodes q with phone numbers replaced
func scrubQuery(q url.Values) string {
	for _, key := range redactedParams {
		if _, found := q[key]; found {
			q.Set(key, "redacted")
		}
	}
	return q.Encode()
}

func isHealthPath(path string) bool {
	return path == "/healthz" || strings.HasPrefix(path, "/healthz/")
}
