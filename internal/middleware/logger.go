package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

type accessUserKey struct{}

// accessUser lets Authenticate, which runs further down the chain on a
// derived request, report the user back to the access log.
type accessUser struct {
	id string
}

func setAccessUser(ctx context.Context, userID string) {
	if au, ok := ctx.Value(accessUserKey{}).(*accessUser); ok {
		au.id = userID
	}
}

// Logger writes one structured access log line per request. Server errors
// log at error level, client errors at warn.
func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			au := &accessUser{}
			r = r.WithContext(context.WithValue(r.Context(), accessUserKey{}, au))
			next.ServeHTTP(rw, r)

			ev := l.Info()
			switch {
			case rw.status >= 500:
				ev = l.Error()
			case rw.status >= 400:
				ev = l.Warn()
			}
			if au.id != "" {
				ev = ev.Str("user_id", au.id)
			}
			ev.Str("request_id", RequestIDFromContext(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Int("bytes", rw.bytes).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
