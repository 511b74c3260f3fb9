package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseMeta captures what the handler wrote so the access log can report
// status and payload size.
type responseMeta struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeta) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeta) Write(b []byte) (int, error) {
	n, err := m.ResponseWriter.Write(b)
	m.bytes += n
	return n, err
}

// Logger writes one slog line per request. Authenticated requests include the
// key prefix, which is the first thing support asks for when a host reports a
// stuck reel.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meta := &responseMeta{ResponseWriter: w, status: http.StatusOK}
		ctx, holder := withPrefixHolder(r.Context())

		next.ServeHTTP(meta, r.WithContext(ctx))

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", meta.status,
			"bytes", meta.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if holder.prefix != "" {
			attrs = append(attrs, "key_prefix", holder.prefix)
		}
		slog.Info("request", attrs...)
	})
}
