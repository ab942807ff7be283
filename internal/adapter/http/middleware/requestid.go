package middleware

import (
	"net/http"

	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

const HeaderRequestID = "X-Request-ID"

// RequestID injects a request id into the context so every log line and
// published message of the request carries the same correlation id. An id
// supplied by the client is trusted as-is.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.MustNew().String()
		}

		w.Header().Set(HeaderRequestID, id)

		ctx := wrap.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
