package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"sharedlist-sync-server/pkg/response"
)

type contextKey string

const (
	ClientIDKey  contextKey = "clientID"
	RequestIDKey contextKey = "requestID"

	ClientIDHeader = "X-Client-Id"
)

// RequireClientID rejects requests without the X-Client-Id soft identity and
// stores it in the request context.
func RequireClientID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := strings.TrimSpace(r.Header.Get(ClientIDHeader))
			if clientID == "" {
				response.BadRequest(w, "Missing X-Client-Id header")
				return
			}

			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(r *http.Request) string {
	clientID, ok := r.Context().Value(ClientIDKey).(string)
	if !ok {
		return ""
	}
	return clientID
}

// ClientAddress returns the caller's IP. Forwarding headers are only
// honoured when trustProxy is set.
func ClientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
