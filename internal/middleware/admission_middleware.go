package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"sharedlist-sync-server/internal/ratelimit"
	"sharedlist-sync-server/pkg/response"

	"github.com/gorilla/mux"
)

const quotaExceededDetail = "Too many requests, please slow down"

// AdmissionMiddleware charges the request against rules before the handler
// runs. It must sit behind RequireClientID. The list scope is taken from the
// {id} route variable.
func AdmissionMiddleware(limiter *ratelimit.Limiter, trustProxy bool, logger *slog.Logger, rules ...ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := ratelimit.Subject{
				Address:  ClientAddress(r, trustProxy),
				Identity: GetClientID(r),
				ListID:   mux.Vars(r)["id"],
			}

			err := limiter.AdmitAll(r.Context(), subject, rules...)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			var qe *ratelimit.QuotaError
			if errors.As(err, &qe) {
				logger.Info("request over quota", "request_id", GetRequestID(r), "key", qe.Key, "limit", qe.Limit, "path", r.URL.Path)
				response.TooManyRequests(w, quotaExceededDetail, qe.RetryAfter)
				return
			}

			logger.Error("admission check failed", "request_id", GetRequestID(r), "error", err, "path", r.URL.Path)
			response.InternalError(w, "Internal server error")
		})
	}
}
