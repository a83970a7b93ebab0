package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/middleware"
	"sharedlist-sync-server/internal/ratelimit"
	"sharedlist-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v and validates it. The returned error is
// the detail to send back to the client.
func decodeJSON(w http.ResponseWriter, r *http.Request, validate *validator.Validate, v interface{}, base64Detail string) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("Invalid request payload")
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				if fe.Tag() == "base64" {
					return errors.New(base64Detail)
				}
				fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return errors.New("Invalid request: " + strings.Join(fields, ", "))
		}
		return errors.New("Invalid request payload")
	}

	return nil
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeError maps a service error onto a response. Unknown errors are logged
// and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFoundDetail string) {
	var qe *ratelimit.QuotaError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, notFoundDetail)
	case errors.Is(err, domain.ErrConflict):
		response.BadRequest(w, "List already exists")
	case errors.Is(err, domain.ErrCapacityExceeded):
		response.BadRequest(w, "Item limit reached for this list")
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, validationDetail(err))
	case errors.As(err, &qe):
		response.TooManyRequests(w, "Too many requests, please slow down", qe.RetryAfter)
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetRequestID(r), "method", r.Method, "path", r.URL.Path, "error", err)
		response.InternalError(w, "Internal server error")
	}
}

// validationDetail strips the sentinel suffix from a wrapped validation
// error, e.g. "invalid base64 in nonce_b64".
func validationDetail(err error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+domain.ErrValidation.Error())
	if msg == "" {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
