package handler

import (
	"log/slog"
	"net/http"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/middleware"
	"sharedlist-sync-server/internal/service"
	"sharedlist-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type PushHandler struct {
	service  *service.PushService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPushHandler(service *service.PushService, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *PushHandler) SubscribeIOS(w http.ResponseWriter, r *http.Request) {
	var req domain.PushSubscriptionRequest
	if err := decodeJSON(w, r, h.validate, &req, ""); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	listID := mux.Vars(r)["id"]
	if err := h.service.Subscribe(r.Context(), listID, middleware.GetClientID(r), &req); err != nil {
		writeError(w, r, h.logger, err, "List not found")
		return
	}

	h.logger.InfoContext(r.Context(), "ios push subscribed", "list_id", listID)
	response.NoContent(w)
}

func (h *PushHandler) UnsubscribeIOS(w http.ResponseWriter, r *http.Request) {
	var req domain.PushSubscriptionRequest
	if err := decodeJSON(w, r, h.validate, &req, ""); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	listID := mux.Vars(r)["id"]
	if err := h.service.Unsubscribe(r.Context(), listID, middleware.GetClientID(r), &req); err != nil {
		writeError(w, r, h.logger, err, "List not found")
		return
	}

	h.logger.InfoContext(r.Context(), "ios push unsubscribed", "list_id", listID)
	response.NoContent(w)
}
