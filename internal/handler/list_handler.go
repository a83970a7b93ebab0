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

type ListHandler struct {
	service  *service.ListService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewListHandler(service *service.ListService, logger *slog.Logger) *ListHandler {
	return &ListHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateListRequest
	if err := decodeJSON(w, r, h.validate, &req, "Invalid base64 in meta"); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	list, err := h.service.Create(r.Context(), middleware.GetClientID(r), &req)
	if err != nil {
		writeError(w, r, h.logger, err, "List not found")
		return
	}

	response.Success(w, list)
}

func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err, "List not found")
		return
	}

	response.Success(w, list)
}

func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err, "List not found")
		return
	}

	response.Success(w, resp)
}
