package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"sharedlist-sync-server/internal/domain"
	"sharedlist-sync-server/internal/middleware"
	"sharedlist-sync-server/internal/service"
	"sharedlist-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const invalidItemBase64 = "Invalid base64 in item"

type ItemHandler struct {
	items    *service.ItemService
	sync     *service.SyncService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewItemHandler(items *service.ItemService, sync *service.SyncService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		items:    items,
		sync:     sync,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.ItemRequest
	if err := decodeJSON(w, r, h.validate, &req, invalidItemBase64); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	item, err := h.items.Create(r.Context(), mux.Vars(r)["id"], middleware.GetClientID(r), &req)
	if err != nil {
		writeError(w, r, h.logger, err, "List not found")
		return
	}

	response.Success(w, item)
}

// List serves a snapshot, or a delta when since_rev is given.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	var sinceRev *int64
	if raw := r.URL.Query().Get("since_rev"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "since_rev must be an integer")
			return
		}
		sinceRev = &v
	}

	items, err := h.sync.ListItems(r.Context(), mux.Vars(r)["id"], sinceRev)
	if err != nil {
		writeError(w, r, h.logger, err, "List not found")
		return
	}

	response.Success(w, items)
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDFromPath(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var req domain.ItemRequest
	if err := decodeJSON(w, r, h.validate, &req, invalidItemBase64); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	item, err := h.items.Update(r.Context(), mux.Vars(r)["id"], itemID, middleware.GetClientID(r), &req)
	if err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}

	response.Success(w, item)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	itemID, err := itemIDFromPath(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	resp, err := h.items.Delete(r.Context(), mux.Vars(r)["id"], itemID, middleware.GetClientID(r))
	if err != nil {
		writeError(w, r, h.logger, err, "Item not found")
		return
	}

	response.Success(w, resp)
}

func itemIDFromPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["item_id"], 10, 64)
	if err != nil {
		return 0, errors.New("item_id must be an integer")
	}
	return id, nil
}
