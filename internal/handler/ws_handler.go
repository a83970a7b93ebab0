package handler

import (
	"log/slog"
	"net/http"

	"sharedlist-sync-server/internal/service"
	"sharedlist-sync-server/internal/websocket"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
)

// WebSocketHandler upgrades GET /v1/lists/{id}/ws into a change feed for one
// list.
type WebSocketHandler struct {
	manager  *websocket.Manager
	lists    *service.ListService
	upgrader ws.Upgrader
	logger   *slog.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, lists *service.ListService, readBuffer, writeBuffer int, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		lists:   lists,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	listID := mux.Vars(r)["id"]

	if err := h.lists.Exists(r.Context(), listID); err != nil {
		writeError(w, r, h.logger, err, "List not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "list_id", listID, "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), listID, conn, h.manager)
	if !h.manager.Join(client) {
		conn.Close()
		return
	}

	h.logger.Info("websocket connected", "list_id", listID, "client_id", client.ID)

	go client.WritePump()
	go client.ReadPump()
}
