package notify

import (
	"context"

	"sharedlist-sync-server/internal/websocket"
)

// WebSocketPlatform pushes notices to feed connections of this process.
type WebSocketPlatform struct {
	manager *websocket.Manager
}

func NewWebSocketPlatform(manager *websocket.Manager) *WebSocketPlatform {
	return &WebSocketPlatform{manager: manager}
}

func (p *WebSocketPlatform) Name() string { return "websocket" }

// NonBlocking reports that BroadcastToList never waits on a connection.
func (p *WebSocketPlatform) NonBlocking() {}

func (p *WebSocketPlatform) Send(_ context.Context, listID string, latestRev int64) error {
	return p.manager.BroadcastToList(listID, websocket.NewListUpdated(listID, latestRev))
}
