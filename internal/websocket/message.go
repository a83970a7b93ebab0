package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	TypeListUpdated MessageType = "list_updated"
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"
)

// Message is the frame exchanged with feed subscribers. Servers only send
// list_updated and pong; clients may send ping.
type Message struct {
	Type      MessageType `json:"type"`
	ListID    string      `json:"list_id,omitempty"`
	LatestRev *int64      `json:"latest_rev,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewListUpdated(listID string, latestRev int64) *Message {
	return &Message{
		Type:      TypeListUpdated,
		ListID:    listID,
		LatestRev: &latestRev,
		Timestamp: time.Now().UTC(),
	}
}

func NewPong() *Message {
	return &Message{Type: TypePong, Timestamp: time.Now().UTC()}
}

func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}
