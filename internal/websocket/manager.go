package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Manager tracks feed connections per list and fans change notices out to
// them. Register, Unregister and HandleMessage are served by Run.
type Manager struct {
	clients        map[string]*Client
	listIndex      map[string]map[string]bool
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	HandleMessage  chan *ClientMessage
	done           chan struct{}
	maxConnPerList int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	logger         *slog.Logger
}

func NewManager(maxConnPerList int, writeWait, pongWait, pingPeriod time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		listIndex:      make(map[string]map[string]bool),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		HandleMessage:  make(chan *ClientMessage),
		done:           make(chan struct{}),
		maxConnPerList: maxConnPerList,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
		logger:         logger,
	}
}

// Run serves registrations and inbound frames until ctx is cancelled, then
// closes every connection.
func (m *Manager) Run(ctx context.Context) {
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

func (m *Manager) shutdown() {
	close(m.done)

	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		close(client.Send)
		delete(m.clients, id)
	}
	m.listIndex = make(map[string]map[string]bool)
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.listIndex[client.ListID] == nil {
		m.listIndex[client.ListID] = make(map[string]bool)
	}

	if len(m.listIndex[client.ListID]) >= m.maxConnPerList {
		m.logger.Warn("max connections reached for list", "list_id", client.ListID)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.listIndex[client.ListID][client.ID] = true

	m.logger.Debug("websocket client registered", "client_id", client.ID, "list_id", client.ListID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.listIndex[client.ListID], client.ID)

		if len(m.listIndex[client.ListID]) == 0 {
			delete(m.listIndex, client.ListID)
		}

		close(client.Send)
		m.logger.Debug("websocket client unregistered", "client_id", client.ID)
	}
}

// Join hands client to Run. It reports false once the manager has stopped.
func (m *Manager) Join(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// unregister hands client to Run unless the manager has stopped.
func (m *Manager) unregister(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.logger.Debug("dropping malformed websocket frame", "client_id", clientMsg.Client.ID, "error", err)
		return
	}

	switch msg.Type {
	case TypePing:
		pong, err := NewPong().Bytes()
		if err != nil {
			return
		}
		m.clientsMutex.RLock()
		defer m.clientsMutex.RUnlock()
		if _, ok := m.clients[clientMsg.Client.ID]; ok {
			select {
			case clientMsg.Client.Send <- pong:
			default:
			}
		}
	default:
		m.logger.Debug("unknown websocket message type", "type", msg.Type)
	}
}

// BroadcastToList queues message for every connection of listID. Clients
// whose buffer is full are disconnected and are expected to resync.
func (m *Manager) BroadcastToList(listID string, message *Message) error {
	messageBytes, err := message.Bytes()
	if err != nil {
		return err
	}

	var slow []*Client

	m.clientsMutex.RLock()
	for clientID := range m.listIndex[listID] {
		client := m.clients[clientID]
		select {
		case client.Send <- messageBytes:
		default:
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		m.logger.Warn("websocket send buffer full, closing connection", "client_id", client.ID, "list_id", listID)
		go m.unregister(client)
	}

	return nil
}

func (m *Manager) ListConnections(listID string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	return len(m.listIndex[listID])
}
