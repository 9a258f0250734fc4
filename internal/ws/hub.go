package ws

import (
	"encoding/json"
	"sync"

	"hrm/internal/metrics"
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	UserID       uint
	Role         string
	BranchID     *uint
	DepartmentID *uint
	Send         chan []byte
	Hub          *Hub // set by Register so Close can unregister
	mu           sync.Mutex
	closed       bool
}

func NewClient(userID uint, role string, branchID, departmentID *uint) *Client {
	return &Client{
		UserID:       userID,
		Role:         role,
		BranchID:     branchID,
		DepartmentID: departmentID,
		Send:         make(chan []byte, 64),
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
	close(c.Send)
}

// Hub tracks the inbox sockets and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// userID -> clients (one user can have multiple tabs/devices)
	byUser map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[uint]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	h.clients[c] = struct{}{}
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
	metrics.WebsocketClients.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	metrics.WebsocketClients.Dec()
}

// SendToUser delivers payload to every connection of userID. Slow clients drop messages.
func (h *Hub) SendToUser(userID uint, payload interface{}) {
	h.mu.RLock()
	m := h.byUser[userID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	h.fanOut(clients, payload)
}

// Broadcast delivers payload to every client accepted by match; a nil match selects all.
func (h *Hub) Broadcast(match func(*Client) bool, payload interface{}) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if match == nil || match(c) {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	h.fanOut(clients, payload)
}

func (h *Hub) fanOut(clients []*Client, payload interface{}) {
	if len(clients) == 0 {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, c := range clients {
		c.mu.Lock()
		if !c.closed {
			select {
			case c.Send <- data:
			default:
			}
		}
		c.mu.Unlock()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
