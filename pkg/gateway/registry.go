package gateway

import (
	"sort"
	"sync"
	"time"
)

const idleAfter = 5 * time.Minute

// ClientRegistry tracks the websocket clients of the GUI shell and any other
// local frontends.
type ClientRegistry struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	onChange func(count int)
}

// NewClientRegistry creates a new client registry. onChange, when set, is
// called with the new client count after every Add and Remove.
func NewClientRegistry(onChange func(count int)) *ClientRegistry {
	return &ClientRegistry{
		clients:  make(map[string]*Client),
		onChange: onChange,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(client *Client) {
	r.update(func(clients map[string]*Client) {
		clients[client.ID] = client
	})
}

// Remove forgets a client. Unknown ids are ignored.
func (r *ClientRegistry) Remove(clientID string) {
	r.update(func(clients map[string]*Client) {
		delete(clients, clientID)
	})
}

func (r *ClientRegistry) update(fn func(map[string]*Client)) {
	r.mu.Lock()
	fn(r.clients)
	n := len(r.clients)
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(n)
	}
}

// Get retrieves a client by ID
func (r *ClientRegistry) Get(clientID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[clientID]
	return client, exists
}

// GetAll returns every client.
func (r *ClientRegistry) GetAll() []*Client {
	return r.Subscribers("")
}

// Subscribers returns the clients that receive event. An empty event
// selects every client.
func (r *ClientRegistry) Subscribers(event string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		if event == "" || client.Wants(event) {
			clients = append(clients, client)
		}
	}
	return clients
}

// SetEvents changes the event filter of a client. It reports false when the
// client is not connected.
func (r *ClientRegistry) SetEvents(clientID string, events []string) bool {
	client, ok := r.Get(clientID)
	if !ok {
		return false
	}
	client.SetEvents(events)
	return true
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// GetConnectedClients describes the connected clients, oldest first.
func (r *ClientRegistry) GetConnectedClients() []ClientInfo {
	r.mu.RLock()
	now := time.Now()
	infos := make([]ClientInfo, 0, len(r.clients))
	for _, client := range r.clients {
		infos = append(infos, ClientInfo{
			ID:           client.ID,
			ConnectedAt:  client.ConnectedAt,
			LastActivity: client.LastActivity,
			IPAddress:    client.IPAddress,
			Idle:         now.Sub(client.LastActivity) > idleAfter,
		})
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// UpdateActivity updates the last activity time for a client
func (r *ClientRegistry) UpdateActivity(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[clientID]; exists {
		client.LastActivity = time.Now()
	}
}
