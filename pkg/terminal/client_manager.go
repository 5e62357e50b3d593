package terminal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/logger"
	"github.com/antibyte/retroturtle/pkg/shared"
)

// Connection errors returned by ClientManager.
var (
	ErrConnectionRate = errors.New("too many connection attempts")
	ErrClientNotFound = errors.New("client not found")
)

// ClientManager maps sessions to their connected client and limits how
// often a single IP may connect.
type ClientManager struct {
	clients  map[string]*Client     // sessionID -> Client
	attempts map[string][]time.Time // ipAddress -> recent connection attempts
	mu       sync.RWMutex

	limit  int
	window time.Duration
	now    func() time.Time
}

// NewClientManager reads its connection limits from [Security].
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:  make(map[string]*Client),
		attempts: make(map[string][]time.Time),
		limit:    configuration.GetInt("Security", "connections_per_ip", 10),
		window:   configuration.GetDuration("Security", "connection_window", time.Minute),
		now:      time.Now,
	}
}

// AddClient attaches client to sessionID and returns the client it
// replaced, if any.
func (cm *ClientManager) AddClient(sessionID string, client *Client) *Client {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	previous := cm.clients[sessionID]
	cm.clients[sessionID] = client
	logger.Debug(logger.AreaTerminal, "Client added for session %s", sessionID)
	if previous == client {
		return nil
	}
	return previous
}

// RemoveClient detaches client from sessionID. A newer client attached to
// the same session is left alone.
func (cm *ClientManager) RemoveClient(sessionID string, client *Client) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if current, ok := cm.clients[sessionID]; ok && current == client {
		delete(cm.clients, sessionID)
		logger.Debug(logger.AreaTerminal, "Client removed for session %s", sessionID)
		return true
	}
	return false
}

// GetClient returns the client attached to sessionID.
func (cm *ClientManager) GetClient(sessionID string) (*Client, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	client, ok := cm.clients[sessionID]
	return client, ok
}

// Clients returns a snapshot of every attached client.
func (cm *ClientManager) Clients() []*Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		out = append(out, client)
	}
	return out
}

// SendToClient queues message for the client of sessionID.
func (cm *ClientManager) SendToClient(sessionID string, message shared.Message) error {
	client, ok := cm.GetClient(sessionID)
	if !ok {
		return fmt.Errorf("%w for session %s", ErrClientNotFound, sessionID)
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return client.Send(jsonData)
}

// GetClientCount returns the number of attached clients.
func (cm *ClientManager) GetClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// HasClient reports whether a client is attached to sessionID.
func (cm *ClientManager) HasClient(sessionID string) bool {
	_, ok := cm.GetClient(sessionID)
	return ok
}

// CheckRateLimit records a connection attempt from ipAddress and fails
// once the sliding window holds more than the configured number.
func (cm *ClientManager) CheckRateLimit(ipAddress string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.limit <= 0 {
		return nil
	}

	now := cm.now()
	cutoff := now.Add(-cm.window)
	recent := cm.attempts[ipAddress][:0]
	for _, t := range cm.attempts[ipAddress] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= cm.limit {
		cm.attempts[ipAddress] = recent
		logger.SecurityWarn("Connection rate limit exceeded for IP %s: %d attempts in %v", ipAddress, len(recent), cm.window)
		return fmt.Errorf("%w from %s", ErrConnectionRate, ipAddress)
	}
	cm.attempts[ipAddress] = append(recent, now)
	return nil
}

// PruneRateLimits forgets IPs without attempts in the current window.
func (cm *ClientManager) PruneRateLimits() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cutoff := cm.now().Add(-cm.window)
	for ip, times := range cm.attempts {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(cm.attempts, ip)
		}
	}
}
