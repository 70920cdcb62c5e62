package live

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/metrics"
)

// Manager tracks the live session of every connected profile.
type Manager struct {
	// clients maps a profile id to its current connection.
	clients map[string]*Client

	// mu protects clients.
	mu sync.Mutex

	logger zerolog.Logger
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		logger:  logx.Component("live_manager"),
	}
}

// Register makes c the live session of its profile, kicking any previous connection,
// and pushes the initial state.
func (m *Manager) Register(c *Client) {
	m.mu.Lock()
	if existing, ok := m.clients[c.ProfileID]; ok && existing != c {
		m.logger.Warn().
			Str("profile_id", c.ProfileID).
			Msg("Profile already connected. Closing old connection for replacement.")

		existing.Kick("Session replaced by new connection.")
	}

	c.manager = m
	m.clients[c.ProfileID] = c
	metrics.LiveSessions.Set(float64(len(m.clients)))
	m.mu.Unlock()

	c.PushState(c.session.Snapshot())
}

// Unregister forgets c unless a newer connection already replaced it.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.clients[c.ProfileID]
	switch {
	case ok && current == c:
		delete(m.clients, c.ProfileID)
		m.logger.Info().Str("profile_id", c.ProfileID).Int("live", len(m.clients)).Msg("Live session ended.")
	case ok:
		m.logger.Info().Str("profile_id", c.ProfileID).Msg("Ignoring unregister for STALE connection.")
	}
	metrics.LiveSessions.Set(float64(len(m.clients)))
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Shutdown closes every live connection with CloseGoingAway.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("Shutting down live sessions...")

	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.closeWith(websocket.CloseGoingAway, "Server shutting down.")
	}

	m.logger.Info().Int("closed", len(clients)).Msg("Live session shutdown complete.")
}
