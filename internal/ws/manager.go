package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager tracks status-feed subscribers and broadcasts events to them.
type Manager struct {
	mu           sync.RWMutex
	subscribers  map[*Connection]struct{}
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewManager builds subscriber manager.
func NewManager(pingInterval time.Duration, logger *zap.Logger) *Manager {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		subscribers:  make(map[*Connection]struct{}),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Add registers a subscriber.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	m.subscribers[conn] = struct{}{}
	m.mu.Unlock()
}

// Remove unregisters a subscriber.
func (m *Manager) Remove(conn *Connection) {
	m.mu.Lock()
	delete(m.subscribers, conn)
	m.mu.Unlock()
}

// Count returns the number of live subscribers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// Broadcast sends the event to every subscriber, dropping the ones that
// fail to accept the write.
func (m *Manager) Broadcast(v any) {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.subscribers))
	for conn := range m.subscribers {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.SendJSON(v); err != nil {
			m.logger.Debug("dropping status subscriber", zap.Error(err))
			m.Remove(conn)
			_ = conn.Close()
		}
	}
}

// Start begins the ping loop keeping idle subscriptions alive.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			m.mu.RLock()
			conns := make([]*Connection, 0, len(m.subscribers))
			for conn := range m.subscribers {
				conns = append(conns, conn)
			}
			m.mu.RUnlock()
			for _, conn := range conns {
				if err := conn.Ping(); err != nil {
					m.Remove(conn)
					_ = conn.Close()
				}
			}
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.subscribers {
		_ = conn.Close()
		delete(m.subscribers, conn)
	}
}
