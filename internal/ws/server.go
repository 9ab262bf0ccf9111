package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP connections into status-feed subscriptions.
type Server struct {
	manager      *Manager
	writeTimeout time.Duration
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, writeTimeout time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		manager:      manager,
		writeTimeout: writeTimeout,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleStatusFeed is the HTTP handler for the /ws/status endpoint.
func (s *Server) HandleStatusFeed(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConnection(socket, s.writeTimeout)
	s.manager.Add(conn)
	s.logger.Info("status subscriber connected", zap.String("remote", r.RemoteAddr))

	// Subscribers only listen; the read loop exists to notice closes
	// and answer control frames.
	go func() {
		defer func() {
			s.manager.Remove(conn)
			_ = conn.Close()
			s.logger.Info("status subscriber disconnected", zap.String("remote", r.RemoteAddr))
		}()
		socket.SetReadLimit(512)
		for {
			if _, _, err := socket.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
