package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fuelsign/internal/monitor"
	"fuelsign/internal/redisstore"
)

const publishTimeout = 5 * time.Second

// StatusWriter persists per-station online state in the record layer.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, stationID string, online bool, lastSeen time.Time) error
}

// StatusCache keeps the hot status view.
type StatusCache interface {
	Save(ctx context.Context, status redisstore.StationStatus) error
}

// StatusFeed pushes events to live subscribers.
type StatusFeed interface {
	Broadcast(v any)
}

// StatusEvent is the shape broadcast to feed subscribers.
type StatusEvent struct {
	StationID           string     `json:"station_id"`
	State               string     `json:"state"`
	LastSeen            *time.Time `json:"last_seen,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	At                  time.Time  `json:"at"`
}

// StatusPublisher mirrors monitor transitions to the record layer, the
// redis cache and the websocket feed. It runs on the monitor's
// notification goroutine, so failures are logged and swallowed; nothing
// here may block or break probe scheduling. Any sink may be nil.
type StatusPublisher struct {
	writer StatusWriter
	cache  StatusCache
	feed   StatusFeed
	logger *zap.Logger
}

// NewStatusPublisher builds the publisher.
func NewStatusPublisher(writer StatusWriter, cache StatusCache, feed StatusFeed, logger *zap.Logger) *StatusPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusPublisher{writer: writer, cache: cache, feed: feed, logger: logger}
}

// StatusChanged implements monitor.StatusNotifier.
func (p *StatusPublisher) StatusChanged(stationID string, status monitor.ConnectionStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	now := time.Now().UTC()
	var lastSeen *time.Time
	if !status.LastSeen.IsZero() {
		t := status.LastSeen
		lastSeen = &t
	}

	if p.writer != nil {
		if err := p.writer.UpdateStatus(ctx, stationID, status.Online(), status.LastSeen); err != nil {
			p.logger.Warn("failed to persist station status",
				zap.String("station_id", stationID),
				zap.Error(err))
		}
	}

	if p.cache != nil {
		err := p.cache.Save(ctx, redisstore.StationStatus{
			StationID:           stationID,
			State:               string(status.State),
			LastSeen:            lastSeen,
			ConsecutiveFailures: status.ConsecutiveFailures,
			UpdatedAt:           now,
		})
		if err != nil {
			p.logger.Warn("failed to cache station status",
				zap.String("station_id", stationID),
				zap.Error(err))
		}
	}

	if p.feed != nil {
		p.feed.Broadcast(StatusEvent{
			StationID:           stationID,
			State:               string(status.State),
			LastSeen:            lastSeen,
			ConsecutiveFailures: status.ConsecutiveFailures,
			At:                  now,
		})
	}
}
