package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultInterval     = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
	defaultDebounce     = 3
)

// State of one monitored station.
type State string

const (
	StateUnknown State = "unknown"
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// ConnectionStatus is the monitor's view of one station.
type ConnectionStatus struct {
	State               State     `json:"state"`
	LastSeen            time.Time `json:"last_seen"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Online reports whether the station is currently considered reachable.
func (s ConnectionStatus) Online() bool { return s.State == StateOnline }

// Target configures one probe loop.
type Target struct {
	StationID string
	Address   string
	Interval  time.Duration
}

// Prober performs one health probe against a controller address.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// StatusNotifier receives state transitions. Calls are made on a
// dedicated goroutine per transition and must not be relied on for
// ordering across stations.
type StatusNotifier interface {
	StatusChanged(stationID string, status ConnectionStatus)
}

// Config tunes the monitor.
type Config struct {
	// DebounceThreshold is the run of consecutive failed probes after
	// which a station transitions to Offline.
	DebounceThreshold int
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
}

// Monitor runs one independent probe loop per registered station and
// maintains a concurrent-read-safe connectivity table.
type Monitor struct {
	prober   Prober
	notifier StatusNotifier
	logger   *zap.Logger

	debounce     int
	probeTimeout time.Duration

	mu     sync.RWMutex
	loops  map[string]*stationLoop
	status map[string]*ConnectionStatus
}

type stationLoop struct {
	target Target
	cancel context.CancelFunc
	done   chan struct{}
}

// Stats summarizes active monitoring.
type Stats struct {
	TotalStations       int                      `json:"total_stations"`
	OnlineStations      int                      `json:"online_stations"`
	OfflineStations     int                      `json:"offline_stations"`
	MonitoringIntervals map[string]time.Duration `json:"monitoring_intervals"`
}

// New builds a monitor. notifier may be nil.
func New(prober Prober, notifier StatusNotifier, cfg Config, logger *zap.Logger) *Monitor {
	if cfg.DebounceThreshold <= 0 {
		cfg.DebounceThreshold = defaultDebounce
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		prober:       prober,
		notifier:     notifier,
		logger:       logger,
		debounce:     cfg.DebounceThreshold,
		probeTimeout: cfg.ProbeTimeout,
		loops:        make(map[string]*stationLoop),
		status:       make(map[string]*ConnectionStatus),
	}
}

// StartMonitoring registers a periodic probe loop for the station.
// Re-registration cancels the previous loop first; there is never more
// than one live loop per station.
func (m *Monitor) StartMonitoring(target Target) {
	if target.Interval <= 0 {
		target.Interval = defaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	loop := &stationLoop{target: target, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if previous, ok := m.loops[target.StationID]; ok {
		previous.cancel()
	}
	m.loops[target.StationID] = loop
	if _, ok := m.status[target.StationID]; !ok {
		m.status[target.StationID] = &ConnectionStatus{State: StateUnknown}
	}
	m.mu.Unlock()

	m.logger.Info("monitoring started",
		zap.String("station_id", target.StationID),
		zap.String("address", target.Address),
		zap.Duration("interval", target.Interval))

	go m.run(ctx, loop)
}

// StopMonitoring cancels the station's loop and discards its status.
// An in-flight probe finishes naturally; its result is discarded.
func (m *Monitor) StopMonitoring(stationID string) {
	m.mu.Lock()
	loop, ok := m.loops[stationID]
	if ok {
		loop.cancel()
		delete(m.loops, stationID)
		delete(m.status, stationID)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Info("monitoring stopped", zap.String("station_id", stationID))
	}
}

// StopAllMonitoring cancels every active loop and waits for the loop
// goroutines to wind down. Used for graceful shutdown.
func (m *Monitor) StopAllMonitoring() {
	m.mu.Lock()
	loops := make([]*stationLoop, 0, len(m.loops))
	for id, loop := range m.loops {
		loop.cancel()
		loops = append(loops, loop)
		delete(m.loops, id)
		delete(m.status, id)
	}
	m.mu.Unlock()

	for _, loop := range loops {
		<-loop.done
	}
	m.logger.Info("all monitoring stopped", zap.Int("stations", len(loops)))
}

// GetStatus returns the station's current connectivity view.
func (m *Monitor) GetStatus(stationID string) (ConnectionStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[stationID]
	if !ok {
		return ConnectionStatus{}, false
	}
	return *st, true
}

// Statuses returns a snapshot of the whole connectivity table.
func (m *Monitor) Statuses() map[string]ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[string]ConnectionStatus, len(m.status))
	for id, st := range m.status {
		snapshot[id] = *st
	}
	return snapshot
}

// GetMonitoringStats summarizes the connectivity table.
func (m *Monitor) GetMonitoringStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		TotalStations:       len(m.status),
		MonitoringIntervals: make(map[string]time.Duration, len(m.loops)),
	}
	for id, st := range m.status {
		switch st.State {
		case StateOnline:
			stats.OnlineStations++
		case StateOffline:
			stats.OfflineStations++
		}
		if loop, ok := m.loops[id]; ok {
			stats.MonitoringIntervals[id] = loop.target.Interval
		}
	}
	return stats
}

func (m *Monitor) run(ctx context.Context, loop *stationLoop) {
	defer close(loop.done)

	ticker := time.NewTicker(loop.target.Interval)
	defer ticker.Stop()

	m.probe(ctx, loop)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx, loop)
		}
	}
}

// probe runs one health check. The probe context deliberately does not
// descend from the loop context: cancellation stops future probes but
// lets an in-flight one finish naturally.
func (m *Monitor) probe(ctx context.Context, loop *stationLoop) {
	probeCtx, cancel := context.WithTimeout(context.Background(), m.probeTimeout)
	err := m.prober.Probe(probeCtx, loop.target.Address)
	cancel()

	if ctx.Err() != nil {
		return
	}
	m.apply(loop, err)
}

func (m *Monitor) apply(loop *stationLoop, probeErr error) {
	stationID := loop.target.StationID

	m.mu.Lock()
	if m.loops[stationID] != loop {
		// Loop was stopped or replaced while the probe was in flight.
		m.mu.Unlock()
		return
	}
	st := m.status[stationID]
	previous := st.State

	if probeErr == nil {
		st.State = StateOnline
		st.ConsecutiveFailures = 0
		if now := time.Now().UTC(); now.After(st.LastSeen) {
			st.LastSeen = now
		}
	} else {
		st.ConsecutiveFailures++
		if st.ConsecutiveFailures >= m.debounce {
			st.State = StateOffline
		}
	}

	changed := st.State != previous
	snapshot := *st
	m.mu.Unlock()

	if probeErr != nil {
		m.logger.Debug("probe failed",
			zap.String("station_id", stationID),
			zap.Int("consecutive_failures", snapshot.ConsecutiveFailures),
			zap.Error(probeErr))
	}
	if !changed {
		return
	}

	m.logger.Info("station connectivity changed",
		zap.String("station_id", stationID),
		zap.String("from", string(previous)),
		zap.String("to", string(snapshot.State)))

	if m.notifier != nil {
		// Fire and forget: persistence of the transition must never
		// delay the next scheduled probe.
		go m.notifier.StatusChanged(stationID, snapshot)
	}
}
