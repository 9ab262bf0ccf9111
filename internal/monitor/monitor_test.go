package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fuelsign/internal/protocol"
	"fuelsign/internal/transport"
)

var errProbe = errors.New("probe failed")

// scriptedProber fails while failing is set and counts probes per address.
type scriptedProber struct {
	mu      sync.Mutex
	failing map[string]bool
	probes  map[string]int
}

func newScriptedProber() *scriptedProber {
	return &scriptedProber{
		failing: make(map[string]bool),
		probes:  make(map[string]int),
	}
}

func (p *scriptedProber) Probe(_ context.Context, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes[address]++
	if p.failing[address] {
		return errProbe
	}
	return nil
}

func (p *scriptedProber) setFailing(address string, failing bool) {
	p.mu.Lock()
	p.failing[address] = failing
	p.mu.Unlock()
}

func (p *scriptedProber) probeCount(address string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes[address]
}

// transitionRecorder collects notifier callbacks.
type transitionRecorder struct {
	mu     sync.Mutex
	events []ConnectionStatus
}

func (r *transitionRecorder) StatusChanged(_ string, status ConnectionStatus) {
	r.mu.Lock()
	r.events = append(r.events, status)
	r.mu.Unlock()
}

func (r *transitionRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *transitionRecorder) last() (ConnectionStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return ConnectionStatus{}, false
	}
	return r.events[len(r.events)-1], true
}

func eventually(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestProbeSuccessSetsOnline(t *testing.T) {
	prober := newScriptedProber()
	recorder := &transitionRecorder{}
	m := New(prober, recorder, Config{DebounceThreshold: 3}, nil)
	defer m.StopAllMonitoring()

	m.StartMonitoring(Target{StationID: "st-1", Address: "a1", Interval: 10 * time.Millisecond})

	eventually(t, time.Second, func() bool {
		st, ok := m.GetStatus("st-1")
		return ok && st.State == StateOnline
	}, "station never became online")

	st, _ := m.GetStatus("st-1")
	if st.ConsecutiveFailures != 0 {
		t.Fatalf("failures must reset on success, got %d", st.ConsecutiveFailures)
	}
	if st.LastSeen.IsZero() {
		t.Fatal("last seen must be set after a successful probe")
	}
}

// TestDebounceStateMachine drives apply directly so every intermediate
// counter value is observable.
func TestDebounceStateMachine(t *testing.T) {
	m := New(newScriptedProber(), nil, Config{DebounceThreshold: 3}, nil)
	loop := &stationLoop{target: Target{StationID: "st-1", Address: "a1"}, done: make(chan struct{})}
	m.loops["st-1"] = loop
	m.status["st-1"] = &ConnectionStatus{State: StateOnline}

	// Two failures: prior state is sticky, count still tracked.
	for i := 1; i <= 2; i++ {
		m.apply(loop, errProbe)
		st, _ := m.GetStatus("st-1")
		if st.State != StateOnline {
			t.Fatalf("failure %d: state must stay online below threshold, got %s", i, st.State)
		}
		if st.ConsecutiveFailures != i {
			t.Fatalf("failure %d: expected %d consecutive failures, got %d", i, i, st.ConsecutiveFailures)
		}
	}

	// Third failure flips to offline.
	m.apply(loop, errProbe)
	if st, _ := m.GetStatus("st-1"); st.State != StateOffline || st.ConsecutiveFailures != 3 {
		t.Fatalf("expected offline with 3 failures, got %+v", st)
	}

	// A single success restores online immediately.
	m.apply(loop, nil)
	st, _ := m.GetStatus("st-1")
	if st.State != StateOnline || st.ConsecutiveFailures != 0 {
		t.Fatalf("expected online with reset counter, got %+v", st)
	}
	if st.LastSeen.IsZero() {
		t.Fatal("success must advance last seen")
	}
}

func TestDebounceFromUnknownState(t *testing.T) {
	m := New(newScriptedProber(), nil, Config{DebounceThreshold: 3}, nil)
	loop := &stationLoop{target: Target{StationID: "st-1", Address: "a1"}, done: make(chan struct{})}
	m.loops["st-1"] = loop
	m.status["st-1"] = &ConnectionStatus{State: StateUnknown}

	m.apply(loop, errProbe)
	m.apply(loop, errProbe)
	if st, _ := m.GetStatus("st-1"); st.State != StateUnknown {
		t.Fatalf("unknown must be sticky below threshold, got %s", st.State)
	}
	m.apply(loop, errProbe)
	if st, _ := m.GetStatus("st-1"); st.State != StateOffline {
		t.Fatalf("expected offline after threshold, got %s", st.State)
	}
}

func TestNotifierFiresOnTransitions(t *testing.T) {
	prober := newScriptedProber()
	prober.setFailing("a1", true)
	recorder := &transitionRecorder{}
	m := New(prober, recorder, Config{DebounceThreshold: 2}, nil)
	defer m.StopAllMonitoring()

	m.StartMonitoring(Target{StationID: "st-1", Address: "a1", Interval: 10 * time.Millisecond})

	eventually(t, time.Second, func() bool { return recorder.count() >= 1 }, "no offline notification")
	if last, _ := recorder.last(); last.State != StateOffline {
		t.Fatalf("expected offline notification, got %s", last.State)
	}

	prober.setFailing("a1", false)
	eventually(t, time.Second, func() bool {
		last, ok := recorder.last()
		return ok && last.State == StateOnline
	}, "no online notification")
}

func TestReregistrationReplacesLoop(t *testing.T) {
	prober := newScriptedProber()
	m := New(prober, nil, Config{}, nil)
	defer m.StopAllMonitoring()

	m.StartMonitoring(Target{StationID: "st-1", Address: "a1", Interval: 10 * time.Millisecond})
	eventually(t, time.Second, func() bool { return prober.probeCount("a1") >= 1 }, "first loop never probed")

	m.StartMonitoring(Target{StationID: "st-1", Address: "a2", Interval: 10 * time.Millisecond})
	eventually(t, time.Second, func() bool { return prober.probeCount("a2") >= 2 }, "replacement loop never probed")

	// The old loop must stop probing the old address.
	old := prober.probeCount("a1")
	time.Sleep(60 * time.Millisecond)
	if got := prober.probeCount("a1"); got > old+1 {
		t.Fatalf("old loop still probing: %d -> %d", old, got)
	}

	stats := m.GetMonitoringStats()
	if stats.TotalStations != 1 {
		t.Fatalf("expected 1 monitored station, got %d", stats.TotalStations)
	}
}

func TestStopMonitoringDiscardsStatus(t *testing.T) {
	prober := newScriptedProber()
	m := New(prober, nil, Config{}, nil)

	m.StartMonitoring(Target{StationID: "st-1", Address: "a1", Interval: 10 * time.Millisecond})
	eventually(t, time.Second, func() bool { return prober.probeCount("a1") >= 1 }, "loop never probed")

	m.StopMonitoring("st-1")
	if _, ok := m.GetStatus("st-1"); ok {
		t.Fatal("status must be discarded on stop")
	}

	count := prober.probeCount("a1")
	time.Sleep(60 * time.Millisecond)
	if got := prober.probeCount("a1"); got > count+1 {
		t.Fatalf("probes continued after stop: %d -> %d", count, got)
	}
}

func TestSlowProbeDoesNotDelayOtherStations(t *testing.T) {
	prober := newScriptedProber()
	slow := &slowProber{inner: prober, slowAddress: "slow", delay: 300 * time.Millisecond}
	m := New(slow, nil, Config{ProbeTimeout: time.Second}, nil)
	defer m.StopAllMonitoring()

	m.StartMonitoring(Target{StationID: "st-slow", Address: "slow", Interval: 10 * time.Millisecond})
	m.StartMonitoring(Target{StationID: "st-fast", Address: "fast", Interval: 10 * time.Millisecond})

	eventually(t, time.Second, func() bool { return prober.probeCount("fast") >= 5 },
		"fast station starved by slow sibling")
}

type slowProber struct {
	inner       *scriptedProber
	slowAddress string
	delay       time.Duration
}

func (p *slowProber) Probe(ctx context.Context, address string) error {
	if address == p.slowAddress {
		time.Sleep(p.delay)
	}
	return p.inner.Probe(ctx, address)
}

func TestGetMonitoringStats(t *testing.T) {
	prober := newScriptedProber()
	prober.setFailing("down", true)
	m := New(prober, nil, Config{DebounceThreshold: 1}, nil)
	defer m.StopAllMonitoring()

	m.StartMonitoring(Target{StationID: "st-up", Address: "up", Interval: 10 * time.Millisecond})
	m.StartMonitoring(Target{StationID: "st-down", Address: "down", Interval: 20 * time.Millisecond})

	eventually(t, time.Second, func() bool {
		stats := m.GetMonitoringStats()
		return stats.OnlineStations == 1 && stats.OfflineStations == 1
	}, "stats never converged")

	stats := m.GetMonitoringStats()
	if stats.TotalStations != 2 {
		t.Fatalf("expected 2 stations, got %d", stats.TotalStations)
	}
	if stats.MonitoringIntervals["st-up"] != 10*time.Millisecond ||
		stats.MonitoringIntervals["st-down"] != 20*time.Millisecond {
		t.Fatalf("interval report wrong: %+v", stats.MonitoringIntervals)
	}
}

func TestStopAllMonitoring(t *testing.T) {
	prober := newScriptedProber()
	m := New(prober, nil, Config{}, nil)

	for i := 0; i < 5; i++ {
		m.StartMonitoring(Target{
			StationID: fmt.Sprintf("st-%d", i),
			Address:   fmt.Sprintf("a-%d", i),
			Interval:  10 * time.Millisecond,
		})
	}
	m.StopAllMonitoring()

	if stats := m.GetMonitoringStats(); stats.TotalStations != 0 {
		t.Fatalf("expected empty table after StopAll, got %d", stats.TotalStations)
	}
}

func TestStatusProberTreatsProtocolErrorAsReachable(t *testing.T) {
	sender := &stubSender{err: fmt.Errorf("%w: bad frame", transport.ErrProtocolError)}
	p := NewStatusProber(sender)
	if err := p.Probe(context.Background(), "a1"); err != nil {
		t.Fatalf("protocol error must count as reachable, got %v", err)
	}

	sender.err = fmt.Errorf("%w: refused", transport.ErrConnectionRefused)
	if err := p.Probe(context.Background(), "a1"); err == nil {
		t.Fatal("refusal must count as probe failure")
	}
	if sender.lastFrame[1] != protocol.CmdStatusQuery {
		t.Fatalf("prober must send status query, sent 0x%02X", sender.lastFrame[1])
	}
}

type stubSender struct {
	err       error
	lastFrame []byte
}

func (s *stubSender) SendFrame(_ context.Context, _ string, frame []byte) (protocol.Frame, error) {
	s.lastFrame = frame
	if s.err != nil {
		return protocol.Frame{}, s.err
	}
	return protocol.Frame{Command: protocol.CmdAck}, nil
}
