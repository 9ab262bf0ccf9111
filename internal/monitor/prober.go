package monitor

import (
	"context"
	"errors"

	"fuelsign/internal/protocol"
	"fuelsign/internal/transport"
)

// FrameSender is the transport dependency of the status prober.
type FrameSender interface {
	SendFrame(ctx context.Context, address string, frame []byte) (protocol.Frame, error)
}

// StatusProber probes a controller with a status-query round trip.
// A response that fails frame decode still proves the device is
// reachable, so only refusal and timeout count as probe failures.
type StatusProber struct {
	sender FrameSender
}

// NewStatusProber wraps a transport client as a Prober.
func NewStatusProber(sender FrameSender) *StatusProber {
	return &StatusProber{sender: sender}
}

// Probe sends a status query and waits for any framed answer.
func (p *StatusProber) Probe(ctx context.Context, address string) error {
	_, err := p.sender.SendFrame(ctx, address, protocol.NewStatusQueryFrame())
	if err != nil && errors.Is(err, transport.ErrProtocolError) {
		return nil
	}
	return err
}
