package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"fuelsign/internal/protocol"
)

const defaultTimeout = 5 * time.Second

var (
	ErrConnectionRefused = errors.New("transport: device unreachable")
	ErrTimeout           = errors.New("transport: device did not respond in time")
	ErrProtocolError     = errors.New("transport: malformed device response")
)

// Client delivers exactly one frame per call to a display controller and
// captures exactly one framed response. Every call opens a fresh
// connection; updates are low-frequency and isolation between panels
// matters more than socket reuse, so there is no pooling.
type Client struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient builds a transport client with the given per-call time bound.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{timeout: timeout, logger: logger}
}

// SendFrame writes one encoded frame to the controller at address and
// blocks for one framed response or the deadline. The connection is
// closed on every exit path. No retries: retry policy belongs to callers.
func (c *Client) SendFrame(ctx context.Context, address string, frame []byte) (protocol.Frame, error) {
	deadline := time.Now().Add(c.timeout)

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return protocol.Frame{}, classifyDial(err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return protocol.Frame{}, fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	}

	if _, err := conn.Write(frame); err != nil {
		return protocol.Frame{}, classifyIO(err)
	}

	response, err := readFrame(conn)
	if err != nil {
		c.logger.Debug("frame exchange failed",
			zap.String("address", address),
			zap.Error(err))
		return protocol.Frame{}, err
	}
	return response, nil
}

// readFrame assembles one complete frame from the stream: the 4-byte
// header first, then the declared payload plus checksum and footer.
func readFrame(conn net.Conn) (protocol.Frame, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return protocol.Frame{}, classifyIO(err)
	}

	length := int(binary.BigEndian.Uint16(header[2:4]))
	rest := make([]byte, length+3)
	if _, err := io.ReadFull(conn, rest); err != nil {
		return protocol.Frame{}, classifyIO(err)
	}

	frame, err := protocol.Decode(append(header, rest...))
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("%w: %v", ErrProtocolError, err)
	}
	return frame, nil
}

func classifyDial(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
}

func classifyIO(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		// Device hung up mid-frame.
		return fmt.Errorf("%w: %v", ErrProtocolError, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
}
