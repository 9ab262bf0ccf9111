package service

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"fuelsign/internal/models"
	"fuelsign/internal/protocol"
	"fuelsign/internal/transport"
)

// startAckController runs a loopback controller that acks every frame.
func startAckController(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				header := make([]byte, 4)
				if _, err := io.ReadFull(conn, header); err != nil {
					return
				}
				rest := make([]byte, int(binary.BigEndian.Uint16(header[2:4]))+3)
				if _, err := io.ReadFull(conn, rest); err != nil {
					return
				}
				_, _ = conn.Write(protocol.NewAckFrame())
			}(conn)
		}
	}()
	return listener.Addr().String()
}

// unreachableAddr returns an address nothing listens on.
func unreachableAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

// TestUpdatePricesOverRealSockets exercises the orchestrator with the
// real transport client: three panels, one of them unreachable.
func TestUpdatePricesOverRealSockets(t *testing.T) {
	good1 := startAckController(t)
	good2 := startAckController(t)
	dead := unreachableAddr(t)

	station := &models.Station{ID: "st-1"}
	records := newFakeRecords(station, []models.Panel{
		{ID: "p-1", StationID: "st-1", ControllerAddress: good1},
		{ID: "p-2", StationID: "st-1", ControllerAddress: dead},
		{ID: "p-3", StationID: "st-1", ControllerAddress: good2},
	})

	client := transport.NewClient(2*time.Second, nil)
	svc := NewPricingService(records, records, records, client, 2*time.Second, nil)

	start := time.Now()
	result := svc.UpdatePrices(context.Background(), "st-1", models.FuelPrices{Regular: 3.45, Premium: 3.75, Diesel: 3.95}, "operator-1")
	elapsed := time.Since(start)

	if result.Success || result.PanelsUpdated != 2 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Errors[0].PanelID != "p-2" || result.Errors[0].Kind != KindDeviceUnreachable {
		t.Fatalf("unexpected failure entry: %+v", result.Errors[0])
	}
	// Concurrent fan-out: total latency is bounded by the slowest
	// panel, not the sum of all three.
	if elapsed > 6*time.Second {
		t.Fatalf("fan-out not concurrent, took %s", elapsed)
	}
	if records.savedCount() != 2 {
		t.Fatalf("expected 2 persisted panels, got %d", records.savedCount())
	}
}
