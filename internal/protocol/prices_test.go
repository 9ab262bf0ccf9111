package protocol

import (
	"testing"
	"time"

	"fuelsign/internal/models"
)

func TestPriceUpdateFrameRoundTrip(t *testing.T) {
	prices := models.FuelPrices{Regular: 3.45, Premium: 3.75, Diesel: 3.95}
	data, err := NewPriceUpdateFrame(prices, "panel-7", time.Now())
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}

	frame, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Command != CmdPriceUpdate {
		t.Fatalf("command mismatch: 0x%02X", frame.Command)
	}

	decoded := ParsePricePayload(frame.Payload)
	if decoded.Degraded {
		t.Fatal("round trip must not be degraded")
	}
	if decoded.Prices != prices {
		t.Fatalf("prices mismatch: got %+v want %+v", decoded.Prices, prices)
	}
	if decoded.PanelID != "panel-7" {
		t.Fatalf("panel id mismatch: %q", decoded.PanelID)
	}
}

func TestParsePricePayloadLegacyFallback(t *testing.T) {
	decoded := ParsePricePayload([]byte("REG 3.45 PREM 3.75"))
	if !decoded.Degraded {
		t.Fatal("legacy payload must be flagged degraded")
	}
	if decoded.Prices != (models.FuelPrices{}) {
		t.Fatalf("expected default prices, got %+v", decoded.Prices)
	}
}

func TestParsePricePayloadUnparseableField(t *testing.T) {
	decoded := ParsePricePayload([]byte(`{"regular":"n/a","premium":"3.75","diesel":"3.95"}`))
	if !decoded.Degraded {
		t.Fatal("unparseable field must be flagged degraded")
	}
	if decoded.Prices.Regular != 0 {
		t.Fatalf("unparseable field must default to 0, got %v", decoded.Prices.Regular)
	}
	if decoded.Prices.Premium != 3.75 || decoded.Prices.Diesel != 3.95 {
		t.Fatalf("parseable fields must survive, got %+v", decoded.Prices)
	}
}

func TestAuxiliaryFrames(t *testing.T) {
	status, err := Decode(NewStatusQueryFrame())
	if err != nil {
		t.Fatalf("decode status query: %v", err)
	}
	if status.Command != CmdStatusQuery {
		t.Fatalf("status query command mismatch: 0x%02X", status.Command)
	}

	ack, err := Decode(NewAckFrame())
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Command != CmdAck {
		t.Fatalf("ack command mismatch: 0x%02X", ack.Command)
	}

	raw, err := NewCustomFrame(0x7A, []byte("diag"))
	if err != nil {
		t.Fatalf("build custom frame: %v", err)
	}
	custom, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode custom: %v", err)
	}
	if custom.Command != 0x7A || string(custom.Payload) != "diag" {
		t.Fatalf("custom frame mismatch: %+v", custom)
	}
}
