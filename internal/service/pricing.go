package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fuelsign/internal/models"
	"fuelsign/internal/protocol"
	"fuelsign/internal/transport"
)

const defaultSendTimeout = 5 * time.Second

// Failure kinds reported per panel.
const (
	KindValidation        = "validation_error"
	KindStationNotFound   = "station_not_found"
	KindPanelNotFound     = "panel_not_found"
	KindDeviceUnreachable = "device_unreachable"
	KindProtocolError     = "protocol_error"
	KindInternal          = "internal_error"
)

// PanelError describes one failed panel delivery.
type PanelError struct {
	PanelID string `json:"panel_id,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// UpdateResult is the outcome of one price-update request. Success is
// true only when every panel was updated; partial delivery is reported,
// never rolled back.
type UpdateResult struct {
	Success       bool         `json:"success"`
	PanelsUpdated int          `json:"panels_updated"`
	Errors        []PanelError `json:"errors,omitempty"`
}

// ValidationResult carries every violated field at once.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// StationGetter resolves station records.
type StationGetter interface {
	GetStation(ctx context.Context, stationID string) (*models.Station, error)
}

// PanelStore resolves and persists panel records.
type PanelStore interface {
	ListByStation(ctx context.Context, stationID string) ([]models.Panel, error)
	UpdatePrices(ctx context.Context, panelID string, prices models.FuelPrices, updatedAt time.Time) error
}

// AuditAppender records per-panel delivery outcomes.
type AuditAppender interface {
	Append(ctx context.Context, entry *models.PriceAudit) error
}

// FrameSender is the transport dependency of the orchestrator.
type FrameSender interface {
	SendFrame(ctx context.Context, address string, frame []byte) (protocol.Frame, error)
}

// PricingService validates price input and fans updates out to every
// panel of a station with best-effort semantics.
type PricingService struct {
	stations StationGetter
	panels   PanelStore
	audit    AuditAppender
	sender   FrameSender
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPricingService builds the orchestrator.
func NewPricingService(
	stations StationGetter,
	panels PanelStore,
	audit AuditAppender,
	sender FrameSender,
	timeout time.Duration,
	logger *zap.Logger,
) *PricingService {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingService{
		stations: stations,
		panels:   panels,
		audit:    audit,
		sender:   sender,
		timeout:  timeout,
		logger:   logger,
	}
}

// SanitizePrices coerces arbitrary client input into FuelPrices.
// Currency symbols and stray text are stripped; missing or unparseable
// fields default to 0. A nil or empty map yields all-zero prices.
func SanitizePrices(raw map[string]any) models.FuelPrices {
	return models.FuelPrices{
		Regular: sanitizeField(raw, "regular"),
		Premium: sanitizeField(raw, "premium"),
		Diesel:  sanitizeField(raw, "diesel"),
	}
}

func sanitizeField(raw map[string]any, key string) float64 {
	if raw == nil {
		return 0
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}

	switch v := value.(type) {
	case float64:
		return round2(v)
	case float32:
		return round2(float64(v))
	case int:
		return round2(float64(v))
	case int64:
		return round2(float64(v))
	case string:
		parsed, err := strconv.ParseFloat(stripNonNumeric(v), 64)
		if err != nil {
			return 0
		}
		return round2(parsed)
	default:
		return 0
	}
}

func stripNonNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

// ValidatePrices checks every field and accumulates one message per
// violation rather than stopping at the first.
func ValidatePrices(prices models.FuelPrices) ValidationResult {
	var errs []string
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"regular", prices.Regular},
		{"premium", prices.Premium},
		{"diesel", prices.Diesel},
	} {
		switch {
		case math.IsNaN(field.value) || math.IsInf(field.value, 0):
			errs = append(errs, fmt.Sprintf("%s: price must be a finite number", field.name))
		case field.value <= 0:
			errs = append(errs, fmt.Sprintf("%s: price must be greater than zero", field.name))
		case field.value > models.MaxPrice:
			errs = append(errs, fmt.Sprintf("%s: price exceeds %.2f", field.name, models.MaxPrice))
		case hasExcessPrecision(field.value):
			errs = append(errs, fmt.Sprintf("%s: price may have at most 2 decimal places", field.name))
		}
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func hasExcessPrecision(v float64) bool {
	scaled := v * 100
	return math.Abs(scaled-math.Round(scaled)) > 1e-6
}

// UpdatePrices delivers the prices to every panel of the station
// concurrently. One unreachable panel never blocks or rolls back the
// others; the result reports each failure with its kind.
func (s *PricingService) UpdatePrices(ctx context.Context, stationID string, prices models.FuelPrices, actorID string) UpdateResult {
	if validation := ValidatePrices(prices); !validation.IsValid {
		errs := make([]PanelError, 0, len(validation.Errors))
		for _, msg := range validation.Errors {
			errs = append(errs, PanelError{Kind: KindValidation, Message: msg})
		}
		return UpdateResult{Errors: errs}
	}

	station, err := s.stations.GetStation(ctx, stationID)
	if err != nil {
		if errors.Is(err, models.ErrStationNotFound) {
			return UpdateResult{Errors: []PanelError{{Kind: KindStationNotFound, Message: "station not found"}}}
		}
		s.logger.Error("station lookup failed", zap.String("station_id", stationID), zap.Error(err))
		return UpdateResult{Errors: []PanelError{{Kind: KindInternal, Message: "internal error"}}}
	}

	panels, err := s.panels.ListByStation(ctx, stationID)
	if err != nil {
		s.logger.Error("panel lookup failed", zap.String("station_id", stationID), zap.Error(err))
		return UpdateResult{Errors: []PanelError{{Kind: KindInternal, Message: "internal error"}}}
	}
	if len(panels) == 0 {
		return UpdateResult{Errors: []PanelError{{Kind: KindPanelNotFound, Message: "station has no panels"}}}
	}

	outcomes := make(chan *PanelError, len(panels))
	var wg sync.WaitGroup
	for _, panel := range panels {
		wg.Add(1)
		go func(panel models.Panel) {
			defer wg.Done()
			outcomes <- s.updatePanel(ctx, station, panel, prices, actorID)
		}(panel)
	}
	wg.Wait()
	close(outcomes)

	result := UpdateResult{}
	for outcome := range outcomes {
		if outcome == nil {
			result.PanelsUpdated++
		} else {
			result.Errors = append(result.Errors, *outcome)
		}
	}
	result.Success = result.PanelsUpdated == len(panels)

	s.logger.Info("price update completed",
		zap.String("station_id", stationID),
		zap.String("actor_id", actorID),
		zap.Int("panels_total", len(panels)),
		zap.Int("panels_updated", result.PanelsUpdated),
		zap.Bool("success", result.Success))
	return result
}

// updatePanel handles one panel in isolation; a nil return means the
// panel was updated and persisted. Any panic is contained here so one
// bad panel cannot take down the whole request.
func (s *PricingService) updatePanel(ctx context.Context, station *models.Station, panel models.Panel, prices models.FuelPrices, actorID string) (failure *PanelError) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while updating panel",
				zap.String("panel_id", panel.ID),
				zap.Any("panic", r))
			failure = &PanelError{PanelID: panel.ID, Kind: KindInternal, Message: "internal error"}
		}
	}()

	entry := &models.PriceAudit{
		StationID:  station.ID,
		PanelID:    panel.ID,
		ActorID:    actorID,
		OldRegular: panel.Regular,
		OldPremium: panel.Premium,
		OldDiesel:  panel.Diesel,
		NewRegular: prices.Regular,
		NewPremium: prices.Premium,
		NewDiesel:  prices.Diesel,
		CreatedAt:  time.Now().UTC(),
	}

	address := panel.Address(station)
	if address == "" {
		return s.fail(ctx, entry, KindDeviceUnreachable, "panel has no controller address", nil)
	}

	frame, err := protocol.NewPriceUpdateFrame(prices, panel.ID, entry.CreatedAt)
	if err != nil {
		return s.fail(ctx, entry, KindInternal, "internal error", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.sender.SendFrame(sendCtx, address, frame); err != nil {
		kind := classifySendError(err)
		return s.fail(ctx, entry, kind, publicMessage(kind), err)
	}

	now := time.Now().UTC()
	if err := s.panels.UpdatePrices(ctx, panel.ID, prices, now); err != nil {
		// The sign already changed; surface the record-layer failure so
		// the caller can reconcile.
		return s.fail(ctx, entry, KindInternal, "prices delivered but not recorded", err)
	}

	entry.Success = true
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append audit entry",
			zap.String("panel_id", panel.ID),
			zap.Error(err))
	}
	return nil
}

func (s *PricingService) fail(ctx context.Context, entry *models.PriceAudit, kind, message string, cause error) *PanelError {
	s.logger.Warn("panel update failed",
		zap.String("station_id", entry.StationID),
		zap.String("panel_id", entry.PanelID),
		zap.String("kind", kind),
		zap.Error(cause))

	entry.Success = false
	entry.Error = kind
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append audit entry",
			zap.String("panel_id", entry.PanelID),
			zap.Error(err))
	}
	return &PanelError{PanelID: entry.PanelID, Kind: kind, Message: message}
}

func classifySendError(err error) string {
	switch {
	case errors.Is(err, transport.ErrConnectionRefused), errors.Is(err, transport.ErrTimeout):
		return KindDeviceUnreachable
	case errors.Is(err, transport.ErrProtocolError):
		return KindProtocolError
	default:
		return KindInternal
	}
}

// publicMessage maps failure kinds to caller-facing text. Raw frame
// bytes and decode details never leave the logs.
func publicMessage(kind string) string {
	switch kind {
	case KindDeviceUnreachable:
		return "device unreachable"
	case KindProtocolError:
		return "device communication error"
	default:
		return "internal error"
	}
}
