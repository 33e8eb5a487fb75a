// Package events defines the domain events the core announces to observers.
//
// Events are fire-and-forget: emission never blocks a state transition and
// never surfaces an error to the operation that triggered it. Observers
// (the dashboard websocket feed, primarily) get best-effort delivery.
package events

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hydroward/damtwin/internal/idgen"
)

// Type identifies a domain event.
type Type string

const (
	TypeSensorDataReceived  Type = "sensor_data_received"
	TypeAssessmentRequested Type = "risk_assessment_requested"
	TypeRiskWarning         Type = "risk_warning_generated"
	TypeAssessmentCompleted Type = "assessment_completed"
	TypeMaintenanceRecorded Type = "maintenance_recorded"
)

// Event is a single domain event.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Broadcaster delivers events to connected observers.
type Broadcaster interface {
	Broadcast(e *Event)
}

var emittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "damtwin",
	Subsystem: "events",
	Name:      "emitted_total",
	Help:      "Total domain events emitted by type.",
}, []string{"type"})

func init() {
	prometheus.MustRegister(emittedTotal)
}

// Emitter emits lifecycle events across subsystems. All methods are
// nil-safe and fire-and-forget.
type Emitter struct {
	b      Broadcaster
	logger *slog.Logger
}

// NewEmitter creates a new event emitter. A nil broadcaster yields an
// emitter that only counts.
func NewEmitter(b Broadcaster, logger *slog.Logger) *Emitter {
	return &Emitter{b: b, logger: logger}
}

func (e *Emitter) emit(eventType Type, data map[string]any) {
	if e == nil {
		return
	}
	emittedTotal.WithLabelValues(string(eventType)).Inc()
	if e.b == nil {
		return
	}
	e.b.Broadcast(&Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// SensorDataReceived announces a newly stored encrypted reading.
func (e *Emitter) SensorDataReceived(recordID int64, sensorID string) {
	e.emit(TypeSensorDataReceived, map[string]any{
		"recordId": recordID,
		"sensorId": sensorID,
	})
}

// AssessmentRequested announces a registered pending request.
func (e *Emitter) AssessmentRequested(recordID int64, requestID string, thresholdVersion int64) {
	e.emit(TypeAssessmentRequested, map[string]any{
		"recordId":         recordID,
		"requestId":        requestID,
		"thresholdVersion": thresholdVersion,
	})
}

// RiskWarning announces a verified assessment that carried a warning.
func (e *Emitter) RiskWarning(recordID int64, requestID string) {
	e.emit(TypeRiskWarning, map[string]any{
		"recordId":  recordID,
		"requestId": requestID,
	})
}

// AssessmentCompleted announces a verified assessment with no warning.
func (e *Emitter) AssessmentCompleted(recordID int64, requestID string) {
	e.emit(TypeAssessmentCompleted, map[string]any{
		"recordId":  recordID,
		"requestId": requestID,
	})
}

// MaintenanceRecorded announces an appended maintenance entry.
func (e *Emitter) MaintenanceRecorded(assetID string, entryID int64, recordedBy string) {
	e.emit(TypeMaintenanceRecorded, map[string]any{
		"assetId":    assetID,
		"entryId":    entryID,
		"recordedBy": recordedBy,
	})
}
