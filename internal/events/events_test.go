package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureBroadcaster struct {
	mu     sync.Mutex
	events []*Event
}

func (c *captureBroadcaster) Broadcast(e *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestEmitter_BroadcastsTypedEvents(t *testing.T) {
	cap := &captureBroadcaster{}
	em := NewEmitter(cap, nil)

	em.SensorDataReceived(7, "dam-north-01")
	em.AssessmentRequested(7, "req_abc", 3)
	em.RiskWarning(7, "req_abc")
	em.AssessmentCompleted(8, "req_def")
	em.MaintenanceRecorded("asset-1", 2, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	require.Len(t, cap.events, 5)
	assert.Equal(t, TypeSensorDataReceived, cap.events[0].Type)
	assert.Equal(t, int64(7), cap.events[0].Data["recordId"])
	assert.Equal(t, TypeAssessmentRequested, cap.events[1].Type)
	assert.Equal(t, "req_abc", cap.events[1].Data["requestId"])
	assert.Equal(t, TypeRiskWarning, cap.events[2].Type)
	assert.Equal(t, TypeAssessmentCompleted, cap.events[3].Type)
	assert.Equal(t, TypeMaintenanceRecorded, cap.events[4].Type)

	for _, e := range cap.events {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestEmitter_NilSafe(t *testing.T) {
	var em *Emitter
	assert.NotPanics(t, func() {
		em.SensorDataReceived(1, "s")
		em.RiskWarning(1, "r")
	})

	em = NewEmitter(nil, nil)
	assert.NotPanics(t, func() {
		em.AssessmentCompleted(1, "r")
	})
}
