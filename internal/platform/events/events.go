// Package events carries triage and vitals state changes to the live
// dashboard hub, other server instances and the alerting pipeline.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names a state change.
type Type string

const (
	CaseSubmitted     Type = "triage.case.submitted"
	CaseReassessed    Type = "triage.case.reassessed"
	CaseStatusChanged Type = "triage.case.status_changed"
	CaseNoteAdded     Type = "triage.case.note_added"
	CaseRemoved       Type = "triage.case.removed"
	VitalsRecorded    Type = "vitals.recorded"
	VitalsAlert       Type = "vitals.alert"
)

// Topics that websocket clients subscribe to.
const (
	TopicQueue  = "triage.queue"
	TopicVitals = "vitals"
)

// Event is one published state change.
type Event struct {
	ID           string          `json:"id"`
	Type         Type            `json:"type"`
	Topic        string          `json:"topic"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	PatientRef   string          `json:"patientRef,omitempty"`
	// Alert marks events that carry a high or critical clinical alert.
	Alert     bool            `json:"alert,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// New builds an event with payload encoded as its data.
func New(typ Type, topic, resourceType, resourceID string, payload interface{}) (Event, error) {
	e := Event{
		ID:           uuid.New().String(),
		Type:         typ,
		Topic:        topic,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Timestamp:    time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		e.Data = data
	}
	return e, nil
}

// Publisher delivers events to one sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Fanout publishes to every sink and joins their errors. One failing sink
// does not stop delivery to the others.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
