package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_SkipsNonAlerts(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	require.NoError(t, p.Publish(context.Background(), Event{Type: CaseSubmitted, PatientRef: "P-1"}))
	assert.Empty(t, w.msgs)
}

func TestKafkaPublisher_WritesAlerts(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	e := Event{ID: "e-1", Type: VitalsAlert, PatientRef: "P-7", Alert: true}
	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "P-7", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "vitals.alert", string(msg.Headers[0].Value))
	assert.Contains(t, string(msg.Value), `"id":"e-1"`)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: errors.New("leader not available")})

	err := p.Publish(context.Background(), Event{Type: CaseSubmitted, Alert: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewKafkaPublisher(w).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "triage-alerts")
	assert.Equal(t, "triage-alerts", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}
