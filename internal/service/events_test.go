package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMQTT struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (f *fakeMQTT) Publish(topic string, _ byte, _ bool, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeMQTT) QoS() byte { return 1 }

func TestMQTTEventPublisher_Publish(t *testing.T) {
	client := &fakeMQTT{}
	pub := NewMQTTEventPublisher(client, "sipenduk/events", getTestLogger())

	pub.Publish(context.Background(), DomainEvent{Type: EventDeathRecorded, EntityID: "d-1", ResidentID: "r-1"})
	require.Len(t, client.topics, 1)
	assert.Equal(t, "sipenduk/events/death.recorded", client.topics[0])

	var got DomainEvent
	require.NoError(t, json.Unmarshal(client.payloads[0], &got))
	assert.Equal(t, "d-1", got.EntityID)
	assert.Equal(t, "r-1", got.ResidentID)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestMQTTEventPublisher_FailureIsSwallowed(t *testing.T) {
	client := &fakeMQTT{err: errors.New("not connected")}
	pub := NewMQTTEventPublisher(client, "sipenduk/events", getTestLogger())

	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), DomainEvent{Type: EventResidentCreated, EntityID: "r-1"})
	})
}

// 事务回滚时不发布事件
func TestCoordinators_NoEventOnFailure(t *testing.T) {
	st := newTestStore()
	pub := &recordingPublisher{}
	svc := NewDeathEventService(st, pub, getTestLogger())

	_, err := svc.CreateDeath(context.Background(), DeathEventRequest{ResidentID: "missing", DateOfDeath: "2024-01-01", Cause: "-"})
	require.Error(t, err)
	assert.Empty(t, pub.types())
}
