package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func TestKey(t *testing.T) {
	assert.Equal(t, "reading-created-12", Key("reading", "created", 12))
	assert.Equal(t, "reading-meal-linked-3", Key("reading-meal", "linked", 3))
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, "meal", "created", 4, map[string]interface{}{"id": 4, "name": "Oats"})

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "meal-created-4", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "meal.created", string(msg.Headers[0].Value))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "Oats", body["name"])
}

func TestKafkaPublisherSwallowsFailures(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), "user", "deleted", 9, map[string]int64{"id": 9})
	})
	assert.Len(t, w.msgs, 1)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), "user", "deleted", 9, make(chan int))
	})
	assert.Len(t, w.msgs, 1)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NotPanics(t, func() { p.Publish(context.Background(), "meal", "created", 1, nil) })
}
