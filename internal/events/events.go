// Package events publishes domain events after a write has been committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Publisher is fire-and-forget: a failed publish is logged, never returned,
// because the write it describes has already been committed.
type Publisher interface {
	Publish(ctx context.Context, entity, action string, id int64, payload interface{})
}

// Key names an event, e.g. reading-created-12.
func Key(entity, action string, id int64) string {
	return fmt.Sprintf("%s-%s-%d", entity, action, id)
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, entity, action string, id int64, payload interface{}) {
	key := Key(entity, action, id)

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("Error encoding event")
		return
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(entity + "." + action)},
		},
	}

	// The request may finish before an async writer flushes.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("Error publishing event")
	}
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, int64, interface{}) {}
