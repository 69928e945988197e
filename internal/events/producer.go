// Package events publishes auth lifecycle events to kafka. Publishing is
// best-effort from the handlers' point of view; a broker outage must never
// fail a login.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Topic carrying login, logout and revocation events.
const AuthTopic = "auth_events"

// Producer wraps one kafka writer for all topics; the topic travels with
// each message.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(address string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(address),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshaling event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: writing to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
