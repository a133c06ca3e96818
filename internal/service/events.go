package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// EventType names an auth lifecycle event
type EventType string

const (
	EventLogin           EventType = "login"
	EventRefresh         EventType = "refresh"
	EventLogout          EventType = "logout"
	EventLogoutAll       EventType = "logout_all"
	EventUserDeactivated EventType = "user_deactivated"
)

// AuthEvent is published after a lifecycle transition commits
type AuthEvent struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Method     string    `json:"method,omitempty"`
	Device     string    `json:"device,omitempty"`
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers auth events. Publishing never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event AuthEvent)
}

// RecordProducer is the subset of *kgo.Client used for publishing
type RecordProducer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

type kafkaPublisher struct {
	producer RecordProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaPublisher publishes events as JSON records keyed by user id
func NewKafkaPublisher(producer RecordProducer, topic string, logger *zap.Logger) EventPublisher {
	return &kafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event AuthEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode auth event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: value,
	}

	// Delivery continues after the request that triggered it has finished.
	p.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("failed to publish auth event",
				zap.String("type", string(event.Type)),
				zap.String("user_id", event.UserID),
				zap.Error(err),
			)
		}
	})
}

type logPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher writes events to the log when no broker is configured
func NewLogPublisher(logger *zap.Logger) EventPublisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, event AuthEvent) {
	p.logger.Info("auth event",
		zap.String("type", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.String("session_id", event.SessionID),
		zap.String("provider", event.Provider),
		zap.Int64("count", event.Count),
		zap.Time("occurred_at", event.OccurredAt),
	)
}
