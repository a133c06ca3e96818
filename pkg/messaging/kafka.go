// Package messaging wraps the Kafka client used for auth events.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka represents a Kafka producer client
type Kafka struct {
	Client *kgo.Client
	Topic  string
}

// NewKafka creates a new Kafka client producing to topic by default
func NewKafka(ctx context.Context, brokers []string, topic, clientID string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RecordRetries(5),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}

	return &Kafka{Client: client, Topic: topic}, nil
}

// Ping checks if at least one broker is reachable
func (k *Kafka) Ping(ctx context.Context) error {
	return k.Client.Ping(ctx)
}

// Close flushes buffered records and closes the client
func (k *Kafka) Close(ctx context.Context) error {
	err := k.Client.Flush(ctx)
	k.Client.Close()
	if err != nil {
		return fmt.Errorf("failed to flush kafka records: %w", err)
	}
	return nil
}
