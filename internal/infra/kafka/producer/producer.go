package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/watermark-relay/internal/config"
	"github.com/aliskhannn/watermark-relay/internal/model"
)

// sender is the part of the wbf producer used for publishing.
type sender interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key, value []byte) error
}

// Producer publishes processed messages to the outbound topic.
type Producer struct {
	Client   *wbfkafka.Producer
	sender   sender
	strategy retry.Strategy
	topic    string
}

// New creates a new Producer writing to cfg.OutboundTopic.
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.OutboundTopic)

	return &Producer{
		Client:   client,
		sender:   client,
		strategy: s,
		topic:    cfg.OutboundTopic,
	}
}

// Publish serializes the result to JSON and sends it. The message ID is used
// as the key so results of one message land on one partition.
func (p *Producer) Publish(ctx context.Context, res model.RelayResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("publish: failed to marshal result: %w", err)
	}

	key := []byte(res.ID.String())

	if err := p.sender.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("publish: failed to send to %s: %w", p.topic, err)
	}

	return nil
}

// Close closes the underlying Kafka writer.
func (p *Producer) Close() error {
	if p.Client == nil {
		return nil
	}
	return p.Client.Close()
}
