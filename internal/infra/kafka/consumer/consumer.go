package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/config"
)

// messageHandler processes one relay message.
type messageHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// client is the part of the wbf consumer the loop relies on.
type client interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Consumer reads relay messages from the inbound topic and hands them to
// the message handler.
type Consumer struct {
	Client   client
	handler  messageHandler
	topic    string
	strategy retry.Strategy
	backoff  time.Duration
}

// New creates a new Consumer subscribed to cfg.InboundTopic.
func New(cfg *config.Kafka, s retry.Strategy, h messageHandler) *Consumer {
	return &Consumer{
		Client:   wbfkafka.NewConsumer(cfg.Brokers, cfg.InboundTopic, cfg.GroupID),
		handler:  h,
		topic:    cfg.InboundTopic,
		strategy: s,
		backoff:  500 * time.Millisecond,
	}
}

// Consume fetches messages until ctx is canceled. The handler is retried with
// the consumer's strategy and the message is committed once it succeeds. A
// message that still fails is logged and skipped; it is not redelivered,
// because committing a later offset moves the group past it.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.topic).
		Msg("starting consumer")

	for {
		// Exit if context is canceled (graceful shutdown).
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		// Fetch a message from Kafka with retries.
		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.Client.Fetch(ctx)
			return fetchErr
		}, c.strategy)

		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			zlog.Logger.Err(err).Msg("failed to fetch message")
			c.sleep(ctx)
			continue
		}

		// Handle the message with retries, so a transient publish failure
		// does not drop it.
		err = retry.Do(func() error {
			return c.handler.Handle(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).
				Int64("offset", msg.Offset).
				Int("partition", msg.Partition).
				Msg("failed to handle relay message, skipping")
			continue
		}

		// Commit the message with retries.
		err = retry.Do(func() error {
			return c.Client.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
			continue
		}

		zlog.Logger.Debug().
			Int64("offset", msg.Offset).
			Msg("message handled successfully")
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	t := time.NewTimer(c.backoff)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
