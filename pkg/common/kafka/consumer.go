package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/models"
	"github.com/nourish-clinic/platform/pkg/gateway/httpclient"
	"github.com/segmentio/kafka-go"
)

const (
	defaultHandlerAttempts = 5
	defaultHandlerBackoff  = 200 * time.Millisecond
)

type Consumer struct {
	reader   *kafka.Reader
	dlq      *Producer
	attempts int
	backoff  time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

// ErrPoison marks an event the handler can never process. The consumer
// dead-letters it and commits instead of leaving it for redelivery.
var ErrPoison = errors.New("poison event")

// ErrRetriesExhausted wraps the last handler error once every attempt failed.
var ErrRetriesExhausted = errors.New("handler retries exhausted")

type ConsumerOption func(*Consumer)

// WithHandlerRetry sets how often a failing handler is retried before the
// message is dead-lettered.
func WithHandlerRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func NewConsumer(brokers []string, topic string, groupID string, dlq *Producer, opts ...ConsumerOption) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	c := &Consumer{reader: reader, dlq: dlq, attempts: defaultHandlerAttempts, backoff: defaultHandlerBackoff}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume processes messages one at a time. FetchMessage advances past a
// message whether or not it is committed, so every fetched message is either
// handled, dead-lettered, or left uncommitted by returning.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			continue
		}

		var event models.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			logger.Log.WithError(err).Error("Failed to unmarshal event")
			c.deadLetter(ctx, message, err)
			c.commit(ctx, message)
			continue
		}

		err = handleWithRetry(ctx, c.attempts, c.backoff, event, handler)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			// uncommitted; the group resumes from the last commit on restart
			return ctx.Err()
		default:
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":  event.ID,
				"partition": message.Partition,
				"offset":    message.Offset,
			}).Error("Failed to process event, dead-lettering")
			c.deadLetter(ctx, message, err)
		}
		c.commit(ctx, message)
	}
}

// handleWithRetry runs handler until it succeeds, returns ErrPoison, or runs
// out of attempts.
func handleWithRetry(ctx context.Context, attempts int, backoff time.Duration, event models.Event, handler EventHandler) error {
	tries := 0
	err := httpclient.Retry(ctx, attempts, backoff, func() error {
		tries++
		err := handler(ctx, event)
		if errors.Is(err, ErrPoison) {
			return httpclient.Permanent(err)
		}
		if err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id": event.ID,
				"attempt":  tries,
			}).Warn("event handler failed")
		}
		return err
	})
	if err == nil || errors.Is(err, ErrPoison) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, tries, err)
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).Error("Failed to commit message")
	}
}

func (c *Consumer) deadLetter(ctx context.Context, message kafka.Message, reason error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.PublishRaw(ctx, message.Key, message.Value, reason.Error()); err != nil {
		logger.Log.WithError(err).Error("Failed to push event to DLQ")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
