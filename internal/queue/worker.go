package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type HandlerFunc func(ctx context.Context, body []byte) error

// ErrPermanent marks a message that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// ConsumeWithRetry delivers every message to handler until ctx is done or the
// channel closes. A failed message is republished with an incremented
// x-retry-count header after retryDelay, and dead-lettered (nacked without
// requeue) once maxRetries is reached or the error wraps ErrPermanent.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, maxRetries int, retryDelay time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	msgs, err := c.sub.Consume(queue, appID, false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		var msg amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok = <-msgs:
			if !ok {
				return errors.New("consumer closed")
			}
		}

		err := handler(ctx, msg.Body)
		if err == nil {
			_ = msg.Ack(false)
			continue
		}

		retryCount := getRetryCount(msg.Headers)
		if errors.Is(err, ErrPermanent) || retryCount >= maxRetries {
			logger.Warn("message dropped",
				zap.String("queue", queue),
				zap.String("routingKey", msg.RoutingKey),
				zap.Int("retries", retryCount),
				zap.Error(err),
			)
			_ = msg.Nack(false, false)
			continue
		}

		retryCount++
		headers := msg.Headers
		if headers == nil {
			headers = amqp.Table{}
		}
		headers["x-retry-count"] = retryCount

		select {
		case <-ctx.Done():
			_ = msg.Nack(false, true)
			return ctx.Err()
		case <-time.After(retryDelay):
		}
		if pubErr := c.publishConfirmed(ctx, "", queue, amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.MessageId,
			Type:         msg.Type,
			Body:         msg.Body,
			Headers:      headers,
			Timestamp:    time.Now(),
		}); pubErr != nil {
			logger.Warn("message retry publish failed", zap.String("queue", queue), zap.Error(pubErr))
			_ = msg.Nack(false, true)
			continue
		}
		_ = msg.Ack(false)
	}
}

func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	if v, ok := headers["x-retry-count"]; ok {
		switch t := v.(type) {
		case int32:
			return int(t)
		case int64:
			return int(t)
		case int:
			return t
		}
	}
	return 0
}
