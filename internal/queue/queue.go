package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	appID            = "resto-console"
	consumerPrefetch = 8
)

// Client holds one AMQP connection with a publishing channel in confirm mode
// and a separate channel for consumers. Publishing is safe for concurrent use.
type Client struct {
	conn *amqp.Connection
	sub  *amqp.Channel

	pubMu sync.Mutex
	pub   *amqp.Channel
}

func New(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := pub.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	sub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := sub.Qos(consumerPrefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set consumer prefetch: %w", err)
	}
	return &Client{conn: conn, pub: pub, sub: sub}, nil
}

func (c *Client) Close() error {
	var errs []error
	for _, ch := range []*amqp.Channel{c.sub, c.pub} {
		if ch != nil {
			if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
				errs = append(errs, err)
			}
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Exchange struct {
	Name string
	Kind string
}

// Queue is a durable queue, optionally dead-lettering rejected messages.
type Queue struct {
	Name               string
	DeadLetterExchange string
	DeadLetterKey      string
}

func (q Queue) args() amqp.Table {
	if q.DeadLetterExchange == "" {
		return nil
	}
	args := amqp.Table{"x-dead-letter-exchange": q.DeadLetterExchange}
	if q.DeadLetterKey != "" {
		args["x-dead-letter-routing-key"] = q.DeadLetterKey
	}
	return args
}

type Binding struct {
	Queue    string
	Exchange string
	Key      string
}

// Declarations is a broker topology, applied exchanges first, then queues,
// then bindings.
type Declarations struct {
	Exchanges []Exchange
	Queues    []Queue
	Bindings  []Binding
}

func (c *Client) Declare(d Declarations) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	for _, ex := range d.Exchanges {
		kind := ex.Kind
		if kind == "" {
			kind = amqp.ExchangeTopic
		}
		if err := c.pub.ExchangeDeclare(ex.Name, kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.Name, err)
		}
	}
	for _, q := range d.Queues {
		if _, err := c.pub.QueueDeclare(q.Name, true, false, false, false, q.args()); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.Name, err)
		}
	}
	for _, b := range d.Bindings {
		if err := c.pub.QueueBind(b.Queue, b.Key, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s (%s): %w", b.Queue, b.Exchange, b.Key, err)
		}
	}
	return nil
}

// eventMessage wraps a console event. The routing key doubles as the message
// type so consumers can dispatch without decoding the body.
func eventMessage(routingKey string, payload any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode %s event: %w", routingKey, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         routingKey,
		AppId:        appID,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}

// PublishEvent publishes payload as JSON and waits for the broker to confirm it.
func (c *Client) PublishEvent(ctx context.Context, exchange, routingKey string, payload any) error {
	msg, err := eventMessage(routingKey, payload, time.Now())
	if err != nil {
		return err
	}
	return c.publishConfirmed(ctx, exchange, routingKey, msg)
}

func (c *Client) publishConfirmed(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	c.pubMu.Lock()
	confirm, err := c.pub.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, msg)
	c.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected %s on %q", routingKey, exchange)
	}
	return nil
}
