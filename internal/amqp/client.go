// Package amqp carries message envelopes over RabbitMQ: requests arrive on a
// durable queue and responses go back to the queue named in ReplyTo.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"costnest/internal/log"
)

// Circuit breaker states for publishing.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var (
	errCircuitOpen  = errors.New("circuit breaker is open")
	errNotConnected = errors.New("not connected")
	errChannelGone  = errors.New("delivery channel closed")
)

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient connects and declares the exchange and request queue.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func (c *Client) setup(channel *amqp091.Channel) error {
	// Declare exchange
	err := channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// One request at a time keeps ledger writes in arrival order.
	return channel.Qos(1, 0, false)
}

// Publish sends body to routingKey on exchange. An empty exchange uses the
// default one, which routes straight to the queue named by routingKey.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, msg amqp091.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return errCircuitOpen
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		c.recordFailure()
		return errNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// Run consumes requests until ctx ends, reconnecting with capped exponential
// backoff whenever the connection drops.
func (c *Client) Run(ctx context.Context, h Handler) error {
	attempt := 0
	for {
		err := c.Consume(ctx, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		delay := exponentialBackoff(attempt)
		log.FromContext(ctx).WarnContext(ctx, "AMQP connection lost, reconnecting",
			log.FieldError, err.Error(), "attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		c.closeConn()
		if err := c.connect(); err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "AMQP reconnect failed", log.FieldError, err.Error())
			attempt++
			continue
		}
		log.FromContext(ctx).InfoContext(ctx, "AMQP reconnected", "queue", c.queueName)
		attempt = 0
	}
}

// Consume processes deliveries from the request queue until ctx ends or the
// channel closes.
func (c *Client) Consume(ctx context.Context, h Handler) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return errNotConnected
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	log.FromContext(ctx).InfoContext(ctx, "Started consuming requests", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			log.FromContext(ctx).InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errChannelGone
			}
			process(ctx, h, delivery, c.Publish)
		}
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff returns 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errChannelGone) || errors.Is(err, errNotConnected) || errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
