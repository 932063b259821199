package rabbitmq

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

var errClientClosed = errors.New("rabbitmq client closed")

// Client owns the single shared connection and channel for a process.
// It is constructed once in main and injected into Publisher and Consumer.
// Dialing is lazy: the first Channel call connects, and a connection or
// channel found dead is re-established on the next call.
type Client struct {
	mu       sync.Mutex
	url      string
	prefetch int
	log      *zerolog.Logger

	conn    *amqp.Connection
	ch      *amqp.Channel
	chClose chan *amqp.Error
	closed  bool
}

func NewClient(url string, prefetch int, log *zerolog.Logger) *Client {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Client{url: url, prefetch: prefetch, log: log}
}

// Channel returns the shared channel, connecting or reconnecting as needed.
func (c *Client) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errClientClosed
	}

	if c.conn == nil || c.conn.IsClosed() {
		if err := c.connectLocked(); err != nil {
			return nil, err
		}
	}

	// A closed channel signals through its notify chan.
	if c.ch != nil {
		select {
		case <-c.chClose:
			c.ch = nil
		default:
		}
	}

	if c.ch == nil {
		if err := c.openChannelLocked(); err != nil {
			return nil, err
		}
	}
	return c.ch, nil
}

func (c *Client) connectLocked() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	c.conn = conn
	c.ch = nil
	c.log.Info().Msg("connected to RabbitMQ")
	return nil
}

func (c *Client) openChannelLocked() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	// Prefetch bounds in-flight work: one unacked delivery per worker.
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return err
	}
	c.ch = ch
	c.chClose = ch.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

// Ping reports whether a live channel can be obtained.
func (c *Client) Ping() error {
	_, err := c.Channel()
	return err
}

// Close is idempotent and releases the channel before the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil && !c.conn.IsClosed() {
		err := c.conn.Close()
		c.conn = nil
		c.log.Info().Msg("RabbitMQ connection closed")
		return err
	}
	c.conn = nil
	return nil
}
