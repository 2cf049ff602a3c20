package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Bus is the packet transport a session or control loop depends on. A
// (listen_channel, reply_channel) pair from the wire protocol maps onto
// a pair of subjects on this bus.
type Bus interface {
	Publish(ctx context.Context, channel string, p Packet) error
	Subscribe(channel string, handler func(Packet)) (Unsubscribe, error)
	Close() error
}

// Unsubscribe cancels a Subscribe call.
type Unsubscribe func()

// Config holds NATS bus configuration.
type Config struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// NatsBus is a Bus backed by a real NATS connection, the primary
// node-to-node packet transport.
type NatsBus struct {
	conn      *nats.Conn
	mu        sync.Mutex
	connected bool
}

// NewNatsBus connects to NATS and returns a ready Bus.
func NewNatsBus(cfg Config) (*NatsBus, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: connect to bus: %w", err)
	}

	b := &NatsBus{conn: conn, connected: true}

	conn.SetReconnectHandler(func(nc *nats.Conn) {
		b.mu.Lock()
		b.connected = true
		b.mu.Unlock()
	})
	conn.SetDisconnectErrHandler(func(nc *nats.Conn, err error) {
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
	})

	return b, nil
}

// Publish encodes and publishes p on channel.
func (b *NatsBus) Publish(ctx context.Context, channel string, p Packet) error {
	raw, err := encodePacket(p)
	if err != nil {
		return err
	}
	return b.conn.Publish(channel, raw)
}

// Subscribe delivers every Packet published on channel to handler.
func (b *NatsBus) Subscribe(channel string, handler func(Packet)) (Unsubscribe, error) {
	sub, err := b.conn.Subscribe(channel, func(msg *nats.Msg) {
		p, err := decodePacket(msg.Data)
		if err != nil {
			return
		}
		handler(p)
	})
	if err != nil {
		return nil, fmt.Errorf("transport: subscribe %s: %w", channel, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// IsConnected reports the current connection state.
func (b *NatsBus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected && b.conn != nil && b.conn.IsConnected()
}

// Close closes the underlying connection without draining it.
func (b *NatsBus) Close() error {
	if b.conn == nil {
		return nil
	}
	b.conn.Close()
	return nil
}
