package transport

import (
	"context"
	"encoding/json"
	"sync"
)

func encodePacket(p Packet) ([]byte, error) { return json.Marshal(p) }
func decodePacket(raw []byte) (Packet, error) {
	var p Packet
	err := json.Unmarshal(raw, &p)
	return p, err
}

// LoopbackBus is an in-memory Bus used by tests and by the integration
// suite to wire a PLC and a Supervisor together without a real NATS
// broker, the transport-layer analogue of the teacher's in-process test
// doubles for *messaging.Client-shaped dependencies.
type LoopbackBus struct {
	mu   sync.RWMutex
	subs map[string][]func(Packet)
}

// NewLoopbackBus creates an empty in-memory bus.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{subs: make(map[string][]func(Packet))}
}

// Publish delivers p synchronously to every current subscriber of
// channel, in registration order.
func (b *LoopbackBus) Publish(ctx context.Context, channel string, p Packet) error {
	b.mu.RLock()
	handlers := append([]func(Packet){}, b.subs[channel]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(p)
	}
	return nil
}

// Subscribe registers handler for channel.
func (b *LoopbackBus) Subscribe(channel string, handler func(Packet)) (Unsubscribe, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = append(b.subs[channel], handler)
	idx := len(b.subs[channel]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.subs[channel]
		if idx < len(handlers) {
			handlers[idx] = func(Packet) {}
		}
	}, nil
}

// Close discards all subscriptions.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]func(Packet))
	return nil
}
