// Package session owns the set of connected PLC, RTU, and Coordinator
// sessions: per-peer lifecycle, inbound/outbound queues, and the
// connection watchdog. Grounded on the API gateway's WSClient
// (Send/Done channel pair) and rate limiter, generalized from an HTTP
// upgrade handshake to a bus-subscription handshake and from a request
// budget to a liveness timeout.
package session

import (
	"context"
	"sync/atomic"

	"github.com/reactorctl/reactorctl/internal/clock"
	"github.com/reactorctl/reactorctl/internal/queue"
	"github.com/reactorctl/reactorctl/pkg/transport"
)

// Kind identifies the peer role a session represents.
type Kind string

const (
	KindPLC         Kind = "plc"
	KindRTU         Kind = "rtu"
	KindCoordinator Kind = "coordinator"
)

// Session is one peer's lifecycle: its inbound/outbound queues, its
// connection watchdog, and the sequence counters for the wire protocol.
type Session struct {
	ID            string
	RemoteAddr    string
	Kind          Kind
	senderID      string
	replyChannel  string
	bus           transport.Bus
	inbound       *queue.Queue[transport.Packet]
	outbound      *queue.Queue[transport.Packet]
	watchdog      *clock.Watchdog
	outSeq        uint32
	inSeq         uint32
	closed        atomic.Bool
}

// New constructs a Session for a peer reached at replyChannel, armed
// with a connection watchdog of the given timeout. senderID is this
// node's own id, stamped on every outbound packet.
func New(id, remoteAddr string, kind Kind, bus transport.Bus, replyChannel, senderID string, watchdog *clock.Watchdog) *Session {
	return &Session{
		ID:           id,
		RemoteAddr:   remoteAddr,
		Kind:         kind,
		senderID:     senderID,
		replyChannel: replyChannel,
		bus:          bus,
		inbound:      queue.New[transport.Packet](256),
		outbound:     queue.New[transport.Packet](256),
		watchdog:     watchdog,
	}
}

// OnPacket enqueues an inbound packet for later draining by the owning
// task, and resets the connection watchdog — any inbound packet counts
// as liveness, not just keep-alives.
func (s *Session) OnPacket(p transport.Packet) {
	if s.closed.Load() {
		return
	}
	s.inSeq++
	s.watchdog.Reset()
	_ = s.inbound.TryPush(p)
}

// Inbound returns the channel consumers select on to receive decoded
// packets in arrival order.
func (s *Session) Inbound() <-chan transport.Packet { return s.inbound.Pop() }

// enqueue stamps and buffers an outbound packet. It never blocks: when
// the outbound queue is full the new packet is not queued and
// queue.ErrFull is returned. On a closed session it is a no-op.
func (s *Session) enqueue(typ transport.Type, payload interface{}) error {
	if s.closed.Load() {
		return nil
	}
	s.outSeq++
	p, err := transport.New(s.senderID, s.outSeq, typ, payload)
	if err != nil {
		return err
	}
	return s.outbound.TryPush(p)
}

// Send queues an arbitrary packet type for delivery on the next
// Iterate.
func (s *Session) Send(typ transport.Type, payload interface{}) error {
	return s.enqueue(typ, payload)
}

// SendSetBurn implements unit.Commander: queues a PLC_CMD set_burn
// packet.
func (s *Session) SendSetBurn(enable bool, burnRateMB float64, ramp bool) error {
	return s.enqueue(transport.TypePLCCmd, transport.PLCCmdPayload{
		Kind:     transport.PLCCmdSetBurn,
		Enable:   enable,
		BurnRate: burnRateMB,
		Ramp:     ramp,
	})
}

// SendSCRAM implements unit.Commander: queues a PLC_CMD scram packet.
func (s *Session) SendSCRAM() error {
	return s.enqueue(transport.TypePLCCmd, transport.PLCCmdPayload{Kind: transport.PLCCmdSCRAM})
}

// SendReset implements unit.Commander: queues a PLC_CMD reset packet.
func (s *Session) SendReset() error {
	return s.enqueue(transport.TypePLCCmd, transport.PLCCmdPayload{Kind: transport.PLCCmdReset})
}

// Iterate drains the outbound queue onto the bus. Inbound packets are
// drained by the owning task via Inbound(), not here — within a tick,
// inbound dispatch happens before the outbound drain at the caller's
// discretion, this method only ever touches outbound.
func (s *Session) Iterate(ctx context.Context) {
	for {
		p, ok := s.outbound.TryPop()
		if !ok {
			return
		}
		_ = s.bus.Publish(ctx, s.replyChannel, p)
	}
}

// CheckWatchdog closes the session if its watchdog has fired.
func (s *Session) CheckWatchdog() (fired bool) {
	if s.watchdog.HasFired() {
		s.Close()
		return true
	}
	return false
}

// Close is idempotent: a second call is a no-op.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.watchdog.Stop()
	}
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool { return s.closed.Load() }
