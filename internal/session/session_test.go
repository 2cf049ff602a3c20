package session

import (
	"context"
	"testing"
	"time"

	"github.com/reactorctl/reactorctl/internal/clock"
	"github.com/reactorctl/reactorctl/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, bus transport.Bus, id string, timeout time.Duration) *Session {
	t.Helper()
	wd := clock.NewWatchdog(timeout)
	t.Cleanup(wd.Stop)
	return New(id, "sim://"+id, KindPLC, bus, "reactorctl."+id+".cmd", "supervisor-1", wd)
}

func TestSession_SendSetBurnQueuesAndPublishes(t *testing.T) {
	bus := transport.NewLoopbackBus()
	var received []transport.Packet
	_, err := bus.Subscribe("reactorctl.unit-1.cmd", func(p transport.Packet) {
		received = append(received, p)
	})
	require.NoError(t, err)

	s := newTestSession(t, bus, "unit-1", time.Second)
	require.NoError(t, s.SendSetBurn(true, 12.5, true))
	s.Iterate(context.Background())

	require.Len(t, received, 1)
	var payload transport.PLCCmdPayload
	require.NoError(t, received[0].Decode(&payload))
	assert.Equal(t, transport.PLCCmdSetBurn, payload.Kind)
	assert.Equal(t, 12.5, payload.BurnRate)
	assert.True(t, payload.Ramp)
}

func TestSession_OnPacketResetsWatchdog(t *testing.T) {
	bus := transport.NewLoopbackBus()
	s := newTestSession(t, bus, "unit-1", 20*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	p, _ := transport.New("unit-1", 1, transport.TypePLCStatus, transport.PLCStatusPayload{})
	s.OnPacket(p)

	time.Sleep(15 * time.Millisecond)
	assert.False(t, s.watchdog.HasFired(), "watchdog should have been reset by inbound packet")

	select {
	case got := <-s.Inbound():
		assert.Equal(t, p.Type, got.Type)
	default:
		t.Fatal("expected packet to be queued for drain")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	bus := transport.NewLoopbackBus()
	s := newTestSession(t, bus, "unit-1", time.Second)
	s.Close()
	s.Close()
	assert.True(t, s.Closed())
}

func TestRegistry_IterateAllPreservesInsertionOrder(t *testing.T) {
	bus := transport.NewLoopbackBus()
	reg := NewRegistry()
	var order []string
	for _, id := range []string{"c", "a", "b"} {
		s := newTestSession(t, bus, id, time.Second)
		reg.Add(s)
	}
	_, _ = bus.Subscribe("reactorctl.a.cmd", func(transport.Packet) { order = append(order, "a") })
	_, _ = bus.Subscribe("reactorctl.b.cmd", func(transport.Packet) { order = append(order, "b") })
	_, _ = bus.Subscribe("reactorctl.c.cmd", func(transport.Packet) { order = append(order, "c") })

	for _, id := range []string{"c", "a", "b"} {
		s, ok := reg.Get(id)
		require.True(t, ok)
		require.NoError(t, s.SendSCRAM())
	}
	reg.IterateAll(context.Background())

	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestRegistry_WatchdogFiresClosesAndReaps(t *testing.T) {
	bus := transport.NewLoopbackBus()
	reg := NewRegistry()
	s := newTestSession(t, bus, "stale", 5*time.Millisecond)
	reg.Add(s)

	time.Sleep(20 * time.Millisecond)
	fired := reg.CheckAllWatchdogs()
	require.Equal(t, []string{"stale"}, fired)
	assert.True(t, s.Closed())

	reaped := reg.FreeAllClosed()
	assert.Equal(t, []string{"stale"}, reaped)
	assert.Equal(t, 0, reg.Len())
}
