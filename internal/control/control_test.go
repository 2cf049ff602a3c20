package control

import (
	"context"
	"testing"

	"github.com/reactorctl/reactorctl/internal/device"
	"github.com/reactorctl/reactorctl/internal/rps"
	"github.com/reactorctl/reactorctl/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	sent []transport.Type
}

func (f *fakePublisher) Send(typ transport.Type, payload interface{}) error {
	f.sent = append(f.sent, typ)
	return nil
}

func healthy() device.ReactorSnapshot {
	return device.ReactorSnapshot{Status: true, FuelFill: 1, CoolantFill: 1}
}

func TestController_RampsTowardTargetBoundedPerTick(t *testing.T) {
	sim := device.NewSimReactor()
	sim.Set(healthy())
	r := rps.New(sim, rps.DefaultConfig())
	pub := &fakePublisher{}
	c := New(sim, r, pub, Config{LimBR10MB: 100, RampFracPerTick: 0.10, StatusEveryTick: 4})

	c.ApplySetpoint(true, 100, true)
	require.NoError(t, c.Tick(context.Background()))
	assert.InDelta(t, 10.0, sim.GetBurnRate(), 0.001)

	require.NoError(t, c.Tick(context.Background()))
	assert.InDelta(t, 20.0, sim.GetBurnRate(), 0.001)
}

func TestController_DirectJumpWithoutRamp(t *testing.T) {
	sim := device.NewSimReactor()
	sim.Set(healthy())
	r := rps.New(sim, rps.DefaultConfig())
	c := New(sim, r, &fakePublisher{}, Config{LimBR10MB: 100, RampFracPerTick: 0.10, StatusEveryTick: 4})

	c.ApplySetpoint(true, 40, false)
	require.NoError(t, c.Tick(context.Background()))
	assert.InDelta(t, 40.0, sim.GetBurnRate(), 0.001)
}

func TestController_RPSTrippedForcesZeroBurnAndFinalPackets(t *testing.T) {
	sim := device.NewSimReactor()
	bad := healthy()
	bad.DamagePercent = 100
	sim.Set(bad)
	r := rps.New(sim, rps.DefaultConfig())
	pub := &fakePublisher{}
	c := New(sim, r, pub, Config{LimBR10MB: 100, RampFracPerTick: 0.10, StatusEveryTick: 4})

	c.ApplySetpoint(true, 80, false)
	require.NoError(t, c.Tick(context.Background()))

	assert.Zero(t, sim.GetBurnRate())
	assert.True(t, c.Closing())
	require.Len(t, pub.sent, 2)
	assert.Equal(t, transport.TypePLCStatus, pub.sent[0])
	assert.Equal(t, transport.TypePLCRPSStatus, pub.sent[1])
}

func TestController_StatusCadenceEveryFourTicks(t *testing.T) {
	sim := device.NewSimReactor()
	sim.Set(healthy())
	r := rps.New(sim, rps.DefaultConfig())
	pub := &fakePublisher{}
	c := New(sim, r, pub, Config{LimBR10MB: 100, RampFracPerTick: 1.0, StatusEveryTick: 4})
	c.ApplySetpoint(true, 10, false)

	for i := 0; i < 4; i++ {
		require.NoError(t, c.Tick(context.Background()))
	}
	assert.Len(t, pub.sent, 1)
	assert.Equal(t, transport.TypePLCStatus, pub.sent[0])
}
