package rps

import (
	"testing"

	"github.com/reactorctl/reactorctl/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthySnapshot() device.ReactorSnapshot {
	return device.ReactorSnapshot{
		Status:      true,
		FuelFill:    1.0,
		CoolantFill: 1.0,
		WasteFill:   0,
	}
}

func TestScan_NoTripOnHealthySnapshot(t *testing.T) {
	sim := device.NewSimReactor()
	r := New(sim, DefaultConfig())

	tripped, first := r.Scan(healthySnapshot())
	assert.False(t, tripped)
	assert.Empty(t, first)
}

func TestScan_EachTripCondition(t *testing.T) {
	cases := []struct {
		name string
		snap device.ReactorSnapshot
	}{
		{"dmg_crit", func() device.ReactorSnapshot { s := healthySnapshot(); s.DamagePercent = 100; return s }()},
		{"high_temp", func() device.ReactorSnapshot { s := healthySnapshot(); s.TemperatureK = 1200; return s }()},
		{"no_coolant", func() device.ReactorSnapshot { s := healthySnapshot(); s.CoolantFill = 0.05; return s }()},
		{"full_waste", func() device.ReactorSnapshot { s := healthySnapshot(); s.WasteFill = 0.9; return s }()},
		{"heated_coolant_backup", func() device.ReactorSnapshot { s := healthySnapshot(); s.HeatedCoolantFill = 0.9; return s }()},
		{"no_fuel", func() device.ReactorSnapshot { s := healthySnapshot(); s.FuelFill = 0; return s }()},
		{"fault", func() device.ReactorSnapshot { s := healthySnapshot(); s.Fault = true; return s }()},
		{"force_disabled", func() device.ReactorSnapshot { s := healthySnapshot(); s.Status = false; return s }()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := device.NewSimReactor()
			r := New(sim, DefaultConfig())
			tripped, first := r.Scan(tc.snap)
			require.True(t, tripped)
			assert.Equal(t, tc.name, first)
		})
	}
}

func TestScan_TripLatchesAndCallsScramOnce(t *testing.T) {
	sim := device.NewSimReactor()
	sim.SetBurnRate(50)
	r := New(sim, DefaultConfig())

	bad := healthySnapshot()
	bad.DamagePercent = 100

	tripped, first := r.Scan(bad)
	require.True(t, tripped)
	assert.Equal(t, "dmg_crit", first)
	assert.Zero(t, sim.GetBurnRate())

	// Device recovers out-of-band, but a tripped latch keeps first_trip
	// stable and does not re-fire scram on repeated scans.
	sim.SetBurnRate(50)
	tripped, first = r.Scan(healthySnapshot())
	assert.True(t, tripped)
	assert.Equal(t, "dmg_crit", first)
	assert.Equal(t, float64(50), sim.GetBurnRate())
}

func TestReset_GatedOnAllPredicatesClear(t *testing.T) {
	sim := device.NewSimReactor()
	r := New(sim, DefaultConfig())

	hot := healthySnapshot()
	hot.TemperatureK = 1300
	tripped, _ := r.Scan(hot)
	require.True(t, tripped)

	// Still hot: reset must fail and the latch must persist.
	assert.False(t, r.Reset())
	assert.True(t, r.IsTripped())

	// Temperature returns below threshold: scan then reset succeeds.
	r.Scan(healthySnapshot())
	assert.True(t, r.Reset())
	assert.False(t, r.IsTripped())
}

func TestStatus_ReportsFlagVector(t *testing.T) {
	sim := device.NewSimReactor()
	r := New(sim, DefaultConfig())
	s := healthySnapshot()
	s.WasteFill = 0.9
	r.Scan(s)

	status := r.Status()
	assert.True(t, status.Tripped)
	assert.Equal(t, "full_waste", status.FirstTrip)
	assert.True(t, status.Flags["full_waste"])
	assert.False(t, status.Flags["dmg_crit"])
}
