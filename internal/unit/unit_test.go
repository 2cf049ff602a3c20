package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommander struct {
	setBurnCalls int
	scramCalls   int
	resetCalls   int
	lastEnable   bool
	lastRate     float64
	lastRamp     bool
}

func (f *fakeCommander) SendSetBurn(enable bool, burnRateMB float64, ramp bool) error {
	f.setBurnCalls++
	f.lastEnable = enable
	f.lastRate = burnRateMB
	f.lastRamp = ramp
	return nil
}
func (f *fakeCommander) SendSCRAM() error { f.scramCalls++; return nil }
func (f *fakeCommander) SendReset() error { f.resetCalls++; return nil }

func TestUnit_EngageCommitScram(t *testing.T) {
	cmd := &fakeCommander{}
	u := New("unit-1", 1, 500, 4, cmd)

	u.AEngage()
	assert.True(t, u.Engaged())

	require.NoError(t, u.ACommitBR10(300, true))
	assert.Equal(t, 1, cmd.setBurnCalls)
	assert.True(t, cmd.lastEnable)
	assert.Equal(t, 30.0, cmd.lastRate)
	assert.Equal(t, int64(300), u.GetControlInf().BR10)

	require.NoError(t, u.AScram())
	assert.Equal(t, 1, cmd.scramCalls)
	assert.Equal(t, int64(0), u.GetControlInf().BR10)
	assert.True(t, u.HasBeenScrammedSinceTrip())
}

func TestUnit_ScrammedSinceTripTracksPerTripNotForever(t *testing.T) {
	u := New("unit-1", 1, 500, 4, &fakeCommander{})
	assert.False(t, u.HasBeenScrammedSinceTrip())

	require.NoError(t, u.AScram())
	assert.True(t, u.HasBeenScrammedSinceTrip())

	// a fresh trip begins: the caller clears the per-trip bookkeeping
	// before re-scramming, so a second trip cycle's bookkeeping does not
	// ride on the first trip's leftover true value.
	u.ClearScrammedSinceTrip()
	assert.False(t, u.HasBeenScrammedSinceTrip())

	require.NoError(t, u.AScram())
	assert.True(t, u.HasBeenScrammedSinceTrip())
}

func TestUnit_SetBurnLimitRejectedUnlessInactive(t *testing.T) {
	u := New("unit-1", 1, 500, 4, &fakeCommander{})
	assert.False(t, u.SetBurnLimit(1000, false))
	assert.Equal(t, int64(500), u.AGetEffectiveLimit())
	assert.True(t, u.SetBurnLimit(1000, true))
	assert.Equal(t, int64(1000), u.AGetEffectiveLimit())
}

func TestUnit_CondRPSResetSkippedDuringCriticalAlarm(t *testing.T) {
	cmd := &fakeCommander{}
	u := New("unit-1", 1, 500, 4, cmd)
	u.UpdateRPS(RPSStatusUpdate{CriticalAlarm: true})
	require.NoError(t, u.ACondRPSReset())
	assert.Equal(t, 0, cmd.resetCalls)

	u.UpdateRPS(RPSStatusUpdate{CriticalAlarm: false})
	require.NoError(t, u.ACondRPSReset())
	assert.Equal(t, 1, cmd.resetCalls)
}

func TestUnit_EventSequenceIsMonotonic(t *testing.T) {
	u := New("unit-1", 1, 500, 4, &fakeCommander{})
	u.AEngage()
	_ = u.ACommitBR10(10, false)
	_ = u.AScram()

	events := u.Events()
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}

	fromTwo := u.EventsFromSequence(2)
	require.Len(t, fromTwo, 1)
	assert.Equal(t, "scram", fromTwo[0].Type)
}
