// Package unit implements the reactor-unit aggregator: the facility
// controller's per-unit facade over the PLC session, unaware of wire
// framing. Grounded on the event-sourced position tracker pattern — a
// typed record plus a sequenced audit log of the commands issued to it
// — repurposed from tracking exposure to tracking control state.
package unit

import (
	"sync"
	"time"
)

// ControlInf is the control_inf record the facility controller reads
// back from a unit.
type ControlInf struct {
	BR10       int64
	LimBR10    int64
	BladeCount int
	Ready      bool
	Degraded   bool
}

// Commander sends PLC_CMD packets to the unit's PLC session. The
// concrete implementation is internal/session's Session, keeping this
// package free of any wire-format dependency.
type Commander interface {
	SendSetBurn(enable bool, burnRateMB float64, ramp bool) error
	SendSCRAM() error
	SendReset() error
}

// Event is one entry in a unit's command audit trail.
type Event struct {
	Seq       int64
	Type      string // "engaged", "disengaged", "scram", "commit", "reset"
	Timestamp time.Time
}

// Unit is the per-reactor-unit control record and command facade.
type Unit struct {
	ID         string
	Group      int // 0 = independent, 1..4 = facility-controlled
	BladeCount int

	cmd Commander

	mu           sync.Mutex
	limBR10      int64
	br10         int64
	ready        bool
	degraded     bool
	engaged      bool
	rampComplete bool
	criticalAlarm bool
	scrammedSinceTrip bool

	events   []Event
	lastSeq  int64
	ackedSeq int64
}

// New constructs a Unit bound to cmd, with the given operator-configured
// limit and blade count.
func New(id string, group int, limBR10 int64, bladeCount int, cmd Commander) *Unit {
	return &Unit{ID: id, Group: group, limBR10: limBR10, BladeCount: bladeCount, cmd: cmd}
}

func (u *Unit) record(eventType string) {
	u.lastSeq++
	u.events = append(u.events, Event{Seq: u.lastSeq, Type: eventType, Timestamp: time.Now()})
}

// AEngage enables local auto control, called on every assigned unit
// when the facility leaves INACTIVE.
func (u *Unit) AEngage() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.engaged = true
	u.rampComplete = false
	u.record("engaged")
}

// ADisengage disables local auto control.
func (u *Unit) ADisengage() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.engaged = false
	u.record("disengaged")
}

// Scram issues an immediate SCRAM command to the unit's PLC without
// audit bookkeeping, the primitive AScram and manual single-unit scram
// both build on.
func (u *Unit) Scram() error {
	if u.cmd == nil {
		return nil
	}
	return u.cmd.SendSCRAM()
}

// AScram issues SCRAM and records it in the audit trail — the
// facility-invoked operation satisfying "every assigned unit has
// received an a_scram() command at least once since the trip".
func (u *Unit) AScram() error {
	u.mu.Lock()
	u.br10 = 0
	u.rampComplete = false
	u.scrammedSinceTrip = true
	u.record("scram")
	u.mu.Unlock()
	return u.Scram()
}

// ClearScrammedSinceTrip resets the per-trip scram bookkeeping, called
// when a new auto-SCRAM trip begins so AScram's invariant is tracked
// per-edge rather than forever-true.
func (u *Unit) ClearScrammedSinceTrip() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.scrammedSinceTrip = false
}

// HasBeenScrammedSinceTrip reports whether AScram has fired since the
// last ClearScrammedSinceTrip call.
func (u *Unit) HasBeenScrammedSinceTrip() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.scrammedSinceTrip
}

// ACommitBR10 pushes a newly-allocated setpoint (in BR10 tenths) to the
// PLC, ramping per the control loop's bounded-increment rule when ramp
// is true.
func (u *Unit) ACommitBR10(br10 int64, ramp bool) error {
	u.mu.Lock()
	u.br10 = br10
	u.rampComplete = false
	u.record("commit")
	enabled := u.engaged
	u.mu.Unlock()

	if u.cmd == nil {
		return nil
	}
	return u.cmd.SendSetBurn(enabled, float64(br10)/10.0, ramp)
}

// ARampComplete reports whether the PLC has reported |current-target| <
// epsilon since the last commit, per the most recent status update.
func (u *Unit) ARampComplete() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rampComplete
}

// AGetEffectiveLimit returns the operator-configured maximum in tenths.
func (u *Unit) AGetEffectiveLimit() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.limBR10
}

// ACondRPSReset issues a conditional RPS reset: only when the unit is
// not currently reporting a critical alarm, since a reset while a
// critical condition holds would simply be rejected by the PLC anyway.
func (u *Unit) ACondRPSReset() error {
	u.mu.Lock()
	alarm := u.criticalAlarm
	u.mu.Unlock()
	if alarm || u.cmd == nil {
		return nil
	}
	u.record("reset")
	return u.cmd.SendReset()
}

// AckAll marks every event up to the current sequence number as
// acknowledged.
func (u *Unit) AckAll() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ackedSeq = u.lastSeq
}

// HasCriticalAlarm reports the unit's most recently reported critical
// alarm state.
func (u *Unit) HasCriticalAlarm() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.criticalAlarm
}

// GetControlInf returns the control record the facility controller
// reads back from this unit.
func (u *Unit) GetControlInf() ControlInf {
	u.mu.Lock()
	defer u.mu.Unlock()
	return ControlInf{
		BR10:       u.br10,
		LimBR10:    u.limBR10,
		BladeCount: u.BladeCount,
		Ready:      u.ready,
		Degraded:   u.degraded,
	}
}

// StatusUpdate is the PLC_STATUS-derived subset of telemetry the
// aggregator folds into its view of the unit.
type StatusUpdate struct {
	BR10         int64
	Ready        bool
	Degraded     bool
	RampComplete bool
}

// RPSStatusUpdate is the PLC_RPS_STATUS-derived subset.
type RPSStatusUpdate struct {
	CriticalAlarm bool
}

// Update folds a PLC_STATUS report into the control record, leaving
// the RPS-derived fields untouched.
func (u *Unit) Update(s StatusUpdate) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.br10 = s.BR10
	u.ready = s.Ready
	u.degraded = s.Degraded
	u.rampComplete = s.RampComplete
}

// UpdateRPS folds a PLC_RPS_STATUS report into the control record,
// leaving the PLC_STATUS-derived fields untouched — the two packet
// types arrive independently and neither should blank the other out.
func (u *Unit) UpdateRPS(s RPSStatusUpdate) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.criticalAlarm = s.CriticalAlarm
}

// SetBurnLimit updates lim_br10; rejected when the facility is not
// INACTIVE, since rebalancing a live allocation's limits mid-run would
// invalidate the sum(br10) <= sum(lim_br10) invariant until the next
// commit.
func (u *Unit) SetBurnLimit(tenths int64, facilityInactive bool) bool {
	if !facilityInactive {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.limBR10 = tenths
	return true
}

// Events returns the full audit trail, oldest first.
func (u *Unit) Events() []Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Event, len(u.events))
	copy(out, u.events)
	return out
}

// EventsFromSequence returns events strictly after fromSeq.
func (u *Unit) EventsFromSequence(fromSeq int64) []Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Event, 0)
	for _, e := range u.events {
		if e.Seq > fromSeq {
			out = append(out, e)
		}
	}
	return out
}

// Engaged reports the unit's local auto-engage flag.
func (u *Unit) Engaged() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.engaged
}
