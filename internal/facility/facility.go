// Package facility implements the Facility Process Controller: the mode
// state machine, the burn-rate/charge/gen-rate PID loop, the allocation
// pass across priority groups, and the facility-wide automatic SCRAM.
// Grounded on the risk calculator's per-facility aggregate field layout
// and the matching engine's ticker-driven evaluation loop, generalized
// from order matching to setpoint computation.
package facility

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/reactorctl/reactorctl/internal/allocation"
	"github.com/reactorctl/reactorctl/internal/device"
	"github.com/reactorctl/reactorctl/internal/snapshot"
	"github.com/reactorctl/reactorctl/internal/unit"
	"github.com/reactorctl/reactorctl/pkg/units"
)

// Mode is the facility's operating mode.
type Mode string

const (
	ModeInactive        Mode = "INACTIVE"
	ModeSimple          Mode = "SIMPLE"
	ModeBurnRate        Mode = "BURN_RATE"
	ModeCharge          Mode = "CHARGE"
	ModeGenRate         Mode = "GEN_RATE"
	ModeMatrixFaultIdle Mode = "MATRIX_FAULT_IDLE"
	ModeUnitAlarmIdle   Mode = "UNIT_ALARM_IDLE"
)

// AscramReason is the facility-level automatic SCRAM cause.
type AscramReason string

const (
	AscramNone      AscramReason = "NONE"
	AscramMatrixDC  AscramReason = "MATRIX_DC"
	AscramMatrixFill AscramReason = "MATRIX_FILL"
	AscramCritAlarm AscramReason = "CRIT_ALARM"
)

// PID tuning, per the control law: Kd is reserved for a future
// derivative term and contributes nothing today.
const (
	Kp = 1.0
	Ki = 1e-5
	Kd = 0.0
)

// PowerPerBlade converts a unit's blade count into its share of
// charge_conversion (RF/t per blade, at full burn).
const PowerPerBlade = 2856.0

// MatrixFillTripFrac and MatrixFillClearFrac give the auto-SCRAM
// hysteresis band on induction matrix fill fraction.
const (
	MatrixFillTripFrac  = 1.0
	MatrixFillClearFrac = 0.95
)

// AverageWindow is the sample depth of the matrix telemetry moving
// averages.
const AverageWindow = 20

// Controller is the per-facility process controller. One Controller
// governs one facility's set of facility-controlled reactor units
// (groups 1..4); independent units (group 0) are never touched here.
type Controller struct {
	mu sync.Mutex

	matrix device.InductionMatrix

	units    map[string]*unit.Unit
	groupsOf map[string]int

	mode       Mode
	modeSet    Mode
	returnMode Mode

	target       float64 // operator-set SIMPLE/BURN_RATE aggregate mB/t or CHARGE/GEN_RATE setpoint
	maxBurnComb  float64 // sum(lim_br10)/10 across facility-controlled units
	chargeConv   float64 // sum(blade_count)*PowerPerBlade

	// PID state
	accumulator  float64
	lastTime     time.Time
	saturated    bool
	pidEverRun   bool
	initialRamp  bool
	waitingOnRamp bool

	chargeWindow  *snapshot.Window
	inflowWindow  *snapshot.Window
	outflowWindow *snapshot.Window

	ascramReason AscramReason
	statusText   string

	now func() time.Time
}

// New constructs a Controller over matrix, starting INACTIVE.
func New(matrix device.InductionMatrix) *Controller {
	return &Controller{
		matrix:        matrix,
		units:         make(map[string]*unit.Unit),
		groupsOf:      make(map[string]int),
		mode:          ModeInactive,
		modeSet:       ModeInactive,
		returnMode:    ModeInactive,
		ascramReason:  AscramNone,
		chargeWindow:  snapshot.NewWindow(AverageWindow),
		inflowWindow:  snapshot.NewWindow(AverageWindow),
		outflowWindow: snapshot.NewWindow(AverageWindow),
		now:           time.Now,
	}
}

// RegisterUnit adds u under the given priority group (1..4). A unit
// registered under group 0 (independent) is skipped by every engage,
// allocation, scram and reset pass; it is scanned by its own PLC's RPS
// only.
func (c *Controller) RegisterUnit(u *unit.Unit, group int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units[u.ID] = u
	c.groupsOf[u.ID] = group
}

// Mode returns the facility's current applied mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// AscramReason returns the current automatic-SCRAM cause, NONE when
// clear.
func (c *Controller) AscramReason() AscramReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ascramReason
}

// SetMode stages an operator-requested mode change, applied at the top
// of the next Tick. Requests into MATRIX_FAULT_IDLE or UNIT_ALARM_IDLE
// are ignored; those are auto-SCRAM-only destinations.
func (c *Controller) SetMode(m Mode) {
	if m == ModeMatrixFaultIdle || m == ModeUnitAlarmIdle {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modeSet = m
}

// SetTarget stages the operator-set aggregate target: desired combined
// burn rate for SIMPLE/BURN_RATE, desired charge level for CHARGE,
// desired generation rate for GEN_RATE.
func (c *Controller) SetTarget(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = v
}

// SetUnitLimit forwards an operator limit change to unit id, rejected
// unless the facility is currently INACTIVE.
func (c *Controller) SetUnitLimit(id string, tenths int64) bool {
	c.mu.Lock()
	u, ok := c.units[id]
	inactive := c.mode == ModeInactive
	c.mu.Unlock()
	if !ok {
		return false
	}
	return u.SetBurnLimit(tenths, inactive)
}

// StatusText returns the last operator-facing status line, set on
// mode/ascram transitions.
func (c *Controller) StatusText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusText
}

// Tick runs one facility-controller cycle: apply a staged mode change,
// sample matrix telemetry into the moving averages, evaluate automatic
// SCRAM, then drive the active mode's setpoint computation.
func (c *Controller) Tick() error {
	c.mu.Lock()
	if c.modeSet != c.mode {
		c.applyModeTransition(c.modeSet)
	}
	mode := c.mode
	c.mu.Unlock()

	matrixSnap, matrixErr := c.matrix.Snapshot()
	c.mu.Lock()
	if matrixErr == nil && matrixSnap.Formed {
		c.chargeWindow.Add(matrixSnap.Energy)
		c.inflowWindow.Add(matrixSnap.LastInput)
		c.outflowWindow.Add(matrixSnap.LastOutput)
	}
	c.mu.Unlock()

	if mode != ModeInactive && mode != ModeUnitAlarmIdle {
		c.evaluateAutoScram(matrixSnap, matrixErr)
	}

	c.mu.Lock()
	mode = c.mode // may have changed under auto-SCRAM
	c.mu.Unlock()

	switch mode {
	case ModeInactive, ModeMatrixFaultIdle, ModeUnitAlarmIdle:
		return nil
	case ModeSimple, ModeBurnRate:
		return c.tickAllocationOnly()
	case ModeCharge:
		return c.tickPID(mode, c.chargeWindow.Mean())
	case ModeGenRate:
		return c.tickPID(mode, c.outflowWindow.Mean())
	}
	return nil
}

// applyModeTransition moves from c.mode to next, running the
// INACTIVE-entry or INACTIVE-exit side effects. Caller holds c.mu.
func (c *Controller) applyModeTransition(next Mode) {
	prev := c.mode
	if next == ModeInactive {
		for _, u := range c.units {
			if c.groupsOf[u.ID] == 0 {
				continue
			}
			_ = u.AScram()
			u.ADisengage()
		}
	} else if prev == ModeInactive {
		c.leaveInactive(next)
	}
	c.mode = next
	c.modeSet = next
	if next != ModeMatrixFaultIdle && next != ModeUnitAlarmIdle {
		c.returnMode = next
	}
}

// leaveInactive recomputes the facility's derived aggregates and
// engages every facility-controlled unit. Caller holds c.mu.
func (c *Controller) leaveInactive(next Mode) {
	var totalLim int64
	var totalBlades int
	for id, u := range c.units {
		if c.groupsOf[id] == 0 {
			continue
		}
		ci := u.GetControlInf()
		totalLim += ci.LimBR10
		totalBlades += ci.BladeCount
		u.AEngage()
	}
	c.maxBurnComb = float64(totalLim) / 10.0
	c.chargeConv = float64(totalBlades) * PowerPerBlade

	c.accumulator = 0
	c.lastTime = time.Time{}
	c.saturated = false
	c.pidEverRun = false
	c.initialRamp = true
	c.waitingOnRamp = false

	if next != ModeMatrixFaultIdle {
		c.ascramReason = AscramNone
	}
}

// groupedUnits returns the facility-controlled units keyed by priority
// group, projected to the allocator's Unit shape. Caller holds no lock.
func (c *Controller) groupedUnits() map[int][]allocation.Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int][]allocation.Unit)
	ids := make([]string, 0, len(c.units))
	for id := range c.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		g := c.groupsOf[id]
		if g == 0 {
			continue
		}
		ci := c.units[id].GetControlInf()
		out[g] = append(out[g], allocation.Unit{ID: id, LimBR10: ci.LimBR10})
	}
	return out
}

// commitAllocation runs the allocator against setpointTenths (tenths) and
// pushes the resulting per-unit assignment, returning the residual
// tenths the allocator could not place (§4.4.1 step 4).
func (c *Controller) commitAllocation(setpointTenths int64, ramp bool) (int64, error) {
	groups := c.groupedUnits()
	assignments, residual := allocation.Allocate(groups, setpointTenths)

	c.mu.Lock()
	units := make([]*unit.Unit, 0, len(assignments))
	for id, u := range c.units {
		if c.groupsOf[id] == 0 {
			continue
		}
		units = append(units, u)
	}
	c.mu.Unlock()

	for _, u := range units {
		v := assignments[u.ID]
		if err := u.ACommitBR10(v, ramp); err != nil {
			return residual, err
		}
	}
	return residual, nil
}

// Saturated reports whether the most recently committed allocation
// exhausted the facility's combined limit: a nonzero allocator residual,
// the requested aggregate clamped down to max_burn_combined, or (for
// CHARGE/GEN_RATE) the PID output itself clamped, per §4.4.1/§4.4.3.
func (c *Controller) Saturated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saturated
}

// tickAllocationOnly drives SIMPLE and BURN_RATE mode: the operator
// target is the aggregate setpoint directly, no PID involved.
func (c *Controller) tickAllocationOnly() error {
	c.mu.Lock()
	target := c.target
	maxComb := c.maxBurnComb
	c.mu.Unlock()

	clamped := units.Clamp(target, 0, maxComb)
	setpointTenths := int64(math.Round(clamped * 10))
	residual, err := c.commitAllocation(setpointTenths, false)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.saturated = residual > 0 || setpointTenths == int64(math.Round(maxComb*10))
	c.mu.Unlock()
	return nil
}

// allUnitsRampComplete reports whether every facility-controlled unit
// has reported ramp completion since its last commit.
func (c *Controller) allUnitsRampComplete() bool {
	c.mu.Lock()
	units := make([]*unit.Unit, 0, len(c.units))
	for id, u := range c.units {
		if c.groupsOf[id] == 0 {
			continue
		}
		units = append(units, u)
	}
	c.mu.Unlock()
	for _, u := range units {
		if !u.ARampComplete() {
			return false
		}
	}
	return true
}

// tickPID drives CHARGE and GEN_RATE mode: a PI control law converts
// (target - measured) into a facility-wide burn-rate setpoint,
// normalized by charge_conversion, integration paused while a
// previously-committed ramp is still in flight.
func (c *Controller) tickPID(mode Mode, measured float64) error {
	c.mu.Lock()
	if c.waitingOnRamp {
		c.mu.Unlock()
		if !c.allUnitsRampComplete() {
			return nil
		}
		c.mu.Lock()
		c.waitingOnRamp = false
		now := c.now()
		c.lastTime = now
		c.accumulator = 0
	}

	target := c.target
	chargeConv := c.chargeConv
	maxComb := c.maxBurnComb
	firstCall := !c.pidEverRun
	now := c.now()
	c.mu.Unlock()

	if chargeConv <= 0 {
		return nil
	}

	errorVal := (target - measured) / chargeConv

	var spC float64
	c.mu.Lock()
	if mode == ModeGenRate && firstCall {
		spR := units.RoundTenth(errorVal)
		spC = units.Clamp(spR, 0, maxComb)
		c.saturated = spR != spC
		c.lastTime = now
	} else {
		dt := 0.0
		if !c.lastTime.IsZero() {
			dt = now.Sub(c.lastTime).Seconds()
		}
		c.lastTime = now
		if !c.saturated {
			c.accumulator += (measured / chargeConv) * dt
		}
		setpoint := Kp*errorVal + Ki*c.accumulator
		spR := units.RoundTenth(setpoint)
		spC = units.Clamp(spR, 0, maxComb)
		c.saturated = spR != spC
	}
	c.pidEverRun = true
	ramp := c.initialRamp
	c.initialRamp = false
	c.waitingOnRamp = true
	c.mu.Unlock()

	_, err := c.commitAllocation(int64(math.Round(spC*10)), ramp)
	return err
}

// evaluateAutoScram implements the facility-wide automatic SCRAM: an
// absent or over/near-full induction matrix, or any facility-controlled
// unit reporting a critical alarm, latches a trip and drives the mode
// to MATRIX_FAULT_IDLE or UNIT_ALARM_IDLE. Clearing requires the
// condition to fall below its (possibly hysteretic) threshold; a
// MATRIX_FILL trip only clears once fill drops to MatrixFillClearFrac.
func (c *Controller) evaluateAutoScram(matrixSnap device.MatrixSnapshot, matrixErr error) {
	c.mu.Lock()
	prevReason := c.ascramReason
	mode := c.mode
	c.mu.Unlock()

	var reason AscramReason
	switch {
	case mode == ModeMatrixFaultIdle && c.anyUnitCriticalAlarm():
		// a critical alarm during a matrix-fault hold takes precedence
		// over the matrix condition that started the hold.
		reason = AscramCritAlarm
	case matrixErr != nil || !matrixSnap.Formed:
		reason = AscramMatrixDC
	case matrixSnap.FillFraction() >= MatrixFillTripFrac:
		reason = AscramMatrixFill
	case prevReason == AscramMatrixFill && matrixSnap.FillFraction() > MatrixFillClearFrac:
		reason = AscramMatrixFill
	case c.anyUnitCriticalAlarm():
		reason = AscramCritAlarm
	default:
		reason = AscramNone
	}

	if reason == prevReason {
		return
	}

	c.mu.Lock()
	c.ascramReason = reason
	c.mu.Unlock()

	if reason != AscramNone {
		c.clearScrammedSinceTrip()
		c.scramAssigned()
		var next Mode
		switch {
		case mode == ModeMatrixFaultIdle && reason == AscramCritAlarm:
			// a critical alarm during a matrix-fault hold escalates
			// straight to INACTIVE rather than layering UNIT_ALARM_IDLE
			// on top of a hold already awaiting operator attention.
			next = ModeInactive
			c.disengageAssigned()
		case reason == AscramCritAlarm:
			next = ModeUnitAlarmIdle
		default:
			next = ModeMatrixFaultIdle
		}
		c.mu.Lock()
		if mode != ModeMatrixFaultIdle && mode != ModeUnitAlarmIdle {
			c.returnMode = mode
		}
		c.mode = next
		c.modeSet = next
		c.statusText = "auto-scram: " + string(reason)
		c.mu.Unlock()
		return
	}

	// Falling edge: condition cleared, issue conditional resets and
	// return to whatever mode we were in when the trip latched.
	c.condResetAssigned()
	c.mu.Lock()
	c.statusText = "auto-scram cleared"
	c.mode = c.returnMode
	c.modeSet = c.returnMode
	if c.mode != ModeInactive {
		c.initialRamp = true
		c.waitingOnRamp = false
	}
	c.mu.Unlock()
}

func (c *Controller) anyUnitCriticalAlarm() bool {
	c.mu.Lock()
	units := make([]*unit.Unit, 0, len(c.units))
	for id, u := range c.units {
		if c.groupsOf[id] == 0 {
			continue
		}
		units = append(units, u)
	}
	c.mu.Unlock()
	for _, u := range units {
		if u.HasCriticalAlarm() {
			return true
		}
	}
	return false
}

// clearScrammedSinceTrip resets every assigned unit's per-trip scram
// bookkeeping at the moment a new auto-SCRAM rising edge is detected,
// so a_scram()'s "since the trip" invariant tracks the trip currently
// latched rather than any trip the unit has ever seen.
func (c *Controller) clearScrammedSinceTrip() {
	c.mu.Lock()
	units := make([]*unit.Unit, 0, len(c.units))
	for id, u := range c.units {
		if c.groupsOf[id] == 0 {
			continue
		}
		units = append(units, u)
	}
	c.mu.Unlock()
	for _, u := range units {
		u.ClearScrammedSinceTrip()
	}
}

func (c *Controller) disengageAssigned() {
	c.mu.Lock()
	units := make([]*unit.Unit, 0, len(c.units))
	for id, u := range c.units {
		if c.groupsOf[id] == 0 {
			continue
		}
		units = append(units, u)
	}
	c.mu.Unlock()
	for _, u := range units {
		u.ADisengage()
	}
}

func (c *Controller) scramAssigned() {
	c.mu.Lock()
	units := make([]*unit.Unit, 0, len(c.units))
	for id, u := range c.units {
		if c.groupsOf[id] == 0 {
			continue
		}
		units = append(units, u)
	}
	c.mu.Unlock()
	for _, u := range units {
		_ = u.AScram()
	}
}

func (c *Controller) condResetAssigned() {
	c.mu.Lock()
	units := make([]*unit.Unit, 0, len(c.units))
	for id, u := range c.units {
		if c.groupsOf[id] == 0 {
			continue
		}
		units = append(units, u)
	}
	c.mu.Unlock()
	for _, u := range units {
		_ = u.ACondRPSReset()
	}
}
