// Package rps implements the Reactor Protection System: a deterministic
// safety state machine that continuously evaluates trip conditions and
// latches a SCRAM. Modeled on the threshold-predicate evaluation loop
// of an alert engine, generalized so the "alert" is a permanent
// shutdown latch instead of a one-shot notification, and built on
// circuit.Latch for the IDLE/TRIPPED machinery itself.
package rps

import (
	"sync"

	"github.com/reactorctl/reactorctl/internal/device"
	"github.com/reactorctl/reactorctl/pkg/circuit"
)

// Config holds the configured trip thresholds.
type Config struct {
	HighTempK      float64 // default 1200K
	LowCoolantFrac float64 // default 0.10
	HighWasteFrac  float64 // default 0.80
	HighHCoolFrac  float64 // default 0.80
}

// DefaultConfig returns the thresholds named in the trip conditions.
func DefaultConfig() Config {
	return Config{
		HighTempK:      1200,
		LowCoolantFrac: 0.10,
		HighWasteFrac:  0.80,
		HighHCoolFrac:  0.80,
	}
}

// predicateNames is the fixed, ordered trip set. The order determines
// which name wins as first_trip when more than one predicate goes true
// on the same scan.
var predicateNames = []string{
	"dmg_crit",
	"high_temp",
	"no_coolant",
	"full_waste",
	"heated_coolant_backup",
	"no_fuel",
	"fault",
	"timeout",
	"manual",
	"automatic",
	"sys_fail",
	"force_disabled",
}

// criticalPredicates is the subset of trip predicates that indicate a
// genuinely hazardous per-reactor condition — damage, overheat, loss of
// primary cooling, a backed-up secondary coolant loop, or an unreadable
// device — as opposed to a routine resource or comms trip (no_fuel,
// full_waste, timeout) or an operator/supervisor-initiated one (manual,
// automatic, sys_fail, force_disabled). Only this subset is surfaced to
// the facility controller as a unit-level critical alarm; a unit whose
// RPS is merely tripped on a routine cause does not escalate.
var criticalPredicates = map[string]bool{
	"dmg_crit":              true,
	"high_temp":             true,
	"no_coolant":            true,
	"heated_coolant_backup": true,
	"fault":                 true,
}

// IsCriticalAlarm reports whether flags, as reported on a PLC_RPS_STATUS
// packet, contains any hazardous-condition predicate.
func IsCriticalAlarm(flags map[string]bool) bool {
	for name, v := range flags {
		if v && criticalPredicates[name] {
			return true
		}
	}
	return false
}

// Status is the exported flag vector and first-trip tag.
type Status struct {
	Tripped   bool
	FirstTrip string
	Manual    bool
	Flags     map[string]bool
}

// RPS is the per-reactor safety interlock.
type RPS struct {
	mu      sync.Mutex
	reactor device.Reactor
	cfg     Config
	latch   *circuit.Latch
	flags   map[string]bool

	timeoutReq       bool
	manualReq        bool
	automaticReq     bool
	sysFailReq       bool
	forceDisabledReq bool
}

// New constructs an RPS over reactor, (re)constructed on PLC boot and
// whenever the reactor device is re-mounted.
func New(reactor device.Reactor, cfg Config) *RPS {
	r := &RPS{
		reactor: reactor,
		cfg:     cfg,
		flags:   make(map[string]bool, len(predicateNames)),
	}
	r.latch = circuit.NewLatch(func(string) {
		if r.reactor != nil {
			r.reactor.Scram()
		}
	}, nil)
	return r
}

// SetTimeout latches or clears the external "comms down" trip input,
// driven by the PLC's server watchdog.
func (r *RPS) SetTimeout(v bool) { r.mu.Lock(); r.timeoutReq = v; r.mu.Unlock() }

// SetManual latches or clears an operator-initiated SCRAM request.
func (r *RPS) SetManual(v bool) { r.mu.Lock(); r.manualReq = v; r.mu.Unlock() }

// SetAutomatic latches or clears a supervisor-initiated auto-SCRAM
// request.
func (r *RPS) SetAutomatic(v bool) { r.mu.Lock(); r.automaticReq = v; r.mu.Unlock() }

// SetSysFail latches or clears the PLC's degraded-init report.
func (r *RPS) SetSysFail(v bool) { r.mu.Lock(); r.sysFailReq = v; r.mu.Unlock() }

// SetForceDisabled latches or clears an explicit disable request,
// independent of the device's own reported status flag.
func (r *RPS) SetForceDisabled(v bool) { r.mu.Lock(); r.forceDisabledReq = v; r.mu.Unlock() }

// Scan evaluates every trip predicate against snapshot and returns the
// current (tripped, first_trip) pair. Idempotent with respect to
// calling frequency: once tripped, repeated calls neither re-fire the
// device scram() nor change first_trip. The untripped->tripped edge
// invokes reactor.Scram() exactly once.
func (r *RPS) Scan(snapshot device.ReactorSnapshot) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := map[string]bool{
		"dmg_crit":               snapshot.DamagePercent >= 100,
		"high_temp":              snapshot.TemperatureK >= r.cfg.HighTempK,
		"no_coolant":             snapshot.CoolantFill < r.cfg.LowCoolantFrac,
		"full_waste":             snapshot.WasteFill >= r.cfg.HighWasteFrac,
		"heated_coolant_backup":  snapshot.HeatedCoolantFill >= r.cfg.HighHCoolFrac,
		"no_fuel":                snapshot.FuelFill == 0,
		"fault":                  snapshot.Fault,
		"timeout":                r.timeoutReq,
		"manual":                 r.manualReq,
		"automatic":              r.automaticReq,
		"sys_fail":               r.sysFailReq,
		"force_disabled":         !snapshot.Status,
	}

	firstTrue := ""
	for _, name := range predicateNames {
		v := values[name]
		r.flags[name] = v
		if v && firstTrue == "" {
			firstTrue = name
		}
	}

	if firstTrue != "" {
		r.latch.Trip(firstTrue)
	}

	return r.latch.IsTripped(), r.latch.Reason()
}

// Reset clears the latch only if every predicate observed on the most
// recent Scan is currently false.
func (r *RPS) Reset() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latch.Reset(func() bool {
		for _, v := range r.flags {
			if v {
				return false
			}
		}
		return true
	})
}

// Status exports the full flag vector and the first-trip tag.
func (r *RPS) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	flags := make(map[string]bool, len(r.flags))
	for k, v := range r.flags {
		flags[k] = v
	}
	return Status{
		Tripped:   r.latch.IsTripped(),
		FirstTrip: r.latch.Reason(),
		Manual:    r.manualReq,
		Flags:     flags,
	}
}

// IsTripped reports the current latch state without taking a new scan.
func (r *RPS) IsTripped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latch.IsTripped()
}
