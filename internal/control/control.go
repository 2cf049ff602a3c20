// Package control implements the Reactor-PLC control loop: applying
// setpoints received from the supervisor, publishing status at fixed
// cadence, and enforcing that no fission occurs whenever the RPS is
// tripped. Grounded on the matching engine's ticker-driven processing
// loop, generalized from order-book matching to ramp/clamp setpoint
// application.
package control

import (
	"context"
	"math"

	"github.com/reactorctl/reactorctl/internal/device"
	"github.com/reactorctl/reactorctl/internal/rps"
	"github.com/reactorctl/reactorctl/pkg/transport"
)

// Epsilon is the ramp-completion tolerance, mB/t.
const Epsilon = 0.05

// Publisher sends status packets on behalf of the control loop, kept as
// an interface so tests can assert on published packets without a real
// session.
type Publisher interface {
	Send(typ transport.Type, payload interface{}) error
}

// Config holds the tunables named in the setpoint application and
// status cadence contracts.
type Config struct {
	LimBR10MB       float64
	RampFracPerTick float64 // default 0.10
	StatusEveryTick int     // default 4
}

// Controller is the per-PLC control loop state.
type Controller struct {
	reactor device.Reactor
	rps     *rps.RPS
	pub     Publisher
	cfg     Config

	current float64
	target  float64
	enabled bool
	ramping bool

	tick    int
	closing bool
}

// New constructs a Controller for reactor, wired to rps and pub.
func New(reactor device.Reactor, r *rps.RPS, pub Publisher, cfg Config) *Controller {
	return &Controller{reactor: reactor, rps: r, pub: pub, cfg: cfg}
}

// ApplySetpoint accepts a (enable, burn_rate, ramp) command from the
// supervisor. burnRate is clamped to [0, lim_br10] here; the allocator
// upstream is expected to already respect the limit, this is a second,
// local line of defense.
func (c *Controller) ApplySetpoint(enable bool, burnRate float64, ramp bool) {
	c.enabled = enable
	c.ramping = ramp
	if burnRate < 0 {
		burnRate = 0
	}
	if burnRate > c.cfg.LimBR10MB {
		burnRate = c.cfg.LimBR10MB
	}
	c.target = burnRate
}

// Tick runs one control-loop iteration: poll the device, scan the RPS,
// move the setpoint toward target, and publish status on cadence. A
// controller tick is atomic with respect to peer state — nothing here
// suspends mid-evaluation.
func (c *Controller) Tick(ctx context.Context) error {
	snap, err := c.reactor.Snapshot()
	if err != nil {
		snap.Fault = true
	}

	tripped, firstTrip := c.rps.Scan(snap)

	effectiveTarget := c.target
	if !c.enabled || tripped {
		effectiveTarget = 0
	}

	if c.ramping && !tripped {
		step := c.cfg.RampFracPerTick * c.cfg.LimBR10MB
		c.current = rampToward(c.current, effectiveTarget, step)
	} else {
		c.current = clamp(effectiveTarget, 0, c.cfg.LimBR10MB)
	}

	c.reactor.SetBurnRate(c.current)
	rampComplete := math.Abs(c.current-effectiveTarget) < Epsilon

	c.tick++
	statusDue := c.cfg.StatusEveryTick > 0 && c.tick%c.cfg.StatusEveryTick == 0

	if tripped && !c.closing {
		c.closing = true
		if err := c.publishStatus(snap, rampComplete); err != nil {
			return err
		}
		return c.publishRPSStatus(firstTrip)
	}

	if statusDue && !c.closing {
		return c.publishStatus(snap, rampComplete)
	}
	return nil
}

// Closing reports whether the loop has latched a trip and sent its
// final packets, the point at which the owning session should close.
func (c *Controller) Closing() bool { return c.closing }

func (c *Controller) publishStatus(snap device.ReactorSnapshot, rampComplete bool) error {
	if c.pub == nil {
		return nil
	}
	return c.pub.Send(transport.TypePLCStatus, transport.PLCStatusPayload{
		Status:            snap.Status,
		FuelFill:          snap.FuelFill,
		CoolantFill:       snap.CoolantFill,
		WasteFill:         snap.WasteFill,
		HeatedCoolantFill: snap.HeatedCoolantFill,
		TemperatureK:      snap.TemperatureK,
		DamagePercent:     snap.DamagePercent,
		BoilRate:          snap.BoilRate,
		BurnRate:          c.current,
		EnvironmentalLoss: snap.EnvironmentalLoss,
		BR10:              int64(c.current * 10),
		LimBR10:           int64(c.cfg.LimBR10MB * 10),
		Degraded:          snap.Fault,
		RampComplete:      rampComplete,
	})
}

func (c *Controller) publishRPSStatus(firstTrip string) error {
	if c.pub == nil {
		return nil
	}
	status := c.rps.Status()
	return c.pub.Send(transport.TypePLCRPSStatus, transport.PLCRPSStatusPayload{
		Tripped:   status.Tripped,
		FirstTrip: status.FirstTrip,
		Manual:    status.Manual,
		Flags:     status.Flags,
	})
}

func rampToward(current, target, step float64) float64 {
	if step <= 0 {
		return target
	}
	if current < target {
		next := current + step
		if next > target {
			return target
		}
		return next
	}
	if current > target {
		next := current - step
		if next < target {
			return target
		}
		return next
	}
	return current
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
