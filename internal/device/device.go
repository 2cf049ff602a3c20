// Package device gives the RPS, control loop, and facility controller a
// uniform view of the reactor, induction matrix, and redstone I/O
// peripherals. The concrete peripheral glue (mounting, per-device API
// shims) is an external collaborator; this package owns only the
// interface boundary and an in-memory simulated implementation for
// tests and local runs.
package device

// ReactorSnapshot is the telemetry read from a reactor on each poll.
type ReactorSnapshot struct {
	Status            bool
	FuelFill          float64 // 0..1
	CoolantFill       float64 // 0..1
	WasteFill         float64 // 0..1
	HeatedCoolantFill float64 // 0..1
	TemperatureK      float64
	DamagePercent     float64 // 0..100
	BoilRate          float64
	BurnRate          float64 // mB/t, as observed on the device
	EnvironmentalLoss float64
	Fault             bool // device reported an error or became unreadable
}

// Reactor is the peripheral interface consumed by the RPS and control
// loop, mirroring the physical reactor's method surface.
type Reactor interface {
	Scram()
	SetBurnRate(x float64)
	Activate()
	GetTemperature() float64
	GetFuel() float64
	GetCoolant() float64
	GetWaste() float64
	GetHeatedCoolant() float64
	GetDamagePercent() float64
	GetBurnRate() float64
	GetBoilRate() float64
	GetEnvironmentalLoss() float64
	GetStatus() bool
	// Snapshot polls every field in one pass, matching how a real
	// peripheral shim would batch the underlying calls.
	Snapshot() (ReactorSnapshot, error)
}

// MatrixSnapshot is the telemetry read from an induction matrix.
type MatrixSnapshot struct {
	Formed     bool
	Energy     float64
	MaxEnergy  float64
	LastInput  float64
	LastOutput float64
}

// FillFraction returns Energy/MaxEnergy, or 0 if MaxEnergy is 0.
func (m MatrixSnapshot) FillFraction() float64 {
	if m.MaxEnergy <= 0 {
		return 0
	}
	return m.Energy / m.MaxEnergy
}

// InductionMatrix is the peripheral interface for the facility's energy
// buffer.
type InductionMatrix interface {
	GetEnergy() float64
	GetMaxEnergy() float64
	GetLastInput() float64
	GetLastOutput() float64
	IsFormed() bool
	Snapshot() (MatrixSnapshot, error)
}

// RedstoneIO is bit-level get/set per configured channel.
type RedstoneIO interface {
	GetInput(channel string) bool
	SetOutput(channel string, value bool)
}
