package device

import (
	"errors"
	"sync"
)

// ErrUnreadable is returned by Snapshot when the simulated device is
// mounted but reporting a fault, matching a real shim's "became
// unreadable" failure mode.
var ErrUnreadable = errors.New("device: unreadable")

// SimReactor is an in-memory Reactor used by tests and local runs.
type SimReactor struct {
	mu   sync.Mutex
	snap ReactorSnapshot
}

// NewSimReactor creates a healthy, idle simulated reactor.
func NewSimReactor() *SimReactor {
	return &SimReactor{snap: ReactorSnapshot{
		Status:      true,
		FuelFill:    1.0,
		CoolantFill: 1.0,
	}}
}

func (r *SimReactor) Scram() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.BurnRate = 0
}

func (r *SimReactor) SetBurnRate(x float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.BurnRate = x
}

func (r *SimReactor) Activate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Status = true
}

func (r *SimReactor) GetTemperature() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.TemperatureK
}

func (r *SimReactor) GetFuel() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.FuelFill
}

func (r *SimReactor) GetCoolant() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.CoolantFill
}

func (r *SimReactor) GetWaste() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.WasteFill
}

func (r *SimReactor) GetHeatedCoolant() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.HeatedCoolantFill
}

func (r *SimReactor) GetDamagePercent() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.DamagePercent
}

func (r *SimReactor) GetBurnRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.BurnRate
}

func (r *SimReactor) GetBoilRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.BoilRate
}

func (r *SimReactor) GetEnvironmentalLoss() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.EnvironmentalLoss
}

func (r *SimReactor) GetStatus() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Status
}

// Set overwrites the simulated telemetry wholesale; used by tests to
// drive trip conditions.
func (r *SimReactor) Set(s ReactorSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = s
}

func (r *SimReactor) Snapshot() (ReactorSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap.Fault {
		return r.snap, ErrUnreadable
	}
	return r.snap, nil
}

// SimMatrix is an in-memory InductionMatrix used by tests and local
// runs.
type SimMatrix struct {
	mu   sync.Mutex
	snap MatrixSnapshot
	err  error
}

// NewSimMatrix creates a formed, empty simulated matrix.
func NewSimMatrix() *SimMatrix {
	return &SimMatrix{snap: MatrixSnapshot{Formed: true, MaxEnergy: 1}}
}

func (m *SimMatrix) GetEnergy() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Energy
}

func (m *SimMatrix) GetMaxEnergy() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.MaxEnergy
}

func (m *SimMatrix) GetLastInput() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.LastInput
}

func (m *SimMatrix) GetLastOutput() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.LastOutput
}

func (m *SimMatrix) IsFormed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Formed
}

// Set overwrites the simulated telemetry wholesale.
func (m *SimMatrix) Set(s MatrixSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
}

// SetUnreadable forces Snapshot to fail, simulating an absent matrix.
func (m *SimMatrix) SetUnreadable(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *SimMatrix) Snapshot() (MatrixSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return MatrixSnapshot{}, m.err
	}
	return m.snap, nil
}

// SimRedstone is an in-memory RedstoneIO used by tests.
type SimRedstone struct {
	mu      sync.Mutex
	inputs  map[string]bool
	outputs map[string]bool
}

// NewSimRedstone creates an empty simulated redstone I/O bank.
func NewSimRedstone() *SimRedstone {
	return &SimRedstone{inputs: map[string]bool{}, outputs: map[string]bool{}}
}

func (r *SimRedstone) GetInput(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputs[channel]
}

func (r *SimRedstone) SetOutput(channel string, value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[channel] = value
}

// SetInput drives an input channel, used by tests to simulate external
// signals.
func (r *SimRedstone) SetInput(channel string, value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[channel] = value
}

// Output reads back a previously set output, used by tests to assert on
// what the controller drove.
func (r *SimRedstone) Output(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputs[channel]
}
