// Package config loads node configuration from the process environment.
//
// A config *loader* (file parsing, hot reload, secrets) is an external
// collaborator per the system's scope; what lives here is the typed
// struct and the env lookup a real loader would eventually populate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Role identifies which of the three node roles a process is running.
type Role string

const (
	RolePLC         Role = "plc"
	RoleSupervisor  Role = "supervisor"
	RoleCoordinator Role = "coordinator"
)

// PLC holds the configuration for a Reactor PLC node.
type PLC struct {
	NodeID          string
	Networked       bool
	BusURL          string
	ListenChannel   string
	ReplyChannel    string
	TickInterval    time.Duration
	StatusEveryTick int
	WatchdogTimeout time.Duration
	RampPerTick     float64 // fraction of lim_br10 applied per ramping tick
	LimBR10MB       float64 // operator-configured maximum burn rate, mB/t
	HighTempK       float64
	LowCoolantFrac  float64
	HighWasteFrac   float64
	HighHCoolFrac   float64
	HealthAddr      string
	LogFormat       string
}

// Supervisor holds the configuration for a Supervisor node.
type Supervisor struct {
	NodeID          string
	BusURL          string
	WatchdogTimeout time.Duration
	TickInterval    time.Duration
	RedisAddr       string
	TelemetryLogDir string
	HealthAddr      string
	LogFormat       string
}

// Coordinator holds the configuration for a Coordinator node.
type Coordinator struct {
	NodeID     string
	BusURL     string
	FeedAddr   string
	HealthAddr string
	LogFormat  string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

// LoadPLC reads a PLC configuration from the environment. Networked must
// come from explicit configuration, never inferred from scope lookup.
func LoadPLC() (PLC, error) {
	nodeID := getEnv("REACTORCTL_NODE_ID", "")
	if nodeID == "" {
		return PLC{}, fmt.Errorf("config: REACTORCTL_NODE_ID is required")
	}
	networked := getEnvBool("REACTORCTL_NETWORKED", true)
	cfg := PLC{
		NodeID:          nodeID,
		Networked:       networked,
		BusURL:          getEnv("REACTORCTL_BUS_URL", "nats://127.0.0.1:4222"),
		ListenChannel:   getEnv("REACTORCTL_LISTEN_CHANNEL", "reactorctl.plc."+nodeID+".cmd"),
		ReplyChannel:    getEnv("REACTORCTL_REPLY_CHANNEL", "reactorctl.plc."+nodeID+".status"),
		TickInterval:    getEnvDuration("REACTORCTL_TICK_INTERVAL", 50*time.Millisecond),
		StatusEveryTick: getEnvInt("REACTORCTL_STATUS_EVERY_TICK", 4),
		WatchdogTimeout: getEnvDuration("REACTORCTL_WATCHDOG_TIMEOUT", 3*time.Second),
		RampPerTick:     getEnvFloat("REACTORCTL_RAMP_PER_TICK", 0.10),
		LimBR10MB:       getEnvFloat("REACTORCTL_LIM_BR10_MB", 100),
		HighTempK:       getEnvFloat("REACTORCTL_HIGH_TEMP_K", 1200),
		LowCoolantFrac:  getEnvFloat("REACTORCTL_LOW_COOLANT_FRAC", 0.10),
		HighWasteFrac:   getEnvFloat("REACTORCTL_HIGH_WASTE_FRAC", 0.80),
		HighHCoolFrac:   getEnvFloat("REACTORCTL_HIGH_HCOOL_FRAC", 0.80),
		HealthAddr:      getEnv("REACTORCTL_HEALTH_ADDR", ":8081"),
		LogFormat:       getEnv("REACTORCTL_LOG_FORMAT", "json"),
	}
	if networked && cfg.BusURL == "" {
		return PLC{}, fmt.Errorf("config: REACTORCTL_BUS_URL is required when networked")
	}
	return cfg, nil
}

// LoadSupervisor reads a Supervisor configuration from the environment.
func LoadSupervisor() (Supervisor, error) {
	nodeID := getEnv("REACTORCTL_NODE_ID", "supervisor-1")
	return Supervisor{
		NodeID:          nodeID,
		BusURL:          getEnv("REACTORCTL_BUS_URL", "nats://127.0.0.1:4222"),
		WatchdogTimeout: getEnvDuration("REACTORCTL_WATCHDOG_TIMEOUT", 5*time.Second),
		TickInterval:    getEnvDuration("REACTORCTL_TICK_INTERVAL", 200*time.Millisecond),
		RedisAddr:       getEnv("REACTORCTL_REDIS_ADDR", "127.0.0.1:6379"),
		TelemetryLogDir: getEnv("REACTORCTL_TELEMETRY_LOG_DIR", "./var/log/reactorctl"),
		HealthAddr:      getEnv("REACTORCTL_HEALTH_ADDR", ":8082"),
		LogFormat:       getEnv("REACTORCTL_LOG_FORMAT", "json"),
	}, nil
}

// LoadCoordinator reads a Coordinator configuration from the environment.
func LoadCoordinator() (Coordinator, error) {
	nodeID := getEnv("REACTORCTL_NODE_ID", "coordinator-1")
	return Coordinator{
		NodeID:     nodeID,
		BusURL:     getEnv("REACTORCTL_BUS_URL", "nats://127.0.0.1:4222"),
		FeedAddr:   getEnv("REACTORCTL_FEED_ADDR", ":8083"),
		HealthAddr: getEnv("REACTORCTL_HEALTH_ADDR", ":8084"),
		LogFormat:  getEnv("REACTORCTL_LOG_FORMAT", "json"),
	}, nil
}
