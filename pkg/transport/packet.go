// Package transport is the wire-level packet bus between nodes: a
// length-delimited envelope carried over broadcast-addressed
// (listen_channel, reply_channel) pairs. This consolidates what the
// originating pack carried as two near-duplicate event schemas into a
// single canonical packet type.
package transport

import (
	"encoding/json"
	"time"
)

// Protocol identifies the wire format version.
const Protocol byte = 1

// Type tags the packet classes from the wire protocol.
type Type string

const (
	TypeMGMT         Type = "MGMT"          // establish/keep-alive/close
	TypePLCStatus    Type = "PLC_STATUS"
	TypePLCRPSStatus Type = "PLC_RPS_STATUS"
	TypePLCCmd       Type = "PLC_CMD"       // set burn, ramp, SCRAM, reset
	TypeRTUData      Type = "RTU_DATA"
	TypeCoordCmd     Type = "COORD_CMD"     // mode, targets, limits, ack
)

// MGMTKind distinguishes the sub-actions carried by an MGMT packet.
type MGMTKind string

const (
	MGMTEstablish MGMTKind = "establish"
	MGMTKeepAlive MGMTKind = "keep_alive"
	MGMTClose     MGMTKind = "close"
)

// Packet is the canonical wire envelope. Payload is kept as raw JSON so
// intermediate hops (a session that only routes) never need to know the
// concrete payload shape.
type Packet struct {
	Protocol  byte            `json:"protocol"`
	SenderID  string          `json:"sender_id"`
	Seq       uint32          `json:"seq"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New builds a Packet with the payload marshaled to JSON.
func New(senderID string, seq uint32, typ Type, payload interface{}) (Packet, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Packet{}, err
	}
	return Packet{
		Protocol:  Protocol,
		SenderID:  senderID,
		Seq:       seq,
		Type:      typ,
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (p Packet) Decode(v interface{}) error {
	return json.Unmarshal(p.Payload, v)
}

// MGMTPayload is the payload of a MGMT packet.
type MGMTPayload struct {
	Kind MGMTKind `json:"kind"`
}

// PLCStatusPayload is the payload of a PLC_STATUS packet — the full
// reactor telemetry snapshot plus the control record.
type PLCStatusPayload struct {
	Status            bool    `json:"status"`
	FuelFill          float64 `json:"fuel_fill"`
	CoolantFill       float64 `json:"coolant_fill"`
	WasteFill         float64 `json:"waste_fill"`
	HeatedCoolantFill float64 `json:"heated_coolant_fill"`
	TemperatureK      float64 `json:"temperature_k"`
	DamagePercent     float64 `json:"damage_percent"`
	BoilRate          float64 `json:"boil_rate"`
	BurnRate          float64 `json:"burn_rate"`
	EnvironmentalLoss float64 `json:"environmental_loss"`
	BR10              int64   `json:"br10"`
	LimBR10           int64   `json:"lim_br10"`
	Degraded          bool    `json:"degraded"`
	RampComplete      bool    `json:"ramp_complete"`
}

// PLCRPSStatusPayload is the payload of a PLC_RPS_STATUS packet.
type PLCRPSStatusPayload struct {
	Tripped   bool              `json:"tripped"`
	FirstTrip string            `json:"first_trip"`
	Manual    bool              `json:"manual"`
	Flags     map[string]bool   `json:"flags"`
}

// PLCCmdKind distinguishes the sub-actions carried by a PLC_CMD packet.
type PLCCmdKind string

const (
	PLCCmdSetBurn PLCCmdKind = "set_burn"
	PLCCmdSCRAM   PLCCmdKind = "scram"
	PLCCmdReset   PLCCmdKind = "reset"
)

// PLCCmdPayload is the payload of a PLC_CMD packet.
type PLCCmdPayload struct {
	Kind      PLCCmdKind `json:"kind"`
	Enable    bool       `json:"enable"`
	BurnRate  float64    `json:"burn_rate"`
	Ramp      bool       `json:"ramp"`
}

// RTUDataPayload is the payload of a RTU_DATA packet — induction matrix
// or redstone telemetry from a peripheral session.
type RTUDataPayload struct {
	Formed     bool    `json:"formed"`
	Energy     float64 `json:"energy"`
	MaxEnergy  float64 `json:"max_energy"`
	LastInput  float64 `json:"last_input"`
	LastOutput float64 `json:"last_output"`
}

// CoordCmdKind distinguishes the sub-actions carried by a COORD_CMD
// packet.
type CoordCmdKind string

const (
	CoordCmdSetMode  CoordCmdKind = "set_mode"
	CoordCmdSetTarget CoordCmdKind = "set_target"
	CoordCmdSetLimit CoordCmdKind = "set_limit"
	CoordCmdAck      CoordCmdKind = "ack"
)

// CoordCmdPayload is the payload of a COORD_CMD packet.
type CoordCmdPayload struct {
	Kind    CoordCmdKind `json:"kind"`
	Mode    string       `json:"mode,omitempty"`
	UnitID  string       `json:"unit_id,omitempty"`
	Group   int          `json:"group,omitempty"`
	Target  float64      `json:"target,omitempty"`
	LimBR10 int64        `json:"lim_br10,omitempty"`
	Message string       `json:"message,omitempty"`
}
