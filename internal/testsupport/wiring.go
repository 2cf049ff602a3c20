// Package testsupport wires a PLC-side control loop and a
// Supervisor-side session/unit/facility pair over a transport.Bus, the
// same shape cmd/plc and cmd/supervisor wire in production. Exported so
// the integration, chaos, and race suites share one wiring instead of
// three drifting copies.
package testsupport

import (
	"context"
	"time"

	"github.com/reactorctl/reactorctl/internal/clock"
	"github.com/reactorctl/reactorctl/internal/control"
	"github.com/reactorctl/reactorctl/internal/device"
	"github.com/reactorctl/reactorctl/internal/facility"
	"github.com/reactorctl/reactorctl/internal/rps"
	"github.com/reactorctl/reactorctl/internal/session"
	"github.com/reactorctl/reactorctl/internal/unit"
	"github.com/reactorctl/reactorctl/pkg/transport"
)

// loopPublisher mirrors cmd/plc's busPublisher, framing every outbound
// status on a fixed reply channel.
type loopPublisher struct {
	bus     transport.Bus
	nodeID  string
	channel string
	seq     uint32
}

func (p *loopPublisher) Send(typ transport.Type, payload interface{}) error {
	p.seq++
	pkt, err := transport.New(p.nodeID, p.seq, typ, payload)
	if err != nil {
		return err
	}
	return p.bus.Publish(context.Background(), p.channel, pkt)
}

// WiredUnit bundles one PLC's control loop with the facility/unit/
// session triple a supervisor holds for it.
type WiredUnit struct {
	Unit     *unit.Unit
	Facility *facility.Controller
	Loop     *control.Controller
	Safety   *rps.RPS

	// Flush drains the session's outbound queue onto the bus, the
	// equivalent of one registry.IterateAll pass in the real
	// supervisor tick loop.
	Flush func()
}

// WireUnit connects a single unit end to end over bus: cmdChannel
// carries PLC_CMD packets from the session to the control loop,
// statusChannel carries PLC_STATUS/PLC_RPS_STATUS back to the unit.
func WireUnit(bus transport.Bus, id string, group int, limTenths int64, blades int, watchdogTimeout time.Duration) (*WiredUnit, error) {
	cmdChannel := id + ".cmd"
	statusChannel := id + ".status"

	wd := clock.NewWatchdog(watchdogTimeout)

	sess := session.New(id, "plc://"+id, session.KindPLC, bus, cmdChannel, "supervisor-1", wd)
	u := unit.New(id, group, limTenths, blades, sess)

	reactor := device.NewSimReactor()
	safety := rps.New(reactor, rps.DefaultConfig())
	pub := &loopPublisher{bus: bus, nodeID: id, channel: statusChannel}
	loop := control.New(reactor, safety, pub, control.Config{
		LimBR10MB:       float64(limTenths) / 10,
		RampFracPerTick: 0,
		StatusEveryTick: 1,
	})

	_, err := bus.Subscribe(cmdChannel, func(pkt transport.Packet) {
		if pkt.Type != transport.TypePLCCmd {
			return
		}
		var cmd transport.PLCCmdPayload
		if pkt.Decode(&cmd) != nil {
			return
		}
		switch cmd.Kind {
		case transport.PLCCmdSetBurn:
			loop.ApplySetpoint(cmd.Enable, cmd.BurnRate, cmd.Ramp)
		case transport.PLCCmdSCRAM:
			safety.SetManual(true)
		case transport.PLCCmdReset:
			safety.SetManual(false)
			safety.Reset()
		}
	})
	if err != nil {
		return nil, err
	}

	_, err = bus.Subscribe(statusChannel, func(pkt transport.Packet) {
		sess.OnPacket(pkt)
		switch pkt.Type {
		case transport.TypePLCStatus:
			var p transport.PLCStatusPayload
			if pkt.Decode(&p) != nil {
				return
			}
			u.Update(unit.StatusUpdate{
				BR10:         p.BR10,
				Ready:        p.Status,
				Degraded:     p.Degraded,
				RampComplete: p.RampComplete,
			})
		case transport.TypePLCRPSStatus:
			var p transport.PLCRPSStatusPayload
			if pkt.Decode(&p) != nil {
				return
			}
			u.UpdateRPS(unit.RPSStatusUpdate{CriticalAlarm: rps.IsCriticalAlarm(p.Flags)})
		}
	})
	if err != nil {
		return nil, err
	}

	matrix := device.NewSimMatrix()
	fc := facility.New(matrix)
	fc.RegisterUnit(u, group)

	return &WiredUnit{
		Unit:     u,
		Facility: fc,
		Loop:     loop,
		Safety:   safety,
		Flush:    func() { sess.Iterate(context.Background()) },
	}, nil
}
