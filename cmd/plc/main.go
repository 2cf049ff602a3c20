// Command plc runs one Reactor-PLC node: the control loop that owns a
// single reactor's RPS and setpoint tracking, talking to its
// supervisor over the packet bus.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reactorctl/reactorctl/internal/clock"
	"github.com/reactorctl/reactorctl/internal/config"
	"github.com/reactorctl/reactorctl/internal/control"
	"github.com/reactorctl/reactorctl/internal/device"
	"github.com/reactorctl/reactorctl/internal/logging"
	"github.com/reactorctl/reactorctl/internal/rps"
	"github.com/reactorctl/reactorctl/pkg/transport"
)

// busPublisher adapts a transport.Bus into control.Publisher, framing
// every outbound status as a Packet on the node's reply channel.
type busPublisher struct {
	bus     transport.Bus
	nodeID  string
	channel string
	seq     uint32
}

func (p *busPublisher) Send(typ transport.Type, payload interface{}) error {
	seq := atomic.AddUint32(&p.seq, 1)
	pkt, err := transport.New(p.nodeID, seq, typ, payload)
	if err != nil {
		return err
	}
	return p.bus.Publish(context.Background(), p.channel, pkt)
}

func main() {
	cfg, err := config.LoadPLC()
	if err != nil {
		log.Fatalf("plc: config: %v", err)
	}

	logger, err := logging.New(string(config.RolePLC), cfg.NodeID, cfg.LogFormat)
	if err != nil {
		log.Fatalf("plc: logging: %v", err)
	}
	defer logger.Sync()

	reactor := device.NewSimReactor()
	safety := rps.New(reactor, rps.Config{
		HighTempK:      cfg.HighTempK,
		LowCoolantFrac: cfg.LowCoolantFrac,
		HighWasteFrac:  cfg.HighWasteFrac,
		HighHCoolFrac:  cfg.HighHCoolFrac,
	})

	var bus transport.Bus
	var pub control.Publisher
	if cfg.Networked {
		nb, err := transport.NewNatsBus(transport.Config{URL: cfg.BusURL, Name: "plc-" + cfg.NodeID})
		if err != nil {
			logger.Fatal("connect to bus", zap.Error(err))
		}
		bus = nb
		pub = &busPublisher{bus: bus, nodeID: cfg.NodeID, channel: cfg.ReplyChannel}
	}

	loop := control.New(reactor, safety, pub, control.Config{
		LimBR10MB:       cfg.LimBR10MB,
		RampFracPerTick: cfg.RampPerTick,
		StatusEveryTick: cfg.StatusEveryTick,
	})

	wd := clock.NewWatchdog(cfg.WatchdogTimeout)
	defer wd.Stop()

	if bus != nil {
		unsub, err := bus.Subscribe(cfg.ListenChannel, func(pkt transport.Packet) {
			wd.Reset()
			switch pkt.Type {
			case transport.TypePLCCmd:
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
			case transport.TypeMGMT:
				var m transport.MGMTPayload
				if pkt.Decode(&m) == nil && m.Kind == transport.MGMTClose {
					safety.SetTimeout(true)
				}
			}
		})
		if err != nil {
			logger.Fatal("subscribe to listen channel", zap.Error(err))
		}
		defer unsub()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := clock.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C():
				if wd.HasFired() {
					safety.SetTimeout(true)
				}
				if err := loop.Tick(gctx); err != nil {
					logger.Error("control tick", zap.Error(err))
				}
			}
		}
	})

	if cfg.HealthAddr != "" {
		srv := &http.Server{Addr: cfg.HealthAddr, Handler: healthRouter(safety)}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("plc node started")
	if err := g.Wait(); err != nil {
		logger.Error("plc node stopped with error", zap.Error(err))
	}
	logger.Info("plc node stopped")
}

func healthRouter(safety *rps.RPS) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tripped": safety.IsTripped()})
	})
	return r
}
