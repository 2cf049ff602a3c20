// Command supervisor runs one facility's Supervisor node: the session
// registry for every connected PLC/RTU peer, the Facility Process
// Controller, and the rolling telemetry log.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reactorctl/reactorctl/internal/clock"
	"github.com/reactorctl/reactorctl/internal/config"
	"github.com/reactorctl/reactorctl/internal/device"
	"github.com/reactorctl/reactorctl/internal/facility"
	"github.com/reactorctl/reactorctl/internal/logging"
	"github.com/reactorctl/reactorctl/internal/rps"
	"github.com/reactorctl/reactorctl/internal/session"
	"github.com/reactorctl/reactorctl/internal/snapshot"
	"github.com/reactorctl/reactorctl/internal/telemetrylog"
	"github.com/reactorctl/reactorctl/internal/unit"
	"github.com/reactorctl/reactorctl/pkg/transport"
)

// unitSpec is one REACTORCTL_UNITS entry: "id:group:limBR10:blades".
type unitSpec struct {
	id        string
	group     int
	limBR10   int64
	bladeCount int
}

func parseUnitSpecs(csv string) []unitSpec {
	var out []unitSpec
	if csv == "" {
		return out
	}
	for _, field := range strings.Split(csv, ",") {
		parts := strings.Split(strings.TrimSpace(field), ":")
		if len(parts) != 4 {
			continue
		}
		group, _ := strconv.Atoi(parts[1])
		lim, _ := strconv.ParseInt(parts[2], 10, 64)
		blades, _ := strconv.Atoi(parts[3])
		out = append(out, unitSpec{id: parts[0], group: group, limBR10: lim, bladeCount: blades})
	}
	return out
}

func main() {
	cfg, err := config.LoadSupervisor()
	if err != nil {
		log.Fatalf("supervisor: config: %v", err)
	}

	logger, err := logging.New(string(config.RoleSupervisor), cfg.NodeID, cfg.LogFormat)
	if err != nil {
		log.Fatalf("supervisor: logging: %v", err)
	}
	defer logger.Sync()

	bus, err := transport.NewNatsBus(transport.Config{URL: cfg.BusURL, Name: "supervisor-" + cfg.NodeID})
	if err != nil {
		logger.Fatal("connect to bus", zap.Error(err))
	}
	defer bus.Close()

	matrix := device.NewSimMatrix()
	fc := facility.New(matrix)

	registry := session.NewRegistry()
	specs := parseUnitSpecs(os.Getenv("REACTORCTL_UNITS"))
	for _, spec := range specs {
		wd := clock.NewWatchdog(cfg.WatchdogTimeout)
		sess := session.New(spec.id, "plc://"+spec.id, session.KindPLC, bus,
			"reactorctl.plc."+spec.id+".cmd", cfg.NodeID, wd)
		registry.Add(sess)

		u := unit.New(spec.id, spec.group, spec.limBR10, spec.bladeCount, sess)
		fc.RegisterUnit(u, spec.group)

		unsub, err := bus.Subscribe("reactorctl.plc."+spec.id+".status", statusHandler(sess, u))
		if err != nil {
			logger.Error("subscribe to unit status", zap.String("unit", spec.id), zap.Error(err))
			continue
		}
		defer unsub()
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	cache := snapshot.NewCache(rdb, cfg.NodeID)

	sink, err := telemetrylog.NewFileSink(cfg.TelemetryLogDir, cfg.NodeID, 0)
	if err != nil {
		logger.Error("open telemetry log", zap.Error(err))
		sink = nil
	}
	var logSink telemetrylog.Sink = telemetrylog.NopSink{}
	if sink != nil {
		logSink = sink
		defer sink.Close()
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
				registry.CloseAll()
				return nil
			case <-ticker.C():
				if err := fc.Tick(); err != nil {
					logger.Error("facility tick", zap.Error(err))
				}
				registry.IterateAll(gctx)

				for _, id := range registry.CheckAllWatchdogs() {
					logger.Warn("session watchdog fired", zap.String("session", id))
				}
				registry.FreeAllClosed()

				cache.Put(gctx, snapshot.Facility{
					Mode:         string(fc.Mode()),
					AscramReason: string(fc.AscramReason()),
					UpdatedAt:    time.Now(),
				})
				_ = logSink.Write(telemetrylog.Entry{
					Timestamp: time.Now(),
					NodeID:    cfg.NodeID,
					Kind:      "facility_status",
					Fields:    map[string]interface{}{"mode": string(fc.Mode())},
				})
			}
		}
	})

	if cfg.HealthAddr != "" {
		srv := &http.Server{Addr: cfg.HealthAddr, Handler: healthRouter(fc)}
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

	logger.Info("supervisor node started", zap.Int("units", len(specs)))
	if err := g.Wait(); err != nil {
		logger.Error("supervisor node stopped with error", zap.Error(err))
	}
	logger.Info("supervisor node stopped")
}

func statusHandler(sess *session.Session, u *unit.Unit) func(transport.Packet) {
	return func(pkt transport.Packet) {
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
	}
}

func healthRouter(fc *facility.Controller) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"mode": string(fc.Mode())})
	})
	return r
}
