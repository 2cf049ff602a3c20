// Command coordinator runs the Coordinator node: the operator-facing
// COORD_CMD issuer and the live websocket feed of facility/unit status,
// forwarding authorized commands onto the packet bus.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reactorctl/reactorctl/internal/config"
	"github.com/reactorctl/reactorctl/internal/coordauth"
	"github.com/reactorctl/reactorctl/internal/logging"
	"github.com/reactorctl/reactorctl/internal/opfeed"
	"github.com/reactorctl/reactorctl/pkg/transport"
)

func main() {
	cfg, err := config.LoadCoordinator()
	if err != nil {
		log.Fatalf("coordinator: config: %v", err)
	}

	logger, err := logging.New(string(config.RoleCoordinator), cfg.NodeID, cfg.LogFormat)
	if err != nil {
		log.Fatalf("coordinator: logging: %v", err)
	}
	defer logger.Sync()

	bus, err := transport.NewNatsBus(transport.Config{URL: cfg.BusURL, Name: "coordinator-" + cfg.NodeID})
	if err != nil {
		logger.Fatal("connect to bus", zap.Error(err))
	}
	defer bus.Close()

	allowed := strings.Split(os.Getenv("REACTORCTL_AUTHORIZED_SESSIONS"), ",")
	authz := coordauth.NewRegistry(allowed)

	feed := opfeed.New()

	unsubSupervisor, err := bus.Subscribe("reactorctl.supervisor-1.telemetry", func(pkt transport.Packet) {
		feed.Broadcast(opfeed.Update{Topic: "facility", Data: pkt})
	})
	if err != nil {
		logger.Error("subscribe to supervisor telemetry", zap.Error(err))
	} else {
		defer unsubSupervisor()
	}

	var seq uint32
	publishCmd := func(sessionID, kind, targetID string, p transport.CoordCmdPayload) error {
		cmd, err := authz.Issue(sessionID, kind, targetID)
		if err != nil {
			return err
		}
		pkt, err := transport.New(cfg.NodeID, atomic.AddUint32(&seq, 1), transport.TypeCoordCmd, p)
		if err != nil {
			return err
		}
		if err := bus.Publish(context.Background(), "reactorctl.supervisor-1.coord", pkt); err != nil {
			return err
		}
		authz.Ack(cmd.ID)
		return nil
	}

	feed.Router().POST("/command", func(c *gin.Context) {
		var req struct {
			SessionID string                 `json:"session_id" binding:"required"`
			Kind      transport.CoordCmdKind `json:"kind" binding:"required"`
			Payload   transport.CoordCmdPayload `json:"payload"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Payload.Kind = req.Kind
		if err := publishCmd(req.SessionID, string(req.Kind), req.Payload.UnitID, req.Payload); err != nil {
			if err == coordauth.ErrNotAuthorized {
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "issued"})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{Addr: cfg.FeedAddr, Handler: feed.Router()}
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

	logger.Info("coordinator node started", zap.Int("authorized_sessions", len(allowed)))
	if err := g.Wait(); err != nil {
		logger.Error("coordinator node stopped with error", zap.Error(err))
	}
	logger.Info("coordinator node stopped")
}
