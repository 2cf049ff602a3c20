// Package race exercises the session registry under concurrent
// inbound packet delivery and the supervisor's own per-tick sweep, the
// two access patterns that run on different goroutines in production
// (a bus subscription callback vs. the tick loop). Run with
// `go test -race ./tests/race/...`.
package race

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reactorctl/reactorctl/internal/clock"
	"github.com/reactorctl/reactorctl/internal/session"
	"github.com/reactorctl/reactorctl/pkg/transport"
)

func TestRegistry_ConcurrentIterateAndInboundDelivery(t *testing.T) {
	bus := transport.NewLoopbackBus()
	registry := session.NewRegistry()

	const sessionCount = 8
	for i := 0; i < sessionCount; i++ {
		wd := clock.NewWatchdog(time.Minute)
		t.Cleanup(wd.Stop)
		sess := session.New(
			"u"+string(rune('a'+i)), "plc://u", session.KindPLC,
			bus, "u.cmd", "supervisor-1", wd,
		)
		registry.Add(sess)
	}

	pkt, err := transport.New("u1", 1, transport.TypePLCStatus, transport.PLCStatusPayload{Status: true})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// goroutine group 1: the bus delivering inbound packets to every
	// session, as a real subscription callback would.
	for i := 0; i < sessionCount; i++ {
		id := "u" + string(rune('a'+i))
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sess, ok := registry.Get(id)
			if !ok {
				return
			}
			for {
				select {
				case <-stop:
					return
				default:
					sess.OnPacket(pkt)
				}
			}
		}(id)
	}

	// goroutine group 2: the supervisor's tick loop sweeping the whole
	// registry concurrently with the deliveries above.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx := context.Background()
		for {
			select {
			case <-stop:
				return
			default:
				registry.IterateAll(ctx)
				registry.CheckAllWatchdogs()
				registry.FreeAllClosed()
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}
