// Package opfeed is the coordinator's live operator feed: a websocket
// broadcast of facility and unit status updates, gin-served the way
// the pack's gateway serves its API surface. Grounded on
// internal/market.Feed's subscriber fan-out (per-topic subscriber map,
// buffered per-subscriber update channel, a single broadcaster
// goroutine) and internal/gateway.go's gorilla/websocket read/write
// pump pair.
package opfeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Update is one message pushed to subscribed operators.
type Update struct {
	Topic     string      `json:"topic"` // "facility" or "unit:<id>"
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Subscriber is one connected operator client.
type Subscriber struct {
	id     uuid.UUID
	conn   *websocket.Conn
	topics map[string]bool
	send   chan Update
	done   chan struct{}
}

// Feed is the live operator broadcast surface.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber

	router *gin.Engine
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New constructs a Feed and wires its /ws and /healthz routes.
func New() *Feed {
	f := &Feed{
		subscribers: make(map[uuid.UUID]*Subscriber),
		router:      gin.New(),
	}
	f.router.Use(gin.Recovery())
	f.router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	f.router.GET("/ws", f.handleWebSocket)
	return f
}

// Router exposes the gin engine so cmd/coordinator can call ListenAndServe.
func (f *Feed) Router() *gin.Engine { return f.router }

// Broadcast fans an update out to every subscriber whose topic set
// includes u.Topic or the wildcard "*", dropping the message for any
// subscriber whose send buffer is full rather than blocking the
// facility controller's tick.
func (f *Feed) Broadcast(u Update) {
	u.Timestamp = time.Now()
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subscribers {
		if !sub.topics["*"] && !sub.topics[u.Topic] {
			continue
		}
		select {
		case sub.send <- u:
		default:
		}
	}
}

func (f *Feed) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	topics := map[string]bool{"*": true}
	if t := c.Query("topics"); t != "" {
		topics = map[string]bool{}
		for _, name := range splitCSV(t) {
			topics[name] = true
		}
	}

	sub := &Subscriber{
		id:     uuid.New(),
		conn:   conn,
		topics: topics,
		send:   make(chan Update, 32),
		done:   make(chan struct{}),
	}

	f.mu.Lock()
	f.subscribers[sub.id] = sub
	f.mu.Unlock()

	go f.writePump(sub)
	f.readPump(sub)
}

func (f *Feed) readPump(sub *Subscriber) {
	defer func() {
		f.mu.Lock()
		delete(f.subscribers, sub.id)
		f.mu.Unlock()
		close(sub.done)
		sub.conn.Close()
	}()
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) writePump(sub *Subscriber) {
	for {
		select {
		case u := <-sub.send:
			raw, err := json.Marshal(u)
			if err != nil {
				continue
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-sub.done:
			return
		}
	}
}

// SubscriberCount reports the current connected-operator count.
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
