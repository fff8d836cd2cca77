package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/haarlens/internal/pipeline"
)

const (
	writeWait = 2 * time.Second
	// clientBuffer is how many statuses may wait for a slow client. When it
	// is full the oldest waiting status is dropped.
	clientBuffer = 4
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// statusClient is one WebSocket connection with its pending statuses.
type statusClient struct {
	conn *websocket.Conn
	send chan pipeline.Status
}

// offer queues st without blocking. Callers hold the hub lock.
func (c *statusClient) offer(st pipeline.Status) {
	select {
	case c.send <- st:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- st:
	default:
	}
}

// StatusHub pushes pipeline status to WebSocket clients. It implements
// pipeline.Observer; frames are ignored. Each client is written by its own
// goroutine so a stalled browser never holds up the pipeline.
type StatusHub struct {
	current func() pipeline.Status
	log     logrus.FieldLogger
	clients map[*statusClient]bool
	mu      sync.Mutex
}

// NewStatusHub creates a hub. current supplies the status sent to new clients.
func NewStatusHub(current func() pipeline.Status, log logrus.FieldLogger) *StatusHub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StatusHub{
		current: current,
		log:     log.WithField("component", "events"),
		clients: make(map[*statusClient]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StatusHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &statusClient{conn: conn, send: make(chan pipeline.Status, clientBuffer)}

	h.mu.Lock()
	h.clients[client] = true
	if h.current != nil {
		client.offer(h.current())
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go h.write(client, done)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, client)
	close(client.send)
	h.mu.Unlock()

	<-done
}

// write sends queued statuses to one client until its queue is closed.
func (h *StatusHub) write(c *statusClient, done chan<- struct{}) {
	defer close(done)

	for st := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(st); err != nil {
			h.log.WithError(err).Debug("status write failed")
			// Closing the connection ends the read loop, which closes the queue.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// StatusChanged queues st for every client. It never waits on the network.
func (h *StatusHub) StatusChanged(st pipeline.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.offer(st)
	}
}

// Display is a no-op; frames go to the MJPEG stream.
func (h *StatusHub) Display(*gocv.Mat) {}
