package web

import (
	"encoding/json"
	"sync"

	"github.com/tempscope/tempscope/internal/log"
)

// messageKind selects how a broadcast frame is written to the socket.
type messageKind int

const (
	textKind messageKind = iota
	binaryKind
)

type message struct {
	kind messageKind
	data []byte
}

// hub fans broadcast messages out to websocket subscribers over
// channels. A subscriber whose queue is full gets dropped rather
// than blocking the rest.
type hub struct {
	name string

	mu      sync.Mutex
	clients map[*client]bool

	broadcast  chan message
	register   chan *client
	unregister chan *client
}

func newHub(name string) *hub {
	return &hub{
		name:       name,
		clients:    make(map[*client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// run owns the client set. Call it in a goroutine; it runs for the
// life of the process.
func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("dashboard client connected", "feed", h.name, "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("dashboard client disconnected", "feed", h.name, "clients", count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
					log.Warn("dropped slow dashboard client", "feed", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// push queues a message for broadcast, dropping it when the queue is
// full so producers never block.
func (h *hub) push(msg message) {
	select {
	case h.broadcast <- msg:
	default:
		log.Debug("broadcast queue full, dropping message", "feed", h.name)
	}
}

func (h *hub) pushJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn("broadcast encode failed", "feed", h.name, "error", err)
		return
	}
	h.push(message{kind: textKind, data: data})
}

func (h *hub) pushBinary(data []byte) {
	h.push(message{kind: binaryKind, data: data})
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
