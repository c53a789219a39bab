package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/CryoRestore/server/internal/domain/occupant"
	"github.com/MRamiBalles/CryoRestore/server/internal/events"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/logger"
	"github.com/MRamiBalles/CryoRestore/server/internal/platform/metrics"
)

// Commander is the part of the engine WebSocket clients may drive.
type Commander interface {
	Accept(ctx context.Context, chamberID, occupantID string) error
	Eject(ctx context.Context, chamberID string) (*occupant.Occupant, error)
	Refuel(ctx context.Context, chamberID string, amount float64) (float64, error)
	SetPower(ctx context.Context, chamberID string, on bool) error
}

// HubOptions tunes buffers and client rate limiting.
type HubOptions struct {
	BroadcastBuffer int
	ClientBuffer    int
	CommandInterval time.Duration // Minimum gap between commands from one client
	PollInterval    time.Duration
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // Closed when Run returns
	mu         sync.Mutex

	commander Commander
	opts      HubOptions
	logger    *logger.Logger
	metrics   *metrics.Collector
}

// NewHub initializes a new WebSocket Hub.
func NewHub(commander Commander, log *logger.Logger, m *metrics.Collector, opts HubOptions) *Hub {
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = 256
	}
	if opts.ClientBuffer <= 0 {
		opts.ClientBuffer = 64
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	return &Hub{
		broadcast:  make(chan []byte, opts.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		commander:  commander,
		opts:       opts,
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				h.metrics.RecordWSConnection(-1)
			}
			h.mu.Unlock()
			close(h.done)
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastEvent takes a GameEvent, serializes it to JSON, and queues it for all connected clients.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("Failed to serialize GameEvent for WebSocket broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Broadcast queue full, dropping event " + event.ID)
	}
}

// StartEventPoller spawns a goroutine that pushes new log events to the Hub.
// The Hub runs independently from the Engine's tick loop while picking up the same events.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	lastProcessedEvent := eventLog.Len()
	go func() {
		pollInterval := time.NewTicker(h.opts.PollInterval)
		defer pollInterval.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				newEvents := eventLog.Since(lastProcessedEvent)
				for _, event := range newEvents {
					h.BroadcastEvent(event)
				}
				lastProcessedEvent += len(newEvents)
			}
		}
	}()
}
