package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Time a single command may hold the engine.
	commandTimeout = 5 * time.Second
)

// Command types accepted from clients.
const (
	CommandAccept = "ACCEPT"
	CommandEject  = "EJECT"
	CommandRefuel = "REFUEL"
	CommandPower  = "POWER"
)

var errRateLimited = errors.New("rate limit exceeded")

// ClientCommand represents an incoming command from the frontend.
type ClientCommand struct {
	ID         string  `json:"id,omitempty"` // Echoed back in the result
	Type       string  `json:"type"`
	ChamberID  string  `json:"chamber_id"`
	OccupantID string  `json:"occupant_id,omitempty"`
	Amount     float64 `json:"amount,omitempty"`
	On         *bool   `json:"on,omitempty"`
}

// CommandResult is sent back to the client that issued a command.
type CommandResult struct {
	Type    string      `json:"type"` // Always "COMMAND_RESULT"
	ID      string      `json:"id,omitempty"`
	Command string      `json:"command"`
	OK      bool        `json:"ok"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Client holds one WebSocket connection.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	lastActionTime time.Time
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.opts.ClientBuffer),
	}
}

// Register adds the client to the hub. Returns false once the hub has stopped.
func (c *Client) Register() bool {
	select {
	case c.hub.register <- c:
		return true
	case <-c.hub.done:
		return false
	}
}

// ReadPump pumps commands from the websocket connection to the engine.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnf("WebSocket read error: %v", err)
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var cmd ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Warn("Failed to parse ClientCommand from WebSocket. err: " + err.Error())
			c.reply(CommandResult{Command: "UNKNOWN", Error: "invalid command"})
			continue
		}

		c.reply(c.handleCommand(cmd))
	}
}

func (c *Client) handleCommand(cmd ClientCommand) CommandResult {
	result := CommandResult{ID: cmd.ID, Command: cmd.Type}

	// 1. Rate Limiting Check
	if time.Since(c.lastActionTime) < c.hub.opts.CommandInterval {
		c.hub.logger.Warn("Rate limit exceeded for client command " + cmd.Type)
		result.Error = errRateLimited.Error()
		return result
	}
	c.lastActionTime = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// 2. Route to the engine
	var err error
	switch cmd.Type {
	case CommandAccept:
		err = c.hub.commander.Accept(ctx, cmd.ChamberID, cmd.OccupantID)
	case CommandEject:
		ejected, ejectErr := c.hub.commander.Eject(ctx, cmd.ChamberID)
		if err = ejectErr; err == nil {
			result.Data = ejected
		}
	case CommandRefuel:
		var added float64
		added, err = c.hub.commander.Refuel(ctx, cmd.ChamberID, cmd.Amount)
		result.Data = map[string]float64{"added": added}
	case CommandPower:
		if cmd.On == nil {
			err = errors.New("missing on")
			break
		}
		err = c.hub.commander.SetPower(ctx, cmd.ChamberID, *cmd.On)
	default:
		c.hub.logger.Warn("Unknown ClientCommand type: " + cmd.Type)
		err = errors.New("unknown command")
	}

	if err != nil {
		result.Error = err.Error()
		result.Data = nil
		return result
	}
	result.OK = true
	c.hub.logger.Event("CLIENT_COMMAND", cmd.ChamberID, cmd.Type)
	return result
}

// reply queues a result for this client only. Dropped if the buffer is full.
func (c *Client) reply(result CommandResult) {
	result.Type = "COMMAND_RESULT"
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
		c.hub.metrics.RecordWSMessage(false)
	default:
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow cross-origin requests from the dashboard dev server
	},
}

// ServeWs upgrades the request and starts the client pumps.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	client := NewClient(hub, conn)
	if !client.Register() {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
