package websockets

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cutroom/floor-service/internal/models"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

type MessageType string

const (
	TypeStatusChange   MessageType = "mattress.status_change"
	TypeClaimed        MessageType = "mattress.claimed"
	TypeError          MessageType = "error"
	TypePing           MessageType = "ping"
	TypePong           MessageType = "pong"
)

type Message struct {
	Type   MessageType     `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	Device string          `json:"device,omitempty"`
}

// Upgrader is the WebSocket upgrader configuration
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Terminals run on the plant network without a browser origin
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// replies come from the read loop; only the hub closes send
	replies chan []byte

	userID string

	device string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, device string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		replies: make(chan []byte, 16),
		userID:  userID,
		device:  strings.ToUpper(device),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
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
				log.Printf("websocket read error (device %q): %v", c.device, err)
			}
			break
		}

		var wsMessage Message
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		switch wsMessage.Type {
		case TypeStatusChange:
			// Relay terminal announcements to every other terminal
			var change models.StatusChange
			if err := json.Unmarshal(wsMessage.Data, &change); err != nil || change.ItemID == 0 {
				c.sendError("invalid status change")
				continue
			}
			if change.SourceDevice == "" {
				change.SourceDevice = c.device
			}
			if err := c.hub.BroadcastMessage(TypeStatusChange, change); err != nil {
				log.Printf("Error relaying status change: %v", err)
			}

		case TypePing:
			pongMsg, _ := json.Marshal(Message{Type: TypePong})
			c.trySend(pongMsg)

		default:
			c.sendError("unsupported message type")
		}
	}
}

func (c *Client) sendError(text string) {
	payload, err := encodeMessage(TypeError, map[string]string{"message": text}, c.device)
	if err != nil {
		return
	}
	c.trySend(payload)
}

// trySend queues a reply without blocking the read loop
func (c *Client) trySend(payload []byte) {
	select {
	case c.replies <- payload:
	default:
	}
}

func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON message per frame so clients can decode each read directly
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case reply := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, reply); err != nil {
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

// ServeWs registers a client for conn and starts its pumps
func ServeWs(hub *Hub, conn *websocket.Conn, userID, device string) {
	client := NewClient(hub, conn, userID, device)

	if !hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
