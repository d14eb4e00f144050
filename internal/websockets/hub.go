package websockets

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/cutroom/floor-service/internal/models"
)

// ServerSourceID marks status changes announced by the server itself
const ServerSourceID = "server"

type deviceMessage struct {
	device  string
	message []byte
}

// Hub fans messages out to connected device terminals. All client
// bookkeeping happens on the Run goroutine.
type Hub struct {
	clients map[*Client]bool

	register chan *Client

	unregister chan *Client

	broadcast chan []byte

	direct chan deviceMessage

	deviceChannels map[string]map[*Client]bool

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		broadcast:      make(chan []byte, 256),
		direct:         make(chan deviceMessage, 64),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		clients:        make(map[*Client]bool),
		deviceChannels: make(map[string]map[*Client]bool),
		done:           make(chan struct{}),
	}
}

// BroadcastMessage sends a typed message to every connected client
func (h *Hub) BroadcastMessage(msgType MessageType, data interface{}) error {
	payload, err := encodeMessage(msgType, data, "")
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Printf("websocket broadcast queue full, dropping %s", msgType)
	}
	return nil
}

// SendToDevice sends a typed message to the clients registered for device
func (h *Hub) SendToDevice(device string, msgType MessageType, data interface{}) error {
	payload, err := encodeMessage(msgType, data, device)
	if err != nil {
		return err
	}

	select {
	case h.direct <- deviceMessage{device: device, message: payload}:
	default:
		log.Printf("websocket device queue full, dropping %s for %s", msgType, device)
	}
	return nil
}

// NotifyStatusChange announces an accepted status write to all terminals.
// When the write moved the mattress to another device, the device that lost
// it is also told directly.
func (h *Hub) NotifyStatusChange(m *models.Mattress, from models.MattressStatus, fromDevice string) {
	change := models.StatusChange{
		ItemID:     m.ID,
		Mattress:   m.Mattress,
		Status:     m.Status,
		FromStatus: from,
		Device:     m.Device,
		SourceID:   ServerSourceID,
		At:         time.Now().UTC(),
	}
	if err := h.BroadcastMessage(TypeStatusChange, change); err != nil {
		log.Printf("Error broadcasting status change for mattress %d: %v", m.ID, err)
	}

	if fromDevice == "" || strings.EqualFold(fromDevice, m.Device) {
		return
	}
	change.SourceDevice = m.Device
	if err := h.SendToDevice(strings.ToUpper(fromDevice), TypeClaimed, change); err != nil {
		log.Printf("Error notifying %s about mattress %d: %v", fromDevice, m.ID, err)
	}
}

// Run processes registrations and messages until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			if client.device != "" {
				if _, ok := h.deviceChannels[client.device]; !ok {
					h.deviceChannels[client.device] = make(map[*Client]bool)
				}
				h.deviceChannels[client.device][client] = true
			}
			log.Printf("websocket client connected (user %s, device %q, %d clients)", client.userID, client.device, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				log.Printf("websocket client disconnected (user %s, device %q, %d clients)", client.userID, client.device, len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, message)
			}

		case dm := <-h.direct:
			for client := range h.deviceChannels[dm.device] {
				h.deliver(client, dm.message)
			}
		}
	}
}

// Register adds a client unless the hub has stopped
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client unless the hub has stopped
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		// slow consumer
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if clients, ok := h.deviceChannels[client.device]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.deviceChannels, client.device)
		}
	}
}

func encodeMessage(msgType MessageType, data interface{}, device string) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Data: raw, Device: device})
}
