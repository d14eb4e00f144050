package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cutroom/floor-service/internal/models"
	"github.com/cutroom/floor-service/internal/websockets"
)

// MaxBroadcastAge is how old a status change may be and still trigger a refresh
const MaxBroadcastAge = 5 * time.Second

// ErrChannelClosed is returned when publishing on a stopped channel
var ErrChannelClosed = errors.New("broadcast channel closed")

// Channel carries status-change hints between terminals
type Channel interface {
	Publish(ctx context.Context, change models.StatusChange) error
	Subscribe() (<-chan models.StatusChange, func())
}

// LocalBus is an in-process Channel
type LocalBus struct {
	mu     sync.Mutex
	subs   map[int]chan models.StatusChange
	nextID int
	closed bool
}

// NewLocalBus creates an empty bus
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]chan models.StatusChange)}
}

// Publish delivers change to every subscriber; slow subscribers miss it
func (b *LocalBus) Publish(ctx context.Context, change models.StatusChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrChannelClosed
	}
	for _, ch := range b.subs {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

// Subscribe returns a receive channel and a function that cancels it
func (b *LocalBus) Subscribe() (<-chan models.StatusChange, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.StatusChange, 16)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Close closes every subscription
func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Relevant reports whether a received change should trigger a refresh
func Relevant(change models.StatusChange, sourceID string, now time.Time) bool {
	if change.SourceID != "" && change.SourceID == sourceID {
		return false
	}
	if !change.At.IsZero() && now.Sub(change.At) > MaxBroadcastAge {
		return false
	}
	return true
}

// Watch calls refresh for every relevant change until ctx is done or the
// subscription closes.
func Watch(ctx context.Context, ch Channel, sourceID string, now func() time.Time, refresh func(models.StatusChange)) {
	changes, cancel := ch.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if Relevant(change, sourceID, now()) {
				refresh(change)
			}
		}
	}
}

// LinkStatus describes the websocket link to the server
type LinkStatus struct {
	Connected    bool
	Reconnecting bool
	LastError    string
}

// WSChannel is a Channel backed by the server websocket hub. It keeps the
// link up with exponential backoff and fans received changes out locally.
type WSChannel struct {
	endpoint       string
	device         string
	token          func() string
	reconnectDelay time.Duration
	maxReconnect   time.Duration
	pingInterval   time.Duration
	dialer         *websocket.Dialer
	log            *EventLog

	bus *LocalBus

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	reconnecting bool
	lastError    error

	send      chan []byte
	done      chan struct{}
	finished  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWSChannel creates a channel for the hub at cfg.WSURL
func NewWSChannel(cfg *Config, device string, token func() string, events *EventLog) *WSChannel {
	defaults := Default()
	reconnect, maxReconnect, ping := cfg.WSReconnectDelay, cfg.WSMaxReconnect, cfg.WSPingInterval
	if reconnect <= 0 {
		reconnect = defaults.WSReconnectDelay
	}
	if maxReconnect < reconnect {
		maxReconnect = defaults.WSMaxReconnect
	}
	if ping <= 0 {
		ping = defaults.WSPingInterval
	}

	return &WSChannel{
		endpoint:       cfg.WSURL,
		device:         device,
		token:          token,
		reconnectDelay: reconnect,
		maxReconnect:   maxReconnect,
		pingInterval:   ping,
		dialer:         websocket.DefaultDialer,
		log:            events,
		bus:            NewLocalBus(),
		send:           make(chan []byte, 16),
		done:           make(chan struct{}),
		finished:       make(chan struct{}),
	}
}

// Start begins the connection and reconnection loop
func (c *WSChannel) Start() {
	c.startOnce.Do(func() {
		go c.connectionLoop()
	})
}

// Stop closes the link and waits for the loop to exit
func (c *WSChannel) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()

		started := true
		c.startOnce.Do(func() {
			started = false
		})
		if started {
			<-c.finished
		}
		c.bus.Close()
	})
}

// Status returns the current link status
func (c *WSChannel) Status() LinkStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := LinkStatus{Connected: c.connected, Reconnecting: c.reconnecting}
	if c.lastError != nil {
		status.LastError = c.lastError.Error()
	}
	return status
}

// Publish queues change for the hub. Changes published while the link is
// down are dropped; polling still catches up.
func (c *WSChannel) Publish(ctx context.Context, change models.StatusChange) error {
	data, err := encodeMessage(websockets.TypeStatusChange, change, c.device)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return errors.New("broadcast link is down")
	}

	select {
	case c.send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("broadcast queue full")
	}
}

// Subscribe receives the changes relayed by the hub
func (c *WSChannel) Subscribe() (<-chan models.StatusChange, func()) {
	return c.bus.Subscribe()
}

func (c *WSChannel) connectionLoop() {
	defer close(c.finished)

	delay := c.reconnectDelay
	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.connect(); err != nil {
			c.mu.Lock()
			c.connected = false
			c.reconnecting = true
			c.lastError = err
			c.mu.Unlock()

			log.Printf("WebSocket connection failed: %v. Reconnecting in %v...", err, delay)

			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > c.maxReconnect {
				delay = c.maxReconnect
			}
			continue
		}

		delay = c.reconnectDelay
		c.runConnection()
	}
}

func (c *WSChannel) connect() error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid websocket url: %w", err)
	}
	if c.device != "" {
		q := u.Query()
		q.Set("device", c.device)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	if c.token != nil {
		token := c.token()
		if token == "" {
			return errors.New("not logged in")
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := c.dialer.Dial(u.String(), header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		conn.Close()
		return ErrChannelClosed
	default:
	}
	c.conn = conn
	c.connected = true
	c.reconnecting = false
	c.lastError = nil
	c.mu.Unlock()

	if c.log != nil {
		c.log.Infof("broadcast link connected")
	}
	return nil
}

// runConnection serves an established connection until either loop ends
func (c *WSChannel) runConnection() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	lost := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(lost)
		c.readLoop(conn)
	}()

	go func() {
		defer wg.Done()
		c.writeLoop(conn, lost)
		// unblock the reader
		conn.Close()
	}()

	wg.Wait()

	c.mu.Lock()
	c.connected = false
	c.conn = nil
	c.mu.Unlock()
	conn.Close()
}

func (c *WSChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *WSChannel) writeLoop(conn *websocket.Conn, lost <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	ping, _ := encodeMessage(websockets.TypePing, nil, c.device)

	for {
		var data []byte
		select {
		case <-c.done:
			return
		case <-lost:
			return
		case data = <-c.send:
		case <-ticker.C:
			data = ping
		}

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
}

func (c *WSChannel) handleMessage(data []byte) {
	var msg websockets.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse message: %v", err)
		return
	}

	switch msg.Type {
	case websockets.TypeStatusChange, websockets.TypeClaimed:
		var change models.StatusChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			log.Printf("Failed to parse status change: %v", err)
			return
		}
		if msg.Type == websockets.TypeClaimed && c.log != nil {
			c.log.Infof("%s (#%d) was taken over by %s", change.Mattress, change.ItemID, change.Device)
		}
		c.bus.Publish(context.Background(), change)
	case websockets.TypePong:
	case websockets.TypeError:
		if c.log != nil {
			c.log.Warnf("broadcast link error: %s", string(msg.Data))
		}
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

func encodeMessage(msgType websockets.MessageType, data interface{}, device string) ([]byte, error) {
	msg := websockets.Message{Type: msgType, Device: device}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}
