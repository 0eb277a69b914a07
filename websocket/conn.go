package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024

	sendBufferSize    = 256
	inboundBufferSize = 256
)

var (
	ErrClosed         = errors.New("live connection closed")
	ErrSendBufferFull = errors.New("live connection send buffer full")
)

// AckError is the error a collaborator returned in an acknowledgement.
type AckError struct {
	Event   string
	Message string
}

func (e *AckError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Event, e.Message)
}

type Handler func(data json.RawMessage)

// Channel is the view of the live connection handed to everything except its owner:
// listeners and intents, but no way to close it.
type Channel interface {
	On(event string, handler Handler) (off func())
	Emit(event string, payload any) error
	EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error)
	Join(key string, event string, payload any) error
	Leave(key string, event string, payload any) error
	Forget(key string)
}

type Settings struct {
	HandshakeTimeout time.Duration
	ReconnectTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	MaxMessageSize   int64
}

func DefaultSettings() *Settings {
	return &Settings{
		HandshakeTimeout: 5 * time.Second,
		ReconnectTimeout: 2 * time.Second,
		WriteWait:        writeWait,
		PongWait:         pongWait,
		PingPeriod:       pingPeriod,
		MaxMessageSize:   maxMessageSize,
	}
}

type room struct {
	key   string
	event string
	data  json.RawMessage
}

type listener struct {
	id      uint64
	handler Handler
}

// Conn is a client connection to the live server. It reconnects on its own until
// closed; after every (re)connect the recorded rooms are re-joined and a synthetic
// "connect" event is dispatched. Handlers run one at a time, in arrival order.
type Conn struct {
	ctx    context.Context
	cancel context.CancelFunc

	url      string
	dialer   *websocket.Dialer
	header   http.Header
	settings *Settings

	send    chan []byte
	inbound chan *Message

	mu        sync.Mutex
	ws        *websocket.Conn
	listeners map[string][]listener
	nextID    uint64
	rooms     []room
	acks      map[string]chan *Message

	done chan struct{}
}

func Dial(ctx context.Context, url string, jar http.CookieJar) (*Conn, error) {
	return DialWithSettings(ctx, url, jar, DefaultSettings())
}

func DialWithSettings(ctx context.Context, url string, jar http.CookieJar, settings *Settings) (*Conn, error) {
	cancelCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		ctx:    cancelCtx,
		cancel: cancel,
		url:    url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: settings.HandshakeTimeout,
			Jar:              jar,
		},
		settings:  settings,
		send:      make(chan []byte, sendBufferSize),
		inbound:   make(chan *Message, inboundBufferSize),
		listeners: make(map[string][]listener),
		acks:      make(map[string]chan *Message),
		done:      make(chan struct{}),
	}

	ws, err := c.dial()
	if err != nil {
		cancel()
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.run(ws)
	}()
	go func() {
		defer wg.Done()
		c.dispatch()
	}()
	go func() {
		wg.Wait()
		close(c.done)
	}()
	return c, nil
}

func (c *Conn) dial() (*websocket.Conn, error) {
	ws, resp, err := c.dialer.DialContext(c.ctx, c.url, c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", c.url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	return ws, nil
}

func (c *Conn) run(ws *websocket.Conn) {
	defer c.cancel()

	for {
		c.serve(ws)
		if c.ctx.Err() != nil {
			return
		}

		for {
			glog.V(1).Infof("[ws]reconnect %s in %s", c.url, c.settings.ReconnectTimeout)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.settings.ReconnectTimeout):
			}
			var err error
			ws, err = c.dial()
			if err == nil {
				break
			}
			glog.Infof("[ws]reconnect failed: %s", err)
		}
	}
}

// serve runs one physical connection until it breaks or the Conn is closed.
func (c *Conn) serve(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	rooms := append([]room(nil), c.rooms...)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		ws.Close()
	}()

	// no writer is running yet, so the re-joins go out ahead of anything queued
	for _, r := range rooms {
		data, err := json.Marshal(&Message{Event: r.event, Data: r.data})
		if err != nil {
			continue
		}
		ws.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			glog.Infof("[ws]rejoin %s failed: %s", r.key, err)
			return
		}
	}
	c.enqueue(&Message{Event: EventConnect})

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ws, stop)
	}()

	c.readPump(ws)
	close(stop)
	ws.Close()
	<-writerDone
}

func (c *Conn) readPump(ws *websocket.Conn) {
	ws.SetReadLimit(c.settings.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(c.settings.PongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.ctx.Err() == nil {
				glog.Infof("[ws]read error: %s", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			glog.Warningf("[ws]dropping malformed frame: %s", err)
			continue
		}

		if msg.Event == EventAck {
			c.resolveAck(&msg)
			continue
		}
		if !c.enqueue(&msg) {
			return
		}
	}
}

func (c *Conn) writePump(ws *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.settings.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.ctx.Done():
			ws.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			ws.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				glog.Infof("[ws]write error: %s", err)
				ws.Close()
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.Close()
				return
			}
		}
	}
}

func (c *Conn) enqueue(msg *Message) bool {
	select {
	case c.inbound <- msg:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Conn) dispatch() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.inbound:
			c.mu.Lock()
			handlers := append([]listener(nil), c.listeners[msg.Event]...)
			c.mu.Unlock()

			if len(handlers) == 0 {
				glog.V(2).Infof("[ws]no listener for %s", msg.Event)
			}
			for _, l := range handlers {
				c.call(msg.Event, l.handler, msg.Data)
			}
		}
	}
}

func (c *Conn) call(event string, handler Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("[ws]listener for %s panicked: %v", event, r)
		}
	}()
	handler(data)
}

func (c *Conn) resolveAck(msg *Message) {
	c.mu.Lock()
	ch, ok := c.acks[msg.Ack]
	delete(c.acks, msg.Ack)
	c.mu.Unlock()
	if ok {
		ch <- msg
	}
}

// On registers handler for event and returns the function that removes it.
func (c *Conn) On(event string, handler Handler) (off func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[event] = append(c.listeners[event], listener{id: id, handler: handler})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			list := c.listeners[event]
			for i, l := range list {
				if l.id == id {
					c.listeners[event] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(c.listeners[event]) == 0 {
				delete(c.listeners, event)
			}
		})
	}
}

func (c *Conn) Emit(event string, payload any) error {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Conn) write(msg *Message) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// EmitWithAck sends an intent and waits for the collaborator's acknowledgement.
func (c *Conn) EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return nil, err
	}
	msg.Ack = ulid.Make().String()

	ch := make(chan *Message, 1)
	c.mu.Lock()
	c.acks[msg.Ack] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.acks, msg.Ack)
		c.mu.Unlock()
	}()

	if err := c.write(msg); err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return nil, &AckError{Event: event, Message: reply.Error}
		}
		return reply.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrClosed
	}
}

// Join emits a room intent and remembers it under key so it is re-emitted after every
// reconnect. Joining an existing key replaces it.
func (c *Conn) Join(key string, event string, payload any) error {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.removeRoomLocked(key)
	c.rooms = append(c.rooms, room{key: key, event: event, data: msg.Data})
	c.mu.Unlock()
	return c.write(msg)
}

// Leave forgets key and emits the leave intent.
func (c *Conn) Leave(key string, event string, payload any) error {
	c.Forget(key)
	return c.Emit(event, payload)
}

// Forget drops key from the re-join set without telling the server.
func (c *Conn) Forget(key string) {
	c.mu.Lock()
	c.removeRoomLocked(key)
	c.mu.Unlock()
}

func (c *Conn) removeRoomLocked(key string) {
	for i, r := range c.rooms {
		if r.key == key {
			c.rooms = append(c.rooms[:i:i], c.rooms[i+1:]...)
			return
		}
	}
}

// Rooms returns the keys currently in the re-join set.
func (c *Conn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.rooms))
	for _, r := range c.rooms {
		keys = append(keys, r.key)
	}
	return keys
}

// Close tears the connection down and waits until every goroutine has exited.
func (c *Conn) Close() {
	c.cancel()
	c.mu.Lock()
	if c.ws != nil {
		// unblock the reader
		c.ws.SetReadDeadline(time.Now())
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}
