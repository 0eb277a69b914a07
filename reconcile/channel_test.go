package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"sync"

	"syncd/websocket"
)

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "ERROR")
}

type emitted struct {
	event string
	data  json.RawMessage
}

// fakeChannel records intents and lets tests push events to the registered handlers.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string]map[int]websocket.Handler
	nextID   int
	emits    []emitted
	rooms    map[string]bool
	emitErr  error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers: make(map[string]map[int]websocket.Handler),
		rooms:    make(map[string]bool),
	}
}

func (c *fakeChannel) On(event string, handler websocket.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]websocket.Handler)
	}
	c.handlers[event][id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

func (c *fakeChannel) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emitErr != nil {
		return c.emitErr
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.emits = append(c.emits, emitted{event: event, data: data})
	return nil
}

func (c *fakeChannel) EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	if err := c.Emit(event, payload); err != nil {
		return nil, err
	}
	return nil, errors.New("no ack in fake")
}

func (c *fakeChannel) Join(key string, event string, payload any) error {
	c.mu.Lock()
	c.rooms[key] = true
	c.mu.Unlock()
	return c.Emit(event, payload)
}

func (c *fakeChannel) Leave(key string, event string, payload any) error {
	c.Forget(key)
	return c.Emit(event, payload)
}

func (c *fakeChannel) Forget(key string) {
	c.mu.Lock()
	delete(c.rooms, key)
	c.mu.Unlock()
}

func (c *fakeChannel) push(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	var handlers []websocket.Handler
	for _, h := range c.handlers[event] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

func (c *fakeChannel) listenerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers[event])
}

// intents returns the emitted events named event.
func (c *fakeChannel) intents(event string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, e := range c.emits {
		if e.event == event {
			out = append(out, e.data)
		}
	}
	return out
}

func (c *fakeChannel) emitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.emits)
}

func (c *fakeChannel) hasRoom(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[key]
}

var _ websocket.Channel = (*fakeChannel)(nil)
