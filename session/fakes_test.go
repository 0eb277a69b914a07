package session

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"sync"

	"syncd/models"
	"syncd/websocket"
)

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "ERROR")
}

type fakeAPI struct {
	mu sync.Mutex

	me         *models.UserResponse
	meErr      error
	logoutErr  error
	friends    []models.UserResponse
	friendsErr error
	businesses []models.Business
	updateErr  error
	messages   []models.Message

	friendsCalls int
	logoutCalls  int
}

func (a *fakeAPI) Login(ctx context.Context, username, password string) (*models.UserResponse, error) {
	if password != "secret" {
		return nil, errors.New("invalid credentials")
	}
	return &models.UserResponse{ID: 10, Username: username}, nil
}

func (a *fakeAPI) Me(ctx context.Context) (*models.UserResponse, error) {
	return a.me, a.meErr
}

func (a *fakeAPI) Logout(ctx context.Context) error {
	a.logoutCalls++
	return a.logoutErr
}

func (a *fakeAPI) MyFriends(ctx context.Context) ([]models.UserResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.friendsCalls++
	return append([]models.UserResponse(nil), a.friends...), a.friendsErr
}

func (a *fakeAPI) MyBusinesses(ctx context.Context) ([]models.Business, error) {
	return a.businesses, nil
}

func (a *fakeAPI) UpdateMyProfile(ctx context.Context, update *models.ProfileUpdate) (*models.UserResponse, error) {
	if a.updateErr != nil {
		return nil, a.updateErr
	}
	u := *a.me
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	return &u, nil
}

func (a *fakeAPI) DeleteMyProfile(ctx context.Context) error {
	return a.updateErr
}

func (a *fakeAPI) UpdateBusiness(ctx context.Context, businessID int64, update *models.BusinessUpdate) (*models.Business, error) {
	if a.updateErr != nil {
		return nil, a.updateErr
	}
	for _, b := range a.businesses {
		if b.ID == businessID {
			if update.Name != nil {
				b.Name = *update.Name
			}
			return &b, nil
		}
	}
	return nil, errors.New("not found")
}

func (a *fakeAPI) DeleteBusiness(ctx context.Context, businessID int64) error {
	return a.updateErr
}

func (a *fakeAPI) MyMessages(ctx context.Context) ([]models.Message, error) {
	return a.messages, nil
}

func (a *fakeAPI) friendsCallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.friendsCalls
}

// fakeLive is an in-memory LiveConn. log records lifecycle and intents in order.
type fakeLive struct {
	name string
	log  *[]string

	mu       sync.Mutex
	handlers map[string][]websocket.Handler
	emits    []websocket.Message
	rooms    map[string]bool
	closed   bool
	ackErr   error
}

func newFakeLive(name string, log *[]string) *fakeLive {
	return &fakeLive{
		name:     name,
		log:      log,
		handlers: make(map[string][]websocket.Handler),
		rooms:    make(map[string]bool),
	}
}

func (c *fakeLive) On(event string, handler websocket.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
	i := len(c.handlers[event]) - 1
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handlers[event][i] = nil
	}
}

func (c *fakeLive) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrClosed
	}
	msg, err := websocket.NewMessage(event, payload)
	if err != nil {
		return err
	}
	c.emits = append(c.emits, *msg)
	return nil
}

func (c *fakeLive) EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	if err := c.Emit(event, payload); err != nil {
		return nil, err
	}
	if c.ackErr != nil {
		return nil, c.ackErr
	}
	return json.RawMessage(`{}`), nil
}

func (c *fakeLive) Join(key string, event string, payload any) error {
	c.mu.Lock()
	c.rooms[key] = true
	c.mu.Unlock()
	return c.Emit(event, payload)
}

func (c *fakeLive) Leave(key string, event string, payload any) error {
	c.Forget(key)
	return c.Emit(event, payload)
}

func (c *fakeLive) Forget(key string) {
	c.mu.Lock()
	delete(c.rooms, key)
	c.mu.Unlock()
}

func (c *fakeLive) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	if c.log != nil {
		*c.log = append(*c.log, "close "+c.name)
	}
}

func (c *fakeLive) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeLive) push(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	handlers := append([]websocket.Handler(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(data)
		}
	}
}

func (c *fakeLive) intents(event string) []websocket.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []websocket.Message
	for _, m := range c.emits {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

// dialer hands out fresh fakeLive connections named live1, live2, ...
type dialer struct {
	log   []string
	conns []*fakeLive
	err   error
}

func (d *dialer) dial(ctx context.Context) (LiveConn, error) {
	if d.err != nil {
		return nil, d.err
	}
	name := "live" + string(rune('1'+len(d.conns)))
	d.log = append(d.log, "dial "+name)
	c := newFakeLive(name, &d.log)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *dialer) last() *fakeLive {
	return d.conns[len(d.conns)-1]
}

func users(ids ...int64) []models.UserResponse {
	out := make([]models.UserResponse, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.UserResponse{ID: id, Username: "user"})
	}
	return out
}

func ids(list []models.UserResponse) []int64 {
	out := make([]int64, 0, len(list))
	for _, u := range list {
		out = append(out, u.ID)
	}
	return out
}
