package devserver

import (
	"encoding/json"
	"sync"

	"github.com/golang/glog"

	"syncd/websocket"
)

// Hub tracks connected clients by user and by room.
type Hub struct {
	clients    map[string]*Client
	userConns  map[int64]map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		userConns:  make(map[int64]map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.userConns[client.UserID] == nil {
				h.userConns[client.UserID] = make(map[*Client]bool)
			}
			h.userConns[client.UserID][client] = true
			h.mu.Unlock()
			close(client.registered)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				if h.userConns[client.UserID] != nil {
					delete(h.userConns[client.UserID], client)
					if len(h.userConns[client.UserID]) == 0 {
						delete(h.userConns, client.UserID)
					}
				}
				for name, members := range h.rooms {
					delete(members, client)
					if len(members) == 0 {
						delete(h.rooms, name)
					}
				}
				close(client.Send)
			}
			h.mu.Unlock()

		case <-h.stop:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
			}
			h.userConns = make(map[int64]map[*Client]bool)
			h.rooms = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Register adds client and waits until it can receive; it reports false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	client.registered = make(chan struct{})
	select {
	case h.register <- client:
		<-client.registered
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
}

func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members := h.rooms[room]; members != nil {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// InRoomByUser reports whether any connection of userID is in room.
func (h *Hub) InRoomByUser(userID int64, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		if client.UserID == userID {
			return true
		}
	}
	return false
}

func encode(event string, payload any) []byte {
	msg, err := websocket.NewMessage(event, payload)
	if err != nil {
		glog.Errorf("[hub]encode %s: %s", event, err)
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		glog.Errorf("[hub]encode %s: %s", event, err)
		return nil
	}
	return data
}

func (h *Hub) SendToUser(userID int64, event string, payload any) {
	h.SendToUsers([]int64{userID}, event, payload)
}

func (h *Hub) SendToUsers(userIDs []int64, event string, payload any) {
	data := encode(event, payload)
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range userIDs {
		for client := range h.userConns[userID] {
			client.deliver(data)
		}
	}
}

func (h *Hub) SendToRoom(room string, event string, payload any) {
	data := encode(event, payload)
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		client.deliver(data)
	}
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID]) > 0
}
