package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"syncd/api"
	"syncd/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024

	sendBufferSize = 256
)

func profileRoom(userID int64) string {
	return fmt.Sprintf("profile:%d", userID)
}

func businessRoom(businessID int64) string {
	return fmt.Sprintf("business:%d", businessID)
}

func messageRoom(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("message:%d-%d", a, b)
}

// Client is one live connection of a signed-in user.
type Client struct {
	ID     string
	UserID int64
	server *Server
	Conn   *gorilla.Conn
	Send   chan []byte

	registered chan struct{}
}

// deliver queues data without blocking; the hub lock must be held so Send is open.
func (c *Client) deliver(data []byte) {
	select {
	case c.Send <- data:
	default:
		glog.Warningf("[client]%s send buffer full, dropping frame", c.ID)
	}
}

func (c *Client) reply(event string, payload any) {
	data := encode(event, payload)
	if data == nil {
		return
	}
	h := c.server.hub
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.ID] == c {
		c.deliver(data)
	}
}

func (c *Client) ack(id string, payload any, ackErr error) {
	msg, err := websocket.NewMessage(websocket.EventAck, payload)
	if err != nil {
		glog.Errorf("[client]ack: %s", err)
		return
	}
	msg.Ack = id
	if ackErr != nil {
		msg.Data = nil
		msg.Error = ackErr.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h := c.server.hub
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c.ID] == c {
		c.deliver(data)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.server.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseAbnormalClosure, gorilla.CloseNormalClosure) {
				glog.Infof("[client]%s read error: %s", c.ID, err)
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(gorilla.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(gorilla.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg websocket.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		glog.Warningf("[client]%s malformed frame: %s", c.ID, err)
		return
	}
	glog.V(2).Infof("[client]%s <- %s", c.ID, msg.Event)

	hub := c.server.hub
	switch msg.Event {
	case websocket.EventJoinProfileRoom, websocket.EventLeaveProfileRoom:
		var in websocket.ProfileRoom
		if decode(msg.Data, &in) {
			c.toggleRoom(msg.Event == websocket.EventJoinProfileRoom, profileRoom(in.ProfileID))
		}

	case websocket.EventJoinBusinessRoom:
		var in websocket.BusinessRoom
		if decode(msg.Data, &in) {
			hub.Join(c, businessRoom(in.BusinessID))
		}

	case websocket.EventJoinMessageRoom, websocket.EventLeaveMessageRoom:
		var in websocket.MessageRoom
		if decode(msg.Data, &in) {
			c.toggleRoom(msg.Event == websocket.EventJoinMessageRoom, messageRoom(c.UserID, in.OtherUserID))
		}

	case websocket.EventFriendRequest:
		var in websocket.FriendRequestIntent
		if decode(msg.Data, &in) {
			c.server.handleFriendRequest(c.UserID, &in)
		}

	case websocket.EventBusinessFollow:
		var in websocket.BusinessFollowIntent
		if decode(msg.Data, &in) {
			c.server.handleBusinessFollow(c, &in)
		}

	case websocket.EventSendingMessage:
		var in websocket.SendingMessage
		if decode(msg.Data, &in) {
			c.server.handleSendingMessage(c.UserID, &in)
		}

	case websocket.EventEventInvite:
		var in websocket.EventInvite
		if !decode(msg.Data, &in) {
			c.ack(msg.Ack, nil, fmt.Errorf("malformed invite"))
			return
		}
		n, err := c.server.handleEventInvite(c.UserID, &in)
		if msg.Ack != "" {
			c.ack(msg.Ack, n, err)
		}

	default:
		glog.V(1).Infof("[client]%s unknown event %s", c.ID, msg.Event)
		if msg.Ack != "" {
			c.ack(msg.Ack, nil, fmt.Errorf("unknown event %s", msg.Event))
		}
	}
}

func (c *Client) toggleRoom(join bool, room string) {
	if join {
		c.server.hub.Join(c, room)
	} else {
		c.server.hub.Leave(c, room)
	}
}

func decode(data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		glog.Warningf("[client]malformed payload: %s", err)
		return false
	}
	return true
}

// HandleWebSocket upgrades a request carrying a valid session cookie.
func (s *Server) HandleWebSocket(c *gin.Context) {
	token, err := c.Cookie(api.SessionCookie)
	if err != nil || token == "" {
		respondError(c, http.StatusUnauthorized, "missing session")
		return
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid session")
		return
	}
	if _, err := s.store.User(claims.UserID); err != nil {
		respondError(c, http.StatusUnauthorized, "invalid session")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		glog.Infof("[client]upgrade error: %s", err)
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		UserID: claims.UserID,
		server: s,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
	}

	if !s.hub.Register(client) {
		conn.Close()
		return
	}
	client.reply(websocket.EventFriendsList, &websocket.FriendsList{Friends: s.store.Friends(client.UserID)})

	go client.WritePump()
	go client.ReadPump()
}
