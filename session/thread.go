package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/golang/glog"

	"syncd/models"
	"syncd/websocket"
)

type MessageLoader interface {
	MyMessages(ctx context.Context) ([]models.Message, error)
}

// Thread is an open direct-message conversation between the viewer and one other user.
// Sent messages are not appended locally; the server echoes them back as receive-message.
type Thread struct {
	viewerID int64
	otherID  int64
	live     websocket.Channel

	mu       sync.Mutex
	messages []models.Message
	seen     map[string]bool
	off      func()
}

// OpenThread joins the conversation's room and loads its history. A failed history load
// leaves the thread empty; live messages still arrive.
func OpenThread(ctx context.Context, loader MessageLoader, live websocket.Channel, viewerID, otherID int64) *Thread {
	t := &Thread{
		viewerID: viewerID,
		otherID:  otherID,
		live:     live,
		seen:     make(map[string]bool),
	}
	t.off = live.On(websocket.EventReceiveMessage, func(data json.RawMessage) {
		var m models.Message
		if err := json.Unmarshal(data, &m); err != nil {
			glog.Warningf("[thread]malformed message: %s", err)
			return
		}
		t.receive(m)
	})
	if err := live.Join(t.roomKey(), websocket.EventJoinMessageRoom, &websocket.MessageRoom{OtherUserID: otherID}); err != nil {
		glog.Warningf("[thread]join: %s", err)
	}

	history, err := loader.MyMessages(ctx)
	if err != nil {
		glog.Warningf("[thread]load messages: %s", err)
		return t
	}
	for _, m := range history {
		t.receive(m)
	}
	return t
}

func (t *Thread) roomKey() string {
	return fmt.Sprintf("message:%d", t.otherID)
}

func (t *Thread) receive(m models.Message) {
	if !m.Between(t.viewerID, t.otherID) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.ID != "" {
		if t.seen[m.ID] {
			return
		}
		t.seen[m.ID] = true
	}
	t.messages = append(t.messages, m)
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
}

func (t *Thread) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Message(nil), t.messages...)
}

func (t *Thread) Send(body string) error {
	if body == "" {
		return nil
	}
	return t.live.Emit(websocket.EventSendingMessage, &websocket.SendingMessage{ReceiverID: t.otherID, Body: body})
}

func (t *Thread) Close() {
	t.off()
	t.live.Leave(t.roomKey(), websocket.EventLeaveMessageRoom, &websocket.MessageRoom{OtherUserID: t.otherID})
}
