package session

import (
	"sync"
	"time"
)

const DefaultNoticeTTL = 5 * time.Second

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message about a write: shown until dismissed or expired.
type Notice struct {
	ID      uint64
	Kind    NoticeKind
	Message string
}

type Notices struct {
	ttl time.Duration

	mu     sync.Mutex
	nextID uint64
	items  []Notice
	timers map[uint64]*time.Timer
}

func NewNotices(ttl time.Duration) *Notices {
	return &Notices{
		ttl:    ttl,
		timers: make(map[uint64]*time.Timer),
	}
}

func (n *Notices) Post(kind NoticeKind, message string) Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	notice := Notice{ID: n.nextID, Kind: kind, Message: message}
	n.items = append(n.items, notice)
	n.timers[notice.ID] = time.AfterFunc(n.ttl, func() {
		n.Dismiss(notice.ID)
	})
	return notice
}

func (n *Notices) Dismiss(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if timer, ok := n.timers[id]; ok {
		timer.Stop()
		delete(n.timers, id)
	}
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i:i], n.items[i+1:]...)
			return
		}
	}
}

func (n *Notices) Active() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.items...)
}

// Clear dismisses everything.
func (n *Notices) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, timer := range n.timers {
		timer.Stop()
		delete(n.timers, id)
	}
	n.items = nil
}
