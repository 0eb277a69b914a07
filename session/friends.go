package session

import (
	"sync"

	"github.com/golang/glog"

	"syncd/models"
	"syncd/websocket"
)

type pendingKind int

const (
	pendingAccept pendingKind = iota + 1
	pendingRemove
)

// FriendList is the viewer's friends collection. Optimistic changes are marked pending per
// other user until the server either replaces the list or rejects the change. There is
// no correlation id on the wire, so a rejection is matched by user and action kind only.
type FriendList struct {
	mu        sync.Mutex
	viewerID  int64
	friends   []models.UserResponse
	pending   map[int64]pendingKind
	listeners []func([]models.UserResponse)
}

func NewFriendList(viewerID int64) *FriendList {
	return &FriendList{
		viewerID: viewerID,
		pending:  make(map[int64]pendingKind),
	}
}

// Friends returns a copy of the current list.
func (l *FriendList) Friends() []models.UserResponse {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.UserResponse(nil), l.friends...)
}

// Pending reports whether an optimistic change for userID is still unconfirmed.
func (l *FriendList) Pending(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[userID] != 0
}

func (l *FriendList) OnChange(fn func([]models.UserResponse)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// mutate runs fn under the lock and notifies listeners when fn reports a change.
func (l *FriendList) mutate(fn func() bool) {
	l.mu.Lock()
	changed := fn()
	var snapshot []models.UserResponse
	var listeners []func([]models.UserResponse)
	if changed {
		snapshot = append([]models.UserResponse(nil), l.friends...)
		listeners = append(listeners, l.listeners...)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Replace installs the authoritative list and clears every pending marker.
func (l *FriendList) Replace(friends []models.UserResponse) {
	l.mutate(func() bool {
		l.friends = append([]models.UserResponse(nil), friends...)
		l.pending = make(map[int64]pendingKind)
		return true
	})
}

func (l *FriendList) indexLocked(userID int64) int {
	for i, f := range l.friends {
		if f.ID == userID {
			return i
		}
	}
	return -1
}

// AddOptimistic appends a provisional entry for user. An entry already on the list is
// left as it is, marker included, so a later rejection cannot remove it.
func (l *FriendList) AddOptimistic(user models.UserResponse) {
	l.mutate(func() bool {
		if l.indexLocked(user.ID) >= 0 {
			return false
		}
		l.friends = append(l.friends, user)
		l.pending[user.ID] = pendingAccept
		return true
	})
}

// RemoveOptimistic drops userID from the list. Nothing is marked when userID was not
// listed.
func (l *FriendList) RemoveOptimistic(userID int64) {
	l.mutate(func() bool {
		i := l.indexLocked(userID)
		if i < 0 {
			return false
		}
		l.friends = append(l.friends[:i:i], l.friends[i+1:]...)
		l.pending[userID] = pendingRemove
		return true
	})
}

// HandleUpdate applies a friendship-update push that involves the viewer.
func (l *FriendList) HandleUpdate(e *websocket.FriendshipUpdate) {
	var other int64
	switch l.viewerID {
	case e.User1:
		other = e.User2
	case e.User2:
		other = e.User1
	default:
		return
	}

	switch {
	case e.Action == models.FriendActionAccept:
		l.AddOptimistic(e.UserInfo(other))
	case models.IsRemoval(e.Action):
		l.RemoveOptimistic(other)
	}
}

// HandleError rolls back the optimistic change the rejection refers to. An accept is
// undone by removing exactly that entry. A removal cannot be undone locally because the
// entry's display fields are gone, so HandleError returns true and the caller refetches.
func (l *FriendList) HandleError(e *websocket.FriendError) (refetch bool) {
	l.mutate(func() bool {
		kind := l.pending[e.ReceiverID]
		switch {
		case kind == pendingAccept && e.Action == models.FriendActionAccept:
			delete(l.pending, e.ReceiverID)
			i := l.indexLocked(e.ReceiverID)
			if i < 0 {
				return false
			}
			l.friends = append(l.friends[:i:i], l.friends[i+1:]...)
			return true
		case kind == pendingRemove && models.IsRemoval(e.Action):
			delete(l.pending, e.ReceiverID)
			refetch = true
		default:
			glog.V(1).Infof("[friends]no pending %s for %d", e.Action, e.ReceiverID)
		}
		return false
	})
	return refetch
}
