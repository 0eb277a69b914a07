package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"syncd/models"
	"syncd/websocket"
)

const reloadTimeout = 10 * time.Second

type ProfileLoader interface {
	UserProfile(ctx context.Context, userID int64) (*models.Profile, error)
}

type RelationshipState struct {
	Status       Status
	FriendshipID int64
	// FriendsCount is the subject's friend count. It moves independently of Status.
	FriendsCount int
	Profile      *models.UserResponse
}

// Relationship tracks the friendship between the viewer and one subject (the profile on
// screen). Local actions transition optimistically and emit a friend-request intent;
// pushes from the live connection move the state to whatever the server last said.
type Relationship struct {
	viewerID int64
	live     websocket.Channel
	loader   ProfileLoader

	mu         sync.Mutex
	subjectID  int64
	state      RelationshipState
	generation uint64
	attached   bool
	listeners  []func(RelationshipState)
}

func NewRelationship(viewerID, subjectID int64, live websocket.Channel, loader ProfileLoader) *Relationship {
	return &Relationship{
		viewerID:  viewerID,
		subjectID: subjectID,
		live:      live,
		loader:    loader,
	}
}

func (r *Relationship) State() RelationshipState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Relationship) SubjectID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subjectID
}

// OnChange registers fn to be called with the new state after every change.
func (r *Relationship) OnChange(fn func(RelationshipState)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// update applies fn under the lock and notifies listeners if the state changed.
func (r *Relationship) update(fn func(s *RelationshipState)) {
	r.mu.Lock()
	before := r.state
	fn(&r.state)
	after := r.state
	listeners := append(([]func(RelationshipState))(nil), r.listeners...)
	r.mu.Unlock()

	if before != after {
		for _, l := range listeners {
			l(after)
		}
	}
}

// Load fetches the subject's profile and the row between viewer and subject. A response
// that arrives after the subject changed is dropped.
func (r *Relationship) Load(ctx context.Context) error {
	r.mu.Lock()
	generation := r.generation
	subjectID := r.subjectID
	r.mu.Unlock()

	profile, err := r.loader.UserProfile(ctx, subjectID)
	if err != nil {
		glog.Warningf("[friend]load profile %d: %s", subjectID, err)
		return err
	}

	r.mu.Lock()
	current := r.generation == generation
	r.mu.Unlock()
	if !current {
		glog.V(1).Infof("[friend]dropping stale profile %d", subjectID)
		return nil
	}

	r.update(func(s *RelationshipState) {
		s.Status = DeriveStatus(profile.Friendship, r.viewerID)
		s.FriendshipID = 0
		if profile.Friendship != nil {
			s.FriendshipID = profile.Friendship.ID
		}
		s.FriendsCount = profile.FriendsCount
		user := profile.User
		s.Profile = &user
	})
	return nil
}

// SetSubject switches to another profile. State resets to none until Load completes, and
// any in-flight load for the previous subject is ignored.
func (r *Relationship) SetSubject(ctx context.Context, subjectID int64) error {
	r.mu.Lock()
	previous := r.subjectID
	r.subjectID = subjectID
	r.generation++
	attached := r.attached
	r.mu.Unlock()

	if attached && previous != subjectID {
		r.live.Leave(profileRoomKey(previous), websocket.EventLeaveProfileRoom, &websocket.ProfileRoom{ProfileID: previous})
		r.live.Join(profileRoomKey(subjectID), websocket.EventJoinProfileRoom, &websocket.ProfileRoom{ProfileID: subjectID})
	}
	r.update(func(s *RelationshipState) {
		*s = RelationshipState{}
	})
	return r.Load(ctx)
}

func profileRoomKey(profileID int64) string {
	return fmt.Sprintf("profile:%d", profileID)
}

// transitions maps each action to the status it requires and the status it leads to.
var transitions = map[string]struct{ from, to Status }{
	models.FriendActionCreate:  {StatusNone, StatusPendingProfileUser},
	models.FriendActionAccept:  {StatusPendingViewer, StatusAccepted},
	models.FriendActionDecline: {StatusPendingViewer, StatusNone},
	models.FriendActionCancel:  {StatusPendingProfileUser, StatusNone},
	models.FriendActionRemove:  {StatusAccepted, StatusNone},
}

func (r *Relationship) Add() error {
	return r.transition(models.FriendActionCreate)
}

func (r *Relationship) Accept() error {
	return r.transition(models.FriendActionAccept)
}

func (r *Relationship) Decline() error {
	return r.transition(models.FriendActionDecline)
}

func (r *Relationship) Cancel() error {
	return r.transition(models.FriendActionCancel)
}

func (r *Relationship) Unfriend() error {
	return r.transition(models.FriendActionRemove)
}

// Allows reports whether action is valid from the current status.
func (r *Relationship) Allows(action string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allowsLocked(action)
}

func (r *Relationship) allowsLocked(action string) bool {
	t, ok := transitions[action]
	return ok && r.subjectID != r.viewerID && r.state.Status == t.from
}

// transition emits the intent and moves to the action's target status. When the guard
// does not hold the call is a logged no-op and returns nil. Only a failure to emit is
// returned.
func (r *Relationship) transition(action string) error {
	r.mu.Lock()
	if !r.allowsLocked(action) {
		status := r.state.Status
		subjectID := r.subjectID
		r.mu.Unlock()
		if subjectID == r.viewerID {
			glog.Warningf("[friend]%s ignored: subject is the viewer", action)
		} else {
			glog.Warningf("[friend]%s ignored: status with %d is %s", action, subjectID, status)
		}
		return nil
	}
	to := transitions[action].to

	intent := &websocket.FriendRequestIntent{
		ReceiverID:   r.subjectID,
		FriendshipID: r.state.FriendshipID,
		Action:       action,
	}
	if err := r.live.Emit(websocket.EventFriendRequest, intent); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("friend %s: %w", action, err)
	}
	r.mu.Unlock()

	r.update(func(s *RelationshipState) {
		s.Status = to
		if to == StatusNone || action == models.FriendActionCreate {
			s.FriendshipID = 0
		}
	})
	return nil
}

func (r *Relationship) concerns(event any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ConcernsPair(event, r.viewerID, r.subjectID)
}

// HandleFriendshipUpdate re-derives the status from a changed row.
func (r *Relationship) HandleFriendshipUpdate(e *websocket.FriendshipUpdate) {
	if !r.concerns(e) {
		return
	}
	r.update(func(s *RelationshipState) {
		switch {
		case e.Action == models.FriendActionCreate:
			s.Status = DeriveStatus(e.Row(), r.viewerID)
			s.FriendshipID = e.ID
		case e.Action == models.FriendActionAccept:
			s.Status = StatusAccepted
			s.FriendshipID = e.ID
		case models.IsRemoval(e.Action):
			s.Status = StatusNone
			s.FriendshipID = 0
		}
	})
}

func (r *Relationship) HandleRequestReceived(e *websocket.FriendRequestNotice) {
	if !r.concerns(e) {
		return
	}
	r.update(func(s *RelationshipState) {
		s.Status = StatusPendingViewer
		s.FriendshipID = e.FriendshipID
	})
}

func (r *Relationship) HandleRequestAccepted(e *websocket.FriendRequestNotice) {
	if !r.concerns(e) {
		return
	}
	r.update(func(s *RelationshipState) {
		s.Status = StatusAccepted
		s.FriendshipID = e.FriendshipID
	})
}

func (r *Relationship) HandleFriendshipDeleted(e *websocket.FriendRequestNotice) {
	if !r.concerns(e) {
		return
	}
	r.update(func(s *RelationshipState) {
		s.Status = StatusNone
		s.FriendshipID = 0
	})
}

// HandleRequestSuccess applies the server's ack of the viewer's own intent.
func (r *Relationship) HandleRequestSuccess(e *websocket.FriendRequestSuccess) {
	if !r.concerns(e) {
		return
	}
	r.update(func(s *RelationshipState) {
		switch {
		case e.Action == models.FriendActionCreate:
			s.Status = StatusPendingProfileUser
			s.FriendshipID = e.FriendshipID
		case e.Action == models.FriendActionAccept:
			s.Status = StatusAccepted
			s.FriendshipID = e.FriendshipID
		case models.IsRemoval(e.Action):
			s.Status = StatusNone
			s.FriendshipID = 0
		}
	})
}

// HandleCountDelta moves the subject's friend count by delta, never below zero.
func (r *Relationship) HandleCountDelta(e *websocket.FriendCountDelta, delta int) {
	if !r.concerns(e) {
		return
	}
	r.update(func(s *RelationshipState) {
		s.FriendsCount += delta
		if s.FriendsCount < 0 {
			s.FriendsCount = 0
		}
	})
}

// HandleFriendError reloads authoritative state; the optimistic transition cannot be
// undone precisely without knowing what the server holds.
func (r *Relationship) HandleFriendError(ctx context.Context, e *websocket.FriendError) error {
	if !r.concerns(e) {
		return nil
	}
	glog.Infof("[friend]%s with %d rejected: %s", e.Action, e.ReceiverID, e.Message)
	return r.Load(ctx)
}

// Attach joins the subject's profile room and registers the push handlers. The returned
// function undoes both.
func (r *Relationship) Attach() (detach func()) {
	r.mu.Lock()
	r.attached = true
	subjectID := r.subjectID
	r.mu.Unlock()
	r.live.Join(profileRoomKey(subjectID), websocket.EventJoinProfileRoom, &websocket.ProfileRoom{ProfileID: subjectID})

	offs := []func(){
		r.live.On(websocket.EventFriendshipUpdate, decode(r.HandleFriendshipUpdate)),
		r.live.On(websocket.EventFriendRequestReceived, decode(r.HandleRequestReceived)),
		r.live.On(websocket.EventFriendRequestAccepted, decode(r.HandleRequestAccepted)),
		r.live.On(websocket.EventFriendshipDeleted, decode(r.HandleFriendshipDeleted)),
		r.live.On(websocket.EventFriendRequestSuccess, decode(r.HandleRequestSuccess)),
		r.live.On(websocket.EventFriendGained, decode(func(e *websocket.FriendCountDelta) {
			r.HandleCountDelta(e, 1)
		})),
		r.live.On(websocket.EventFriendLost, decode(func(e *websocket.FriendCountDelta) {
			r.HandleCountDelta(e, -1)
		})),
		r.live.On(websocket.EventFriendError, decode(func(e *websocket.FriendError) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
				defer cancel()
				if err := r.HandleFriendError(ctx, e); err != nil {
					glog.Warningf("[friend]reload after rejected %s: %s", e.Action, err)
				}
			}()
		})),
	}

	return func() {
		for _, off := range offs {
			off()
		}
		r.mu.Lock()
		r.attached = false
		subjectID := r.subjectID
		r.mu.Unlock()
		r.live.Leave(profileRoomKey(subjectID), websocket.EventLeaveProfileRoom, &websocket.ProfileRoom{ProfileID: subjectID})
	}
}

// decode adapts a typed push handler to a raw websocket handler.
func decode[T any](handle func(*T)) websocket.Handler {
	return func(data json.RawMessage) {
		var e T
		if err := json.Unmarshal(data, &e); err != nil {
			glog.Warningf("[ws]malformed %T push: %s", e, err)
			return
		}
		handle(&e)
	}
}
