package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"syncd/models"
	"syncd/websocket"
)

type BusinessLoader interface {
	Business(ctx context.Context, businessID int64) (*models.BusinessProfile, error)
}

type FollowState struct {
	BusinessID     int64
	IsFollowing    bool
	FollowersCount int
	Business       *models.Business
}

// Follow tracks whether the viewer follows one business and that business's follower
// count. The two fields move independently: toggles are optimistic and never rolled
// back; only a later follow-status or followers/amount push corrects them.
type Follow struct {
	viewerID int64
	live     websocket.Channel
	loader   BusinessLoader

	mu         sync.Mutex
	state      FollowState
	generation uint64
	offs       []func()
	listeners  []func(FollowState)
}

func NewFollow(viewerID int64, live websocket.Channel, loader BusinessLoader) *Follow {
	return &Follow{
		viewerID: viewerID,
		live:     live,
		loader:   loader,
	}
}

func (f *Follow) State() FollowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Follow) OnChange(fn func(FollowState)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func (f *Follow) update(fn func(s *FollowState)) {
	f.mu.Lock()
	before := f.state
	fn(&f.state)
	after := f.state
	listeners := append(([]func(FollowState))(nil), f.listeners...)
	f.mu.Unlock()

	if before != after {
		for _, l := range listeners {
			l(after)
		}
	}
}

// SetBusiness unsubscribes from the current business, subscribes to businessID and loads
// its profile. Responses and pushes for the previous business are ignored from here on.
func (f *Follow) SetBusiness(ctx context.Context, businessID int64) error {
	f.mu.Lock()
	previous := f.state.BusinessID
	offs := f.offs
	f.offs = nil
	f.generation++
	generation := f.generation
	f.state = FollowState{BusinessID: businessID}
	f.mu.Unlock()

	for _, off := range offs {
		off()
	}
	if previous != 0 {
		f.live.Forget(businessRoomKey(previous))
	}
	if businessID == 0 {
		return nil
	}

	subscription := []func(){
		f.live.On(websocket.EventFollowersAmount, decode(f.HandleFollowersAmount)),
		f.live.On(websocket.EventFollowStatus, decode(f.HandleFollowStatus)),
	}
	f.mu.Lock()
	if f.generation == generation {
		f.offs = subscription
		subscription = nil
	}
	f.mu.Unlock()
	// lost a race with another SetBusiness
	for _, off := range subscription {
		off()
	}
	if err := f.live.Join(businessRoomKey(businessID), websocket.EventJoinBusinessRoom, &websocket.BusinessRoom{BusinessID: businessID}); err != nil {
		glog.Warningf("[follow]join business %d: %s", businessID, err)
	}

	return f.load(ctx, generation, businessID)
}

func (f *Follow) load(ctx context.Context, generation uint64, businessID int64) error {
	profile, err := f.loader.Business(ctx, businessID)
	if err != nil {
		glog.Warningf("[follow]load business %d: %s", businessID, err)
		return err
	}

	f.mu.Lock()
	current := f.generation == generation
	f.mu.Unlock()
	if !current {
		glog.V(1).Infof("[follow]dropping stale business %d", businessID)
		return nil
	}

	f.update(func(s *FollowState) {
		business := profile.Business.VisibleTo(f.viewerID)
		s.Business = &business
		s.IsFollowing = profile.IsFollowing
		s.FollowersCount = profile.FollowersCount
	})
	return nil
}

// Close drops the subscription for the current business.
func (f *Follow) Close() {
	f.SetBusiness(context.Background(), 0)
}

func businessRoomKey(businessID int64) string {
	return fmt.Sprintf("business:%d", businessID)
}

// Follow emits the follow intent, then marks following and bumps the count. The server
// rejects duplicates; the client does not check.
func (f *Follow) Follow() error {
	return f.toggle(websocket.FollowActionFollow, true, 1)
}

func (f *Follow) Unfollow() error {
	return f.toggle(websocket.FollowActionUnfollow, false, -1)
}

func (f *Follow) toggle(action string, following bool, delta int) error {
	f.mu.Lock()
	businessID := f.state.BusinessID
	f.mu.Unlock()
	if businessID == 0 {
		glog.Warningf("[follow]%s ignored: no business", action)
		return nil
	}

	intent := &websocket.BusinessFollowIntent{
		BusinessID: businessID,
		UserID:     f.viewerID,
		Action:     action,
	}
	if err := f.live.Emit(websocket.EventBusinessFollow, intent); err != nil {
		return fmt.Errorf("%s business %d: %w", action, businessID, err)
	}

	f.update(func(s *FollowState) {
		if s.BusinessID != businessID {
			return
		}
		s.IsFollowing = following
		s.FollowersCount += delta
		if s.FollowersCount < 0 {
			s.FollowersCount = 0
		}
	})
	return nil
}

// HandleFollowersAmount overwrites the count with the server's figure.
func (f *Follow) HandleFollowersAmount(e *websocket.FollowersAmount) {
	f.update(func(s *FollowState) {
		if s.BusinessID == 0 || e.BusinessID != s.BusinessID {
			return
		}
		s.FollowersCount = e.Amount
	})
}

// HandleFollowStatus overwrites the viewer's follow flag with the server's.
func (f *Follow) HandleFollowStatus(e *websocket.FollowStatus) {
	f.update(func(s *FollowState) {
		if s.BusinessID == 0 || e.BusinessID != s.BusinessID || e.UserID != f.viewerID {
			return
		}
		s.IsFollowing = e.IsFollowing
	})
}
