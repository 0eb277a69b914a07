package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"syncd/models"
	"syncd/websocket"
)

const refetchTimeout = 10 * time.Second

// API is the part of the REST client the store needs.
type API interface {
	Login(ctx context.Context, username, password string) (*models.UserResponse, error)
	Me(ctx context.Context) (*models.UserResponse, error)
	Logout(ctx context.Context) error
	MyFriends(ctx context.Context) ([]models.UserResponse, error)
	MyBusinesses(ctx context.Context) ([]models.Business, error)
	UpdateMyProfile(ctx context.Context, update *models.ProfileUpdate) (*models.UserResponse, error)
	DeleteMyProfile(ctx context.Context) error
	UpdateBusiness(ctx context.Context, businessID int64, update *models.BusinessUpdate) (*models.Business, error)
	DeleteBusiness(ctx context.Context, businessID int64) error
}

// LiveConn is the live connection as its owner sees it.
type LiveConn interface {
	websocket.Channel
	Close()
}

type Dialer func(ctx context.Context) (LiveConn, error)

// Store holds the signed-in session: who the viewer is, their friends and businesses, and
// the one live connection. Only the store opens or closes that connection; everyone else
// gets it as a websocket.Channel.
type Store struct {
	api     API
	dial    Dialer
	notices *Notices

	// serializes sign-in and sign-out so there is never more than one connection
	lifecycle sync.Mutex

	mu         sync.Mutex
	user       *models.UserResponse
	friends    *FriendList
	businesses []models.Business
	conn       LiveConn
	offs       []func()
}

func NewStore(api API, dial Dialer) *Store {
	return &Store{
		api:     api,
		dial:    dial,
		notices: NewNotices(DefaultNoticeTTL),
	}
}

func (s *Store) Notices() *Notices {
	return s.notices
}

// User returns the viewer, or nil when signed out.
func (s *Store) User() *models.UserResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) SignedIn() bool {
	return s.User() != nil
}

func (s *Store) Friends() []models.UserResponse {
	s.mu.Lock()
	friends := s.friends
	s.mu.Unlock()
	if friends == nil {
		return nil
	}
	return friends.Friends()
}

// FriendList exposes the owned collection for listeners and pending checks.
func (s *Store) FriendList() *FriendList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.friends
}

func (s *Store) Businesses() []models.Business {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Business(nil), s.businesses...)
}

// Live returns the shared live connection, or nil when signed out.
func (s *Store) Live() websocket.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn
}

// Bootstrap asks the server who the viewer is. A failed lookup leaves the store signed
// out and is not returned, because signed out is a valid answer. A failed dial is
// returned with the viewer still signed in and Live() nil; reads keep working.
func (s *Store) Bootstrap(ctx context.Context) error {
	user, err := s.api.Me(ctx)
	if err != nil {
		glog.Infof("[session]not signed in: %s", err)
		s.clear()
		return nil
	}
	return s.establish(ctx, user)
}

// SignIn authenticates and opens the live connection. When the connection cannot be
// opened the store is left signed out, the same as a rejected login.
func (s *Store) SignIn(ctx context.Context, username, password string) error {
	user, err := s.api.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if err := s.establish(ctx, user); err != nil {
		s.clear()
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// SignOut tells the server, then clears everything and closes the live connection
// regardless of whether the server call worked.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.api.Logout(ctx)
	if err != nil {
		glog.Warningf("[session]logout: %s", err)
	}
	s.clear()
	return err
}

// Close closes the live connection and forgets the local session while leaving the
// server session valid.
func (s *Store) Close() {
	s.clear()
}

func (s *Store) clear() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	conn := s.conn
	offs := s.offs
	s.user = nil
	s.friends = nil
	s.businesses = nil
	s.conn = nil
	s.offs = nil
	s.mu.Unlock()

	for _, off := range offs {
		off()
	}
	if conn != nil {
		conn.Close()
	}
}

// establish replaces whatever session was there with one for user: the old connection
// is fully closed before the new one is dialed.
func (s *Store) establish(ctx context.Context, user *models.UserResponse) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	old := s.conn
	oldOffs := s.offs
	s.conn = nil
	s.offs = nil
	s.user = user
	friends := NewFriendList(user.ID)
	s.friends = friends
	s.businesses = nil
	s.mu.Unlock()

	for _, off := range oldOffs {
		off()
	}
	if old != nil {
		old.Close()
	}

	conn, err := s.dial(ctx)
	if err != nil {
		glog.Warningf("[session]live connection: %s", err)
	} else {
		offs := s.listen(conn, friends)
		s.mu.Lock()
		s.conn = conn
		s.offs = offs
		s.mu.Unlock()
	}

	s.RefreshFriends(ctx)
	s.RefreshBusinesses(ctx)

	if err != nil {
		return fmt.Errorf("live connection: %w", err)
	}
	return nil
}

func (s *Store) listen(conn LiveConn, friends *FriendList) []func() {
	connects := 0
	return []func(){
		conn.On(websocket.EventFriendsList, func(data json.RawMessage) {
			var e websocket.FriendsList
			if err := json.Unmarshal(data, &e); err != nil {
				glog.Warningf("[session]malformed friendsList: %s", err)
				return
			}
			friends.Replace(e.Friends)
		}),
		conn.On(websocket.EventFriendshipUpdate, func(data json.RawMessage) {
			var e websocket.FriendshipUpdate
			if err := json.Unmarshal(data, &e); err != nil {
				glog.Warningf("[session]malformed friendship-update: %s", err)
				return
			}
			friends.HandleUpdate(&e)
		}),
		conn.On(websocket.EventFriendError, func(data json.RawMessage) {
			var e websocket.FriendError
			if err := json.Unmarshal(data, &e); err != nil {
				glog.Warningf("[session]malformed friend-error: %s", err)
				return
			}
			if friends.HandleError(&e) {
				go s.refetchFriends(friends)
			}
		}),
		conn.On(websocket.EventConnect, func(json.RawMessage) {
			// pushes sent while disconnected are gone
			connects++
			if connects > 1 {
				go s.refetchFriends(friends)
			}
		}),
	}
}

func (s *Store) refetchFriends(friends *FriendList) {
	ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
	defer cancel()
	list, err := s.api.MyFriends(ctx)
	if err != nil {
		glog.Warningf("[session]refetch friends: %s", err)
		return
	}
	s.mu.Lock()
	current := s.friends == friends
	s.mu.Unlock()
	if current {
		friends.Replace(list)
	}
}

// RefreshFriends reloads the friends list. A failed read leaves an empty list.
func (s *Store) RefreshFriends(ctx context.Context) {
	s.mu.Lock()
	friends := s.friends
	s.mu.Unlock()
	if friends == nil {
		return
	}
	list, err := s.api.MyFriends(ctx)
	if err != nil {
		glog.Warningf("[session]load friends: %s", err)
		list = nil
	}
	s.mu.Lock()
	current := s.friends == friends
	s.mu.Unlock()
	if current {
		friends.Replace(list)
	}
}

func (s *Store) RefreshBusinesses(ctx context.Context) {
	s.mu.Lock()
	signedIn := s.user != nil
	s.mu.Unlock()
	if !signedIn {
		return
	}
	list, err := s.api.MyBusinesses(ctx)
	if err != nil {
		glog.Warningf("[session]load businesses: %s", err)
		list = nil
	}
	s.mu.Lock()
	if s.user != nil {
		s.businesses = list
	}
	s.mu.Unlock()
}

var ErrSignedOut = errors.New("signed out")

func (s *Store) liveAndFriends() (websocket.Channel, *FriendList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, nil, ErrSignedOut
	}
	if s.conn == nil {
		return nil, nil, websocket.ErrClosed
	}
	return s.conn, s.friends, nil
}

// Unfriend removes userID from the list right away and asks the server to remove the row.
func (s *Store) Unfriend(userID int64) error {
	return s.removeFriend(userID, models.FriendActionRemove)
}

// DeclineFriend rejects the request userID sent to the viewer.
func (s *Store) DeclineFriend(userID int64) error {
	return s.removeFriend(userID, models.FriendActionDecline)
}

// CancelFriendRequest withdraws the viewer's request to userID.
func (s *Store) CancelFriendRequest(userID int64) error {
	return s.removeFriend(userID, models.FriendActionCancel)
}

// AcceptFriend accepts user's pending request and lists them right away.
func (s *Store) AcceptFriend(user models.UserResponse, friendshipID int64) error {
	live, friends, err := s.liveAndFriends()
	if err != nil {
		return err
	}
	intent := &websocket.FriendRequestIntent{ReceiverID: user.ID, FriendshipID: friendshipID, Action: models.FriendActionAccept}
	if err := live.Emit(websocket.EventFriendRequest, intent); err != nil {
		return fmt.Errorf("accept %d: %w", user.ID, err)
	}
	friends.AddOptimistic(user)
	return nil
}

func (s *Store) removeFriend(userID int64, action string) error {
	live, friends, err := s.liveAndFriends()
	if err != nil {
		return err
	}
	intent := &websocket.FriendRequestIntent{ReceiverID: userID, Action: action}
	if err := live.Emit(websocket.EventFriendRequest, intent); err != nil {
		return fmt.Errorf("%s %d: %w", action, userID, err)
	}
	friends.RemoveOptimistic(userID)
	return nil
}

// InviteToEvent invites userID to eventID and waits for the server's answer.
func (s *Store) InviteToEvent(ctx context.Context, eventID, userID int64) error {
	live, _, err := s.liveAndFriends()
	if err != nil {
		return err
	}
	_, err = live.EmitWithAck(ctx, websocket.EventEventInvite, &websocket.EventInvite{EventID: eventID, UserID: userID})
	return err
}

// UpdateProfile saves the viewer's profile. Local state changes only on success.
func (s *Store) UpdateProfile(ctx context.Context, update *models.ProfileUpdate) error {
	user, err := s.api.UpdateMyProfile(ctx, update)
	if err != nil {
		s.notices.Post(NoticeError, "Could not update profile")
		return err
	}
	s.mu.Lock()
	if s.user != nil {
		s.user = user
	}
	s.mu.Unlock()
	s.notices.Post(NoticeSuccess, "Profile updated")
	return nil
}

// DeleteProfile deletes the viewer's account and signs out.
func (s *Store) DeleteProfile(ctx context.Context) error {
	if err := s.api.DeleteMyProfile(ctx); err != nil {
		s.notices.Post(NoticeError, "Could not delete profile")
		return err
	}
	s.clear()
	s.notices.Post(NoticeSuccess, "Profile deleted")
	return nil
}

func (s *Store) UpdateBusiness(ctx context.Context, businessID int64, update *models.BusinessUpdate) error {
	business, err := s.api.UpdateBusiness(ctx, businessID, update)
	if err != nil {
		s.notices.Post(NoticeError, "Could not update business")
		return err
	}
	s.mu.Lock()
	for i, b := range s.businesses {
		if b.ID == businessID {
			s.businesses[i] = *business
		}
	}
	s.mu.Unlock()
	s.notices.Post(NoticeSuccess, "Business updated")
	return nil
}

func (s *Store) DeleteBusiness(ctx context.Context, businessID int64) error {
	if err := s.api.DeleteBusiness(ctx, businessID); err != nil {
		s.notices.Post(NoticeError, "Could not delete business")
		return err
	}
	s.mu.Lock()
	for i, b := range s.businesses {
		if b.ID == businessID {
			s.businesses = append(s.businesses[:i:i], s.businesses[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notices.Post(NoticeSuccess, "Business deleted")
	return nil
}
