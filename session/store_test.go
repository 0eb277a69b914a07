package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"syncd/models"
	"syncd/websocket"
)

func signedInStore(t *testing.T) (*Store, *fakeAPI, *dialer) {
	t.Helper()
	api := &fakeAPI{
		me:         &models.UserResponse{ID: viewer, Username: "viewer"},
		friends:    users(1, 2),
		businesses: []models.Business{{ID: 5, Name: "Bakery", OwnerID: viewer}},
	}
	d := &dialer{}
	s := NewStore(api, d.dial)
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s, api, d
}

func TestBootstrapFailsClosed(t *testing.T) {
	api := &fakeAPI{meErr: errors.New("connection refused")}
	d := &dialer{}
	s := NewStore(api, d.dial)

	assert.Equal(t, s.Bootstrap(context.Background()), nil)
	assert.Equal(t, s.SignedIn(), false)
	assert.Equal(t, s.Live() == nil, true)
	assert.Equal(t, len(d.conns), 0)
}

func TestBootstrapSignedIn(t *testing.T) {
	s, _, d := signedInStore(t)

	assert.Equal(t, s.User().ID, int64(viewer))
	assert.Equal(t, ids(s.Friends()), []int64{1, 2})
	assert.Equal(t, len(s.Businesses()), 1)
	assert.Equal(t, len(d.conns), 1)
	assert.Equal(t, s.Live() != nil, true)
}

func TestBootstrapDegradesFailedReads(t *testing.T) {
	api := &fakeAPI{
		me:         &models.UserResponse{ID: viewer},
		friendsErr: errors.New("500"),
	}
	d := &dialer{}
	s := NewStore(api, d.dial)

	assert.Equal(t, s.Bootstrap(context.Background()), nil)
	assert.Equal(t, s.SignedIn(), true)
	assert.Equal(t, len(s.Friends()), 0)
}

func TestSignInClosesPreviousConnectionFirst(t *testing.T) {
	s, _, d := signedInStore(t)

	assert.Equal(t, s.SignIn(context.Background(), "viewer", "secret"), nil)
	assert.Equal(t, d.log, []string{"dial live1", "close live1", "dial live2"})
	assert.Equal(t, d.conns[0].isClosed(), true)
	assert.Equal(t, d.conns[1].isClosed(), false)
}

func TestSignInRejected(t *testing.T) {
	api := &fakeAPI{}
	d := &dialer{}
	s := NewStore(api, d.dial)

	assert.NotEqual(t, s.SignIn(context.Background(), "viewer", "wrong"), nil)
	assert.Equal(t, s.SignedIn(), false)
	assert.Equal(t, len(d.conns), 0)
}

func TestSignInDialFailureSignsOut(t *testing.T) {
	api := &fakeAPI{me: &models.UserResponse{ID: viewer}, friends: users(1)}
	d := &dialer{err: errors.New("connection refused")}
	s := NewStore(api, d.dial)

	assert.NotEqual(t, s.SignIn(context.Background(), "viewer", "secret"), nil)
	assert.Equal(t, s.SignedIn(), false)
	assert.Equal(t, s.Live() == nil, true)
	assert.Equal(t, len(s.Friends()), 0)
}

func TestBootstrapDialFailureKeepsReads(t *testing.T) {
	api := &fakeAPI{me: &models.UserResponse{ID: viewer}, friends: users(1)}
	d := &dialer{err: errors.New("connection refused")}
	s := NewStore(api, d.dial)

	assert.NotEqual(t, s.Bootstrap(context.Background()), nil)
	assert.Equal(t, s.SignedIn(), true)
	assert.Equal(t, s.Live() == nil, true)
	assert.Equal(t, ids(s.Friends()), []int64{1})
}

func TestSignOutClearsEvenWhenServerFails(t *testing.T) {
	s, api, d := signedInStore(t)
	api.logoutErr = errors.New("offline")

	assert.NotEqual(t, s.SignOut(context.Background()), nil)
	assert.Equal(t, s.SignedIn(), false)
	assert.Equal(t, len(s.Friends()), 0)
	assert.Equal(t, len(s.Businesses()), 0)
	assert.Equal(t, s.Live() == nil, true)
	assert.Equal(t, d.last().isClosed(), true)
}

func TestStoreAppliesFriendPushes(t *testing.T) {
	s, _, d := signedInStore(t)
	live := d.last()

	live.push(websocket.EventFriendshipUpdate, &websocket.FriendshipUpdate{User1: viewer, User2: 3, Action: models.FriendActionAccept})
	assert.Equal(t, ids(s.Friends()), []int64{1, 2, 3})

	live.push(websocket.EventFriendsList, &websocket.FriendsList{Friends: users(1, 2)})
	assert.Equal(t, ids(s.Friends()), []int64{1, 2})
}

func TestStoreUnfriendIsOptimistic(t *testing.T) {
	s, _, d := signedInStore(t)

	assert.Equal(t, s.Unfriend(2), nil)
	assert.Equal(t, ids(s.Friends()), []int64{1})

	intents := d.last().intents(websocket.EventFriendRequest)
	assert.Equal(t, len(intents), 1)
	var intent websocket.FriendRequestIntent
	json.Unmarshal(intents[0].Data, &intent)
	assert.Equal(t, intent, websocket.FriendRequestIntent{ReceiverID: 2, Action: models.FriendActionRemove})
}

func TestStoreRemovalErrorRefetches(t *testing.T) {
	s, api, d := signedInStore(t)
	calls := api.friendsCallCount()

	s.Unfriend(2)
	d.last().push(websocket.EventFriendError, &websocket.FriendError{ReceiverID: 2, Action: models.FriendActionRemove})

	deadline := time.Now().Add(2 * time.Second)
	for api.friendsCallCount() == calls || len(s.Friends()) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected refetch, friends %v", ids(s.Friends()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, ids(s.Friends()), []int64{1, 2})
}

func TestStoreAcceptRollback(t *testing.T) {
	s, _, d := signedInStore(t)

	assert.Equal(t, s.AcceptFriend(models.UserResponse{ID: 3}, 7), nil)
	assert.Equal(t, ids(s.Friends()), []int64{1, 2, 3})

	d.last().push(websocket.EventFriendError, &websocket.FriendError{ReceiverID: 3, FriendshipID: 7, Action: models.FriendActionAccept})
	assert.Equal(t, ids(s.Friends()), []int64{1, 2})
}

func TestStoreDeclineAndCancelAreOptimistic(t *testing.T) {
	s, _, d := signedInStore(t)
	live := d.last()

	assert.Equal(t, s.DeclineFriend(1), nil)
	assert.Equal(t, s.CancelFriendRequest(2), nil)
	assert.Equal(t, len(s.Friends()), 0)

	intents := live.intents(websocket.EventFriendRequest)
	assert.Equal(t, len(intents), 2)
	var first, second websocket.FriendRequestIntent
	json.Unmarshal(intents[0].Data, &first)
	json.Unmarshal(intents[1].Data, &second)
	assert.Equal(t, first, websocket.FriendRequestIntent{ReceiverID: 1, Action: models.FriendActionDecline})
	assert.Equal(t, second, websocket.FriendRequestIntent{ReceiverID: 2, Action: models.FriendActionCancel})

	assert.Equal(t, s.FriendList().Pending(1), true)
	assert.Equal(t, s.FriendList().Pending(2), true)
}

func TestStoreAcceptOfListedFriendSurvivesRejection(t *testing.T) {
	s, _, d := signedInStore(t)

	assert.Equal(t, s.AcceptFriend(models.UserResponse{ID: 2}, 7), nil)
	d.last().push(websocket.EventFriendError, &websocket.FriendError{ReceiverID: 2, FriendshipID: 7, Action: models.FriendActionAccept})
	assert.Equal(t, ids(s.Friends()), []int64{1, 2})
}

func TestStoreActionsRequireSession(t *testing.T) {
	s := NewStore(&fakeAPI{meErr: errors.New("401")}, (&dialer{}).dial)
	s.Bootstrap(context.Background())

	assert.Equal(t, errors.Is(s.Unfriend(2), ErrSignedOut), true)
	assert.Equal(t, errors.Is(s.InviteToEvent(context.Background(), 1, 2), ErrSignedOut), true)
}

func TestStoreInviteToEvent(t *testing.T) {
	s, _, d := signedInStore(t)

	assert.Equal(t, s.InviteToEvent(context.Background(), 44, 2), nil)
	assert.Equal(t, len(d.last().intents(websocket.EventEventInvite)), 1)

	d.last().ackErr = &websocket.AckError{Event: websocket.EventEventInvite, Message: "not allowed"}
	assert.NotEqual(t, s.InviteToEvent(context.Background(), 44, 2), nil)
}

func TestUpdateProfileFailureLeavesState(t *testing.T) {
	s, api, _ := signedInStore(t)
	api.updateErr = errors.New("500")
	bio := "new bio"

	assert.NotEqual(t, s.UpdateProfile(context.Background(), &models.ProfileUpdate{Bio: &bio}), nil)
	assert.Equal(t, s.User().Bio, "")

	notices := s.Notices().Active()
	assert.Equal(t, len(notices), 1)
	assert.Equal(t, notices[0].Kind, NoticeError)
}

func TestUpdateProfileSuccess(t *testing.T) {
	s, _, _ := signedInStore(t)
	bio := "new bio"

	assert.Equal(t, s.UpdateProfile(context.Background(), &models.ProfileUpdate{Bio: &bio}), nil)
	assert.Equal(t, s.User().Bio, "new bio")
	assert.Equal(t, s.Notices().Active()[0].Kind, NoticeSuccess)
}

func TestDeleteProfileSignsOut(t *testing.T) {
	s, _, d := signedInStore(t)

	assert.Equal(t, s.DeleteProfile(context.Background()), nil)
	assert.Equal(t, s.SignedIn(), false)
	assert.Equal(t, d.last().isClosed(), true)
}

func TestBusinessWrites(t *testing.T) {
	s, _, _ := signedInStore(t)
	name := "Better Bakery"

	assert.Equal(t, s.UpdateBusiness(context.Background(), 5, &models.BusinessUpdate{Name: &name}), nil)
	assert.Equal(t, s.Businesses()[0].Name, "Better Bakery")

	assert.Equal(t, s.DeleteBusiness(context.Background(), 5), nil)
	assert.Equal(t, len(s.Businesses()), 0)
}

func TestCloseKeepsServerSession(t *testing.T) {
	s, api, d := signedInStore(t)

	s.Close()
	assert.Equal(t, s.SignedIn(), false)
	assert.Equal(t, d.last().isClosed(), true)
	assert.Equal(t, api.logoutCalls, 0)
}
