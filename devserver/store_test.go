package devserver

import (
	"errors"
	"flag"
	"testing"

	"github.com/go-playground/assert/v2"

	"syncd/models"
)

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "ERROR")
}

func seededStore(t *testing.T) (*Store, int64, int64, int64) {
	t.Helper()
	s := NewStore()
	if err := s.Seed("secret"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	alice, _ := s.UserByUsername("alice")
	bob, _ := s.UserByUsername("bob")
	carol, _ := s.UserByUsername("carol")
	return s, alice.ID, bob.ID, carol.ID
}

func TestAuthenticate(t *testing.T) {
	s, alice, _, _ := seededStore(t)

	u, err := s.Authenticate("Alice", "secret")
	assert.Equal(t, err, nil)
	assert.Equal(t, u.ID, alice)

	_, err = s.Authenticate("alice", "wrong")
	assert.Equal(t, errors.Is(err, ErrForbidden), true)

	_, err = s.Authenticate("nobody", "secret")
	assert.Equal(t, errors.Is(err, ErrNotFound), true)
}

func TestFriendshipLifecycle(t *testing.T) {
	s, alice, bob, _ := seededStore(t)

	row, err := s.RequestFriendship(alice, bob)
	assert.Equal(t, err, nil)
	assert.Equal(t, row.Status, models.FriendshipPending2)

	_, err = s.RequestFriendship(bob, alice)
	assert.Equal(t, errors.Is(err, ErrExists), true)

	// the requester cannot accept their own request
	_, err = s.AcceptFriendship(alice, bob)
	assert.Equal(t, errors.Is(err, ErrInvalidState), true)

	row, err = s.AcceptFriendship(bob, alice)
	assert.Equal(t, err, nil)
	assert.Equal(t, row.Status, models.FriendshipAccepted)
	assert.Equal(t, len(s.Friends(alice)), 1)
	assert.Equal(t, s.Friends(bob)[0].ID, alice)

	_, err = s.EndFriendship(alice, bob, models.FriendActionCancel)
	assert.Equal(t, errors.Is(err, ErrInvalidState), true)

	_, err = s.EndFriendship(bob, alice, models.FriendActionRemove)
	assert.Equal(t, err, nil)
	assert.Equal(t, s.FriendshipBetween(alice, bob) == nil, true)
	assert.Equal(t, len(s.Friends(alice)), 0)
}

func TestEndPendingFriendship(t *testing.T) {
	s, alice, bob, carol := seededStore(t)
	s.RequestFriendship(alice, bob)
	s.RequestFriendship(alice, carol)

	_, err := s.EndFriendship(alice, bob, models.FriendActionDecline)
	assert.Equal(t, errors.Is(err, ErrInvalidState), true)
	_, err = s.EndFriendship(bob, alice, models.FriendActionDecline)
	assert.Equal(t, err, nil)

	_, err = s.EndFriendship(carol, alice, models.FriendActionCancel)
	assert.Equal(t, errors.Is(err, ErrInvalidState), true)
	_, err = s.EndFriendship(alice, carol, models.FriendActionCancel)
	assert.Equal(t, err, nil)

	_, err = s.EndFriendship(alice, carol, models.FriendActionRemove)
	assert.Equal(t, errors.Is(err, ErrNotFound), true)
}

func TestSetFollow(t *testing.T) {
	s, alice, bob, _ := seededStore(t)
	bakery := s.Businesses(nil)[0]

	n, err := s.SetFollow(bob, bakery.ID, true)
	assert.Equal(t, err, nil)
	assert.Equal(t, n, 1)

	n, err = s.SetFollow(bob, bakery.ID, true)
	assert.Equal(t, errors.Is(err, ErrExists), true)
	assert.Equal(t, n, 1)

	n, _ = s.SetFollow(alice, bakery.ID, true)
	assert.Equal(t, n, 2)
	assert.Equal(t, len(s.Following(bob)), 1)

	n, err = s.SetFollow(bob, bakery.ID, false)
	assert.Equal(t, err, nil)
	assert.Equal(t, n, 1)
	assert.Equal(t, s.IsFollowing(bob, bakery.ID), false)

	_, err = s.SetFollow(bob, 999, true)
	assert.Equal(t, errors.Is(err, ErrNotFound), true)
}

func TestDeleteUserCascades(t *testing.T) {
	s, alice, bob, _ := seededStore(t)
	s.RequestFriendship(bob, alice)
	s.AcceptFriendship(alice, bob)
	bakery := s.Businesses(nil)[0]
	s.SetFollow(bob, bakery.ID, true)

	assert.Equal(t, s.DeleteUser(alice), nil)
	assert.Equal(t, len(s.Friends(bob)), 0)
	assert.Equal(t, len(s.Businesses(nil)), 0)
	assert.Equal(t, len(s.Following(bob)), 0)
}

func TestUpdateUserRejectsTakenUsername(t *testing.T) {
	s, alice, _, _ := seededStore(t)
	taken := "bob"

	_, err := s.UpdateUser(alice, &models.ProfileUpdate{Username: &taken})
	assert.Equal(t, errors.Is(err, ErrUsernameTaken), true)
}
