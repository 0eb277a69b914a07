package models

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestBusinessVisibleTo(t *testing.T) {
	b := Business{ID: 1, Name: "Bakery", OwnerID: 7, Email: "e@x", Bio: "bio", Category: "food"}

	assert.Equal(t, b.VisibleTo(7), b)

	public := b.VisibleTo(8)
	assert.Equal(t, public.Name, "Bakery")
	assert.Equal(t, public.Email, "")
	assert.Equal(t, public.Bio, "")
	assert.Equal(t, public.Category, "")
	// the original is untouched
	assert.Equal(t, b.Email, "e@x")
}

func TestFriendshipPair(t *testing.T) {
	f := &Friendship{User1: 1, User2: 2, Status: FriendshipPending1}

	assert.Equal(t, f.Involves(1, 2), true)
	assert.Equal(t, f.Involves(2, 1), true)
	assert.Equal(t, f.Involves(1, 3), false)
	assert.Equal(t, f.Other(1), int64(2))
	assert.Equal(t, f.Other(2), int64(1))
	assert.Equal(t, f.Status.Pending(), true)
	assert.Equal(t, FriendshipAccepted.Pending(), false)
}

func TestIsRemoval(t *testing.T) {
	for action, want := range map[string]bool{
		FriendActionCreate:  false,
		FriendActionAccept:  false,
		FriendActionDecline: true,
		FriendActionCancel:  true,
		FriendActionRemove:  true,
	} {
		assert.Equal(t, IsRemoval(action), want)
	}
}

func TestMessageBetween(t *testing.T) {
	m := &Message{SenderID: 1, ReceiverID: 2}
	assert.Equal(t, m.Between(2, 1), true)
	assert.Equal(t, m.Between(1, 3), false)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, (&UserResponse{Username: "u", FirstName: "Ann", LastName: "Lee"}).DisplayName(), "Ann Lee")
	assert.Equal(t, (&UserResponse{Username: "u", FirstName: "Ann"}).DisplayName(), "Ann")
	assert.Equal(t, (&UserResponse{Username: "u"}).DisplayName(), "u")
}

func TestOwnerResponseCarriesEmail(t *testing.T) {
	u := &User{ID: 1, Username: "u", Email: "u@x", Password: "hash"}
	assert.Equal(t, u.ToResponse().Email, "")
	assert.Equal(t, u.ToOwnerResponse().Email, "u@x")
}
