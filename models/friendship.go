package models

import "time"

// FriendshipStatus is the server's two-sided encoding: pending1 means user1 owes a
// response, pending2 means user2 does.
type FriendshipStatus string

const (
	FriendshipPending1 FriendshipStatus = "pending1"
	FriendshipPending2 FriendshipStatus = "pending2"
	FriendshipAccepted FriendshipStatus = "accepted"
)

func (s FriendshipStatus) Pending() bool {
	return s == FriendshipPending1 || s == FriendshipPending2
}

type Friendship struct {
	ID        int64            `json:"id"`
	User1     int64            `json:"user1"`
	User2     int64            `json:"user2"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Involves reports whether the row belongs to the unordered pair {a, b}.
func (f *Friendship) Involves(a, b int64) bool {
	return (f.User1 == a && f.User2 == b) || (f.User1 == b && f.User2 == a)
}

// Other returns the participant that is not userID.
func (f *Friendship) Other(userID int64) int64 {
	if f.User1 == userID {
		return f.User2
	}
	return f.User1
}

// Friend action kinds carried by the friend-request intent and its echoes.
const (
	FriendActionCreate  = "create"
	FriendActionAccept  = "accept"
	FriendActionDecline = "decline"
	FriendActionCancel  = "cancel"
	FriendActionRemove  = "remove"
)

// IsRemoval reports whether the action deletes the friendship row.
func IsRemoval(action string) bool {
	return action == FriendActionDecline || action == FriendActionCancel || action == FriendActionRemove
}
