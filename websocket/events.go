package websocket

import (
	"encoding/json"

	"syncd/models"
)

// Message is the envelope for every frame in both directions. Ack is set on intents that
// expect an acknowledgement and echoed on the matching "ack" frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
	Error string          `json:"error,omitempty"`
}

const EventAck = "ack"

// Outbound intents.
const (
	EventFriendRequest    = "friend-request"
	EventBusinessFollow   = "business-follow"
	EventJoinProfileRoom  = "join-profile-room"
	EventLeaveProfileRoom = "leave-profile-room"
	EventJoinBusinessRoom = "join-business-room"
	EventJoinMessageRoom  = "join-message-room"
	EventLeaveMessageRoom = "leave-message-room"
	EventSendingMessage   = "sending-message"
	EventEventInvite      = "event-invite"
)

// Inbound pushes.
const (
	EventConnect               = "connect"
	EventFriendsList           = "friendsList"
	EventFriendshipUpdate      = "friendship-update"
	EventFriendError           = "friend-error"
	EventFriendGained          = "friend-gained"
	EventFriendLost            = "friend-lost"
	EventFriendRequestReceived = "friend-request-received"
	EventFriendRequestAccepted = "friend-request-accepted"
	EventFriendshipDeleted     = "friendship-deleted"
	EventFriendRequestSuccess  = "friend-request-success"
	EventFollowersAmount       = "followers/amount"
	EventFollowStatus          = "follow-status"
	EventReceiveMessage        = "receive-message"
)

type FriendRequestIntent struct {
	ReceiverID   int64  `json:"receiverId"`
	FriendshipID int64  `json:"friendshipId"`
	Action       string `json:"action"`
}

const (
	FollowActionFollow   = "follow"
	FollowActionUnfollow = "unfollow"
)

type BusinessFollowIntent struct {
	BusinessID int64  `json:"businessId"`
	UserID     int64  `json:"userId"`
	Action     string `json:"action"`
}

type ProfileRoom struct {
	ProfileID int64 `json:"profileId"`
}

type BusinessRoom struct {
	BusinessID int64 `json:"businessId"`
}

type MessageRoom struct {
	OtherUserID int64 `json:"otherUserId"`
}

type SendingMessage struct {
	ReceiverID int64  `json:"receiverId"`
	Body       string `json:"body"`
}

type EventInvite struct {
	EventID int64 `json:"eventId"`
	UserID  int64 `json:"userId"`
}

type FriendsList struct {
	Friends []models.UserResponse `json:"friends"`
}

// FriendshipUpdate is pushed to both participants whenever a row changes. Users carries
// display data for the participants when the server has it.
type FriendshipUpdate struct {
	ID     int64                   `json:"id"`
	User1  int64                   `json:"user1"`
	User2  int64                   `json:"user2"`
	Status models.FriendshipStatus `json:"status,omitempty"`
	Action string                  `json:"action"`
	Users  []models.UserResponse   `json:"users,omitempty"`
}

func (u *FriendshipUpdate) Row() *models.Friendship {
	return &models.Friendship{ID: u.ID, User1: u.User1, User2: u.User2, Status: u.Status}
}

// UserInfo returns the display data for id, or a bare entry when the push carried none.
func (u *FriendshipUpdate) UserInfo(id int64) models.UserResponse {
	for _, user := range u.Users {
		if user.ID == id {
			return user
		}
	}
	return models.UserResponse{ID: id}
}

// FriendRequestNotice is delivered to UserID about OtherUser for received, accepted and
// deleted requests.
type FriendRequestNotice struct {
	UserID       int64               `json:"userId"`
	OtherUser    models.UserResponse `json:"otherUser"`
	FriendshipID int64               `json:"friendshipId"`
}

// FriendRequestSuccess acknowledges the actor's own intent.
type FriendRequestSuccess struct {
	ReceiverID   int64  `json:"receiverId"`
	Action       string `json:"action"`
	FriendshipID int64  `json:"friendshipId"`
}

// FriendError echoes the rejected intent back to the actor.
type FriendError struct {
	ReceiverID   int64  `json:"receiverId"`
	FriendshipID int64  `json:"friendshipId"`
	Action       string `json:"action"`
	Message      string `json:"message"`
}

type FriendCountDelta struct {
	UserID int64 `json:"userId"`
}

type FollowersAmount struct {
	BusinessID int64 `json:"businessId"`
	Amount     int   `json:"amount"`
}

type FollowStatus struct {
	BusinessID  int64 `json:"businessId"`
	UserID      int64 `json:"userId"`
	IsFollowing bool  `json:"isFollowing"`
}

// NewMessage builds an envelope with payload marshalled into Data.
func NewMessage(event string, payload any) (*Message, error) {
	msg := &Message{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return msg, nil
}
