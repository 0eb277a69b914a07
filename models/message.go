package models

import "time"

type Message struct {
	ID         string    `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Between reports whether the message belongs to the conversation of a and b.
func (m *Message) Between(a, b int64) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Kind      string    `json:"kind"` // friend-request, friend-accepted, follow, message, event-invite
	ActorID   int64     `json:"actorId"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
