package devserver

import (
	"errors"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"syncd/models"
	"syncd/websocket"
)

func (s *Server) userInfos(ids ...int64) []models.UserResponse {
	var out []models.UserResponse
	for _, id := range ids {
		if u, err := s.store.User(id); err == nil {
			out = append(out, *u.ToResponse())
		}
	}
	return out
}

func (s *Server) userInfo(id int64) models.UserResponse {
	if u, err := s.store.User(id); err == nil {
		return *u.ToResponse()
	}
	return models.UserResponse{ID: id}
}

func friendErrorMessage(action string, err error) string {
	switch {
	case errors.Is(err, ErrExists):
		return "a friendship already exists"
	case errors.Is(err, ErrNotFound):
		return "no such friendship"
	case errors.Is(err, ErrInvalidState):
		return "cannot " + action + " in the current state"
	}
	return err.Error()
}

// handleFriendRequest runs one friend-request intent against the friendship row of the
// actor and the receiver and notifies both sides.
func (s *Server) handleFriendRequest(actorID int64, in *websocket.FriendRequestIntent) {
	var (
		row *models.Friendship
		err error
	)
	switch in.Action {
	case models.FriendActionCreate:
		row, err = s.store.RequestFriendship(actorID, in.ReceiverID)
	case models.FriendActionAccept:
		row, err = s.store.AcceptFriendship(actorID, in.ReceiverID)
	case models.FriendActionDecline, models.FriendActionCancel, models.FriendActionRemove:
		row, err = s.store.EndFriendship(actorID, in.ReceiverID, in.Action)
	default:
		err = errors.New("unknown action " + in.Action)
	}
	if err != nil {
		glog.V(1).Infof("[friends]%d %s %d rejected: %s", actorID, in.Action, in.ReceiverID, err)
		s.hub.SendToUser(actorID, websocket.EventFriendError, &websocket.FriendError{
			ReceiverID:   in.ReceiverID,
			FriendshipID: in.FriendshipID,
			Action:       in.Action,
			Message:      friendErrorMessage(in.Action, err),
		})
		return
	}

	otherID := in.ReceiverID
	pair := []int64{actorID, otherID}
	s.hub.SendToUser(actorID, websocket.EventFriendRequestSuccess, &websocket.FriendRequestSuccess{
		ReceiverID:   otherID,
		Action:       in.Action,
		FriendshipID: row.ID,
	})

	notice := &websocket.FriendRequestNotice{
		UserID:       otherID,
		OtherUser:    s.userInfo(actorID),
		FriendshipID: row.ID,
	}
	switch in.Action {
	case models.FriendActionCreate:
		s.hub.SendToUser(otherID, websocket.EventFriendRequestReceived, notice)
		s.notify(otherID, actorID, "friend-request", notice.OtherUser.DisplayName()+" sent you a friend request")
	case models.FriendActionAccept:
		s.hub.SendToUser(otherID, websocket.EventFriendRequestAccepted, notice)
		s.notify(otherID, actorID, "friend-accepted", notice.OtherUser.DisplayName()+" accepted your friend request")
	default:
		s.hub.SendToUser(otherID, websocket.EventFriendshipDeleted, notice)
	}

	update := &websocket.FriendshipUpdate{
		ID:     row.ID,
		User1:  row.User1,
		User2:  row.User2,
		Action: in.Action,
		Users:  s.userInfos(row.User1, row.User2),
	}
	if !models.IsRemoval(in.Action) {
		update.Status = row.Status
	}
	s.hub.SendToUsers(pair, websocket.EventFriendshipUpdate, update)

	var countEvent string
	switch {
	case in.Action == models.FriendActionAccept:
		countEvent = websocket.EventFriendGained
	case row.Status == models.FriendshipAccepted:
		countEvent = websocket.EventFriendLost
	}
	if countEvent != "" {
		for _, id := range pair {
			s.hub.SendToRoom(profileRoom(id), countEvent, &websocket.FriendCountDelta{UserID: id})
			s.hub.SendToUser(id, websocket.EventFriendsList, &websocket.FriendsList{Friends: s.store.Friends(id)})
		}
	}
}

// handleBusinessFollow applies a follow toggle. A toggle that does not change anything
// gets the actor's real follow status back as a correction.
func (s *Server) handleBusinessFollow(c *Client, in *websocket.BusinessFollowIntent) {
	var following bool
	switch in.Action {
	case websocket.FollowActionFollow:
		following = true
	case websocket.FollowActionUnfollow:
	default:
		glog.V(1).Infof("[follow]unknown action %s", in.Action)
		return
	}

	business, err := s.store.Business(in.BusinessID)
	if err != nil {
		c.reply(websocket.EventFollowStatus, &websocket.FollowStatus{BusinessID: in.BusinessID, UserID: c.UserID})
		return
	}

	amount, err := s.store.SetFollow(c.UserID, business.ID, following)
	status := &websocket.FollowStatus{
		BusinessID:  business.ID,
		UserID:      c.UserID,
		IsFollowing: s.store.IsFollowing(c.UserID, business.ID),
	}
	followers := &websocket.FollowersAmount{BusinessID: business.ID, Amount: amount}
	if err != nil {
		glog.V(1).Infof("[follow]%d %s %d: %s", c.UserID, in.Action, business.ID, err)
		c.reply(websocket.EventFollowStatus, status)
		c.reply(websocket.EventFollowersAmount, followers)
		return
	}

	s.hub.SendToRoom(businessRoom(business.ID), websocket.EventFollowersAmount, followers)
	s.hub.SendToUser(c.UserID, websocket.EventFollowStatus, status)
	if following && business.OwnerID != c.UserID {
		actor := s.userInfo(c.UserID)
		s.notify(business.OwnerID, c.UserID, "follow", actor.DisplayName()+" followed "+business.Name)
	}
}

func (s *Server) handleSendingMessage(senderID int64, in *websocket.SendingMessage) {
	body := strings.TrimSpace(in.Body)
	if body == "" || in.ReceiverID == senderID {
		return
	}
	if _, err := s.store.User(in.ReceiverID); err != nil {
		glog.V(1).Infof("[messages]%d -> unknown user %d", senderID, in.ReceiverID)
		return
	}

	m := models.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: in.ReceiverID,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	s.store.AddMessage(m)
	s.hub.SendToRoom(messageRoom(senderID, in.ReceiverID), websocket.EventReceiveMessage, &m)
	s.notify(in.ReceiverID, senderID, "message", body)
}

var (
	errEventNotFound = errors.New("event not found")
	errNotAllowed    = errors.New("only the organizer can invite")
	errNoInvitee     = errors.New("invitee not found")
)

func (s *Server) handleEventInvite(actorID int64, in *websocket.EventInvite) (*models.Notification, error) {
	item, err := s.store.Item(in.EventID)
	if err != nil {
		return nil, errEventNotFound
	}
	if item.OwnerID != actorID {
		return nil, errNotAllowed
	}
	if _, err := s.store.User(in.UserID); err != nil {
		return nil, errNoInvitee
	}
	return s.notify(in.UserID, actorID, "event-invite", "You are invited to "+item.Title), nil
}

func (s *Server) notify(userID, actorID int64, kind, body string) *models.Notification {
	n := models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		ActorID:   actorID,
		Body:      body,
		CreatedAt: time.Now(),
	}
	s.store.Notify(n)
	return &n
}
