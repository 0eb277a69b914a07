package reconcile

import "syncd/websocket"

// ConcernsPair reports whether a friendship push is about the relationship between
// viewerID and subjectID. Acks and errors are only ever delivered to the actor, so for
// those the receiver alone identifies the pair. Friend-count deltas concern the subject's
// counter, which is also shown on the viewer's own profile.
func ConcernsPair(event any, viewerID, subjectID int64) bool {
	if e, ok := event.(*websocket.FriendCountDelta); ok {
		return e.UserID == subjectID
	}
	if viewerID == subjectID {
		return false
	}
	switch e := event.(type) {
	case *websocket.FriendshipUpdate:
		return (e.User1 == viewerID && e.User2 == subjectID) || (e.User1 == subjectID && e.User2 == viewerID)
	case *websocket.FriendRequestNotice:
		return e.UserID == viewerID && e.OtherUser.ID == subjectID
	case *websocket.FriendRequestSuccess:
		return e.ReceiverID == subjectID
	case *websocket.FriendError:
		return e.ReceiverID == subjectID
	}
	return false
}
