package reconcile

import "syncd/models"

// Status is the friendship state as seen by the viewer. It is the only representation
// that leaves this package; the server's pending1/pending2 encoding is translated once,
// by DeriveStatus.
type Status int

const (
	StatusNone Status = iota
	// the viewer owes a response
	StatusPendingViewer
	// the viewer is waiting on the profile user
	StatusPendingProfileUser
	StatusAccepted
)

func (s Status) String() string {
	switch s {
	case StatusPendingViewer:
		return "pendingViewer"
	case StatusPendingProfileUser:
		return "pendingProfileUser"
	case StatusAccepted:
		return "accepted"
	default:
		return "none"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DeriveStatus maps a raw row onto the viewer-relative status. A nil row means no
// relationship exists.
func DeriveStatus(row *models.Friendship, viewerID int64) Status {
	if row == nil {
		return StatusNone
	}
	switch row.Status {
	case models.FriendshipAccepted:
		return StatusAccepted
	case models.FriendshipPending1:
		if row.User1 == viewerID {
			return StatusPendingViewer
		}
		return StatusPendingProfileUser
	case models.FriendshipPending2:
		if row.User2 == viewerID {
			return StatusPendingViewer
		}
		return StatusPendingProfileUser
	}
	return StatusNone
}
