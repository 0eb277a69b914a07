package models

type Business struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	OwnerID    int64  `json:"ownerId"`
	Email      string `json:"email,omitempty"`
	Bio        string `json:"bio,omitempty"`
	Category   string `json:"category,omitempty"`
	PictureURL string `json:"pictureUrl"`
}

// VisibleTo strips the owner-only fields when viewerID is not the owner.
func (b Business) VisibleTo(viewerID int64) Business {
	if b.OwnerID == viewerID {
		return b
	}
	b.Email = ""
	b.Bio = ""
	b.Category = ""
	return b
}

type BusinessUpdate struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	Category   *string `json:"category,omitempty"`
	PictureURL *string `json:"pictureUrl,omitempty"`
}

type BusinessFollow struct {
	UserID     int64 `json:"userId"`
	BusinessID int64 `json:"businessId"`
}

// BusinessProfile is what GET /api/profiles/business/{id} returns.
type BusinessProfile struct {
	Business       Business `json:"business"`
	FollowersCount int      `json:"followersCount"`
	IsFollowing    bool     `json:"isFollowing"`
}
