package models

import "time"

type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email,omitempty"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profilePicture"`
	Password       string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserResponse is the public projection of a user; email is only filled for the owner.
type UserResponse struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email,omitempty"`
	Bio            string `json:"bio"`
	ProfilePicture string `json:"profilePicture"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Bio:            u.Bio,
		ProfilePicture: u.ProfilePicture,
	}
}

func (u *User) ToOwnerResponse() *UserResponse {
	r := u.ToResponse()
	r.Email = u.Email
	return r
}

func (u *UserResponse) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

type ProfileUpdate struct {
	Username       *string `json:"username,omitempty"`
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	Email          *string `json:"email,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

// Profile is what GET /api/profiles/user/{id} returns: the user, the friendship row
// between the viewer and that user (nil when none exists) and the user's friend count.
type Profile struct {
	User         UserResponse `json:"user"`
	Friendship   *Friendship  `json:"friendship"`
	FriendsCount int          `json:"friendsCount"`
}
