package api

import (
	"context"
	"fmt"
	"net/http"

	"syncd/models"
)

// auth

type LoginArgs struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*models.UserResponse, error) {
	return send[*models.UserResponse](ctx, c, http.MethodPost, "/auth/login", &LoginArgs{Username: username, Password: password})
}

func (c *Client) Me(ctx context.Context) (*models.UserResponse, error) {
	return get[*models.UserResponse](ctx, c, "/auth/me")
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// profiles

func (c *Client) MyProfile(ctx context.Context) (*models.UserResponse, error) {
	return get[*models.UserResponse](ctx, c, "/api/profiles/me")
}

func (c *Client) UpdateMyProfile(ctx context.Context, update *models.ProfileUpdate) (*models.UserResponse, error) {
	return send[*models.UserResponse](ctx, c, http.MethodPatch, "/api/profiles/me", update)
}

func (c *Client) DeleteMyProfile(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/profiles/me", nil, nil)
}

func (c *Client) UserProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	return get[*models.Profile](ctx, c, fmt.Sprintf("/api/profiles/user/%d", userID))
}

func (c *Client) UserFriends(ctx context.Context, userID int64) ([]models.UserResponse, error) {
	return get[[]models.UserResponse](ctx, c, fmt.Sprintf("/api/profiles/user/%d/friends", userID))
}

func (c *Client) UserBusinesses(ctx context.Context, userID int64) ([]models.Business, error) {
	return get[[]models.Business](ctx, c, fmt.Sprintf("/api/profiles/user/%d/businesses", userID))
}

func (c *Client) UserFollowing(ctx context.Context, userID int64) ([]models.Business, error) {
	return get[[]models.Business](ctx, c, fmt.Sprintf("/api/profiles/user/%d/following", userID))
}

func (c *Client) MyFriends(ctx context.Context) ([]models.UserResponse, error) {
	return get[[]models.UserResponse](ctx, c, "/api/profiles/me/friends")
}

func (c *Client) MyBusinesses(ctx context.Context) ([]models.Business, error) {
	return get[[]models.Business](ctx, c, "/api/profiles/me/businesses")
}

func (c *Client) MyFollowing(ctx context.Context) ([]models.Business, error) {
	return get[[]models.Business](ctx, c, "/api/profiles/me/following")
}

// businesses

func (c *Client) Business(ctx context.Context, businessID int64) (*models.BusinessProfile, error) {
	return get[*models.BusinessProfile](ctx, c, fmt.Sprintf("/api/profiles/business/%d", businessID))
}

func (c *Client) UpdateBusiness(ctx context.Context, businessID int64, update *models.BusinessUpdate) (*models.Business, error) {
	return send[*models.Business](ctx, c, http.MethodPatch, fmt.Sprintf("/api/profiles/business/%d", businessID), update)
}

func (c *Client) DeleteBusiness(ctx context.Context, businessID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/profiles/business/%d", businessID), nil, nil)
}

func (c *Client) BusinessFollowers(ctx context.Context, businessID int64) ([]models.UserResponse, error) {
	return get[[]models.UserResponse](ctx, c, fmt.Sprintf("/api/profiles/business/%d/followers", businessID))
}

func (c *Client) Businesses(ctx context.Context) ([]models.Business, error) {
	return get[[]models.Business](ctx, c, "/api/profiles/businesses")
}

func (c *Client) CreateBusiness(ctx context.Context, business *models.Business) (*models.Business, error) {
	return send[*models.Business](ctx, c, http.MethodPost, "/api/profiles/business", business)
}

// calendar

func (c *Client) MyCalendarItems(ctx context.Context) ([]models.CalendarItem, error) {
	return get[[]models.CalendarItem](ctx, c, "/api/calendarItems/me")
}

func (c *Client) CreateUserItem(ctx context.Context, input *models.CalendarItemInput) (*models.CalendarItem, error) {
	return send[*models.CalendarItem](ctx, c, http.MethodPost, "/api/calendarItems/user/item", input)
}

func (c *Client) UpdateUserItem(ctx context.Context, itemID int64, input *models.CalendarItemInput) (*models.CalendarItem, error) {
	return send[*models.CalendarItem](ctx, c, http.MethodPatch, fmt.Sprintf("/api/calendarItems/user/item/%d", itemID), input)
}

func (c *Client) DeleteUserItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/calendarItems/user/item/%d", itemID), nil, nil)
}

func (c *Client) Events(ctx context.Context, futureOnly bool) ([]models.CalendarItem, error) {
	path := "/api/calendarItems/events"
	if futureOnly {
		path += "/future"
	}
	return get[[]models.CalendarItem](ctx, c, path)
}

func (c *Client) CreateEvent(ctx context.Context, input *models.CalendarItemInput) (*models.CalendarItem, error) {
	return send[*models.CalendarItem](ctx, c, http.MethodPost, "/api/calendarItems/events", input)
}

func (c *Client) UpdateEvent(ctx context.Context, eventID int64, input *models.CalendarItemInput) (*models.CalendarItem, error) {
	return send[*models.CalendarItem](ctx, c, http.MethodPatch, fmt.Sprintf("/api/calendarItems/events/%d", eventID), input)
}

type AttendArgs struct {
	EventID int64 `json:"eventId"`
}

func (c *Client) AttendBusinessEvent(ctx context.Context, eventID int64) (*models.CalendarItem, error) {
	return send[*models.CalendarItem](ctx, c, http.MethodPost, "/api/calendarItems/business/attending", &AttendArgs{EventID: eventID})
}

func (c *Client) BusinessPublicEvents(ctx context.Context, businessID int64) ([]models.CalendarItem, error) {
	return get[[]models.CalendarItem](ctx, c, fmt.Sprintf("/api/calendarItems/business/%d/public", businessID))
}

// messages and notifications

func (c *Client) MyMessages(ctx context.Context) ([]models.Message, error) {
	return get[[]models.Message](ctx, c, "/api/messages/me")
}

func (c *Client) MyNotifications(ctx context.Context) ([]models.Notification, error) {
	return get[[]models.Notification](ctx, c, "/api/notifications/me")
}
