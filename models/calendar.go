package models

import "time"

type CalendarItem struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"ownerId"`
	BusinessID  *int64    `json:"businessId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Public      bool      `json:"public"`
	Attendees   []int64   `json:"attendees,omitempty"`
}

type CalendarItemInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	BusinessID  *int64    `json:"businessId,omitempty"`
	Public      bool      `json:"public"`
}
