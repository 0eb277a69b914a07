package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"syncd/models"
)

func bindItem(c *gin.Context) (*models.CalendarItemInput, bool) {
	var req models.CalendarItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(c, http.StatusBadRequest, "title is required")
		return nil, false
	}
	if !req.End.IsZero() && req.End.Before(req.Start) {
		respondError(c, http.StatusBadRequest, "end is before start")
		return nil, false
	}
	return &req, true
}

func applyInput(item *models.CalendarItem, in *models.CalendarItemInput) {
	item.Title = in.Title
	item.Description = in.Description
	item.Start = in.Start
	item.End = in.End
	item.Public = in.Public
}

func isEvent(item *models.CalendarItem) bool {
	return item.BusinessID != nil
}

func attending(item *models.CalendarItem, userID int64) bool {
	for _, id := range item.Attendees {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *Server) MyCalendarItems(c *gin.Context) {
	userID := GetUserID(c)
	c.JSON(http.StatusOK, s.store.Items(func(item *models.CalendarItem) bool {
		return item.OwnerID == userID || attending(item, userID)
	}))
}

func (s *Server) CreateUserItem(c *gin.Context) {
	in, ok := bindItem(c)
	if !ok {
		return
	}
	item := &models.CalendarItem{OwnerID: GetUserID(c)}
	applyInput(item, in)
	c.JSON(http.StatusCreated, s.store.SaveItem(item))
}

// ownedItem loads the item at :id and checks that the caller owns it and that it is
// an event exactly when wantEvent is set.
func (s *Server) ownedItem(c *gin.Context, wantEvent bool) (*models.CalendarItem, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	item, err := s.store.Item(id)
	if err != nil || isEvent(item) != wantEvent {
		respondError(c, http.StatusNotFound, "item not found")
		return nil, false
	}
	if item.OwnerID != GetUserID(c) {
		respondError(c, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return item, true
}

func (s *Server) UpdateUserItem(c *gin.Context) {
	item, ok := s.ownedItem(c, false)
	if !ok {
		return
	}
	in, ok := bindItem(c)
	if !ok {
		return
	}
	applyInput(item, in)
	c.JSON(http.StatusOK, s.store.SaveItem(item))
}

func (s *Server) DeleteUserItem(c *gin.Context) {
	item, ok := s.ownedItem(c, false)
	if !ok {
		return
	}
	if err := s.store.DeleteItem(item.OwnerID, item.ID); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) ListEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Items(isEvent))
}

func (s *Server) ListFutureEvents(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, s.store.Items(func(item *models.CalendarItem) bool {
		return isEvent(item) && item.Start.After(now)
	}))
}

func (s *Server) CreateEvent(c *gin.Context) {
	in, ok := bindItem(c)
	if !ok {
		return
	}
	if in.BusinessID == nil {
		respondError(c, http.StatusBadRequest, "businessId is required")
		return
	}
	business, err := s.store.Business(*in.BusinessID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if business.OwnerID != GetUserID(c) {
		respondError(c, http.StatusForbidden, "only the owner can create events")
		return
	}

	businessID := business.ID
	item := &models.CalendarItem{OwnerID: business.OwnerID, BusinessID: &businessID}
	applyInput(item, in)
	c.JSON(http.StatusCreated, s.store.SaveItem(item))
}

func (s *Server) UpdateEvent(c *gin.Context) {
	item, ok := s.ownedItem(c, true)
	if !ok {
		return
	}
	in, ok := bindItem(c)
	if !ok {
		return
	}
	applyInput(item, in)
	c.JSON(http.StatusOK, s.store.SaveItem(item))
}

type AttendRequest struct {
	EventID int64 `json:"eventId" binding:"required"`
}

func (s *Server) AttendEvent(c *gin.Context) {
	var req AttendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.store.Attend(GetUserID(c), req.EventID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) BusinessPublicEvents(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.store.Items(func(item *models.CalendarItem) bool {
		return item.BusinessID != nil && *item.BusinessID == id && item.Public
	}))
}

func (s *Server) MyMessages(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Messages(GetUserID(c)))
}

func (s *Server) MyNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Notifications(GetUserID(c)))
}
