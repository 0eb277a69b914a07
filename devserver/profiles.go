package devserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"syncd/api"
	"syncd/models"
	"syncd/websocket"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) setSession(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(api.SessionCookie, token, maxAge, "/", "", s.cfg.IsProduction(), true)
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.Authenticate(req.Username, req.Password)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to generate session")
		return
	}

	s.setSession(c, token, int(sessionTTL.Seconds()))
	c.JSON(http.StatusOK, user.ToOwnerResponse())
}

func (s *Server) Logout(c *gin.Context) {
	s.setSession(c, "", -1)
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) Me(c *gin.Context) {
	user, err := s.store.User(GetUserID(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToOwnerResponse())
}

func (s *Server) UpdateMe(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		respondError(c, http.StatusBadRequest, "username cannot be empty")
		return
	}

	user, err := s.store.UpdateUser(GetUserID(c), &req)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToOwnerResponse())
}

func (s *Server) DeleteMe(c *gin.Context) {
	userID := GetUserID(c)
	friends := s.store.Friends(userID)
	if err := s.store.DeleteUser(userID); err != nil {
		respondStoreError(c, err)
		return
	}
	for _, f := range friends {
		s.hub.SendToUser(f.ID, websocket.EventFriendsList, &websocket.FriendsList{Friends: s.store.Friends(f.ID)})
	}
	s.setSession(c, "", -1)
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) MyFriends(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Friends(GetUserID(c)))
}

func (s *Server) MyBusinesses(c *gin.Context) {
	userID := GetUserID(c)
	c.JSON(http.StatusOK, s.store.Businesses(func(b *models.Business) bool { return b.OwnerID == userID }))
}

func (s *Server) MyFollowing(c *gin.Context) {
	c.JSON(http.StatusOK, s.visible(GetUserID(c), s.store.Following(GetUserID(c))))
}

func (s *Server) UserProfile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := s.store.User(id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	profile := models.Profile{
		User:         *user.ToResponse(),
		FriendsCount: len(s.store.Friends(id)),
	}
	if viewerID := GetUserID(c); viewerID != id {
		profile.Friendship = s.store.FriendshipBetween(viewerID, id)
	} else {
		profile.User.Email = user.Email
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) UserFriends(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.store.Friends(id))
}

func (s *Server) UserBusinesses(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	owned := s.store.Businesses(func(b *models.Business) bool { return b.OwnerID == id })
	c.JSON(http.StatusOK, s.visible(GetUserID(c), owned))
}

func (s *Server) UserFollowing(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.visible(GetUserID(c), s.store.Following(id)))
}

func (s *Server) visible(viewerID int64, businesses []models.Business) []models.Business {
	for i := range businesses {
		businesses[i] = businesses[i].VisibleTo(viewerID)
	}
	return businesses
}

func (s *Server) AllBusinesses(c *gin.Context) {
	c.JSON(http.StatusOK, s.visible(GetUserID(c), s.store.Businesses(nil)))
}

func (s *Server) CreateBusiness(c *gin.Context) {
	var req models.Business
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(c, http.StatusBadRequest, "name is required")
		return
	}
	req.OwnerID = GetUserID(c)

	business, err := s.store.CreateBusiness(&req)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, business)
}

func (s *Server) BusinessProfile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	business, err := s.store.Business(id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	viewerID := GetUserID(c)
	c.JSON(http.StatusOK, models.BusinessProfile{
		Business:       business.VisibleTo(viewerID),
		FollowersCount: s.store.FollowersCount(id),
		IsFollowing:    s.store.IsFollowing(viewerID, id),
	})
}

func (s *Server) UpdateBusiness(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req models.BusinessUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	business, err := s.store.UpdateBusiness(GetUserID(c), id, &req)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, business)
}

func (s *Server) DeleteBusiness(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteBusiness(GetUserID(c), id); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) BusinessFollowers(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := s.store.Business(id); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.Followers(id))
}
