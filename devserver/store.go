package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"syncd/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrUsernameTaken = errors.New("username taken")
	ErrExists        = errors.New("already exists")
	ErrInvalidState  = errors.New("invalid state")
)

type followKey struct {
	userID     int64
	businessID int64
}

// Store is the devserver's in-memory backend state.
type Store struct {
	mu sync.RWMutex

	nextID        int64
	users         map[int64]*models.User
	friendships   map[int64]*models.Friendship
	businesses    map[int64]*models.Business
	follows       map[followKey]bool
	items         map[int64]*models.CalendarItem
	messages      []models.Message
	notifications []models.Notification
}

func NewStore() *Store {
	return &Store{
		users:       make(map[int64]*models.User),
		friendships: make(map[int64]*models.Friendship),
		businesses:  make(map[int64]*models.Business),
		follows:     make(map[followKey]bool),
		items:       make(map[int64]*models.CalendarItem),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Seed adds a few users sharing password and a business owned by the first.
func (s *Store) Seed(password string) error {
	for _, u := range []models.User{
		{Username: "alice", FirstName: "Alice", LastName: "Archer", Email: "alice@syncd.test"},
		{Username: "bob", FirstName: "Bob", LastName: "Baker", Email: "bob@syncd.test"},
		{Username: "carol", FirstName: "Carol", LastName: "Chen", Email: "carol@syncd.test"},
	} {
		if _, err := s.CreateUser(u, password); err != nil {
			return err
		}
	}
	alice, _ := s.UserByUsername("alice")
	_, err := s.CreateBusiness(&models.Business{
		Name:     "Corner Bakery",
		OwnerID:  alice.ID,
		Email:    "hello@cornerbakery.test",
		Bio:      "Bread before dawn.",
		Category: "food",
	})
	return err
}

func (s *Store) CreateUser(u models.User, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return nil, ErrUsernameTaken
		}
	}
	u.ID = s.id()
	u.Password = string(hash)
	u.CreatedAt = time.Now()
	s.users[u.ID] = &u
	copied := u
	return &copied, nil
}

// Authenticate returns the user when password matches.
func (s *Store) Authenticate(username, password string) (*models.User, error) {
	u, err := s.UserByUsername(username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrForbidden
	}
	return u, nil
}

func (s *Store) UserByUsername(username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Store) User(id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *Store) UpdateUser(id int64, update *models.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Username != nil {
		for _, other := range s.users {
			if other.ID != id && strings.EqualFold(other.Username, *update.Username) {
				return nil, ErrUsernameTaken
			}
		}
		u.Username = *update.Username
	}
	setString(&u.FirstName, update.FirstName)
	setString(&u.LastName, update.LastName)
	setString(&u.Email, update.Email)
	setString(&u.Bio, update.Bio)
	setString(&u.ProfilePicture, update.ProfilePicture)
	copied := *u
	return &copied, nil
}

// DeleteUser removes the user with their friendships, follows and businesses.
func (s *Store) DeleteUser(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	for fid, f := range s.friendships {
		if f.User1 == id || f.User2 == id {
			delete(s.friendships, fid)
		}
	}
	for key := range s.follows {
		if key.userID == id {
			delete(s.follows, key)
		}
	}
	for bid, b := range s.businesses {
		if b.OwnerID == id {
			s.deleteBusinessLocked(bid)
		}
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// friendships

func (s *Store) FriendshipBetween(a, b int64) *models.Friendship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f := s.friendshipLocked(a, b); f != nil {
		copied := *f
		return &copied
	}
	return nil
}

func (s *Store) friendshipLocked(a, b int64) *models.Friendship {
	for _, f := range s.friendships {
		if f.Involves(a, b) {
			return f
		}
	}
	return nil
}

// RequestFriendship creates a pending row in which the receiver owes the response.
func (s *Store) RequestFriendship(requesterID, receiverID int64) (*models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if requesterID == receiverID {
		return nil, ErrInvalidState
	}
	if _, ok := s.users[receiverID]; !ok {
		return nil, ErrNotFound
	}
	if s.friendshipLocked(requesterID, receiverID) != nil {
		return nil, ErrExists
	}
	now := time.Now()
	f := &models.Friendship{
		ID:        s.id(),
		User1:     requesterID,
		User2:     receiverID,
		Status:    models.FriendshipPending2,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.friendships[f.ID] = f
	copied := *f
	return &copied, nil
}

// owesResponse reports whether userID is the side a pending row waits on.
func owesResponse(f *models.Friendship, userID int64) bool {
	return (f.Status == models.FriendshipPending1 && f.User1 == userID) ||
		(f.Status == models.FriendshipPending2 && f.User2 == userID)
}

func (s *Store) AcceptFriendship(actorID, otherID int64) (*models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.friendshipLocked(actorID, otherID)
	if f == nil {
		return nil, ErrNotFound
	}
	if !owesResponse(f, actorID) {
		return nil, ErrInvalidState
	}
	f.Status = models.FriendshipAccepted
	f.UpdatedAt = time.Now()
	copied := *f
	return &copied, nil
}

// EndFriendship deletes the row for action: decline needs the actor to owe the response,
// cancel needs the actor to be the one waiting, remove needs an accepted row.
func (s *Store) EndFriendship(actorID, otherID int64, action string) (*models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.friendshipLocked(actorID, otherID)
	if f == nil {
		return nil, ErrNotFound
	}
	var ok bool
	switch action {
	case models.FriendActionDecline:
		ok = owesResponse(f, actorID)
	case models.FriendActionCancel:
		ok = f.Status.Pending() && !owesResponse(f, actorID)
	case models.FriendActionRemove:
		ok = f.Status == models.FriendshipAccepted
	}
	if !ok {
		return nil, ErrInvalidState
	}
	delete(s.friendships, f.ID)
	copied := *f
	return &copied, nil
}

func (s *Store) Friends(userID int64) []models.UserResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UserResponse
	for _, f := range s.friendships {
		if f.Status != models.FriendshipAccepted || (f.User1 != userID && f.User2 != userID) {
			continue
		}
		if u, ok := s.users[f.Other(userID)]; ok {
			out = append(out, *u.ToResponse())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if out == nil {
		out = []models.UserResponse{}
	}
	return out
}

// businesses and follows

func (s *Store) CreateBusiness(b *models.Business) (*models.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[b.OwnerID]; !ok {
		return nil, ErrNotFound
	}
	copied := *b
	copied.ID = s.id()
	s.businesses[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (s *Store) Business(id int64) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *Store) UpdateBusiness(actorID, id int64, update *models.BusinessUpdate) (*models.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.OwnerID != actorID {
		return nil, ErrForbidden
	}
	setString(&b.Name, update.Name)
	setString(&b.Email, update.Email)
	setString(&b.Bio, update.Bio)
	setString(&b.Category, update.Category)
	setString(&b.PictureURL, update.PictureURL)
	copied := *b
	return &copied, nil
}

func (s *Store) DeleteBusiness(actorID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return ErrNotFound
	}
	if b.OwnerID != actorID {
		return ErrForbidden
	}
	s.deleteBusinessLocked(id)
	return nil
}

func (s *Store) deleteBusinessLocked(id int64) {
	delete(s.businesses, id)
	for key := range s.follows {
		if key.businessID == id {
			delete(s.follows, key)
		}
	}
}

func (s *Store) Businesses(filter func(*models.Business) bool) []models.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Business{}
	for _, b := range s.businesses {
		if filter == nil || filter(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Following(userID int64) []models.Business {
	s.mu.RLock()
	ids := map[int64]bool{}
	for key := range s.follows {
		if key.userID == userID {
			ids[key.businessID] = true
		}
	}
	s.mu.RUnlock()
	return s.Businesses(func(b *models.Business) bool { return ids[b.ID] })
}

// SetFollow records or removes a follow and returns the new follower count. Following
// twice or unfollowing a business not followed returns ErrExists / ErrNotFound along
// with the unchanged count.
func (s *Store) SetFollow(userID, businessID int64, following bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[businessID]; !ok {
		return 0, ErrNotFound
	}
	key := followKey{userID: userID, businessID: businessID}
	var err error
	switch {
	case following && s.follows[key]:
		err = ErrExists
	case !following && !s.follows[key]:
		err = ErrNotFound
	case following:
		s.follows[key] = true
	default:
		delete(s.follows, key)
	}
	return s.followersCountLocked(businessID), err
}

func (s *Store) IsFollowing(userID, businessID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.follows[followKey{userID: userID, businessID: businessID}]
}

func (s *Store) FollowersCount(businessID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.followersCountLocked(businessID)
}

func (s *Store) followersCountLocked(businessID int64) int {
	n := 0
	for key := range s.follows {
		if key.businessID == businessID {
			n++
		}
	}
	return n
}

func (s *Store) Followers(businessID int64) []models.UserResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.UserResponse{}
	for key := range s.follows {
		if key.businessID != businessID {
			continue
		}
		if u, ok := s.users[key.userID]; ok {
			out = append(out, *u.ToResponse())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// calendar

func (s *Store) SaveItem(item *models.CalendarItem) *models.CalendarItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		item.ID = s.id()
	}
	copied := *item
	s.items[item.ID] = &copied
	out := copied
	return &out
}

func (s *Store) Item(id int64) (*models.CalendarItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *Store) DeleteItem(actorID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if item.OwnerID != actorID {
		return ErrForbidden
	}
	delete(s.items, id)
	return nil
}

func (s *Store) Items(filter func(*models.CalendarItem) bool) []models.CalendarItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.CalendarItem{}
	for _, item := range s.items {
		if filter(item) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Attend adds userID to a public event's attendees.
func (s *Store) Attend(userID, eventID int64) (*models.CalendarItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[eventID]
	if !ok || !item.Public {
		return nil, ErrNotFound
	}
	for _, id := range item.Attendees {
		if id == userID {
			copied := *item
			return &copied, nil
		}
	}
	item.Attendees = append(item.Attendees, userID)
	copied := *item
	return &copied, nil
}

// messages and notifications

func (s *Store) AddMessage(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

func (s *Store) Messages(userID int64) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Message{}
	for _, m := range s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) Notify(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
}

func (s *Store) Notifications(userID int64) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Notification{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out
}
