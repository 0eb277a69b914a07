package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"syncd/models"
	"syncd/reconcile"
	"syncd/websocket"
)

func printUser(user *models.UserResponse) {
	fmt.Printf("%s (@%s, id %d)\n", user.DisplayName(), user.Username, user.ID)
	if user.Email != "" {
		fmt.Printf("  email: %s\n", user.Email)
	}
	if user.Bio != "" {
		fmt.Printf("  bio: %s\n", user.Bio)
	}
}

func printFriends(friends []models.UserResponse) {
	if len(friends) == 0 {
		fmt.Printf("No friends yet.\n")
		return
	}
	fmt.Printf("%d friends:\n", len(friends))
	for _, f := range friends {
		fmt.Printf("  %6d  %s (@%s)\n", f.ID, f.DisplayName(), f.Username)
	}
}

func relationshipLabel(status reconcile.Status) string {
	switch status {
	case reconcile.StatusPendingViewer:
		return "wants to be your friend (accept or decline)"
	case reconcile.StatusPendingProfileUser:
		return "request sent (cancel to withdraw)"
	case reconcile.StatusAccepted:
		return "friends"
	default:
		return "not friends"
	}
}

func printRelationship(state reconcile.RelationshipState) {
	if state.Profile != nil {
		printUser(state.Profile)
	}
	fmt.Printf("  friends: %d\n", state.FriendsCount)
	fmt.Printf("  status: %s\n", relationshipLabel(state.Status))
}

func printBusiness(b models.Business, state reconcile.FollowState) {
	fmt.Printf("%s (id %d)\n", b.Name, b.ID)
	if b.Category != "" {
		fmt.Printf("  category: %s\n", b.Category)
	}
	if b.Email != "" {
		fmt.Printf("  email: %s\n", b.Email)
	}
	fmt.Printf("  followers: %d\n", state.FollowersCount)
	if state.IsFollowing {
		fmt.Printf("  you follow this business\n")
	}
}

func friendErrorMessage(data json.RawMessage) string {
	var e websocket.FriendError
	if err := json.Unmarshal(data, &e); err != nil || e.Message == "" {
		return "request rejected"
	}
	return e.Message
}

func friendNotice(data json.RawMessage) (*websocket.FriendRequestNotice, bool) {
	var notice websocket.FriendRequestNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		return nil, false
	}
	return &notice, true
}

// session token file

func defaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "syncd", "session"), nil
}

func loadSession(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func saveSession(path string, token string) error {
	if token == "" {
		return fmt.Errorf("server did not set a session cookie")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0600)
}

func removeSession(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
