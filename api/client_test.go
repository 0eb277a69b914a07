package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	gojwt "github.com/golang-jwt/jwt/v5"

	"syncd/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := New(server.URL + "/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestErrorMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"missing session"}`))
	})
	mux.HandleFunc("/api/profiles/user/9", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	c := newTestClient(t, mux)

	_, err := c.Me(context.Background())
	assert.Equal(t, errors.Is(err, ErrUnauthorized), true)
	var apiErr *Error
	assert.Equal(t, errors.As(err, &apiErr), true)
	assert.Equal(t, apiErr.Message, "missing session")
	assert.Equal(t, apiErr.Path, "/auth/me")

	_, err = c.UserProfile(context.Background(), 9)
	assert.Equal(t, errors.Is(err, ErrNotFound), true)
	assert.Equal(t, errors.Is(err, ErrUnauthorized), false)
}

func TestLoginStoresCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var args LoginArgs
		json.NewDecoder(r.Body).Decode(&args)
		if r.Method != http.MethodPost || args.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "tok", Path: "/"})
		json.NewEncoder(w).Encode(&models.UserResponse{ID: 4, Username: args.Username})
	})
	mux.HandleFunc("/api/profiles/me/friends", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[{"id":1,"username":"a"},{"id":2,"username":"b"}]`))
	})
	c := newTestClient(t, mux)

	_, err := c.MyFriends(context.Background())
	assert.Equal(t, errors.Is(err, ErrUnauthorized), true)

	user, err := c.Login(context.Background(), "dana", "secret")
	assert.Equal(t, err, nil)
	assert.Equal(t, user.Username, "dana")
	assert.Equal(t, c.SessionToken(), "tok")

	friends, err := c.MyFriends(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, len(friends), 2)
}

func TestPatchSendsJSON(t *testing.T) {
	var got models.BusinessUpdate
	var method string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":5,"name":"Renamed"}`))
	}))

	name := "Renamed"
	b, err := c.UpdateBusiness(context.Background(), 5, &models.BusinessUpdate{Name: &name})
	assert.Equal(t, err, nil)
	assert.Equal(t, method, http.MethodPatch)
	assert.Equal(t, *got.Name, "Renamed")
	assert.Equal(t, got.Bio == nil, true)
	assert.Equal(t, b.Name, "Renamed")
}

func TestSessionExpiry(t *testing.T) {
	c, err := New("http://localhost:8080")
	assert.Equal(t, err, nil)

	_, ok := c.SessionExpiry()
	assert.Equal(t, ok, false)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("any"))
	assert.Equal(t, err, nil)

	c.SetSessionToken(token)
	got, ok := c.SessionExpiry()
	assert.Equal(t, ok, true)
	assert.Equal(t, got.Equal(exp), true)

	c.SetSessionToken("not-a-jwt")
	_, ok = c.SessionExpiry()
	assert.Equal(t, ok, false)
}
