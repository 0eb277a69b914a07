package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultHttpTimeout        = 30 * time.Second
	defaultHttpConnectTimeout = 5 * time.Second
	defaultHttpTlsTimeout     = 5 * time.Second

	SessionCookie = "syncd_session"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// Error is a non-2xx response from the API.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

func defaultClient(jar http.CookieJar) *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
		Jar:       jar,
	}
}

// Client talks to the REST API with cookie credentials. The cookie jar is shared with
// the live connection so both ride the same session.
type Client struct {
	baseURL *url.URL
	jar     http.CookieJar
	http    *http.Client
}

func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: u,
		jar:     jar,
		http:    defaultClient(jar),
	}, nil
}

func (c *Client) Jar() http.CookieJar {
	return c.jar
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SessionToken returns the session cookie value, or "" when signed out.
func (c *Client) SessionToken() string {
	for _, cookie := range c.jar.Cookies(c.baseURL) {
		if cookie.Name == SessionCookie {
			return cookie.Value
		}
	}
	return ""
}

// SetSessionToken restores a session saved from a previous run.
func (c *Client) SetSessionToken(token string) {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  SessionCookie,
		Value: token,
		Path:  "/",
	}})
}

// SessionExpiry reads the expiry claim of the session token without verifying it.
// The server is the one that verifies; the client only uses this for display.
func (c *Client) SessionExpiry() (time.Time, bool) {
	token := c.SessionToken()
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := gojwt.NewParser().ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method string, path string, args any, result any) error {
	var body io.Reader
	if args != nil {
		requestBodyBytes, err := json.Marshal(args)
		if err != nil {
			return err
		}
		body = bytes.NewReader(requestBodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if args != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if r.StatusCode < 200 || r.StatusCode >= 300 {
		message := strings.TrimSpace(string(responseBodyBytes))
		var eb errorBody
		if json.Unmarshal(responseBodyBytes, &eb) == nil && eb.Error != "" {
			message = eb.Error
		}
		return &Error{Method: method, Path: path, Status: r.StatusCode, Message: message}
	}

	if result == nil || len(responseBodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBodyBytes, result); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func get[R any](ctx context.Context, c *Client, path string) (R, error) {
	var result R
	err := c.do(ctx, http.MethodGet, path, nil, &result)
	return result, err
}

func send[R any](ctx context.Context, c *Client, method string, path string, args any) (R, error) {
	var result R
	err := c.do(ctx, method, path, args, &result)
	return result, err
}
