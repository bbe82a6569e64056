// Package igapi talks to the platform's private feed API with the same
// cookies the browser sessions use.
package igapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/igwarmup/internal/config"
)

// UserAgent is sent on every API request
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

var (
	// ErrUnauthorized means the cookies were rejected.
	ErrUnauthorized = errors.New("api rejected credentials")
	// ErrUserNotFound means an exact username lookup found nobody.
	ErrUserNotFound = errors.New("user not found")
	// ErrRateLimited means the API asked us to slow down.
	ErrRateLimited = errors.New("api rate limited")
)

// StatusError is an unexpected HTTP status
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Path, e.Status)
}

// Client is a rate-limited private API client
type Client struct {
	http    *http.Client
	base    *url.URL
	appID   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a client sending cookies from jar
func New(cfg config.APIConfig, jar http.CookieJar, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	perMin := cfg.RequestsPerMin
	if perMin <= 0 {
		perMin = 20
	}
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		base:    base,
		appID:   cfg.AppID,
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60), perMin),
		logger:  logger.Named("igapi"),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-IG-App-ID", c.appID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if token := c.csrfToken(&u); token != "" {
		req.Header.Set("X-CSRFToken", token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("API request", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("GET %s: %w", path, ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("GET %s: %w", path, ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return &StatusError{Path: path, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}

	var envelope struct {
		Status       string `json:"status"`
		Message      string `json:"message"`
		RequireLogin bool   `json:"require_login"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("GET %s: invalid json: %w", path, err)
	}
	if envelope.RequireLogin || envelope.Message == "login_required" {
		return fmt.Errorf("GET %s: %w", path, ErrUnauthorized)
	}
	if envelope.Status == "fail" {
		return fmt.Errorf("GET %s: api failure: %s", path, envelope.Message)
	}

	return json.Unmarshal(body, out)
}

func (c *Client) csrfToken(u *url.URL) string {
	if c.http.Jar == nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "csrftoken" {
			return ck.Value
		}
	}
	return ""
}

// CurrentUser verifies the cookies by fetching the logged-in account
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.get(ctx, "/api/v1/accounts/current_user/", url.Values{"edit": {"true"}}, &resp); err != nil {
		return nil, err
	}
	if resp.User.PK == "" {
		return nil, ErrUnauthorized
	}
	return &resp.User, nil
}

// SearchExact finds the user whose username equals username, ignoring case
func (c *Client) SearchExact(ctx context.Context, username string) (*User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.get(ctx, "/api/v1/users/search/", url.Values{"q": {username}}, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Users {
		if strings.EqualFold(resp.Users[i].Username, username) {
			return &resp.Users[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
}

// UserFeed returns the first page of a user's feed
func (c *Client) UserFeed(ctx context.Context, pk ID) ([]FeedItem, error) {
	var resp struct {
		Items []FeedItem `json:"items"`
	}
	if err := c.get(ctx, "/api/v1/feed/user/"+url.PathEscape(string(pk))+"/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}
