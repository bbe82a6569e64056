package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// SessionCookieName is the cookie the platform sets once a user is logged in
const SessionCookieName = "sessionid"

// Manager captures session cookies through an interactive login
type Manager struct {
	domain      string
	cookiePath  string
	allocOpts   []chromedp.ExecAllocatorOption
	loginWindow time.Duration
	logger      *zap.Logger
}

// NewManager creates a login manager writing cookies to cookiePath.
// allocOpts should describe a headful browser.
func NewManager(domain, cookiePath string, allocOpts []chromedp.ExecAllocatorOption, logger *zap.Logger) *Manager {
	return &Manager{
		domain:      domain,
		cookiePath:  cookiePath,
		allocOpts:   allocOpts,
		loginWindow: 5 * time.Minute,
		logger:      logger.Named("auth"),
	}
}

// CookiePath is where captured cookies are written
func (m *Manager) CookiePath() string {
	return m.cookiePath
}

// HasCookies reports whether a usable cookie file exists
func (m *Manager) HasCookies() bool {
	cookies, err := LoadCookies(m.cookiePath)
	if err != nil {
		return false
	}
	return HasSession(cookies, time.Now())
}

// HasSession reports whether cookies carry an unexpired session cookie
func HasSession(cookies []Cookie, now time.Time) bool {
	for _, c := range cookies {
		if c.Name != SessionCookieName || c.Value == "" {
			continue
		}
		if c.Expires == nil || c.Expires.After(now) {
			return true
		}
	}
	return false
}

// Login opens a visible browser on the login page, waits for the user to
// sign in and saves the resulting cookies.
func (m *Manager) Login(ctx context.Context) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.allocOpts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	loginURL := fmt.Sprintf("https://www.%s/accounts/login/", m.domain)
	if err := chromedp.Run(browserCtx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	m.logger.Info("Waiting for interactive login", zap.String("url", loginURL), zap.Duration("window", m.loginWindow))

	cookies, err := m.waitForLogin(browserCtx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	captured := FromBrowser(filterDomain(cookies, m.domain))
	if err := SaveCookies(m.cookiePath, captured); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	m.logger.Info("Cookies captured", zap.Int("count", len(captured)), zap.String("path", m.cookiePath))
	return nil
}

// waitForLogin polls until the login form is gone and a session cookie exists
func (m *Manager) waitForLogin(ctx context.Context) ([]*network.Cookie, error) {
	timeout := time.After(m.loginWindow)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("login timeout exceeded")
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var hasForm bool
			err := chromedp.Run(ctx,
				chromedp.Evaluate(`!!document.querySelector('input[name="username"]')`, &hasForm),
			)
			if err != nil || hasForm {
				continue
			}

			cookies, err := extractCookies(ctx)
			if err != nil {
				continue
			}
			for _, c := range cookies {
				if c.Name == SessionCookieName && c.Value != "" {
					return cookies, nil
				}
			}
		}
	}
}

func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	return cookies, err
}

func filterDomain(cookies []*network.Cookie, domain string) []*network.Cookie {
	var out []*network.Cookie
	for _, c := range cookies {
		d := strings.TrimPrefix(c.Domain, ".")
		if d == domain || strings.HasSuffix(d, "."+domain) {
			out = append(out, c)
		}
	}
	return out
}
