package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/auth"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/humanize"
	"github.com/ibeckermayer/igwarmup/internal/observability"
)

// LoginMarker is only present on the page while logged out
const LoginMarker = `input[name="username"]`

var (
	// ErrLaunch means no browser could be launched or reached.
	ErrLaunch = errors.New("browser unavailable")
	// ErrNavigation means a page failed to load.
	ErrNavigation = errors.New("navigation failed")
	// ErrNotLoggedIn means the injected cookies did not authenticate.
	ErrNotLoggedIn = errors.New("not logged in, please check cookies")
)

// Session is one live page plus whatever must be torn down with it.
type Session struct {
	Page Page

	closeFn func()
	once    sync.Once
}

// NewSession wraps a page and its teardown
func NewSession(page Page, closeFn func()) *Session {
	observability.SessionsOpened.Inc()
	return &Session{Page: page, closeFn: closeFn}
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.closeFn()
		}
		observability.SessionsClosed.Inc()
	})
}

// LaunchOptions selects a remote endpoint or a local browser
type LaunchOptions struct {
	Headless       bool
	RemoteEndpoint string
	Proxy          config.ProxyConfig
}

// Launcher starts a browser and opens a page on it. The returned func
// releases everything the launcher acquired.
type Launcher func(ctx context.Context, opts LaunchOptions) (Page, func(), error)

// OpenOptions describe the session an executor wants
type OpenOptions struct {
	Launch  LaunchOptions
	Cookies []auth.Cookie
}

// Bootstrapper turns cookies into an authenticated page.
type Bootstrapper struct {
	domain     string
	navTimeout time.Duration
	pacer      *humanize.Pacer
	launch     Launcher
	logger     *zap.Logger
}

// NewBootstrapper creates a bootstrapper launching chromedp browsers
func NewBootstrapper(cfg *config.Config, pacer *humanize.Pacer, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		domain:     cfg.Platform.Domain,
		navTimeout: cfg.Browser.NavTimeout,
		pacer:      pacer,
		launch:     ChromeLauncher(cfg.Browser.ConnectTimeout),
		logger:     logger.Named("browser"),
	}
}

// WithLauncher replaces the launcher. Used by tests.
func (b *Bootstrapper) WithLauncher(l Launcher) *Bootstrapper {
	b.launch = l
	return b
}

// HomeURL is the platform's landing page
func HomeURL(domain string) string {
	return fmt.Sprintf("https://www.%s/", domain)
}

// Open launches a browser, injects cookies, loads the home page and checks
// the login state. On any failure everything opened so far is closed.
func (b *Bootstrapper) Open(ctx context.Context, opts OpenOptions) (*Session, error) {
	mode := "local"
	if opts.Launch.RemoteEndpoint != "" {
		mode = "remote"
	}
	b.logger.Debug("Opening session", zap.String("mode", mode), zap.Bool("headless", opts.Launch.Headless))

	page, closeFn, err := b.launch(ctx, opts.Launch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	session := NewSession(page, closeFn)

	if err := b.authenticate(ctx, page, opts.Cookies); err != nil {
		session.Close()
		return nil, err
	}

	if err := b.pacer.PostLogin(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

func (b *Bootstrapper) authenticate(ctx context.Context, page Page, cookies []auth.Cookie) error {
	if err := page.SetCookies(ctx, auth.BrowserParams(cookies, b.domain)); err != nil {
		return fmt.Errorf("failed to inject cookies: %w", err)
	}

	if err := Navigate(ctx, page, HomeURL(b.domain), b.navTimeout); err != nil {
		return err
	}

	marker, err := page.Query(ctx, LoginMarker)
	if err != nil {
		return fmt.Errorf("failed to check login state: %w", err)
	}
	if len(marker) > 0 {
		return ErrNotLoggedIn
	}

	b.logger.Debug("Session authenticated", zap.Int("cookies", len(cookies)))
	return nil
}

// Navigate loads url under its own timeout and tags failures ErrNavigation
func Navigate(ctx context.Context, page Page, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	return nil
}

// ChromeLauncher launches a local browser or connects to a remote one.
// Connecting is bounded by connectTimeout; the browser itself lives until
// the returned release func runs or ctx ends.
func ChromeLauncher(connectTimeout time.Duration) Launcher {
	return func(ctx context.Context, opts LaunchOptions) (Page, func(), error) {
		var (
			allocCtx    context.Context
			cancelAlloc context.CancelFunc
		)
		if opts.RemoteEndpoint != "" {
			endpoint, err := RemoteURL(opts.RemoteEndpoint, opts.Proxy)
			if err != nil {
				return nil, nil, err
			}
			allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, endpoint, chromedp.NoModifyURL)
		} else {
			allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, Options(opts.Headless)...)
		}

		tabCtx, cancelTab := chromedp.NewContext(allocCtx)
		release := func() {
			cancelTab()
			cancelAlloc()
		}

		// The first Run allocates the browser and must use the tab context
		// itself, so the connect bound is a timer rather than a deadline.
		timer := time.AfterFunc(connectTimeout, cancelTab)
		err := chromedp.Run(tabCtx)
		timedOut := !timer.Stop()
		if err != nil {
			release()
			if timedOut {
				return nil, nil, fmt.Errorf("connect timed out after %s: %w", connectTimeout, err)
			}
			return nil, nil, err
		}
		return NewChromePage(tabCtx), release, nil
	}
}
