package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/actions"
	"github.com/ibeckermayer/igwarmup/internal/activity"
	"github.com/ibeckermayer/igwarmup/internal/auth"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/humanize"
	"github.com/ibeckermayer/igwarmup/internal/ledger"
	"github.com/ibeckermayer/igwarmup/internal/notifier"
	"github.com/ibeckermayer/igwarmup/internal/scheduler"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
	"github.com/ibeckermayer/igwarmup/internal/store"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// Options override collaborators New would otherwise build from config
type Options struct {
	// Launcher replaces the chromedp launcher.
	Launcher browser.Launcher
	// Notifier replaces the SMTP notifier built from config.
	Notifier *notifier.Notifier
	// PostsDir is where fetched posts are cached as JSON. Defaults to the
	// user cache directory.
	PostsDir string
	// ConfigPath is what ReloadConfig reads.
	ConfigPath string
}

// App holds the application state.
type App struct {
	mu          sync.RWMutex
	authManager *auth.Manager // immutable after creation
	store       *store.Store  // immutable after creation
	opts        Options
	logger      *zap.Logger

	// Mutable fields - use getSnapshot() for concurrent access.
	config   *config.Config
	executor *actions.Executor
	notifier *notifier.Notifier
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config   *config.Config
	executor *actions.Executor
	notifier *notifier.Notifier
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:   a.config,
		executor: a.executor,
		notifier: a.notifier,
	}
}

// New opens the history database and wires an executor from cfg.
func New(cfg *config.Config, opts Options, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.PostsDir == "" {
		dir, err := store.PostsCacheDir()
		if err != nil {
			return nil, err
		}
		opts.PostsDir = dir
	}

	st, err := store.New(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	cookiePath, err := auth.DefaultCookiePath()
	if err != nil {
		cookiePath = "cookies.json"
	}

	a := &App{
		authManager: auth.NewManager(cfg.Platform.Domain, cookiePath, browser.Options(false), logger),
		store:       st,
		opts:        opts,
		logger:      logger.Named("app"),
	}
	a.install(cfg)
	return a, nil
}

// install builds the config-dependent collaborators and swaps them in
func (a *App) install(cfg *config.Config) {
	pacer := humanize.NewPacer(cfg.Pacing)

	sessions := browser.NewBootstrapper(cfg, pacer, a.logger)
	if a.opts.Launcher != nil {
		sessions = sessions.WithLauncher(a.opts.Launcher)
	}

	var backend ledger.Storage = ledger.NewFileStorage(cfg.Storage.LedgerPath)
	if cfg.Storage.LedgerBackend == "sqlite" {
		backend = a.store
	}

	n := a.opts.Notifier
	if n == nil {
		var err error
		n, err = notifier.NewFromConfig(cfg.Email)
		if err != nil && !errors.Is(err, notifier.ErrDisabled) {
			a.logger.Warn("Email alerts disabled", zap.Error(err))
		}
	}

	exec := actions.New(actions.Deps{
		Config:     cfg,
		Sessions:   sessions,
		Pacer:      pacer,
		Activity:   activity.New(cfg.Storage.ActivityLog, a.logger),
		Ledger:     ledger.New(backend, a.logger),
		Classifier: scraper.NewClassifier(cfg.Platform.NotFoundPhrases, cfg.Platform.WarningKeywords),
		Logger:     a.logger,
		OnFinish:   a.finished,
	})

	a.mu.Lock()
	a.config = cfg
	a.executor = exec
	a.notifier = n
	a.mu.Unlock()
}

// Close releases the history database
func (a *App) Close() error {
	return a.store.Close()
}

// Config returns the active configuration
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// LikePost runs the like-post action
func (a *App) LikePost(ctx context.Context, opts actions.Options) types.Result {
	return a.getSnapshot().executor.LikePost(ctx, opts)
}

// PostComment runs the comment action
func (a *App) PostComment(ctx context.Context, opts actions.Options) types.Result {
	return a.getSnapshot().executor.PostComment(ctx, opts)
}

// LikeStory runs the story reaction action
func (a *App) LikeStory(ctx context.Context, opts actions.Options) types.Result {
	return a.getSnapshot().executor.LikeStory(ctx, opts)
}

// FetchNewestPost runs the newest-post action
func (a *App) FetchNewestPost(ctx context.Context, opts actions.Options) types.Result {
	return a.getSnapshot().executor.FetchNewestPost(ctx, opts)
}

// finished persists every outcome and raises alerts for flagged pages
func (a *App) finished(o actions.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run := &store.Run{
		ID:        o.ID,
		Action:    o.Action,
		Subject:   o.Subject,
		Success:   o.Result.Success,
		Kind:      string(o.Kind),
		Message:   o.Result.Message,
		StartedAt: o.Started,
		Duration:  o.Duration,
	}
	if err := a.store.SaveRun(ctx, run); err != nil {
		a.logger.Warn("Failed to save run", zap.String("id", o.ID), zap.Error(err))
	}

	if o.Action == actions.ActionNewestPost && o.Result.Success && o.Result.Post.Valid() {
		if err := a.store.SaveFetchedPost(ctx, o.Subject, o.Backend, o.Result.Post); err != nil {
			a.logger.Warn("Failed to save fetched post", zap.Error(err))
		}
		if path, err := store.SavePostCache(a.opts.PostsDir, o.Subject, o.Result.Post, time.Now()); err != nil {
			a.logger.Warn("Failed to cache post", zap.Error(err))
		} else {
			a.logger.Debug("Cached post", zap.String("path", path))
		}
	}

	if o.State != nil && o.State.Kind == scraper.StateWarning {
		a.alert(o)
	}
}

func (a *App) alert(o actions.Outcome) {
	n := a.getSnapshot().notifier
	if n == nil {
		a.logger.Warn("Account flagged, no email configured", zap.String("subject", o.Subject), zap.String("keyword", o.State.Reason))
		return
	}
	err := n.SendAlert(notifier.Alert{
		Action:  o.Action,
		Subject: o.Subject,
		Keyword: o.State.Reason,
		Message: o.Result.Message,
		At:      o.Started,
	})
	if err != nil {
		a.logger.Error("Failed to send alert", zap.Error(err))
		return
	}
	a.logger.Info("Alert sent", zap.String("subject", o.Subject), zap.String("keyword", o.State.Reason))
}

// RecentRuns returns the latest action runs
func (a *App) RecentRuns(ctx context.Context, limit int) ([]store.Run, error) {
	return a.store.RecentRuns(ctx, limit)
}

// LatestPost returns the most recent fetched post for username
func (a *App) LatestPost(ctx context.Context, username string) (*store.FetchedPost, error) {
	return a.store.LatestFetchedPost(ctx, username)
}

// HasSavedSession reports whether login already captured a live session
func (a *App) HasSavedSession() (string, bool) {
	return a.authManager.CookiePath(), a.authManager.HasCookies()
}

// Login opens a browser for a manual login and saves the session cookies.
func (a *App) Login(ctx context.Context) (string, error) {
	a.logger.Info("Login triggered - opening browser")
	if err := a.authManager.Login(ctx); err != nil {
		a.logger.Error("Login failed", zap.Error(err))
		return "", err
	}
	a.logger.Info("Login successful - cookies saved", zap.String("path", a.authManager.CookiePath()))
	return a.authManager.CookiePath(), nil
}

// WarmUp builds the scheduled story round from the active config
func (a *App) WarmUp() *scheduler.WarmUp {
	s := a.getSnapshot()
	return &scheduler.WarmUp{
		Liker:     a,
		Sleeper:   humanize.NewPacer(s.config.Pacing),
		Usernames: s.config.Schedule.Usernames,
		Template: actions.Options{
			CookiesPath:    s.config.Schedule.Cookies,
			Headless:       s.config.Browser.Headless,
			RemoteEndpoint: s.config.Browser.RemoteEndpoint,
		},
		PauseMin: 30 * time.Second,
		PauseMax: 90 * time.Second,
		Logger:   a.logger,
	}
}

// ReloadConfig reloads the configuration from disk.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load(a.opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.install(cfg)
	a.logger.Info("Configuration reloaded")
	return nil
}
