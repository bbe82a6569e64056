// Package actions runs the authenticated interactions: liking posts and
// stories, commenting, and fetching a user's newest post.
//
// Every entry point returns a types.Result. Faults, including panics, are
// converted into failure envelopes, and any browser session opened for the
// invocation is closed before the entry point returns.
package actions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ibeckermayer/igwarmup/internal/activity"
	"github.com/ibeckermayer/igwarmup/internal/auth"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/humanize"
	"github.com/ibeckermayer/igwarmup/internal/ledger"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
)

// Newest-post backends
const (
	BackendBrowser = "browser"
	BackendAPI     = "api"
	BackendHelper  = "helper"
)

// Options are the per-invocation inputs. Each action reads the fields it
// needs and ignores the rest.
type Options struct {
	Username string
	PostURL  string
	Comment  string
	// DedupKey identifies a comment in the ledger. Defaults to the post code.
	DedupKey string

	// CookiesPath is read when CookieData is empty.
	CookiesPath string
	CookieData  []byte

	Headless       bool
	RemoteEndpoint string
	// Proxy overrides the configured proxy for remote endpoints.
	Proxy *config.ProxyConfig

	// Emojis overrides the configured reaction pool.
	Emojis []string
	// Backend selects how FetchNewestPost works. Defaults to browser.
	Backend string
}

// Timings bounds every wait an executor performs. Fixed settles go
// through the pacer; element waits go through locators.
type Timings struct {
	Poll time.Duration

	LikeSettle  time.Duration
	LikeWait    time.Duration
	CommentWait time.Duration
	CommentPost time.Duration

	ViewStoryMin   time.Duration
	ViewStoryMax   time.Duration
	StoryWait      time.Duration
	StorySettleMin time.Duration
	StorySettleMax time.Duration
	ReplyWait      time.Duration
	ClickPause     time.Duration
	SendPauseMin   time.Duration
	SendPauseMax   time.Duration

	PostMarkerWait time.Duration
	ProfileSettle  time.Duration
	DetailSettle   time.Duration
}

// DefaultTimings are the production waits
func DefaultTimings() Timings {
	return Timings{
		Poll: 250 * time.Millisecond,

		LikeSettle:  5 * time.Second,
		LikeWait:    15 * time.Second,
		CommentWait: 15 * time.Second,
		CommentPost: 3 * time.Second,

		ViewStoryMin:   1000 * time.Millisecond,
		ViewStoryMax:   1500 * time.Millisecond,
		StoryWait:      10 * time.Second,
		StorySettleMin: 500 * time.Millisecond,
		StorySettleMax: 2 * time.Second,
		ReplyWait:      3 * time.Second,
		ClickPause:     time.Second,
		SendPauseMin:   500 * time.Millisecond,
		SendPauseMax:   time.Second,

		PostMarkerWait: 10 * time.Second,
		ProfileSettle:  5 * time.Second,
		DetailSettle:   2 * time.Second,
	}
}

// SessionOpener yields authenticated browser sessions
type SessionOpener interface {
	Open(ctx context.Context, opts browser.OpenOptions) (*browser.Session, error)
}

// Deps are the collaborators an Executor is built from
type Deps struct {
	Config     *config.Config
	Sessions   SessionOpener
	Pacer      *humanize.Pacer
	Emojis     *humanize.EmojiRotator
	Activity   *activity.Log
	Ledger     *ledger.Ledger
	Classifier *scraper.Classifier
	Logger     *zap.Logger

	// FeedAPI builds the API backend client from cookies.
	FeedAPI FeedAPIFactory
	// Helper runs the external newest-post helper.
	Helper HelperRunner
	// OnFinish, when set, observes every finished invocation.
	OnFinish func(Outcome)

	// Timings defaults to DefaultTimings.
	Timings *Timings
}

// Executor runs actions
type Executor struct {
	cfg        *config.Config
	sessions   SessionOpener
	pacer      *humanize.Pacer
	emojis     *humanize.EmojiRotator
	journal    *activity.Log
	ledger     *ledger.Ledger
	classifier *scraper.Classifier
	feedAPI    FeedAPIFactory
	helper     HelperRunner
	// helperSlot serializes helper runs; the helper reads one fixed cookie path.
	helperSlot *semaphore.Weighted
	onFinish   func(Outcome)
	timings    Timings
	logger     *zap.Logger
}

// New creates an executor. Missing optional collaborators get defaults
// derived from Config.
func New(d Deps) *Executor {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		cfg:        cfg,
		helperSlot: semaphore.NewWeighted(1),
		sessions:   d.Sessions,
		pacer:      d.Pacer,
		emojis:     d.Emojis,
		journal:    d.Activity,
		ledger:     d.Ledger,
		classifier: d.Classifier,
		feedAPI:    d.FeedAPI,
		helper:     d.Helper,
		onFinish:   d.OnFinish,
		timings:    DefaultTimings(),
		logger:     logger.Named("actions"),
	}
	if d.Timings != nil {
		e.timings = *d.Timings
	}
	if e.pacer == nil {
		e.pacer = humanize.NewPacer(cfg.Pacing)
	}
	if e.emojis == nil {
		e.emojis = humanize.NewEmojiRotator(cfg.Actions.Emojis, e.pacer.Intn)
	}
	if e.classifier == nil {
		e.classifier = scraper.NewClassifier(cfg.Platform.NotFoundPhrases, cfg.Platform.WarningKeywords)
	}
	if e.feedAPI == nil {
		e.feedAPI = NewFeedAPIFactory(cfg, logger)
	}
	if e.helper == nil {
		e.helper = NewExecHelper(cfg.Helper)
	}
	return e
}

func (e *Executor) domain() string {
	return e.cfg.Platform.Domain
}

func (e *Executor) cookies(opts Options) ([]auth.Cookie, error) {
	if len(opts.CookieData) > 0 {
		cookies, err := auth.ParseCookies(opts.CookieData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse uploaded cookies: %w", err)
		}
		return cookies, nil
	}
	if opts.CookiesPath == "" {
		return nil, newError(KindCredential, "No cookie file provided", auth.ErrCredentials)
	}
	return auth.LoadCookies(opts.CookiesPath)
}

// openSession loads cookies and asks the opener for a session. The caller
// owns the returned session and must Close it.
func (e *Executor) openSession(ctx context.Context, opts Options, log *zap.Logger) (*browser.Session, error) {
	cookies, err := e.cookies(opts)
	if err != nil {
		return nil, err
	}

	launch := browser.LaunchOptions{
		Headless:       opts.Headless,
		RemoteEndpoint: opts.RemoteEndpoint,
		Proxy:          e.cfg.Browser.Proxy,
	}
	if opts.Proxy != nil {
		launch.Proxy = *opts.Proxy
	}

	session, err := e.sessions.Open(ctx, browser.OpenOptions{Launch: launch, Cookies: cookies})
	if err != nil {
		return nil, err
	}
	log.Debug("State", zap.String("state", "SessionOpen"), zap.Int("cookies", len(cookies)))
	return session, nil
}

func (e *Executor) closeSession(session *browser.Session, log *zap.Logger) {
	session.Close()
	log.Debug("State", zap.String("state", "SessionClosed"))
}

// navigate loads url and classifies the resulting page
func (e *Executor) navigate(ctx context.Context, page browser.Page, url string, log *zap.Logger) error {
	if err := browser.Navigate(ctx, page, url, e.cfg.Browser.NavTimeout); err != nil {
		return err
	}
	log.Debug("State", zap.String("state", "Navigated"), zap.String("url", url))
	return nil
}

func (e *Executor) classify(ctx context.Context, page browser.Page, log *zap.Logger) error {
	state, err := e.classifier.Classify(ctx, page)
	if err != nil {
		return err
	}
	log.Debug("State", zap.String("state", "PageClassified"), zap.Stringer("page", state.Kind), zap.String("reason", state.Reason))
	if !state.OK() {
		return stateError(state)
	}
	return nil
}

func (e *Executor) locator(target string, strategies ...scraper.Strategy) *scraper.Locator {
	l := scraper.NewLocator(target, e.logger, strategies...)
	l.Poll = e.timings.Poll
	return l
}

// record writes to the activity journal. Journal failures never fail the action.
func (e *Executor) record(subject, action string) {
	e.recordEmoji(subject, action, "")
}

func (e *Executor) recordEmoji(subject, action, emoji string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordEmoji(subject, action, emoji); err != nil {
		e.logger.Warn("Failed to write activity log", zap.Error(err))
	}
}

func (e *Executor) beginJournal(subsystem string) {
	if e.journal == nil {
		return
	}
	if err := e.journal.BeginSession(subsystem); err != nil {
		e.logger.Warn("Failed to write activity log header", zap.Error(err))
	}
}

// typeText types s one rune at a time with the configured keystroke delay
func (e *Executor) typeText(ctx context.Context, page browser.Page, s string) error {
	for _, r := range s {
		if err := page.Type(ctx, string(r)); err != nil {
			return err
		}
		if err := e.pacer.Keystroke(ctx); err != nil {
			return err
		}
	}
	return nil
}
