package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/actions"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/browser/browsertest"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/notifier"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
)

const cookieJSON = `[{"name": "sessionid", "value": "abc", "domain": ".platform.example"}]`

type recordingSender struct {
	subjects []string
}

func (r *recordingSender) Send(_, subject, _, _ string) error {
	r.subjects = append(r.subjects, subject)
	return nil
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Platform.Domain = "platform.example"
	cfg.Pacing.Disabled = true
	cfg.Storage.ActivityLog = filepath.Join(dir, "logs", "activity_log.txt")
	cfg.Storage.LedgerPath = filepath.Join(dir, "logs", "comment_log.txt")
	cfg.Storage.DatabasePath = filepath.Join(dir, "data", "igwarmup.db")
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, page *browsertest.Page, sender *recordingSender) *App {
	t.Helper()
	dir := t.TempDir()
	released := 0
	a, err := New(cfg, Options{
		Launcher:   browsertest.Launcher(page, &released),
		Notifier:   notifier.New(sender, "ops@example.com"),
		PostsDir:   filepath.Join(dir, "posts"),
		ConfigPath: filepath.Join(dir, "config.toml"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func opts() actions.Options {
	return actions.Options{CookieData: []byte(cookieJSON), Headless: true}
}

func TestWarningSendsAlert(t *testing.T) {
	page := browsertest.NewPage(map[string]*browsertest.Document{
		"https://www.platform.example/stories/alice/": {Body: "You've hit a rate limit"},
	})
	sender := &recordingSender{}
	a := newTestApp(t, testConfig(t.TempDir()), page, sender)

	o := opts()
	o.Username = "alice"
	res := a.LikeStory(context.Background(), o)

	assert.False(t, res.Success)
	assert.Equal(t, `Warning word "limit" detected on page`, res.Message)
	assert.Equal(t, []string{`[igwarmup] "limit" flagged during like_story`}, sender.subjects)

	runs, err := a.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "alice", runs[0].Subject)
	assert.Equal(t, string(actions.KindPageClassification), runs[0].Kind)
}

func TestNotFoundDoesNotAlert(t *testing.T) {
	page := browsertest.NewPage(map[string]*browsertest.Document{
		"https://www.platform.example/stories/ghost/": {Body: "Sorry, this page isn't available."},
	})
	sender := &recordingSender{}
	a := newTestApp(t, testConfig(t.TempDir()), page, sender)

	o := opts()
	o.Username = "ghost"
	res := a.LikeStory(context.Background(), o)

	assert.False(t, res.Success)
	assert.Empty(t, sender.subjects)
}

func TestNewestPostIsPersisted(t *testing.T) {
	page := browsertest.NewPage(map[string]*browsertest.Document{
		"https://www.platform.example/alice/": {
			Elements: map[string][]*browser.Node{scraper.PostMarker: {browsertest.Visible(nil, "")}},
			HTML:     `<html><body><article><a href="/p/XYZ/"><img src="https://cdn.example/a.jpg"></a></article></body></html>`,
		},
	})
	a := newTestApp(t, testConfig(t.TempDir()), page, &recordingSender{})

	o := opts()
	o.Username = "alice"
	res := a.FetchNewestPost(context.Background(), o)
	require.True(t, res.Success, res.Message)

	latest, err := a.LatestPost(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://www.platform.example/p/XYZ/", latest.Post.PostURL)
	assert.Equal(t, actions.BackendBrowser, latest.Backend)

	entries, err := os.ReadDir(a.opts.PostsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSQLiteLedgerAfterReload(t *testing.T) {
	postURL := "https://www.platform.example/p/AbC123/"
	page := browsertest.NewPage(map[string]*browsertest.Document{
		postURL: {Elements: map[string][]*browser.Node{
			scraper.CommentTextarea: {browsertest.Visible(nil, "")},
		}},
	})
	cfg := testConfig(t.TempDir())
	a := newTestApp(t, cfg, page, &recordingSender{})

	reloaded := testConfig(filepath.Dir(filepath.Dir(cfg.Storage.DatabasePath)))
	reloaded.Storage.LedgerBackend = "sqlite"
	require.NoError(t, reloaded.Save(a.opts.ConfigPath))
	require.NoError(t, a.ReloadConfig())
	assert.Equal(t, "sqlite", a.Config().Storage.LedgerBackend)

	o := opts()
	o.PostURL = postURL
	o.Comment = "great shot"
	require.True(t, a.PostComment(context.Background(), o).Success)

	res := a.PostComment(context.Background(), o)
	assert.Equal(t, "Already commented on this post", res.Message)

	_, err := os.Stat(cfg.Storage.LedgerPath)
	assert.True(t, os.IsNotExist(err), "file ledger unused with the sqlite backend")
}

func TestWarmUpFromConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Schedule.Usernames = []string{"alice", "bob"}
	cfg.Schedule.Cookies = "/tmp/cookies.json"
	a := newTestApp(t, cfg, browsertest.NewPage(nil), &recordingSender{})

	w := a.WarmUp()
	assert.Equal(t, []string{"alice", "bob"}, w.Usernames)
	assert.Equal(t, "/tmp/cookies.json", w.Template.CookiesPath)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Storage.LedgerBackend = "postgres"
	_, err := New(cfg, Options{PostsDir: t.TempDir()}, zap.NewNop())
	assert.Error(t, err)
}
