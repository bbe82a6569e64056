package browser_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/auth"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/browser/browsertest"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/humanize"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Platform.Domain = "platform.example"
	cfg.Pacing.Disabled = true
	return cfg
}

func newBootstrapper(page browser.Page, released *int) *browser.Bootstrapper {
	cfg := testConfig()
	return browser.NewBootstrapper(cfg, humanize.NewPacer(cfg.Pacing), zap.NewNop()).
		WithLauncher(browsertest.Launcher(page, released))
}

func TestOpenAuthenticatedSession(t *testing.T) {
	page := browsertest.NewPage(map[string]*browsertest.Document{
		"https://www.platform.example/": {Body: "Home"},
	})
	released := 0
	b := newBootstrapper(page, &released)

	cookies := []auth.Cookie{{Name: "sessionid", Value: "abc", Domain: ".platform.example"}}
	session, err := b.Open(context.Background(), browser.OpenOptions{Cookies: cookies})
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, []string{"https://www.platform.example/"}, page.Visited)
	require.Len(t, page.Cookies, 1)
	assert.Equal(t, "sessionid", page.Cookies[0].Name)
	assert.Equal(t, 0, released)

	session.Close()
	session.Close()
	assert.Equal(t, 1, released, "close is idempotent")
}

func TestOpenRejectsLoggedOutSession(t *testing.T) {
	page := browsertest.NewPage(map[string]*browsertest.Document{
		"https://www.platform.example/": {
			Elements: map[string][]*browser.Node{
				browser.LoginMarker: {browsertest.Visible(map[string]string{"name": "username"}, "")},
			},
		},
	})
	released := 0
	b := newBootstrapper(page, &released)

	session, err := b.Open(context.Background(), browser.OpenOptions{})
	assert.Nil(t, session)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNotLoggedIn)
	assert.Equal(t, 1, released, "the page is released on failure")
}

func TestOpenNavigationFailureReleases(t *testing.T) {
	page := browsertest.NewPage(nil)
	page.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	released := 0
	b := newBootstrapper(page, &released)

	_, err := b.Open(context.Background(), browser.OpenOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNavigation)
	assert.Equal(t, 1, released)
}

func TestOpenLaunchFailure(t *testing.T) {
	cfg := testConfig()
	b := browser.NewBootstrapper(cfg, humanize.NewPacer(cfg.Pacing), zap.NewNop()).
		WithLauncher(func(ctx context.Context, opts browser.LaunchOptions) (browser.Page, func(), error) {
			return nil, nil, errors.New("no chrome")
		})

	_, err := b.Open(context.Background(), browser.OpenOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrLaunch)
}

func TestRemoteURL(t *testing.T) {
	proxy := config.ProxyConfig{Enabled: true, Type: "residential", Country: "us", Sticky: true}

	got, err := browser.RemoteURL("wss://chrome.browserless.io?token=abc", proxy)
	require.NoError(t, err)
	assert.Equal(t, "wss://chrome.browserless.io?token=abc&proxy=residential&proxyCountry=us&proxySticky=true", got)

	got, err = browser.RemoteURL("ws://localhost:3000", proxy)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:3000?proxy=residential&proxyCountry=us&proxySticky=true", got)

	got, err = browser.RemoteURL("wss://host?token=abc&proxy=datacenter", proxy)
	require.NoError(t, err)
	assert.Equal(t, "wss://host?token=abc&proxy=datacenter", got, "an explicit proxy is left alone")

	got, err = browser.RemoteURL("wss://host?token=abc", config.ProxyConfig{})
	require.NoError(t, err)
	assert.Equal(t, "wss://host?token=abc", got)

	_, err = browser.RemoteURL("ftp://host", proxy)
	assert.Error(t, err)
}

func TestHostedURL(t *testing.T) {
	assert.Equal(t, "wss://chrome.browserless.io?token=a%2Bb", browser.HostedURL("a+b"))
}

func TestNodeHelpers(t *testing.T) {
	button := &browser.Node{Attrs: map[string]string{"role": "button"}}
	span := &browser.Node{Parent: button}
	icon := &browser.Node{
		Attrs:  map[string]string{"class": "xyb1xck x1lliihq  x1n2onr6", "aria-label": "Like"},
		Parent: span,
	}

	assert.True(t, icon.HasClasses("x1lliihq", "x1n2onr6", "xyb1xck"))
	assert.True(t, icon.HasClasses("x1lliihq", "x1n2onr6"))
	assert.False(t, icon.HasClasses("x1lliihq", "x5n08af"))

	extra := &browser.Node{Attrs: map[string]string{"class": "x1lliihq x1n2onr6 xyb1xck x5n08af"}}
	assert.True(t, extra.HasClasses("x1lliihq", "x1n2onr6", "xyb1xck"))
	assert.False(t, (&browser.Node{}).HasClasses("x1lliihq"))
	assert.Same(t, button, icon.Closest(func(n *browser.Node) bool { return n.Attr("role") == "button" }))
	assert.Nil(t, span.Closest(func(n *browser.Node) bool { return n.Attr("role") == "link" }))

	assert.False(t, icon.Visible())
	icon.Box = &browser.Box{X: 0, Y: 0, Width: 24, Height: 24}
	assert.True(t, icon.Visible())
	x, y := icon.Box.Center()
	assert.Equal(t, 12.0, x)
	assert.Equal(t, 12.0, y)
}
