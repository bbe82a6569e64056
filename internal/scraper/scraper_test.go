package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/browser/browsertest"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func defaultClassifier() *Classifier {
	cfg := config.Default()
	return NewClassifier(cfg.Platform.NotFoundPhrases, cfg.Platform.WarningKeywords)
}

func TestClassifyText(t *testing.T) {
	c := defaultClassifier()

	tests := []struct {
		name   string
		body   string
		kind   StateKind
		reason string
	}{
		{"healthy", "Stories from your friends", StateOK, ""},
		{"not found", "Sorry, this page isn't available.", StateNotFound, "sorry, this page isn't available"},
		{"warning", "Your account has been temporarily LOCKED", StateWarning, "locked"},
		{"not found wins over warning", "Page not found. Suspicious login attempt", StateNotFound, "page not found"},
		{"broken link", "The link you followed may be broken", StateNotFound, "the link you followed may be broken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := c.ClassifyText(tt.body)
			assert.Equal(t, tt.kind, state.Kind)
			assert.Equal(t, tt.reason, state.Reason)
		})
	}
}

func TestPageStateMessage(t *testing.T) {
	assert.Equal(t, "Account not found or page not available", PageState{Kind: StateNotFound}.Message())
	assert.Equal(t, `Warning word "limit" detected on page`, PageState{Kind: StateWarning, Reason: "limit"}.Message())
	assert.True(t, PageState{}.OK())
}

func TestClassifyReadsBody(t *testing.T) {
	page := browsertest.NewPage(map[string]*browsertest.Document{
		"https://www.platform.example/x/": {Body: "Please verify it's you"},
	})
	require.NoError(t, page.Navigate(context.Background(), "https://www.platform.example/x/"))

	state, err := defaultClassifier().Classify(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, PageState{Kind: StateWarning, Reason: "verify"}, state)
}

func locatorFor(strategies ...Strategy) *Locator {
	l := NewLocator("target", zap.NewNop(), strategies...)
	l.Poll = 5 * time.Millisecond
	return l
}

func TestLocatorPrefersEarlierStrategy(t *testing.T) {
	page := browsertest.NewPage(nil)
	primary := browsertest.Visible(map[string]string{"id": "primary"}, "")
	fallback := browsertest.Visible(map[string]string{"id": "fallback"}, "")
	page.Show("textarea.primary", primary)
	page.Show("textarea.fallback", fallback)

	l := locatorFor(
		Strategy{Name: "primary", Selector: "textarea.primary", Timeout: 50 * time.Millisecond},
		Strategy{Name: "fallback", Selector: "textarea.fallback", Timeout: 50 * time.Millisecond},
	)
	node, name, err := l.Locate(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "primary", name)
	assert.Same(t, primary, node)
}

func TestLocatorFallsBackAfterTimeout(t *testing.T) {
	page := browsertest.NewPage(nil)
	fallback := browsertest.Visible(nil, "")
	page.Show("textarea.fallback", fallback)

	l := locatorFor(
		Strategy{Name: "primary", Selector: "textarea.primary", Timeout: 30 * time.Millisecond},
		Strategy{Name: "fallback", Selector: "textarea.fallback", Timeout: 30 * time.Millisecond},
	)
	node, name, err := l.Locate(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "fallback", name)
	assert.Same(t, fallback, node)
	assert.Contains(t, page.Queries, "textarea.primary")
}

func TestLocatorWaitsForLateElement(t *testing.T) {
	page := browsertest.NewPage(map[string]*browsertest.Document{
		"u": {
			Elements: map[string][]*browser.Node{"svg": {browsertest.Visible(nil, "")}},
			Hidden:   map[string]int{"svg": 3},
		},
	})
	require.NoError(t, page.Navigate(context.Background(), "u"))

	l := locatorFor(Strategy{Name: "only", Selector: "svg", Timeout: time.Second})
	_, _, err := l.Locate(context.Background(), page)
	require.NoError(t, err)
}

func TestLocatorAggregatesFailures(t *testing.T) {
	page := browsertest.NewPage(nil)
	hidden := &browser.Node{} // no box
	page.Show("textarea.a", hidden)

	l := locatorFor(
		Strategy{Name: "a", Selector: "textarea.a", Timeout: 20 * time.Millisecond},
		Strategy{Name: "b", Selector: "textarea.b", Timeout: 20 * time.Millisecond},
	)
	_, _, err := l.Locate(context.Background(), page)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Len(t, nf.Attempts, 2)
	assert.Equal(t, "a", nf.Attempts[0].Strategy)
	assert.Equal(t, "b", nf.Attempts[1].Strategy)
}

func TestLocatorMatchFilter(t *testing.T) {
	page := browsertest.NewPage(nil)
	unrelated := browsertest.Visible(map[string]string{"class": "x1lliihq x1n2onr6"}, "")
	like := browsertest.Visible(map[string]string{"class": "x1lliihq x1n2onr6 xyb1xck x5n08af"}, "")
	page.Show(LikeIcon, unrelated, like)

	l := locatorFor(Strategy{
		Name:     "like icon",
		Selector: LikeIcon,
		Timeout:  50 * time.Millisecond,
		Match:    func(n *browser.Node) bool { return n.HasClasses(LikeIconClasses...) },
	})
	node, _, err := l.Locate(context.Background(), page)
	require.NoError(t, err)
	assert.Same(t, like, node)
}

func TestLocatorStopsOnCancel(t *testing.T) {
	page := browsertest.NewPage(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := locatorFor(
		Strategy{Name: "a", Selector: "a", Timeout: time.Second},
		Strategy{Name: "b", Selector: "b", Timeout: time.Second},
	)
	_, _, err := l.Locate(ctx, page)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitPresent(t *testing.T) {
	page := browsertest.NewPage(nil)
	ok, err := WaitPresent(context.Background(), page, StoryMarker, 20*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	page.Show(StoryMarker, &browser.Node{})
	ok, err = WaitPresent(context.Background(), page, StoryMarker, 20*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

const profileHTML = `<html><body>
<header><img src="https://cdn.example/avatar.jpg" alt="profile picture" width="150" height="150"></header>
<main>
  <div class="grid">
    <div class="row">
      <a href="/p/AbC123/?img_index=1"><img src="https://cdn.example/abc123.jpg"><span>Sunset over the bay tonight</span></a>
      <a href="/p/Older99/"><img src="https://cdn.example/older.jpg"></a>
    </div>
  </div>
</main>
</body></html>`

func TestExtractProfile(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ex := ExtractProfile(profileHTML, "platform.example", now)
	require.True(t, ex.OK(), ex.Reason)

	p := ex.Post
	assert.Equal(t, "https://www.platform.example/p/AbC123/", p.PostURL)
	assert.Equal(t, "AbC123", p.PostCode)
	assert.Equal(t, "AbC123", p.PostID)
	assert.Equal(t, "Sunset over the bay tonight", p.Caption)
	assert.Equal(t, "https://cdn.example/abc123.jpg", p.MediaURL)
	assert.Equal(t, types.MediaImage, p.MediaType)
	assert.Equal(t, now, p.Timestamp)
}

func TestExtractProfilePrefersArticle(t *testing.T) {
	html := `<html><body>
<a href="/p/Outside1/">outside</a>
<article><h2>  Headline caption </h2><a href="https://www.platform.example/p/Inside2/"><video src="https://cdn.example/v.mp4"></video></a></article>
</body></html>`
	ex := ExtractProfile(html, "platform.example", time.Now())
	require.True(t, ex.OK())
	assert.Equal(t, "Inside2", ex.Post.PostCode)
	assert.Equal(t, "Headline caption", ex.Post.Caption)
	assert.Equal(t, types.MediaVideo, ex.Post.MediaType)
	assert.Equal(t, "https://cdn.example/v.mp4", ex.Post.MediaURL)
}

func TestExtractProfileUserScopedLinks(t *testing.T) {
	html := `<html><body><main><div class="grid">
<a href="/natgeo/p/DAbc123xyz/"><img src="https://cdn.example/grid.jpg"></a>
</div></main></body></html>`
	ex := ExtractProfile(html, "platform.example", time.Now())
	require.True(t, ex.OK(), ex.Reason)
	assert.Equal(t, "DAbc123xyz", ex.Post.PostCode)
	assert.Equal(t, "https://www.platform.example/p/DAbc123xyz/", ex.Post.PostURL)
	assert.Equal(t, "https://cdn.example/grid.jpg", ex.Post.MediaURL)
}

func TestExtractProfileWithoutPosts(t *testing.T) {
	ex := ExtractProfile(`<html><body><article><a href="/reels/x/">reel</a></article></body></html>`, "platform.example", time.Now())
	assert.False(t, ex.OK())
	assert.Nil(t, ex.Post)
	assert.Equal(t, ReasonNoPostInfo, ex.Reason)
}

func TestExtractDetailAndMerge(t *testing.T) {
	html := `<html><body><article>
<span>short</span>
<span>A much longer caption with #hashtags and words</span>
<img src="https://cdn.example/full.jpg">
</article></body></html>`

	d := ExtractDetail(html)
	assert.Equal(t, "A much longer caption with #hashtags and words", d.Caption)
	assert.Equal(t, "https://cdn.example/full.jpg", d.MediaURL)

	post := &types.ExtractedPost{PostURL: "u", Caption: "Sunset", MediaURL: "thumb.jpg", MediaType: types.MediaImage}
	Merge(post, d)
	assert.Equal(t, "A much longer caption with #hashtags and words", post.Caption)
	assert.Equal(t, "https://cdn.example/full.jpg", post.MediaURL)

	// An empty detail never degrades what the first pass found.
	Merge(post, PostDetail{})
	assert.Equal(t, "A much longer caption with #hashtags and words", post.Caption)
	assert.Equal(t, "https://cdn.example/full.jpg", post.MediaURL)
	assert.Equal(t, types.MediaImage, post.MediaType)
}

func TestPostCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
		ok   bool
	}{
		{"canonical", "https://platform.example/p/AbC123/", "AbC123", true},
		{"no trailing slash", "https://www.platform.example/p/a_b-c", "a_b-c", true},
		{"profile grid link", "https://www.platform.example/natgeo/p/DAbc123xyz/", "DAbc123xyz", true},
		{"relative grid link", "/natgeo/p/DAbc123xyz/?img_index=2", "DAbc123xyz", true},
		{"comments page", "https://platform.example/p/AbC123/comments/", "AbC123", true},
		{"not a post", "https://platform.example/notaposturl/", "", false},
		{"dangling p", "https://platform.example/natgeo/p/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := PostCode(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
	assert.Equal(t, "https://www.platform.example/p/XyZ/", PostURL("platform.example", "XyZ"))
}

func TestCanonicalPostCode(t *testing.T) {
	code, ok := CanonicalPostCode("https://platform.example/p/AbC123/")
	assert.True(t, ok)
	assert.Equal(t, "AbC123", code)

	_, ok = CanonicalPostCode("https://platform.example/natgeo/p/AbC123/")
	assert.False(t, ok)
	_, ok = CanonicalPostCode("https://platform.example/p/AbC123/comments/")
	assert.False(t, ok)
}
