package scraper

// Platform DOM selectors.
// These are isolated here because the markup changes frequently.
// Update these when location breaks.

const (
	// Post page
	LikeIcon        = `svg[aria-label="Like"]`
	CommentTextarea = `textarea[aria-label="Add a comment…"][placeholder="Add a comment…"]`

	// Stories
	ViewStoryButton = `div[role="button"]:not([aria-disabled="true"]):not([aria-hidden="true"]):not([aria-label]):not([aria-selected]):not([aria-pressed]):not([aria-checked]):not([aria-expanded])`
	StoryMarker     = `div.x1n2onr6`
	StoryReply      = `textarea.x1i10hfl.xjbqb8w.x972fbf.xcfux6l.x1qhh985.xm0m39n.x7e90pr.xw3qccf.x1a2a7pz.xw2csxc.x1odjw0f.x1y1aw1k.xpvbz4a.xwib8y2.xohu8s8.xtt52l0.xh8yej3.xomwbyg`
	StoryReplyPlain = `textarea[placeholder^="Reply to"]`

	// Profile grid
	PostMarker = `article, div[data-test-id="post-container"], div._aagv, a[href*="/p/"]`
	PostLink   = `a[href*="/p/"]`
)

// LikeIconClasses are the classes every unfilled like icon carries
var LikeIconClasses = []string{"x1lliihq", "x1n2onr6", "xyb1xck"}

// ViewStoryText is the label of the story gate button
const ViewStoryText = "View story"
