package browser

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/network"
)

// Box is an element's rendered content box in CSS pixels
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the middle of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Node is a snapshot of one DOM element. Parent is populated as far as the
// page implementation knows the ancestry.
type Node struct {
	ID     int64
	Tag    string
	Attrs  map[string]string
	Text   string
	Box    *Box
	Parent *Node
}

// Attr returns an attribute value or ""
func (n *Node) Attr(name string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// Visible reports whether the node has a rendered box with area
func (n *Node) Visible() bool {
	return n != nil && n.Box != nil && n.Box.Width > 0 && n.Box.Height > 0
}

// HasClasses reports whether the class attribute carries every given class.
// Other classes may be present.
func (n *Node) HasClasses(classes ...string) bool {
	have := strings.Fields(n.Attr("class"))
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	for _, c := range classes {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}

// Closest returns the nearest ancestor-or-self matching fn, or nil
func (n *Node) Closest(fn func(*Node) bool) *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if fn(cur) {
			return cur
		}
	}
	return nil
}

// Page is the set of browser operations the executors need. The chromedp
// implementation lives in chrome.go; tests supply fakes.
type Page interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// Query returns the elements currently matching a CSS selector.
	// No match is an empty slice, not an error.
	Query(ctx context.Context, selector string) ([]*Node, error)
	// BodyText returns the visible text of the document body.
	BodyText(ctx context.Context) (string, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// Click moves the pointer to the node's center and clicks it.
	Click(ctx context.Context, n *Node) error
	// Type sends text to the focused element as key events.
	Type(ctx context.Context, text string) error
	// PressEnter sends an Enter key press.
	PressEnter(ctx context.Context) error
	// SetCookies installs cookies in the browser.
	SetCookies(ctx context.Context, cookies []*network.CookieParam) error
}
