package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// maxAncestors bounds how far Query copies a node's parent chain
const maxAncestors = 16

// chromePage drives one chromedp tab. ctx is the tab context; per-call
// contexts only contribute their deadline and cancellation.
type chromePage struct {
	ctx context.Context
}

// NewChromePage wraps a chromedp tab context
func NewChromePage(tabCtx context.Context) Page {
	return &chromePage{ctx: tabCtx}
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Query(ctx context.Context, selector string) ([]*Node, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	out := make([]*Node, 0, len(nodes))
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, n := range nodes {
			node := snapshot(n, maxAncestors)
			node.Box = boxOf(ctx, n.NodeID)
			if html, err := dom.GetOuterHTML().WithNodeID(n.NodeID).Do(ctx); err == nil {
				node.Text = textOf(html)
			}
			out = append(out, node)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *chromePage) BodyText(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Click(ctx context.Context, n *Node) error {
	if n == nil {
		return fmt.Errorf("click: nil node")
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		id := cdp.NodeID(n.ID)
		if err := dom.ScrollIntoViewIfNeeded().WithNodeID(id).Do(ctx); err != nil {
			return fmt.Errorf("scroll into view: %w", err)
		}
		box := boxOf(ctx, id)
		if box == nil {
			box = n.Box
		}
		if box == nil {
			return fmt.Errorf("click: element has no box")
		}
		x, y := box.Center()
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		return chromedp.MouseClickXY(x, y).Do(ctx)
	}))
}

func (p *chromePage) Type(ctx context.Context, text string) error {
	return p.run(ctx, chromedp.KeyEvent(text))
}

func (p *chromePage) PressEnter(ctx context.Context) error {
	return p.run(ctx, chromedp.KeyEvent(kb.Enter))
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []*network.CookieParam) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(cookies).Do(ctx)
	}))
}

// snapshot copies a cdp node and up to depth ancestors
func snapshot(n *cdp.Node, depth int) *Node {
	n.RLock()
	node := &Node{
		ID:    int64(n.NodeID),
		Tag:   strings.ToLower(n.LocalName),
		Attrs: make(map[string]string, len(n.Attributes)/2),
	}
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		node.Attrs[n.Attributes[i]] = n.Attributes[i+1]
	}
	parent := n.Parent
	n.RUnlock()

	if parent != nil && depth > 0 && parent.NodeType == cdp.NodeTypeElement {
		node.Parent = snapshot(parent, depth-1)
	}
	return node
}

func boxOf(ctx context.Context, id cdp.NodeID) *Box {
	model, err := dom.GetBoxModel().WithNodeID(id).Do(ctx)
	if err != nil || model == nil || len(model.Content) < 8 {
		return nil
	}
	q := model.Content
	minX, maxX, minY, maxY := q[0], q[0], q[1], q[1]
	for i := 0; i < len(q); i += 2 {
		minX, maxX = min(minX, q[i]), max(maxX, q[i])
		minY, maxY = min(minY, q[i+1]), max(maxY, q[i+1])
	}
	return &Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func textOf(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}
