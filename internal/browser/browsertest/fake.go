// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/igwarmup/internal/browser"
)

// Document is what the fake page shows for one URL
type Document struct {
	Body     string
	HTML     string
	Elements map[string][]*browser.Node
	// Hidden holds, per selector, how many queries miss before the
	// elements appear.
	Hidden map[string]int
}

// Page is a scripted browser.Page. Unknown URLs render an empty document.
type Page struct {
	mu sync.Mutex

	Docs        map[string]*Document
	NavigateErr error
	QueryErr    error
	OnClick     func(p *Page, n *browser.Node)

	current *Document
	Visited []string
	Queries []string
	Clicked []*browser.Node
	Typed   []string
	Enters  int
	Cookies []*network.CookieParam
}

// NewPage creates a fake page serving docs
func NewPage(docs map[string]*Document) *Page {
	if docs == nil {
		docs = map[string]*Document{}
	}
	return &Page{Docs: docs, current: &Document{}}
}

// Visible returns a node with a non-empty box
func Visible(attrs map[string]string, text string) *browser.Node {
	return &browser.Node{
		Attrs: attrs,
		Text:  text,
		Box:   &browser.Box{X: 10, Y: 20, Width: 100, Height: 40},
	}
}

// Show makes selector match nodes on the current document
func (p *Page) Show(selector string, nodes ...*browser.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.Elements == nil {
		p.current.Elements = map[string][]*browser.Node{}
	}
	p.current.Elements[selector] = nodes
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Visited = append(p.Visited, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	if doc, ok := p.Docs[url]; ok {
		p.current = doc
	} else {
		p.current = &Document{}
	}
	return nil
}

func (p *Page) Query(ctx context.Context, selector string) ([]*browser.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Queries = append(p.Queries, selector)
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	if n := p.current.Hidden[selector]; n > 0 {
		p.current.Hidden[selector] = n - 1
		return nil, nil
	}
	return p.current.Elements[selector], nil
}

func (p *Page) BodyText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Body, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.HTML, nil
}

func (p *Page) Click(ctx context.Context, n *browser.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("click: nil node")
	}
	p.mu.Lock()
	p.Clicked = append(p.Clicked, n)
	hook := p.OnClick
	p.mu.Unlock()
	if hook != nil {
		hook(p, n)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Typed = append(p.Typed, text)
	return nil
}

func (p *Page) PressEnter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Enters++
	return nil
}

func (p *Page) SetCookies(ctx context.Context, cookies []*network.CookieParam) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Cookies = append(p.Cookies, cookies...)
	return nil
}

// Launcher returns a browser.Launcher handing out page and counting
// releases in *released.
func Launcher(page browser.Page, released *int) browser.Launcher {
	var mu sync.Mutex
	return func(ctx context.Context, opts browser.LaunchOptions) (browser.Page, func(), error) {
		return page, func() {
			mu.Lock()
			defer mu.Unlock()
			*released++
		}, nil
	}
}
