package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/browser"
)

// ErrElementNotFound is returned when every strategy of a locator misses.
var ErrElementNotFound = errors.New("element not found")

// Strategy is one way of finding an element
type Strategy struct {
	Name     string
	Selector string
	Timeout  time.Duration
	// Match filters candidates; nil accepts any visible match.
	Match func(*browser.Node) bool
}

// Attempt records how one strategy fared
type Attempt struct {
	Strategy string
	Err      error
}

// NotFoundError aggregates every failed attempt
type NotFoundError struct {
	Target   string
	Attempts []Attempt
}

func (e *NotFoundError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("%s not found (%s)", e.Target, strings.Join(parts, "; "))
}

func (e *NotFoundError) Unwrap() error {
	return ErrElementNotFound
}

// Locator tries strategies in priority order, each under its own timeout.
// The first strategy that yields a visible match wins.
type Locator struct {
	Target     string
	Strategies []Strategy
	Poll       time.Duration

	logger *zap.Logger
}

// NewLocator creates a locator for target
func NewLocator(target string, logger *zap.Logger, strategies ...Strategy) *Locator {
	return &Locator{
		Target:     target,
		Strategies: strategies,
		Poll:       250 * time.Millisecond,
		logger:     logger,
	}
}

// Locate returns the first visible match. Cancellation of ctx aborts the
// whole chain; a strategy timeout only moves on to the next strategy.
func (l *Locator) Locate(ctx context.Context, page browser.Page) (*browser.Node, string, error) {
	nf := &NotFoundError{Target: l.Target}
	for _, s := range l.Strategies {
		node, err := l.try(ctx, page, s)
		if err == nil {
			l.logger.Debug("Element located", zap.String("target", l.Target), zap.String("strategy", s.Name))
			return node, s.Name, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		l.logger.Debug("Strategy missed", zap.String("target", l.Target), zap.String("strategy", s.Name), zap.Error(err))
		nf.Attempts = append(nf.Attempts, Attempt{Strategy: s.Name, Err: err})
	}
	return nil, "", nf
}

func (l *Locator) try(ctx context.Context, page browser.Page, s Strategy) (*browser.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	poll := l.Poll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var lastErr error
	for {
		nodes, err := page.Query(ctx, s.Selector)
		if err != nil {
			lastErr = err
		}
		for _, n := range nodes {
			if n.Visible() && (s.Match == nil || s.Match(n)) {
				return n, nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
				return nil, lastErr
			}
			return nil, fmt.Errorf("no visible match for %q within %s", s.Selector, s.Timeout)
		case <-ticker.C:
		}
	}
}

// Present reports whether selector currently matches anything, visible or not
func Present(ctx context.Context, page browser.Page, selector string) (bool, error) {
	nodes, err := page.Query(ctx, selector)
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// WaitPresent polls until selector matches or timeout elapses. It reports
// whether a match appeared; a timeout is not an error.
func WaitPresent(ctx context.Context, page browser.Page, selector string, timeout, poll time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if ok, err := Present(waitCtx, page, selector); err == nil && ok {
			return true, nil
		}
		select {
		case <-waitCtx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
