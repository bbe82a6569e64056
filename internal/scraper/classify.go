package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/ibeckermayer/igwarmup/internal/browser"
)

// StateKind is the coarse health of a loaded page
type StateKind int

const (
	StateOK StateKind = iota
	StateNotFound
	StateWarning
)

func (k StateKind) String() string {
	switch k {
	case StateOK:
		return "ok"
	case StateNotFound:
		return "not_found"
	case StateWarning:
		return "warning"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// PageState is a classification result. Reason is the matched keyword
// for StateWarning.
type PageState struct {
	Kind   StateKind
	Reason string
}

// OK reports whether the page is healthy
func (s PageState) OK() bool {
	return s.Kind == StateOK
}

// Message is the human-readable outcome for a non-OK state
func (s PageState) Message() string {
	switch s.Kind {
	case StateNotFound:
		return "Account not found or page not available"
	case StateWarning:
		return fmt.Sprintf("Warning word %q detected on page", s.Reason)
	default:
		return "Page loaded successfully"
	}
}

// StateError carries a non-OK page state through error returns
type StateError struct {
	State PageState
}

func (e *StateError) Error() string {
	return e.State.Message()
}

// Classifier decides page health from visible text
type Classifier struct {
	notFound []string
	warnings []string
}

// NewClassifier lower-cases both phrase sets once
func NewClassifier(notFound, warnings []string) *Classifier {
	return &Classifier{notFound: lowerAll(notFound), warnings: lowerAll(warnings)}
}

// ClassifyText checks not-found phrases before warning keywords
func (c *Classifier) ClassifyText(text string) PageState {
	body := strings.ToLower(text)
	for _, phrase := range c.notFound {
		if strings.Contains(body, phrase) {
			return PageState{Kind: StateNotFound, Reason: phrase}
		}
	}
	for _, word := range c.warnings {
		if strings.Contains(body, word) {
			return PageState{Kind: StateWarning, Reason: word}
		}
	}
	return PageState{Kind: StateOK}
}

// Classify reads the page body and classifies it
func (c *Classifier) Classify(ctx context.Context, page browser.Page) (PageState, error) {
	text, err := page.BodyText(ctx)
	if err != nil {
		return PageState{}, fmt.Errorf("failed to read page text: %w", err)
	}
	return c.ClassifyText(text), nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
