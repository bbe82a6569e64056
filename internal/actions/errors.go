package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/ibeckermayer/igwarmup/internal/auth"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/igapi"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
)

// Kind classifies why an action failed
type Kind string

const (
	KindCredential         Kind = "CredentialError"
	KindValidation         Kind = "ValidationError"
	KindDuplicateAction    Kind = "DuplicateActionError"
	KindPageClassification Kind = "PageClassificationError"
	KindElementNotFound    Kind = "ElementNotFoundError"
	KindInfrastructure     Kind = "InfrastructureError"
	KindUnexpected         Kind = "UnexpectedError"
)

// Error is a classified action failure. Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) withMessage(message string) *Error {
	e.Message = message
	return e
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, fmt.Sprintf(format, args...), nil)
}

func notFoundError(message string, err error) *Error {
	return newError(KindElementNotFound, message, err)
}

// missing reports a locator miss as message; other errors pass through
func missing(message string, err error) error {
	if errors.Is(err, scraper.ErrElementNotFound) {
		return notFoundError(message, err)
	}
	return err
}

func stateError(state scraper.PageState) *Error {
	return newError(KindPageClassification, state.Message(), &scraper.StateError{State: state})
}

// Classify turns any error into an *Error, keeping one that already is
func Classify(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var se *scraper.StateError
	switch {
	case errors.As(err, &se):
		return newError(KindPageClassification, se.State.Message(), err)
	case errors.Is(err, browser.ErrNotLoggedIn):
		return newError(KindCredential, "Not logged in. Please check cookies.", err)
	case errors.Is(err, auth.ErrCredentials):
		return newError(KindCredential, "Failed to load cookies: "+err.Error(), err)
	case errors.Is(err, igapi.ErrUnauthorized):
		return newError(KindCredential, "Failed to apply cookies: "+err.Error(), err)
	case errors.Is(err, scraper.ErrElementNotFound):
		return newError(KindElementNotFound, "Error: "+err.Error(), err)
	case errors.Is(err, browser.ErrLaunch),
		errors.Is(err, browser.ErrNavigation),
		errors.Is(err, igapi.ErrRateLimited),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return newError(KindInfrastructure, "Error: "+err.Error(), err)
	}

	var status *igapi.StatusError
	if errors.As(err, &status) {
		return newError(KindInfrastructure, "Error: "+err.Error(), err)
	}
	return newError(KindUnexpected, "Error: "+err.Error(), err)
}
