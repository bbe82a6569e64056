package actions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/activity"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

var (
	errNotPlatformURL = errors.New("not an Instagram URL")
	errNotPostURL     = errors.New("invalid Instagram post URL format")
)

// ValidatePostURL checks that raw is a post URL on domain and returns its
// shortcode.
func ValidatePostURL(raw, domain string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errNotPostURL
	}
	if !strings.Contains(strings.ToLower(u.Hostname()), strings.ToLower(domain)) {
		return "", errNotPlatformURL
	}
	code, ok := scraper.CanonicalPostCode(raw)
	if !ok {
		return "", errNotPostURL
	}
	return code, nil
}

// PostComment types Comment into the post's comment box. A DedupKey already
// in the ledger fails before any browser is started.
func (e *Executor) PostComment(ctx context.Context, opts Options) types.Result {
	return e.run(ctx, ActionComment, opts.PostURL, "", func(ctx context.Context, log *zap.Logger) (types.Result, error) {
		if opts.PostURL == "" {
			return types.Result{}, validationError("Post URL is required")
		}
		if strings.TrimSpace(opts.Comment) == "" {
			return types.Result{}, validationError("Comment text is required")
		}
		code, err := ValidatePostURL(opts.PostURL, e.domain())
		if err != nil {
			return types.Result{}, validationError("Invalid Instagram URL: %v", err)
		}

		key := strings.TrimSpace(opts.DedupKey)
		if key == "" {
			key = code
		}
		if e.ledger != nil {
			seen, err := e.ledger.Contains(ctx, key)
			if err != nil {
				return types.Result{}, fmt.Errorf("failed to read comment ledger: %w", err)
			}
			if seen {
				return types.Result{}, newError(KindDuplicateAction, "Already commented on this post", nil)
			}
		}
		e.beginJournal(activity.SubsystemComments)

		session, err := e.openSession(ctx, opts, log)
		if err != nil {
			return types.Result{}, err
		}
		defer e.closeSession(session, log)
		page := session.Page

		if err := e.navigate(ctx, page, opts.PostURL, log); err != nil {
			return types.Result{}, err
		}
		settle := e.pacer.Duration(
			time.Duration(e.cfg.Actions.CommentMinSec)*time.Second,
			time.Duration(e.cfg.Actions.CommentMaxSec)*time.Second,
		)
		if err := e.pacer.Sleep(ctx, settle); err != nil {
			return types.Result{}, err
		}

		textarea, _, err := e.locator("comment textarea", scraper.Strategy{
			Name:     "comment textarea",
			Selector: scraper.CommentTextarea,
			Timeout:  e.timings.CommentWait,
		}).Locate(ctx, page)
		if err != nil {
			return types.Result{}, missing("Could not find comment textarea", err)
		}
		log.Debug("State", zap.String("state", "ElementLocated"), zap.String("target", "comment textarea"))

		if err := page.Click(ctx, textarea); err != nil {
			return types.Result{}, err
		}
		if err := e.typeText(ctx, page, opts.Comment); err != nil {
			return types.Result{}, err
		}
		if err := page.PressEnter(ctx); err != nil {
			return types.Result{}, err
		}
		log.Debug("State", zap.String("state", "ActionPerformed"))

		// Enter confirms the comment.
		if e.ledger != nil {
			if err := e.ledger.Record(context.WithoutCancel(ctx), key); err != nil {
				log.Error("Failed to record comment in ledger", zap.String("key", key), zap.Error(err))
			}
		}
		e.record(opts.PostURL, "Posted comment")
		log.Debug("State", zap.String("state", "Logged"))

		if err := e.pacer.Sleep(ctx, e.timings.CommentPost); err != nil {
			return types.Result{}, err
		}
		return types.Succeeded("Comment posted successfully"), nil
	})
}
