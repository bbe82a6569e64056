package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/activity"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// ProfileURL is the profile page of username
func ProfileURL(domain, username string) string {
	return "https://www." + domain + "/" + username + "/"
}

// FetchNewestPost returns Username's most recent post using opts.Backend
func (e *Executor) FetchNewestPost(ctx context.Context, opts Options) types.Result {
	username := strings.TrimSpace(opts.Username)
	backend := opts.Backend
	if backend == "" {
		backend = BackendBrowser
	}
	return e.run(ctx, ActionNewestPost, username, backend, func(ctx context.Context, log *zap.Logger) (types.Result, error) {
		if username == "" {
			return types.Result{}, validationError("Username is required")
		}

		var fetch func(context.Context, string, Options, *zap.Logger) (*types.ExtractedPost, error)
		switch backend {
		case BackendBrowser:
			fetch = e.newestFromBrowser
		case BackendAPI:
			fetch = e.newestFromAPI
		case BackendHelper:
			fetch = e.newestFromHelper
		default:
			return types.Result{}, validationError("Unknown backend %q", backend)
		}

		e.beginJournal(activity.SubsystemPosts)
		e.record(username, "Attempting to fetch newest post")

		post, err := fetch(ctx, username, opts, log)
		if err != nil {
			return types.Result{}, err
		}
		e.record(username, "Successfully fetched newest post: "+post.PostCode)

		res := types.Succeeded(fmt.Sprintf("Successfully fetched newest post for %s", username))
		res.Post = post
		return res, nil
	})
}

func (e *Executor) newestFromBrowser(ctx context.Context, username string, opts Options, log *zap.Logger) (*types.ExtractedPost, error) {
	session, err := e.openSession(ctx, opts, log)
	if err != nil {
		return nil, err
	}
	defer e.closeSession(session, log)
	page := session.Page

	if err := e.navigate(ctx, page, ProfileURL(e.domain(), username), log); err != nil {
		return nil, err
	}
	if err := e.classify(ctx, page, log); err != nil {
		return nil, err
	}

	if _, err := scraper.WaitPresent(ctx, page, scraper.PostMarker, e.timings.PostMarkerWait, e.timings.Poll); err != nil {
		return nil, err
	}
	if err := e.pacer.Sleep(ctx, e.timings.ProfileSettle); err != nil {
		return nil, err
	}
	hasPosts, err := scraper.Present(ctx, page, scraper.PostMarker)
	if err != nil {
		return nil, err
	}
	if !hasPosts {
		return nil, notFoundError("No posts available for this user", scraper.ErrElementNotFound)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile page: %w", err)
	}
	ex := scraper.ExtractProfile(html, e.domain(), time.Now())
	if !ex.OK() {
		log.Debug("Profile extraction failed", zap.String("reason", ex.Reason))
		return nil, notFoundError(scraper.ReasonNoPostInfo, scraper.ErrElementNotFound)
	}
	log.Debug("State", zap.String("state", "ElementLocated"), zap.String("post_url", ex.Post.PostURL))

	// The detail page only refines the first pass; a failed visit keeps it.
	post := ex.Post
	if err := e.navigate(ctx, page, post.PostURL, log); err != nil {
		log.Warn("Post page did not load, keeping profile extraction", zap.Error(err))
		return post, nil
	}
	if err := e.pacer.Sleep(ctx, e.timings.DetailSettle); err != nil {
		return nil, err
	}
	if detailHTML, err := page.HTML(ctx); err == nil {
		post = scraper.Merge(post, scraper.ExtractDetail(detailHTML))
	}
	return post, nil
}
