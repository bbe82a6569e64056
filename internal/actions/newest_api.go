package actions

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/auth"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/igapi"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// FeedAPI is the subset of the private API the newest-post backend uses
type FeedAPI interface {
	CurrentUser(ctx context.Context) (*igapi.User, error)
	SearchExact(ctx context.Context, username string) (*igapi.User, error)
	UserFeed(ctx context.Context, pk igapi.ID) ([]igapi.FeedItem, error)
}

// FeedAPIFactory builds an API client authenticated with cookies
type FeedAPIFactory func(cookies []auth.Cookie) (FeedAPI, error)

// NewFeedAPIFactory returns a factory producing igapi clients from cfg
func NewFeedAPIFactory(cfg *config.Config, logger *zap.Logger) FeedAPIFactory {
	return func(cookies []auth.Cookie) (FeedAPI, error) {
		jar, err := auth.NewJar(cookies, cfg.Platform.Domain)
		if err != nil {
			return nil, fmt.Errorf("failed to build cookie jar: %w", err)
		}
		return igapi.New(cfg.API, jar, logger)
	}
}

func (e *Executor) newestFromAPI(ctx context.Context, username string, opts Options, log *zap.Logger) (*types.ExtractedPost, error) {
	cookies, err := e.cookies(opts)
	if err != nil {
		return nil, err
	}
	api, err := e.feedAPI(cookies)
	if err != nil {
		return nil, err
	}
	e.record(username, "Successfully loaded cookies")

	me, err := api.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("State", zap.String("state", "SessionOpen"), zap.String("account", me.Username))

	user, err := api.SearchExact(ctx, username)
	if errors.Is(err, igapi.ErrUserNotFound) {
		return nil, stateError(scraper.PageState{Kind: scraper.StateNotFound}).withMessage(fmt.Sprintf("User %s not found", username))
	}
	if err != nil {
		return nil, err
	}

	items, err := api.UserFeed(ctx, user.PK)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, notFoundError("No posts available for this user", scraper.ErrElementNotFound)
	}
	newest, ok := igapi.SelectNewest(items)
	if !ok {
		return nil, notFoundError("No content found after filtering", scraper.ErrElementNotFound)
	}
	log.Debug("State", zap.String("state", "ElementLocated"), zap.String("code", newest.Code))
	return newest.ToPost(e.domain()), nil
}
