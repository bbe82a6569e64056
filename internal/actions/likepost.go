package actions

import (
	"context"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/activity"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// LikePost opens PostURL and clicks its like control
func (e *Executor) LikePost(ctx context.Context, opts Options) types.Result {
	return e.run(ctx, ActionLikePost, opts.PostURL, "", func(ctx context.Context, log *zap.Logger) (types.Result, error) {
		if opts.PostURL == "" {
			return types.Result{}, validationError("Post URL is required")
		}
		e.beginJournal(activity.SubsystemLikes)

		session, err := e.openSession(ctx, opts, log)
		if err != nil {
			return types.Result{}, err
		}
		defer e.closeSession(session, log)
		page := session.Page

		if err := e.navigate(ctx, page, opts.PostURL, log); err != nil {
			return types.Result{}, err
		}
		if err := e.pacer.Sleep(ctx, e.timings.LikeSettle); err != nil {
			return types.Result{}, err
		}

		icon, _, err := e.likeLocator().Locate(ctx, page)
		if err != nil {
			return types.Result{}, missing("Like button not found on the page", err)
		}
		button := icon.Closest(func(n *browser.Node) bool { return n.Attr("role") == "button" })
		if button == nil {
			return types.Result{}, notFoundError("Like button not found on the page", scraper.ErrElementNotFound)
		}
		if button.Box == nil {
			button.Box = icon.Box
		}
		log.Debug("State", zap.String("state", "ElementLocated"), zap.String("target", "like button"))

		if err := page.Click(ctx, button); err != nil {
			return types.Result{}, err
		}
		log.Debug("State", zap.String("state", "ActionPerformed"))
		if err := e.pacer.Sleep(ctx, e.timings.LikeSettle); err != nil {
			return types.Result{}, err
		}

		e.record(opts.PostURL, "Liked post")
		log.Debug("State", zap.String("state", "Logged"))
		return types.Succeeded("Post liked successfully"), nil
	})
}

func (e *Executor) likeLocator() *scraper.Locator {
	return e.locator("like button", scraper.Strategy{
		Name:     "like icon",
		Selector: scraper.LikeIcon,
		Timeout:  e.timings.LikeWait,
		Match: func(n *browser.Node) bool {
			return n.HasClasses(scraper.LikeIconClasses...)
		},
	})
}
