package actions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/activity"
	"github.com/ibeckermayer/igwarmup/internal/browser"
	"github.com/ibeckermayer/igwarmup/internal/humanize"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// StoryURL is the stories page of username
func StoryURL(domain, username string) string {
	return "https://www." + domain + "/stories/" + username + "/"
}

// LikeStory opens Username's stories and replies with an emoji
func (e *Executor) LikeStory(ctx context.Context, opts Options) types.Result {
	username := strings.TrimSpace(opts.Username)
	return e.run(ctx, ActionLikeStory, username, "", func(ctx context.Context, log *zap.Logger) (types.Result, error) {
		if username == "" {
			return types.Result{}, validationError("Username is required")
		}
		e.beginJournal(activity.SubsystemStories)

		session, err := e.openSession(ctx, opts, log)
		if err != nil {
			return types.Result{}, err
		}
		defer e.closeSession(session, log)
		page := session.Page

		e.record(username, "Attempting to view stories for")
		if err := e.navigate(ctx, page, StoryURL(e.domain(), username), log); err != nil {
			return types.Result{}, err
		}
		if err := e.classify(ctx, page, log); err != nil {
			return types.Result{}, err
		}

		if e.clickViewStory(ctx, page, log) {
			if err := e.pacer.Between(ctx, e.timings.ViewStoryMin, e.timings.ViewStoryMax); err != nil {
				return types.Result{}, err
			}
			if _, err := scraper.WaitPresent(ctx, page, scraper.StoryMarker, e.timings.StoryWait, e.timings.Poll); err != nil {
				return types.Result{}, err
			}
		}

		hasStories, err := scraper.Present(ctx, page, scraper.StoryMarker)
		if err != nil {
			return types.Result{}, err
		}
		if !hasStories {
			return types.Result{}, notFoundError("No stories available", scraper.ErrElementNotFound)
		}
		if err := e.pacer.Between(ctx, e.timings.StorySettleMin, e.timings.StorySettleMax); err != nil {
			return types.Result{}, err
		}

		emoji := e.emojis.NextFrom(opts.Emojis)
		if emoji == "" {
			return types.Result{}, validationError("No emojis configured")
		}

		textarea, strategy, err := e.locator("reply textarea",
			scraper.Strategy{Name: "full class", Selector: scraper.StoryReply, Timeout: e.timings.ReplyWait},
			scraper.Strategy{Name: "placeholder", Selector: scraper.StoryReplyPlain, Timeout: e.timings.ReplyWait},
		).Locate(ctx, page)
		if err != nil {
			return types.Result{}, missing("Could not find reply textarea", err)
		}
		log.Debug("State", zap.String("state", "ElementLocated"), zap.String("target", "reply textarea"), zap.String("strategy", strategy))

		if err := page.Click(ctx, textarea); err != nil {
			return types.Result{}, newError(KindElementNotFound, "Failed to click textarea", err)
		}
		if err := e.pacer.Sleep(ctx, e.timings.ClickPause); err != nil {
			return types.Result{}, err
		}
		if err := e.typeEmoji(ctx, page, emoji); err != nil {
			return types.Result{}, err
		}
		if err := e.pacer.Between(ctx, e.timings.SendPauseMin, e.timings.SendPauseMax); err != nil {
			return types.Result{}, err
		}
		if err := page.PressEnter(ctx); err != nil {
			return types.Result{}, err
		}
		log.Debug("State", zap.String("state", "ActionPerformed"), zap.String("emoji", emoji))

		e.recordEmoji(username, "Sent reaction by typing", emoji)
		log.Debug("State", zap.String("state", "Logged"))

		if err := e.pacer.PostLogin(ctx); err != nil {
			return types.Result{}, err
		}
		res := types.Succeeded(fmt.Sprintf("Successfully sent reaction %s to %s's story", emoji, username))
		res.Emoji = emoji
		return res, nil
	})
}

// clickViewStory clicks the story gate when one is shown. Failures are
// logged and treated as no gate.
func (e *Executor) clickViewStory(ctx context.Context, page browser.Page, log *zap.Logger) bool {
	nodes, err := page.Query(ctx, scraper.ViewStoryButton)
	if err != nil {
		log.Debug("View story lookup failed", zap.Error(err))
		return false
	}
	for _, n := range nodes {
		if !strings.Contains(n.Text, scraper.ViewStoryText) {
			continue
		}
		if err := page.Click(ctx, n); err != nil {
			log.Debug("View story click failed", zap.Error(err))
			return false
		}
		log.Debug("Clicked view story")
		return true
	}
	return false
}

// typeEmoji sends multi-codepoint emoji rune by rune with jitter
func (e *Executor) typeEmoji(ctx context.Context, page browser.Page, emoji string) error {
	if !humanize.MultiRune(emoji) {
		return page.Type(ctx, emoji)
	}
	for _, r := range emoji {
		if err := page.Type(ctx, string(r)); err != nil {
			return err
		}
		if err := e.pacer.Jitter(ctx); err != nil {
			return err
		}
	}
	return nil
}
