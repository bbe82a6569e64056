package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/actions"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// StoryLiker reacts to one user's story
type StoryLiker interface {
	LikeStory(ctx context.Context, opts actions.Options) types.Result
}

// Sleeper waits between users
type Sleeper interface {
	Between(ctx context.Context, min, max time.Duration) error
}

// WarmUp reacts to the story of each username in turn
type WarmUp struct {
	Liker     StoryLiker
	Sleeper   Sleeper
	Usernames []string
	// Template carries cookies and browser flags; Username is overwritten.
	Template actions.Options
	PauseMin time.Duration
	PauseMax time.Duration

	Logger *zap.Logger
}

// RoundResult counts the outcome of one round
type RoundResult struct {
	Succeeded int
	Failed    int
}

// Round visits every user once. A failed user never stops the round;
// cancellation does.
func (w *WarmUp) Round(ctx context.Context) (RoundResult, error) {
	var rr RoundResult
	for i, username := range w.Usernames {
		if i > 0 {
			if err := w.Sleeper.Between(ctx, w.PauseMin, w.PauseMax); err != nil {
				return rr, err
			}
		}
		opts := w.Template
		opts.Username = username

		res := w.Liker.LikeStory(ctx, opts)
		if res.Success {
			rr.Succeeded++
		} else {
			rr.Failed++
		}
		w.Logger.Info("Warm-up visit",
			zap.String("username", username),
			zap.Bool("success", res.Success),
			zap.String("message", res.Message),
		)
		if err := ctx.Err(); err != nil {
			return rr, err
		}
	}
	return rr, nil
}

// Job adapts the round to a scheduler job. A round where every visit
// failed is reported as an error.
func (w *WarmUp) Job() Job {
	return func(ctx context.Context) error {
		rr, err := w.Round(ctx)
		if err != nil {
			return err
		}
		if rr.Succeeded == 0 && rr.Failed > 0 {
			return fmt.Errorf("warm-up round failed for all %d users", rr.Failed)
		}
		return nil
	}
}
