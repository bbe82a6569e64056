package actions

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/observability"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// Action names, used for logs, metrics and run history
const (
	ActionLikePost    = "like_post"
	ActionComment     = "post_comment"
	ActionLikeStory   = "like_story"
	ActionNewestPost  = "newest_post"
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	maxMessageDetails = 2000
)

// Outcome describes one finished invocation
type Outcome struct {
	ID       string
	Action   string
	Subject  string
	Backend  string
	Result   types.Result
	// Kind is empty on success.
	Kind Kind
	// State is set when the page classifier aborted the action.
	State    *scraper.PageState
	Started  time.Time
	Duration time.Duration
}

// step is the body of an action. It returns the success envelope or an error.
type step func(ctx context.Context, log *zap.Logger) (types.Result, error)

// run executes fn under the overall deadline and converts every way it can
// end, including a panic, into a Result.
func (e *Executor) run(ctx context.Context, action, subject, backend string, fn step) types.Result {
	out := Outcome{
		ID:      uuid.NewString(),
		Action:  action,
		Subject: subject,
		Backend: backend,
		Started: time.Now(),
	}
	log := e.logger.With(
		zap.String("action", action),
		zap.String("subject", subject),
		zap.String("invocation_id", out.ID),
	)
	log.Debug("State", zap.String("state", "Idle"))

	if timeout := e.cfg.Actions.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := e.guard(ctx, log, fn)
	if err != nil {
		ae := Classify(err)
		res = types.Failed(ae.Message)
		out.Kind = ae.Kind
		var se *scraper.StateError
		if errors.As(ae, &se) {
			state := se.State
			out.State = &state
		}
		log.Warn("Action failed",
			zap.String("kind", string(ae.Kind)),
			zap.String("message", ae.Message),
			zap.Error(ae.Err),
		)
		if ae.Kind != KindValidation && ae.Kind != KindDuplicateAction {
			e.record(subject, ae.Message)
		}
	} else {
		log.Info("Action succeeded", zap.String("message", res.Message))
	}
	log.Debug("State", zap.String("state", "ResultReturned"), zap.Bool("success", res.Success))

	out.Result = res
	out.Duration = time.Since(out.Started)

	outcome := outcomeSuccess
	if !res.Success {
		outcome = outcomeFailure
	}
	observability.ActionsTotal.WithLabelValues(action, outcome).Inc()
	observability.ActionDuration.WithLabelValues(action).Observe(out.Duration.Seconds())

	if e.onFinish != nil {
		e.onFinish(out)
	}
	return res
}

func (e *Executor) guard(ctx context.Context, log *zap.Logger, fn step) (res types.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Action panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = newError(KindUnexpected, fmt.Sprintf("Error: %v", r), nil)
		}
	}()
	return fn(ctx, log)
}

// truncate bounds helper output carried in messages
func truncate(s string) string {
	if len(s) <= maxMessageDetails {
		return s
	}
	return s[:maxMessageDetails] + "..."
}
