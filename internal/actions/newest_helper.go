package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/scraper"
	"github.com/ibeckermayer/igwarmup/internal/types"
)

// HelperRunner runs the external newest-post helper for one username
type HelperRunner interface {
	// CookiePath is where the helper expects the cookie file.
	CookiePath() string
	Run(ctx context.Context, username string) (stdout, stderr []byte, err error)
}

// ExecHelper runs the helper as a subprocess
type ExecHelper struct {
	cfg config.HelperConfig
}

// NewExecHelper creates a subprocess runner for cfg.Command
func NewExecHelper(cfg config.HelperConfig) *ExecHelper {
	return &ExecHelper{cfg: cfg}
}

func (h *ExecHelper) CookiePath() string {
	return h.cfg.CookiePath
}

func (h *ExecHelper) Run(ctx context.Context, username string) ([]byte, []byte, error) {
	if len(h.cfg.Command) == 0 {
		return nil, nil, fmt.Errorf("helper command not configured")
	}
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), h.cfg.Command[1:]...), username)
	cmd := exec.CommandContext(ctx, h.cfg.Command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// helperOutput is the single JSON object the helper prints
type helperOutput struct {
	Error    string `json:"error"`
	PostURL  string `json:"post_url"`
	Caption  string `json:"caption"`
	MediaURL string `json:"media_url"`
}

func (e *Executor) newestFromHelper(ctx context.Context, username string, opts Options, log *zap.Logger) (*types.ExtractedPost, error) {
	if err := e.helperSlot.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.helperSlot.Release(1)

	cleanup, err := e.stageCookies(opts)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	stdout, stderr, runErr := e.helper.Run(ctx, username)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Debug("Helper finished", zap.Int("stdout_bytes", len(stdout)), zap.Int("stderr_bytes", len(stderr)), zap.Error(runErr))

	raw := strings.TrimSpace(string(stdout))
	var out helperOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		msg := fmt.Sprintf("Failed to parse helper output: %s", truncate(raw))
		if s := strings.TrimSpace(string(stderr)); s != "" {
			msg += " (stderr: " + truncate(s) + ")"
		}
		return nil, newError(KindInfrastructure, msg, err)
	}
	if out.Error != "" {
		return nil, newError(KindInfrastructure, out.Error, runErr)
	}
	if out.PostURL == "" {
		return nil, notFoundError(scraper.ReasonNoPostInfo, scraper.ErrElementNotFound)
	}

	post := &types.ExtractedPost{
		PostURL:  out.PostURL,
		Caption:  out.Caption,
		MediaURL: out.MediaURL,
	}
	if code, ok := scraper.PostCode(out.PostURL); ok {
		post.PostCode = code
		post.PostID = code
	}
	return post, nil
}

// stageCookies puts the invocation's cookies where the helper reads them.
// The returned cleanup removes the staged copy, leaving a file that was
// already in place untouched.
func (e *Executor) stageCookies(opts Options) (func(), error) {
	target := e.helper.CookiePath()
	if target == "" {
		return nil, fmt.Errorf("helper cookie path not configured")
	}

	data := opts.CookieData
	if len(data) == 0 {
		if opts.CookiesPath == "" {
			return nil, newError(KindCredential, "No cookie file provided", nil)
		}
		if same(opts.CookiesPath, target) {
			return func() {}, nil
		}
		var err error
		if data, err = os.ReadFile(opts.CookiesPath); err != nil {
			return nil, fmt.Errorf("failed to read cookie file: %w", err)
		}
	}

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage cookie file: %w", err)
	}
	return func() {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("Failed to remove staged cookie file", zap.String("path", target), zap.Error(err))
		}
	}, nil
}

func same(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
