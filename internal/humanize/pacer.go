// Package humanize paces interactions so they arrive at a human rhythm.
package humanize

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ibeckermayer/igwarmup/internal/config"
)

// Pacer produces bounded random waits. Every wait is a context-aware
// suspension point; a disabled pacer returns immediately.
type Pacer struct {
	cfg config.PacingConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPacer creates a pacer seeded from the runtime source
func NewPacer(cfg config.PacingConfig) *Pacer {
	return &Pacer{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NewSeededPacer creates a pacer with a fixed seed for reproducible runs
func NewSeededPacer(cfg config.PacingConfig, seed uint64) *Pacer {
	return &Pacer{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed)),
	}
}

// Sleep waits for d or until ctx is done
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	if p.cfg.Disabled || d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Between waits a uniformly random duration in [min, max]
func (p *Pacer) Between(ctx context.Context, min, max time.Duration) error {
	return p.Sleep(ctx, p.Duration(min, max))
}

// Duration picks a uniformly random duration in [min, max]
func (p *Pacer) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + time.Duration(p.rng.Int64N(int64(max-min)+1))
}

// PostLogin is the pause after a session is established
func (p *Pacer) PostLogin(ctx context.Context) error {
	return p.Between(ctx, p.cfg.PostLoginMin, p.cfg.PostLoginMax)
}

// Keystroke is the fixed pause between typed characters
func (p *Pacer) Keystroke(ctx context.Context) error {
	return p.Sleep(ctx, p.cfg.TypingDelay)
}

// Jitter is the short random pause between parts of a multi-rune input
func (p *Pacer) Jitter(ctx context.Context) error {
	return p.Between(ctx, p.cfg.JitterMin, p.cfg.JitterMax)
}

// Intn returns a random int in [0, n). Used by components that share the
// pacer's source.
func (p *Pacer) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}
