package humanize

import (
	"sync"
	"unicode/utf8"
)

// EmojiRotator picks a reaction that differs from the one picked last.
type EmojiRotator struct {
	pool []string
	rand func(n int) int

	mu   sync.Mutex
	last string
}

// NewEmojiRotator creates a rotator over pool drawing from intn.
// An empty pool yields an empty pick.
func NewEmojiRotator(pool []string, intn func(n int) int) *EmojiRotator {
	return &EmojiRotator{
		pool: append([]string(nil), pool...),
		rand: intn,
	}
}

// Next picks an emoji and remembers it as the last pick
func (r *EmojiRotator) Next() string {
	return r.NextFrom(nil)
}

// NextFrom is Next drawing from pool instead of the default pool when
// pool is non-empty. The last pick is shared across pools.
func (r *EmojiRotator) NextFrom(pool []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(pool) == 0 {
		pool = r.pool
	}
	r.last = Pick(pool, r.last, r.rand)
	return r.last
}

// Last returns the previous pick
func (r *EmojiRotator) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Pick chooses uniformly from pool excluding last. When excluding last
// would empty the pool, last itself is returned.
func Pick(pool []string, last string, intn func(n int) int) string {
	if len(pool) == 0 {
		return ""
	}
	candidates := make([]string, 0, len(pool))
	for _, e := range pool {
		if e != last {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return last
	}
	return candidates[intn(len(candidates))]
}

// MultiRune reports whether s needs more than one keystroke to type
func MultiRune(s string) bool {
	return utf8.RuneCountInString(s) > 1
}
