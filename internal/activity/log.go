// Package activity keeps the append-only journal of actions taken.
package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Subsystems named in session headers
const (
	SubsystemStories  = "Instagram Story Interaction"
	SubsystemPosts    = "Instagram Post Fetching"
	SubsystemLikes    = "Instagram Post Like"
	SubsystemComments = "Instagram Post Comment"
)

// Entry is one journal line
type Entry struct {
	Time    time.Time
	Subject string
	Action  string
	Emoji   string
}

// String renders "[<ts>] <subject> - <action>[ (<emoji>)]"
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Time.UTC().Format(time.RFC3339Nano))
	b.WriteString("] ")
	b.WriteString(e.Subject)
	b.WriteString(" - ")
	b.WriteString(e.Action)
	if e.Emoji != "" {
		b.WriteString(" (")
		b.WriteString(e.Emoji)
		b.WriteString(")")
	}
	return b.String()
}

// Log appends entries to a text file. Each line is a single write on an
// O_APPEND descriptor under a mutex, so concurrent writers never interleave.
type Log struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

// New creates a journal at path. The file is created lazily.
func New(path string, logger *zap.Logger) *Log {
	return &Log{path: path, logger: logger.Named("activity"), now: time.Now}
}

// Path returns the journal file path
func (l *Log) Path() string {
	return l.path
}

// BeginSession writes the session header. A new file starts with the
// header; an existing one gets a blank line first.
func (l *Log) BeginSession(subsystem string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf("=== %s Session Started at %s ===\n", subsystem, l.now().UTC().Format(time.RFC3339Nano))
	if info, err := os.Stat(l.path); err == nil && info.Size() > 0 {
		header = "\n" + header
	}
	return l.write(header)
}

// Record appends an entry without emoji
func (l *Log) Record(subject, action string) error {
	return l.Append(Entry{Subject: subject, Action: action})
}

// RecordEmoji appends an entry carrying an emoji
func (l *Log) RecordEmoji(subject, action, emoji string) error {
	return l.Append(Entry{Subject: subject, Action: action, Emoji: emoji})
}

// Append writes e, stamping it when Time is zero, and mirrors it to zap
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = l.now()
	}
	fields := []zap.Field{zap.String("subject", e.Subject), zap.String("action", e.Action)}
	if e.Emoji != "" {
		fields = append(fields, zap.String("emoji", e.Emoji))
	}
	l.logger.Info("Activity", fields...)

	return l.write(e.String() + "\n")
}

func (l *Log) write(s string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	_, err = f.Write([]byte(s))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
