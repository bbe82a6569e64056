package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestEntryString(t *testing.T) {
	ts := time.Date(2026, 5, 4, 10, 30, 0, 123000000, time.UTC)
	assert.Equal(t, "[2026-05-04T10:30:00.123Z] alice - Sent reaction by typing (🔥)",
		Entry{Time: ts, Subject: "alice", Action: "Sent reaction by typing", Emoji: "🔥"}.String())
	assert.Equal(t, "[2026-05-04T10:30:00.123Z] alice - No stories available",
		Entry{Time: ts, Subject: "alice", Action: "No stories available"}.String())
}

func TestSessionHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "activity_log.txt")
	l := New(path, zap.NewNop())
	l.now = fixedClock()

	require.NoError(t, l.BeginSession(SubsystemStories))
	require.NoError(t, l.Record("alice", "Attempting to view stories for"))
	require.NoError(t, l.BeginSession(SubsystemStories))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "=== Instagram Story Interaction Session Started at 2026-05-04T10:30:00Z ===\n" +
		"[2026-05-04T10:30:00Z] alice - Attempting to view stories for\n" +
		"\n=== Instagram Story Interaction Session Started at 2026-05-04T10:30:00Z ===\n"
	assert.Equal(t, want, string(data))
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity_log.txt")
	l := New(path, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = l.Record(fmt.Sprintf("user%02d", i), strings.Repeat("x", 200))
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 200)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, " - "+strings.Repeat("x", 200)), line)
	}
}

func TestEntriesMirroredToLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := New(filepath.Join(t.TempDir(), "a.txt"), zap.New(core))

	require.NoError(t, l.RecordEmoji("bob", "Sent reaction by typing", "👏"))

	entries := logs.FilterMessage("Activity").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "bob", fields["subject"])
	assert.Equal(t, "👏", fields["emoji"])
}
