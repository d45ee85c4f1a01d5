package trigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	require.NoError(t, err)
}

func TestLogWatcherEmitsMatchingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "av.log")
	appendLine(t, path, "old ALERT before watcher started")

	w := NewLogWatcher(LogWatcherConfig{Path: path, Match: "ALERT", PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Give the watcher a moment to record the existing offset.
	time.Sleep(50 * time.Millisecond)
	appendLine(t, path, "routine scan finished")
	appendLine(t, path, "ALERT threat detected")

	select {
	case ev := <-w.Events():
		assert.Contains(t, ev.Detail, "threat detected")
		assert.WithinDuration(t, time.Now(), ev.Timestamp, 5*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an alert event")
	}

	// The pre-existing and non-matching lines never fire.
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLogWatcherRapidSuccession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "av.log")
	appendLine(t, path, "boot")

	w := NewLogWatcher(LogWatcherConfig{Path: path, Match: "ALERT", PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		appendLine(t, path, "ALERT burst")
	}

	got := 0
	deadline := time.After(2 * time.Second)
	for got < 5 {
		select {
		case <-w.Events():
			got++
		case <-deadline:
			t.Fatalf("only %d of 5 rapid alerts delivered", got)
		}
	}
}

func TestLogWatcherMissingFile(t *testing.T) {
	w := NewLogWatcher(LogWatcherConfig{Path: filepath.Join(t.TempDir(), "absent.log"), Match: "ALERT", PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, w.Run(ctx))
}

func TestLogWatcherRequiresMatch(t *testing.T) {
	w := NewLogWatcher(LogWatcherConfig{Path: "x.log"})
	err := w.Run(context.Background())
	assert.Error(t, err)
}
