package trigger

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// LogWatcherConfig configures the log-file alert watcher.
type LogWatcherConfig struct {
	// Path is the log file to observe.
	Path string
	// Match is the substring identifying an alert line.
	Match string
	// PollInterval is how often the file is checked for new lines.
	PollInterval time.Duration
}

// LogWatcher polls a log file and emits an Event for every newly appended
// line containing the configured marker. Lines already present when the
// watcher starts are skipped, so historical alerts never fire.
type LogWatcher struct {
	cfg    LogWatcherConfig
	events chan Event
	offset int64
}

// NewLogWatcher creates a watcher for the given file and marker.
func NewLogWatcher(cfg LogWatcherConfig) *LogWatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &LogWatcher{
		cfg:    cfg,
		events: make(chan Event, 16),
	}
}

// Events returns the alert delivery channel.
func (w *LogWatcher) Events() <-chan Event { return w.events }

// Run polls the log file until the context is canceled.
func (w *LogWatcher) Run(ctx context.Context) error {
	if w.cfg.Match == "" {
		return fmt.Errorf("log watcher requires a non-empty match string")
	}

	// Skip whatever is already in the file.
	if info, err := os.Stat(w.cfg.Path); err == nil {
		w.offset = info.Size()
	}

	log.Printf("[trigger] Watching %s for %q (poll every %s)", w.cfg.Path, w.cfg.Match, w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[trigger] Context canceled, stopping log watcher")
			return nil
		case <-ticker.C:
			if err := w.pollOnce(ctx); err != nil {
				log.Printf("[trigger] Poll error: %v", err)
			}
		}
	}
}

// pollOnce reads lines appended since the previous poll and emits events
// for those matching the marker.
func (w *LogWatcher) pollOnce(ctx context.Context) error {
	f, err := os.Open(w.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// The source may not have logged anything yet.
			w.offset = 0
			return nil
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < w.offset {
		// Truncated or rotated; start over from the beginning.
		w.offset = 0
	}
	if info.Size() == w.offset {
		return nil
	}
	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// Partial trailing line; re-read it next poll.
			break
		}
		w.offset += int64(len(line))
		text := strings.TrimSpace(string(bytes.TrimRight(line, "\r\n")))
		if text == "" || !strings.Contains(text, w.cfg.Match) {
			continue
		}
		ev := Event{Timestamp: time.Now(), Source: w.cfg.Path, Detail: text}
		select {
		case w.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
