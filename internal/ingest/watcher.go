// Package ingest watches a drop directory for window files produced
// elsewhere (another host, the synthetic load tool, a manual export) and
// reconstructs them as they arrive.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"WebReplay/WebReplay-Go-Agent/internal/reconstruct"
	"WebReplay/WebReplay-Go-Agent/internal/window"
)

// Reconstructor rebuilds the pages of a materialized window.
type Reconstructor interface {
	Reconstruct(win *window.CaptureWindow) (*reconstruct.Result, error)
	WriteIndex(res *reconstruct.Result) error
}

// WatcherConfig holds configuration for the window drop-directory watcher.
type WatcherConfig struct {
	WatchDir          string
	PollInterval      time.Duration
	FileStableSeconds int
}

// Watcher polls a directory for incoming window files and feeds them
// through the reconstruction pipeline.
type Watcher struct {
	watchDir          string
	pollInterval      time.Duration
	fileStableSeconds int
	reconstructor     Reconstructor
}

// NewWatcher creates a new window drop-directory watcher.
func NewWatcher(cfg WatcherConfig, rec Reconstructor) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.FileStableSeconds <= 0 {
		cfg.FileStableSeconds = 2
	}
	return &Watcher{
		watchDir:          cfg.WatchDir,
		pollInterval:      cfg.PollInterval,
		fileStableSeconds: cfg.FileStableSeconds,
		reconstructor:     rec,
	}
}

// Run starts the watcher loop. It creates subdirectories, then polls for
// new window files until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	incomingDir := filepath.Join(w.watchDir, "incoming")
	processingDir := filepath.Join(w.watchDir, "processing")
	processedDir := filepath.Join(w.watchDir, "processed")
	failedDir := filepath.Join(w.watchDir, "failed")

	for _, dir := range []string{incomingDir, processingDir, processedDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	log.Printf("[ingest] Watching %s for window files (poll every %s)", incomingDir, w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[ingest] Context canceled, stopping watcher")
			return nil
		case <-ticker.C:
			if err := w.pollOnce(ctx, incomingDir, processingDir, processedDir, failedDir); err != nil {
				log.Printf("[ingest] Poll error: %v", err)
			}
		}
	}
}

// pollOnce scans the incoming directory and processes any window files
// found, oldest first.
func (w *Watcher) pollOnce(ctx context.Context, incomingDir, processingDir, processedDir, failedDir string) error {
	entries, err := os.ReadDir(incomingDir)
	if err != nil {
		return fmt.Errorf("failed to read incoming directory: %w", err)
	}

	type windowEntry struct {
		name    string
		modTime time.Time
	}
	var files []windowEntry

	for _, entry := range entries {
		if entry.IsDir() || !isWindowFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Printf("[ingest] Failed to stat %s: %v, skipping", entry.Name(), err)
			continue
		}
		files = append(files, windowEntry{name: entry.Name(), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		if ctx.Err() != nil {
			return nil
		}

		srcPath := filepath.Join(incomingDir, f.name)
		if !w.isFileStable(srcPath) {
			log.Printf("[ingest] File %s not yet stable, skipping", f.name)
			continue
		}
		if err := w.processFile(srcPath, processingDir, processedDir, failedDir); err != nil {
			log.Printf("[ingest] Failed to process %s: %v", f.name, err)
		}
	}

	return nil
}

// processFile moves a window file from incoming to processing, runs the
// reconstruction, then moves it to processed or failed.
func (w *Watcher) processFile(srcPath, processingDir, processedDir, failedDir string) error {
	fileName := filepath.Base(srcPath)
	procPath := filepath.Join(processingDir, fileName)

	if err := os.Rename(srcPath, procPath); err != nil {
		return fmt.Errorf("failed to move %s to processing: %w", fileName, err)
	}

	log.Printf("[ingest] Processing %s", fileName)

	win, err := window.ReadHTTP(procPath)
	if err == nil {
		var res *reconstruct.Result
		res, err = w.reconstructor.Reconstruct(win)
		if err == nil {
			err = w.reconstructor.WriteIndex(res)
		}
	}
	if err != nil {
		log.Printf("[ingest] Reconstruction failed for %s: %v", fileName, err)
		failPath := filepath.Join(failedDir, fileName)
		if moveErr := os.Rename(procPath, failPath); moveErr != nil {
			log.Printf("[ingest] Failed to move %s to failed dir: %v", fileName, moveErr)
		}
		return nil
	}

	dstPath := filepath.Join(processedDir, fileName)
	if err := os.Rename(procPath, dstPath); err != nil {
		return fmt.Errorf("failed to move %s to processed: %w", fileName, err)
	}
	log.Printf("[ingest] Done with %s", fileName)
	return nil
}

// isFileStable reports whether the file has stopped growing, so a window
// still being copied in is not picked up half-written.
func (w *Watcher) isFileStable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) >= time.Duration(w.fileStableSeconds)*time.Second
}

func isWindowFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".json")
}
