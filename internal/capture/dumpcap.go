package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"WebReplay/WebReplay-Go-Agent/internal/logger"
)

// PcapConfig configures the rotating packet-capture subprocess.
type PcapConfig struct {
	Interface string
	// OutputDir holds the rotating capture ring on disk.
	OutputDir string
	// Slots and SliceSeconds bound retention to roughly
	// Slots*SliceSeconds of raw traffic.
	Slots        int
	SliceSeconds int
	// Binary overrides the dumpcap executable, mainly for tests.
	Binary string
}

// PcapFeeder runs dumpcap with file rotation so the most recent packets are
// always on disk. A missing dumpcap binary degrades capture (HTTP flows are
// still recorded) rather than failing the agent.
type PcapFeeder struct {
	cfg PcapConfig
	log *logger.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
	stopped bool
}

// NewPcapFeeder creates a rotating packet-capture feeder.
func NewPcapFeeder(cfg PcapConfig) *PcapFeeder {
	if cfg.Binary == "" {
		cfg.Binary = "dumpcap"
	}
	if cfg.Slots == 0 {
		cfg.Slots = 20
	}
	if cfg.SliceSeconds == 0 {
		cfg.SliceSeconds = 60
	}
	return &PcapFeeder{cfg: cfg, log: logger.GetLogger()}
}

// Start launches dumpcap and the supervision loop.
func (p *PcapFeeder) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.log.Warn("dumpcap feeder already running")
		return nil
	}
	p.stopped = false
	p.mu.Unlock()

	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create rotating capture dir: %w", err)
	}
	if _, err := exec.LookPath(p.cfg.Binary); err != nil {
		p.log.Error("%s not found in PATH, continuing without packet capture", p.cfg.Binary)
		return nil
	}

	go p.superviseLoop(ctx)
	return nil
}

// Stop terminates the dumpcap process and disables restarts.
func (p *PcapFeeder) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.cmd != nil && p.cmd.Process != nil {
		// A process that already exited on its own still counts as
		// stopped.
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.log.Error("Failed to stop dumpcap: %v", err)
			return fmt.Errorf("failed to stop dumpcap: %w", err)
		}
	}
	p.running = false
	return nil
}

// Healthy reports whether the dumpcap process is currently running.
func (p *PcapFeeder) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *PcapFeeder) superviseLoop(ctx context.Context) {
	backoff := restartBackoffMin
	for {
		start := time.Now()
		err := p.runOnce(ctx)

		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}

		if err != nil {
			p.log.Error("dumpcap exited: %v", err)
		}
		if time.Since(start) > time.Minute {
			backoff = restartBackoffMin
		}
		p.log.Info("Restarting dumpcap in %s", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > restartBackoffMax {
			backoff = restartBackoffMax
		}
	}
}

func (p *PcapFeeder) runOnce(ctx context.Context) error {
	args := []string{
		"-i", p.cfg.Interface,
		"-b", fmt.Sprintf("files:%d", p.cfg.Slots),
		"-b", fmt.Sprintf("duration:%d", p.cfg.SliceSeconds),
		"-w", filepath.Join(p.cfg.OutputDir, "cap.pcapng"),
	}
	cmd := exec.CommandContext(ctx, p.cfg.Binary, args...)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start dumpcap: %w", err)
	}
	p.log.Info("dumpcap rotating capture started on %s (%d x %ds)", p.cfg.Interface, p.cfg.Slots, p.cfg.SliceSeconds)

	p.mu.Lock()
	p.cmd = cmd
	p.running = true
	p.mu.Unlock()

	err := cmd.Wait()

	p.mu.Lock()
	p.running = false
	p.cmd = nil
	p.mu.Unlock()
	return err
}
