package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"WebReplay/WebReplay-Go-Agent/internal/flow"
	"WebReplay/WebReplay-Go-Agent/internal/logger"
)

const (
	// Scanner limits: response bodies arrive base64-encoded on a single
	// line, so lines can be large.
	scanBufSize = 64 * 1024
	scanMaxLine = 32 * 1024 * 1024

	restartBackoffMin = time.Second
	restartBackoffMax = 30 * time.Second
)

// MitmConfig configures the mitmdump feeder subprocess.
type MitmConfig struct {
	ListenHost string
	ListenPort int
	// AddonPath is the capture addon handed to mitmdump; it prints one JSON
	// object per completed flow on stdout.
	AddonPath string
	// Binary overrides the mitmdump executable, mainly for tests.
	Binary string
}

// MitmFeeder runs mitmdump and streams its JSON flow output into a Sink.
// The process is restarted with backoff if it exits while the context is
// still alive; gaps across restarts simply leave buffer regions with no
// records.
type MitmFeeder struct {
	cfg  MitmConfig
	sink Sink
	log  *logger.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
	stopped bool
}

// NewMitmFeeder creates a feeder writing decoded records into sink.
func NewMitmFeeder(cfg MitmConfig, sink Sink) *MitmFeeder {
	if cfg.Binary == "" {
		cfg.Binary = "mitmdump"
	}
	if cfg.ListenHost == "" {
		cfg.ListenHost = "127.0.0.1"
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 8080
	}
	return &MitmFeeder{cfg: cfg, sink: sink, log: logger.GetLogger()}
}

// Start launches mitmdump and the supervision loop.
func (m *MitmFeeder) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Warn("mitmdump feeder already running")
		return nil
	}
	m.stopped = false
	m.mu.Unlock()

	if _, err := exec.LookPath(m.cfg.Binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", m.cfg.Binary, err)
	}

	go m.superviseLoop(ctx)
	return nil
}

// Stop terminates the mitmdump process and disables restarts.
func (m *MitmFeeder) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.cmd != nil && m.cmd.Process != nil {
		// A process that already exited on its own still counts as
		// stopped.
		if err := m.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			m.log.Error("Failed to stop mitmdump: %v", err)
			return fmt.Errorf("failed to stop mitmdump: %w", err)
		}
	}
	m.running = false
	return nil
}

// Healthy reports whether the mitmdump process is currently running.
func (m *MitmFeeder) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MitmFeeder) superviseLoop(ctx context.Context) {
	backoff := restartBackoffMin
	for {
		start := time.Now()
		err := m.runOnce(ctx)

		m.mu.Lock()
		stopped := m.stopped
		m.mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}

		if err != nil {
			m.log.Error("mitmdump exited: %v", err)
		} else {
			m.log.Warn("mitmdump exited unexpectedly")
		}

		// A process that stayed up for a while earns a fresh backoff.
		if time.Since(start) > time.Minute {
			backoff = restartBackoffMin
		}
		m.log.Info("Restarting mitmdump in %s", backoff)
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

// runOnce starts one mitmdump process and consumes its stdout until exit.
func (m *MitmFeeder) runOnce(ctx context.Context) error {
	args := []string{
		"-s", m.cfg.AddonPath,
		"--listen-host", m.cfg.ListenHost,
		"--listen-port", fmt.Sprintf("%d", m.cfg.ListenPort),
		"--ssl-insecure",
		"--set", "termlog_verbosity=info",
		"--set", "flow_detail=2",
	}
	cmd := exec.CommandContext(ctx, m.cfg.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open mitmdump stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start mitmdump: %w", err)
	}
	m.log.Info("mitmdump running on %s:%d", m.cfg.ListenHost, m.cfg.ListenPort)

	m.mu.Lock()
	m.cmd = cmd
	m.running = true
	m.mu.Unlock()

	m.scan(stdout)
	err = cmd.Wait()

	m.mu.Lock()
	m.running = false
	m.cmd = nil
	m.mu.Unlock()
	return err
}

// scan consumes feeder output line by line, writing every parseable capture
// record into the sink. Log noise on stdout is ignored.
func (m *MitmFeeder) scan(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufSize), scanMaxLine)
	for scanner.Scan() {
		rec, ok := flow.ParseLine(scanner.Bytes())
		if !ok {
			continue
		}
		m.sink.Write(rec)
	}
	if err := scanner.Err(); err != nil {
		m.log.Warn("mitmdump output reader stopped: %v", err)
	}
}
