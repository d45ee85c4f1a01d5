package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"WebReplay/WebReplay-Go-Agent/config"
	"WebReplay/WebReplay-Go-Agent/internal/buffer"
	"WebReplay/WebReplay-Go-Agent/internal/capture"
	collect_logs "WebReplay/WebReplay-Go-Agent/internal/collect_logs"
	"WebReplay/WebReplay-Go-Agent/internal/ingest"
	"WebReplay/WebReplay-Go-Agent/internal/orchestrator"
	"WebReplay/WebReplay-Go-Agent/internal/reconstruct"
	"WebReplay/WebReplay-Go-Agent/internal/trigger"
	"WebReplay/WebReplay-Go-Agent/internal/version"
	"WebReplay/WebReplay-Go-Agent/internal/window"
)

func printHelp() {
	fmt.Print(`WebReplay Agent - Web Traffic Capture & Replay Tool

Usage: webreplay-agent [collect-logs] [--version|-v] [--help|-h]

Captures live web traffic into a rotating buffer and, on alert triggers,
extracts the surrounding time windows and reconstructs the pages that were
browsed during them. Configuration is read from config.json.

Options:
  collect-logs    Package logs, captures, config, and diagnostics into a zip archive for support
  --version, -v   Print version and exit
  --help, -h      Show this help message and exit

Configuration:
  The agent loads its configuration from /etc/webreplay-agent/config.json,
  falling back to config.json in the working directory. You can customize
  logging, capture, window, and trigger settings in this file.

Example:
  webreplay-agent
    Runs the capture loop until interrupted, reacting to trigger events.

  webreplay-agent collect-logs
    Packages logs, captures, config, and diagnostics into a zip archive for support.
`)
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		case "--version", "-v":
			fmt.Println(version.Version)
			return
		case "collect-logs":
			zipName := fmt.Sprintf("webreplay-logs-%s.zip", time.Now().Format("20060102-150405"))
			if err := collect_logs.CollectLogs(zipName); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to collect logs: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Created %s with logs, config, and diagnostics.\n", zipName)
			return
		}
	}

	configPaths := []string{
		"/etc/webreplay-agent/config.json",
		"config.json",
	}
	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.LoadConfig(path)
		if err == nil {
			break
		}
	}
	if cfg == nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up standard logger to log to file if specified
	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Fatalf("Failed to create log directory: %v", err)
		}
		logWriter := &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    int(cfg.Logging.MaxSizeMB),
			MaxAge:     cfg.Logging.LogRetentionDays,
			MaxBackups: 3,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, logWriter))
	}

	// The capture feeders log through the leveled logger; honor the
	// configured level there too.
	if err := cfg.InitializeLogging(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	log.Printf("WebReplay agent %s starting, %ds retention in %d slices",
		version.Version, cfg.Retention(), cfg.Capture.Slots)

	if cfg.Trigger.LogPath == "" || cfg.Trigger.Match == "" {
		log.Fatalf("trigger.log_path and trigger.match must be set")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slice := time.Duration(cfg.Capture.SliceSeconds) * time.Second
	ring := buffer.NewRing(cfg.Capture.Slots, slice)
	if cfg.Capture.PcapDir != "" {
		// Every segment remembers which rotating capture directory held
		// its packets, so window files can name their packet trail.
		ring.SetRawCaptureRef(func(start time.Time) string {
			return cfg.Capture.PcapDir
		})
	}

	rules, err := reconstruct.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatalf("Failed to load exclusion rules: %v", err)
	}

	pagesDir := filepath.Join(cfg.Output.Dir, "pages")
	rec := reconstruct.New(pagesDir, rules)
	arch := orchestrator.NewFileArchiver(cfg.Output.Dir, cfg.Capture.PcapDir)
	ext := window.NewExtractor(ring)

	orc := orchestrator.New(orchestrator.Config{
		PastWindow:   time.Duration(cfg.Window.PastSeconds) * time.Second,
		FutureWindow: time.Duration(cfg.Window.FutureSeconds) * time.Second,
		MaxInFlight:  cfg.Window.MaxInFlight,
	}, ext, rec, arch)

	orc.AddCapability("mitm", capture.NewMitmFeeder(capture.MitmConfig{
		ListenHost: cfg.Capture.ProxyHost,
		ListenPort: cfg.Capture.ProxyPort,
		AddonPath:  cfg.Capture.AddonPath,
	}, ring))

	if cfg.Capture.PcapDir != "" {
		iface, err := cfg.GetFirstInterface()
		if err != nil {
			log.Fatalf("Invalid capture interface: %v", err)
		}
		orc.AddCapability("pcap", capture.NewPcapFeeder(capture.PcapConfig{
			Interface:    iface,
			OutputDir:    cfg.Capture.PcapDir,
			Slots:        cfg.Capture.Slots,
			SliceSeconds: cfg.Capture.SliceSeconds,
		}))
	}

	if cfg.IngestDir != "" {
		dropWatcher := ingest.NewWatcher(ingest.WatcherConfig{WatchDir: cfg.IngestDir}, rec)
		go func() {
			if err := dropWatcher.Run(ctx); err != nil {
				log.Printf("Ingest watcher stopped: %v", err)
			}
		}()
	}

	watcher := trigger.NewLogWatcher(trigger.LogWatcherConfig{
		Path:         cfg.Trigger.LogPath,
		Match:        cfg.Trigger.Match,
		PollInterval: time.Duration(cfg.Trigger.PollMS) * time.Millisecond,
	})

	if err := orc.Run(ctx, watcher); err != nil && err != context.Canceled {
		log.Fatalf("Agent exited with error: %v", err)
	}
	log.Printf("Agent stopped")
}
