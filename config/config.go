package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"WebReplay/WebReplay-Go-Agent/internal/logger"
)

// maxInterfaceNameLen bounds interface names; longer values are rejected
// before they ever reach a capture subprocess command line.
const maxInterfaceNameLen = 255

var interfaceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Config represents the application configuration
type Config struct {
	// Logging configuration
	Logging struct {
		// Level is the minimum log level to output (debug, info, warn, error)
		Level string `json:"level"`
		// File is the path to the log file. If empty, logs to stdout only
		File string `json:"file"`
		// MaxSizeMB is the maximum size of log file before rotation
		MaxSizeMB int64 `json:"max_size_mb"`
		// LogRetentionDays is how long rotated log files are kept
		LogRetentionDays int `json:"log_retention_days"`
	} `json:"logging"`

	// Capture configuration
	Capture struct {
		// Interface is the network interface(s) to capture packets on,
		// comma separated. "any" and "all" are accepted as-is.
		Interface string `json:"interface"`
		// ProxyHost is the address the HTTP capture proxy listens on
		ProxyHost string `json:"proxy_host"`
		// ProxyPort is the port the HTTP capture proxy listens on
		ProxyPort int `json:"proxy_port"`
		// AddonPath is the capture feed script handed to the proxy
		AddonPath string `json:"addon_path"`
		// PcapDir is where the rotating packet capture writes its segments
		PcapDir string `json:"pcap_dir"`
		// SliceSeconds is the duration of one buffer segment
		SliceSeconds int `json:"slice_seconds"`
		// Slots is how many segments are retained before the oldest is evicted
		Slots int `json:"slots"`
	} `json:"capture"`

	// Window configuration
	Window struct {
		// PastSeconds is the span extracted before a trigger
		PastSeconds int `json:"past_seconds"`
		// FutureSeconds is the span recorded after a trigger
		FutureSeconds int `json:"future_seconds"`
		// MaxInFlight caps deferred future windows awaiting resolution
		MaxInFlight int `json:"max_in_flight"`
	} `json:"window"`

	// Output configuration
	Output struct {
		// Dir is where window files and reconstructed pages are written
		Dir string `json:"dir"`
	} `json:"output"`

	// RulesFile points to the YAML exclusion rules. Empty means built-in
	// defaults.
	RulesFile string `json:"rules_file"`

	// IngestDir, when set, is a drop directory watched for externally
	// produced window files to reconstruct.
	IngestDir string `json:"ingest_dir"`

	// Trigger configuration
	Trigger struct {
		// LogPath is the alert log watched for trigger lines
		LogPath string `json:"log_path"`
		// Match is the substring that marks a line as a trigger
		Match string `json:"match"`
		// PollMS is the watch poll interval in milliseconds
		PollMS int `json:"poll_ms"`
	} `json:"trigger"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	config.ValidateAndSetDefaults()
	return &config, nil
}

// ValidateAndSetDefaults fills in defaults for everything left unset.
func (c *Config) ValidateAndSetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.LogRetentionDays == 0 {
		c.Logging.LogRetentionDays = 7
	}
	if c.Capture.Interface == "" {
		c.Capture.Interface = "any"
	}
	if c.Capture.ProxyHost == "" {
		c.Capture.ProxyHost = "127.0.0.1"
	}
	if c.Capture.ProxyPort == 0 {
		c.Capture.ProxyPort = 8080
	}
	if c.Capture.SliceSeconds == 0 {
		c.Capture.SliceSeconds = 60
	}
	if c.Capture.Slots == 0 {
		c.Capture.Slots = 20
	}
	if c.Window.PastSeconds == 0 {
		c.Window.PastSeconds = 600
	}
	if c.Window.FutureSeconds == 0 {
		c.Window.FutureSeconds = 600
	}
	if c.Window.MaxInFlight == 0 {
		c.Window.MaxInFlight = 64
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./captures"
	}
	if c.Trigger.PollMS == 0 {
		c.Trigger.PollMS = 1000
	}
}

// Retention returns the total capture span the buffer can hold.
func (c *Config) Retention() int {
	return c.Capture.SliceSeconds * c.Capture.Slots
}

// validateInterfaceName rejects names that could not be a real interface.
// The name ends up on a capture subprocess command line, so anything
// resembling shell metacharacters or path traversal is refused outright.
func validateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}
	if len(name) > maxInterfaceNameLen {
		return fmt.Errorf("interface name too long: %d characters (max %d)", len(name), maxInterfaceNameLen)
	}
	if !interfaceNamePattern.MatchString(name) {
		return fmt.Errorf("interface name contains invalid characters: %q", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("interface name contains invalid characters: %q", name)
	}
	return nil
}

// GetFirstInterface returns the first usable interface from the comma
// separated capture spec. Empty segments are skipped; an empty spec
// defaults to "any".
func (c *Config) GetFirstInterface() (string, error) {
	for _, part := range strings.Split(c.Capture.Interface, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if name == "any" || name == "all" {
			return name, nil
		}
		if err := validateInterfaceName(name); err != nil {
			return "", fmt.Errorf("invalid interface '%s': %v", name, err)
		}
		return name, nil
	}
	return "any", nil
}

// GetAllInterfaces returns every validated interface from the capture spec.
func (c *Config) GetAllInterfaces() ([]string, error) {
	var interfaces []string
	for _, part := range strings.Split(c.Capture.Interface, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if name != "any" && name != "all" {
			if err := validateInterfaceName(name); err != nil {
				return nil, fmt.Errorf("invalid interface '%s': %v", name, err)
			}
		}
		interfaces = append(interfaces, name)
	}
	if len(interfaces) == 0 {
		interfaces = []string{"any"}
	}
	return interfaces, nil
}

// InitializeLogging sets up logging based on config
func (c *Config) InitializeLogging() error {
	level, err := logger.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %v", err)
	}

	if c.Logging.File != "" {
		logDir := filepath.Dir(c.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %v", err)
		}
	}

	logConfig := logger.Config{
		LogLevel: level,
		LogFile:  c.Logging.File,
	}
	if err := logger.Initialize(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	return nil
}
