// Copyright 2026 The Netrecover Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "NETRECOVER_CONFIG"

// Config is the master configuration for netrecover.
type Config struct {
	// Interface is the wireless interface shared by station and access
	// point mode. Default: wlan0
	Interface string `yaml:"interface"`

	Paths        PathsConfig        `yaml:"paths"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Probe        ProbeConfig        `yaml:"probe"`
	AccessPoint  AccessPointConfig  `yaml:"access_point"`
	Apply        ApplyConfig        `yaml:"apply"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	System       SystemConfig       `yaml:"system"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// StateDir is the root for netrecover's own state.
	// Default: /var/lib/netrecover
	StateDir string `yaml:"state_dir"`

	// StoreDir holds the active profile, backup snapshots, the apply
	// journal and the store lock. Only the privileged helper and
	// netrecoverctl restore write here.
	// Default: ${state_dir}/store
	StoreDir string `yaml:"store_dir"`

	// RunDir holds rendered hostapd and dnsmasq configs and their pid
	// files while the fallback access point is up.
	// Default: /run/netrecover
	RunDir string `yaml:"run_dir"`

	// StatusFile always holds the current setup state as JSON.
	// Default: ${state_dir}/state.json
	StatusFile string `yaml:"status_file"`

	// SetupMarker exists only while the device is in setup mode. Other
	// appliance processes test for it.
	// Default: /var/lib/radio/setup-mode
	SetupMarker string `yaml:"setup_marker"`
}

// MonitorConfig configures the connectivity state machine.
type MonitorConfig struct {
	// PollInterval is how often the monitor probes while deciding
	// whether to enter setup mode. Default: 10s
	PollInterval time.Duration `yaml:"poll_interval"`

	// GraceWindow is how long connectivity must be continuously absent
	// before the fallback access point starts. Default: 60s
	GraceWindow time.Duration `yaml:"grace_window"`

	// RecheckInterval is the probe period once the device is online.
	// Default: 30s
	RecheckInterval time.Duration `yaml:"recheck_interval"`
}

// ProbeConfig configures the connectivity probe.
type ProbeConfig struct {
	// Timeout bounds one whole probe. Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// DNSName is resolved to prove name resolution works.
	// Default: connectivity-check.ubuntu.com
	DNSName string `yaml:"dns_name"`

	// ReachabilityAddress, when set, is dialed over TCP after DNS
	// succeeds. host:port form.
	ReachabilityAddress string `yaml:"reachability_address"`

	// WPACLI is the wpa_cli binary. Default: /usr/sbin/wpa_cli
	WPACLI string `yaml:"wpa_cli"`
}

// AccessPointConfig configures the fallback access point.
type AccessPointConfig struct {
	// SSIDPrefix is followed by the last four hex digits of the
	// interface MAC. Default: Radio-Setup-
	SSIDPrefix string `yaml:"ssid_prefix"`

	// Passphrase is printed in the appliance manual. It is a published
	// constant, not a secret. Default: radiosetup
	Passphrase string `yaml:"passphrase"`

	// Gateway is the device address on the setup network, in CIDR form.
	// Default: 192.168.4.1/24
	Gateway string `yaml:"gateway"`

	// DHCPRangeStart and DHCPRangeEnd bound the leases dnsmasq hands out.
	// Default: 192.168.4.10 to 192.168.4.50
	DHCPRangeStart string `yaml:"dhcp_range_start"`
	DHCPRangeEnd   string `yaml:"dhcp_range_end"`

	// Channel is the 2.4 GHz channel hostapd uses. Default: 6
	Channel int `yaml:"channel"`

	// Hostapd and Dnsmasq are the daemon binaries.
	Hostapd string `yaml:"hostapd"`
	Dnsmasq string `yaml:"dnsmasq"`

	// OperationTimeout bounds Start and Stop. Default: 15s
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// ApplyConfig configures the apply transaction.
type ApplyConfig struct {
	// Timeout bounds a whole submission, from commit to verification
	// and any rollback. Default: 150s
	Timeout time.Duration `yaml:"timeout"`

	// VerifyTimeout bounds the post-apply connectivity check.
	// Default: 60s
	VerifyTimeout time.Duration `yaml:"verify_timeout"`

	// HelperTimeout bounds one invocation of the privileged helper.
	// Default: 60s
	HelperTimeout time.Duration `yaml:"helper_timeout"`

	// HelperCommand is the fixed argv used to reach the privileged
	// helper. No operator input is ever appended to it.
	// Default: [/usr/bin/sudo, -n, /usr/local/lib/netrecover/netrecover-apply]
	HelperCommand []string `yaml:"helper_command"`

	// SnapshotLimit caps the rolling backup history. Minimum 1.
	// Default: 5
	SnapshotLimit int `yaml:"snapshot_limit"`

	// JournalMaxAge is how old an interrupted-apply journal may be and
	// still be rolled back at helper start. Older journals are
	// discarded. Default: 10m
	JournalMaxAge time.Duration `yaml:"journal_max_age"`
}

// ProvisioningConfig configures the setup HTTP API.
type ProvisioningConfig struct {
	// Listen is the TCP address the setup API binds while setup mode
	// is active. Default: :8080
	Listen string `yaml:"listen"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowOrigin is sent as Access-Control-Allow-Origin. Default: *
	AllowOrigin string `yaml:"allow_origin"`
}

// SystemConfig names the system files the helper rewrites.
type SystemConfig struct {
	HostnameFile string `yaml:"hostname_file"`
	HostsFile    string `yaml:"hosts_file"`

	// WPAConfig is the wpa_supplicant config for the station interface.
	// Default: /etc/wpa_supplicant/wpa_supplicant-wlan0.conf
	WPAConfig string `yaml:"wpa_config"`

	// Country is the regulatory domain written to the supplicant and
	// hostapd configs. Default: US
	Country string `yaml:"country"`
}

// Default returns the appliance defaults.
func Default() *Config {
	stateDir := "/var/lib/netrecover"
	return &Config{
		Interface: "wlan0",
		Paths: PathsConfig{
			StateDir:    stateDir,
			StoreDir:    "${NETRECOVER_STATE_DIR}/store",
			RunDir:      "/run/netrecover",
			StatusFile:  "${NETRECOVER_STATE_DIR}/state.json",
			SetupMarker: "/var/lib/radio/setup-mode",
		},
		Monitor: MonitorConfig{
			PollInterval:    10 * time.Second,
			GraceWindow:     60 * time.Second,
			RecheckInterval: 30 * time.Second,
		},
		Probe: ProbeConfig{
			Timeout: 30 * time.Second,
			DNSName: "connectivity-check.ubuntu.com",
			WPACLI:  "/usr/sbin/wpa_cli",
		},
		AccessPoint: AccessPointConfig{
			SSIDPrefix:       "Radio-Setup-",
			Passphrase:       "radiosetup",
			Gateway:          "192.168.4.1/24",
			DHCPRangeStart:   "192.168.4.10",
			DHCPRangeEnd:     "192.168.4.50",
			Channel:          6,
			Hostapd:          "/usr/sbin/hostapd",
			Dnsmasq:          "/usr/sbin/dnsmasq",
			OperationTimeout: 15 * time.Second,
		},
		Apply: ApplyConfig{
			Timeout:       150 * time.Second,
			VerifyTimeout: 60 * time.Second,
			HelperTimeout: 60 * time.Second,
			HelperCommand: []string{"/usr/bin/sudo", "-n", "/usr/local/lib/netrecover/netrecover-apply"},
			SnapshotLimit: 5,
			JournalMaxAge: 10 * time.Minute,
		},
		Provisioning: ProvisioningConfig{
			Listen:          ":8080",
			ShutdownTimeout: 5 * time.Second,
			AllowOrigin:     "*",
		},
		System: SystemConfig{
			HostnameFile: "/etc/hostname",
			HostsFile:    "/etc/hosts",
			WPAConfig:    "/etc/wpa_supplicant/wpa_supplicant-wlan0.conf",
			Country:      "US",
		},
	}
}

// Load loads configuration from the file named by NETRECOVER_CONFIG,
// or returns the expanded defaults when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Fields the
// file omits keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// Resolve picks the config source for a binary: an explicit --config
// path wins, then NETRECOVER_CONFIG, then the defaults.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	return Load()
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.StateDir = expandVars(c.Paths.StateDir, vars)
	vars["NETRECOVER_STATE_DIR"] = c.Paths.StateDir

	c.Paths.StoreDir = expandVars(c.Paths.StoreDir, vars)
	c.Paths.RunDir = expandVars(c.Paths.RunDir, vars)
	c.Paths.StatusFile = expandVars(c.Paths.StatusFile, vars)
	c.Paths.SetupMarker = expandVars(c.Paths.SetupMarker, vars)
	c.System.HostnameFile = expandVars(c.System.HostnameFile, vars)
	c.System.HostsFile = expandVars(c.System.HostsFile, vars)
	c.System.WPAConfig = expandVars(c.System.WPAConfig, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Interface == "" {
		errs = append(errs, fmt.Errorf("interface is required"))
	}

	for name, path := range map[string]string{
		"paths.state_dir":      c.Paths.StateDir,
		"paths.store_dir":      c.Paths.StoreDir,
		"paths.run_dir":        c.Paths.RunDir,
		"paths.status_file":    c.Paths.StatusFile,
		"paths.setup_marker":   c.Paths.SetupMarker,
		"system.hostname_file": c.System.HostnameFile,
		"system.hosts_file":    c.System.HostsFile,
		"system.wpa_config":    c.System.WPAConfig,
	} {
		if path == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		} else if !filepath.IsAbs(path) {
			errs = append(errs, fmt.Errorf("%s must be absolute, got %q", name, path))
		}
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"monitor.poll_interval", c.Monitor.PollInterval},
		{"monitor.grace_window", c.Monitor.GraceWindow},
		{"monitor.recheck_interval", c.Monitor.RecheckInterval},
		{"probe.timeout", c.Probe.Timeout},
		{"access_point.operation_timeout", c.AccessPoint.OperationTimeout},
		{"apply.timeout", c.Apply.Timeout},
		{"apply.verify_timeout", c.Apply.VerifyTimeout},
		{"apply.helper_timeout", c.Apply.HelperTimeout},
		{"apply.journal_max_age", c.Apply.JournalMaxAge},
		{"provisioning.shutdown_timeout", c.Provisioning.ShutdownTimeout},
	}
	for _, field := range positive {
		if field.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", field.name, field.value))
		}
	}

	if c.Apply.VerifyTimeout > 0 && c.Apply.Timeout > 0 && c.Apply.VerifyTimeout >= c.Apply.Timeout {
		errs = append(errs, fmt.Errorf("apply.verify_timeout (%s) must be shorter than apply.timeout (%s)",
			c.Apply.VerifyTimeout, c.Apply.Timeout))
	}
	if c.Apply.SnapshotLimit < 1 {
		errs = append(errs, fmt.Errorf("apply.snapshot_limit must be at least 1, got %d", c.Apply.SnapshotLimit))
	}
	if len(c.Apply.HelperCommand) == 0 {
		errs = append(errs, fmt.Errorf("apply.helper_command is required"))
	} else if !filepath.IsAbs(c.Apply.HelperCommand[0]) {
		errs = append(errs, fmt.Errorf("apply.helper_command[0] must be an absolute path, got %q", c.Apply.HelperCommand[0]))
	}

	if c.Probe.DNSName == "" {
		errs = append(errs, fmt.Errorf("probe.dns_name is required"))
	}
	if c.Probe.ReachabilityAddress != "" {
		if _, _, err := net.SplitHostPort(c.Probe.ReachabilityAddress); err != nil {
			errs = append(errs, fmt.Errorf("probe.reachability_address: %w", err))
		}
	}

	errs = append(errs, c.AccessPoint.validate()...)

	if _, _, err := net.SplitHostPort(c.Provisioning.Listen); err != nil {
		errs = append(errs, fmt.Errorf("provisioning.listen: %w", err))
	}

	return errors.Join(errs...)
}

func (a *AccessPointConfig) validate() []error {
	var errs []error

	if a.SSIDPrefix == "" {
		errs = append(errs, fmt.Errorf("access_point.ssid_prefix is required"))
	} else if len(a.SSIDPrefix)+4 > 32 {
		errs = append(errs, fmt.Errorf("access_point.ssid_prefix must leave room for the MAC suffix (at most 28 bytes)"))
	}
	if n := len(a.Passphrase); n < 8 || n > 63 {
		errs = append(errs, fmt.Errorf("access_point.passphrase must be 8 to 63 characters, got %d", n))
	}
	if strings.ContainsAny(a.Passphrase+a.SSIDPrefix, "\n\r") {
		errs = append(errs, fmt.Errorf("access_point.passphrase and ssid_prefix must be single-line"))
	}

	gateway, err := netip.ParsePrefix(a.Gateway)
	if err != nil || !gateway.Addr().Is4() {
		errs = append(errs, fmt.Errorf("access_point.gateway must be an IPv4 CIDR, got %q", a.Gateway))
	} else {
		for name, value := range map[string]string{
			"access_point.dhcp_range_start": a.DHCPRangeStart,
			"access_point.dhcp_range_end":   a.DHCPRangeEnd,
		} {
			address, err := netip.ParseAddr(value)
			if err != nil || !gateway.Masked().Contains(address) {
				errs = append(errs, fmt.Errorf("%s must be an address inside %s, got %q", name, gateway.Masked(), value))
			}
		}
	}

	if a.Channel < 1 || a.Channel > 13 {
		errs = append(errs, fmt.Errorf("access_point.channel must be 1 to 13, got %d", a.Channel))
	}
	if a.Hostapd == "" || a.Dnsmasq == "" {
		errs = append(errs, fmt.Errorf("access_point.hostapd and access_point.dnsmasq are required"))
	}
	return errs
}

// EnsurePaths creates the directories the daemon writes to.
func (c *Config) EnsurePaths() error {
	directories := []string{
		c.Paths.StateDir,
		c.Paths.RunDir,
		filepath.Dir(c.Paths.StatusFile),
		filepath.Dir(c.Paths.SetupMarker),
	}
	for _, directory := range directories {
		if directory == "" {
			continue
		}
		if err := os.MkdirAll(directory, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}
