package inspector

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/afzaal-28/rn-inspector/discovery"
	"github.com/afzaal-28/rn-inspector/hub"
)

const envPrefix = "RN_INSPECTOR_"

type ChannelPorts struct {
	Console    int `yaml:"console"`
	Network    int `yaml:"network"`
	Storage    int `yaml:"storage"`
	Control    int `yaml:"control"`
	Navigation int `yaml:"navigation"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

type Config struct {
	Host             string        `yaml:"host"`
	MetroPort        int           `yaml:"metroPort"`
	DevtoolsURL      string        `yaml:"devtoolsUrl"`
	ChannelPath      string        `yaml:"channelPath"`
	Channels         ChannelPorts  `yaml:"channels"`
	HealthPort       int           `yaml:"healthPort"`
	MetricsBind      string        `yaml:"metricsBind"`
	MetricsPort      int           `yaml:"metricsPort"`
	DiscoveryTimeout time.Duration `yaml:"discoveryTimeout"`
	ExtraPorts       []int         `yaml:"extraPorts"`
	InjectExtras     bool          `yaml:"injectExtras"`
	DisableMetro     bool          `yaml:"disableMetro"`
	Log              LogConfig     `yaml:"log"`
}

// DefaultConfig returns the built-in defaults. A zero health port binds an
// ephemeral port; a zero metrics port disables the metrics listener.
func DefaultConfig() *Config {
	return &Config{
		Host:        "127.0.0.1",
		MetroPort:   8081,
		ChannelPath: "/inspector",
		Channels: ChannelPorts{
			Console:    9230,
			Network:    9231,
			Storage:    9232,
			Control:    9233,
			Navigation: 9234,
		},
		MetricsBind:      "127.0.0.1",
		DiscoveryTimeout: discovery.DefaultTimeout,
		ExtraPorts:       append([]int(nil), discovery.DefaultExtraPorts...),
		InjectExtras:     true,
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// LoadConfigFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %v: %w", path, err)
	}

	return nil
}

// ApplyEnv overlays RN_INSPECTOR_* variables, plus METRO_PORT, onto c.
// Unparsable values are ignored.
func (c *Config) ApplyEnv(logger logrus.FieldLogger) {
	c.Host = getEnvString(envPrefix+"HOST", c.Host)
	c.MetroPort = getEnvPort(logger, "METRO_PORT", c.MetroPort)
	c.MetroPort = getEnvPort(logger, envPrefix+"METRO_PORT", c.MetroPort)
	c.DevtoolsURL = getEnvString(envPrefix+"DEVTOOLS_URL", c.DevtoolsURL)
	c.ChannelPath = getEnvString(envPrefix+"CHANNEL_PATH", c.ChannelPath)
	c.Channels.Console = getEnvInt(envPrefix+"CONSOLE_PORT", c.Channels.Console)
	c.Channels.Network = getEnvInt(envPrefix+"NETWORK_PORT", c.Channels.Network)
	c.Channels.Storage = getEnvInt(envPrefix+"STORAGE_PORT", c.Channels.Storage)
	c.Channels.Control = getEnvInt(envPrefix+"CONTROL_PORT", c.Channels.Control)
	c.Channels.Navigation = getEnvInt(envPrefix+"NAVIGATION_PORT", c.Channels.Navigation)
	c.HealthPort = getEnvInt(envPrefix+"HEALTH_PORT", c.HealthPort)
	c.MetricsBind = getEnvString(envPrefix+"METRICS_BIND", c.MetricsBind)
	c.MetricsPort = getEnvInt(envPrefix+"METRICS_PORT", c.MetricsPort)
	c.DiscoveryTimeout = getEnvDuration(envPrefix+"DISCOVERY_TIMEOUT", c.DiscoveryTimeout)
	c.ExtraPorts = getEnvIntSlice(envPrefix+"EXTRA_PORTS", c.ExtraPorts)
	c.InjectExtras = getEnvBool(envPrefix+"INJECT_EXTRAS", c.InjectExtras)
	c.DisableMetro = getEnvBool(envPrefix+"DISABLE_METRO", c.DisableMetro)
	c.Log.File = getEnvString(envPrefix+"LOG_FILE", c.Log.File)
}

// Validate rejects out of range ports and channels sharing a port.
func (c *Config) Validate() error {
	var errs []error

	checkPort := func(name string, port int) {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%v port %d out of range", name, port))
		}
	}

	if c.MetroPort <= 0 || c.MetroPort > 65535 {
		errs = append(errs, fmt.Errorf("metro port %d out of range", c.MetroPort))
	}

	checkPort("health", c.HealthPort)
	checkPort("metrics", c.MetricsPort)

	used := make(map[int]hub.Channel, len(hub.Channels))

	for _, ch := range hub.Channels {
		port := c.ChannelPort(ch)
		checkPort(string(ch), port)

		if port == 0 {
			continue
		}

		if other, ok := used[port]; ok {
			errs = append(errs, fmt.Errorf("channels %v and %v share port %d", other, ch, port))
		}

		used[port] = ch
	}

	if !strings.HasPrefix(c.ChannelPath, "/") {
		errs = append(errs, fmt.Errorf("channel path %q must start with /", c.ChannelPath))
	}

	if c.DiscoveryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("discovery timeout must be positive"))
	}

	return errors.Join(errs...)
}

// ChannelPort returns the configured listen port of ch. Zero binds an
// ephemeral port.
func (c *Config) ChannelPort(ch hub.Channel) int {
	switch ch {
	case hub.ChannelConsole:
		return c.Channels.Console
	case hub.ChannelNetwork:
		return c.Channels.Network
	case hub.ChannelStorage:
		return c.Channels.Storage
	case hub.ChannelControl:
		return c.Channels.Control
	case hub.ChannelNavigation:
		return c.Channels.Navigation
	default:
		return 0
	}
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}

	return defaultValue
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}

	return defaultValue
}

func getEnvPort(logger logrus.FieldLogger, key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 && parsed < 65536 {
		return parsed
	}

	logger.Warnf("ignoring invalid %v=%q, falling back to %v", key, value, defaultValue)

	return defaultValue
}

func getEnvIntSlice(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	out := make([]int, 0)

	for _, part := range strings.Split(value, ",") {
		parsed, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}

		out = append(out, parsed)
	}

	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}

	return defaultValue
}
