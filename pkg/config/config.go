// Package config loads embedder configuration from environment variables
// and run profiles from YAML files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/backplane/pkg/contract"
)

// Config holds process-level configuration.
type Config struct {
	LogLevel         string
	HandshakeTimeout time.Duration
	RunTimeout       time.Duration
	GracePeriod      time.Duration
	MaxRetries       int
	TelemetryEnabled bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	logLevel := os.Getenv("ABP_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	return &Config{
		LogLevel:         logLevel,
		HandshakeTimeout: durationEnv("ABP_HANDSHAKE_TIMEOUT", 30*time.Second),
		RunTimeout:       durationEnv("ABP_RUN_TIMEOUT", 0),
		GracePeriod:      durationEnv("ABP_GRACE_PERIOD", 5*time.Second),
		MaxRetries:       intEnv("ABP_MAX_RETRIES", 3),
		TelemetryEnabled: os.Getenv("ABP_TELEMETRY") == "true",
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// Duration is a YAML-friendly duration: Go duration strings ("30s", "5m")
// or raw nanosecond integers.
type Duration time.Duration

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	// Integers first: yaml.v3 decodes any scalar into a string, so the
	// string branch would reject a bare nanosecond count.
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// BackendProfile declares one backend in a run profile.
type BackendProfile struct {
	Name     string            `yaml:"name" json:"name"`
	Command  string            `yaml:"command" json:"command"`
	Args     []string          `yaml:"args" json:"args"`
	Env      map[string]string `yaml:"env" json:"env"`
	Dialect  string            `yaml:"dialect" json:"dialect"`
	Priority uint32            `yaml:"priority" json:"priority"`
}

// Profile is a named run configuration: backends, default policy, and
// retry/timeout tunables.
type Profile struct {
	Name     string                 `yaml:"name" json:"name"`
	Backends []BackendProfile       `yaml:"backends" json:"backends"`
	Policy   contract.PolicyProfile `yaml:"policy" json:"policy"`

	MaxRetries     int      `yaml:"max_retries" json:"max_retries"`
	RunTimeout     Duration `yaml:"run_timeout" json:"run_timeout"`
	OverallTimeout Duration `yaml:"overall_timeout" json:"overall_timeout"`
}

// LoadProfile reads a YAML profile from disk.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // profile path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("profile missing name")
	}
	for i, b := range p.Backends {
		if b.Name == "" {
			return nil, fmt.Errorf("profile backend %d missing name", i)
		}
	}
	return &p, nil
}
