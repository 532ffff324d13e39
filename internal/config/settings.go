package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultServerURL        = "http://127.0.0.1:4096"
	defaultServerUsername   = "opencode"
	defaultRequestTimeoutMS = 30000
	defaultSessionTitle     = "desktop"
	defaultReconnectDelayMS = 3000
	defaultMaxDelayMS       = 30000
	defaultHealthAttempts   = 30
	defaultHealthIntervalMS = 1000
	defaultTerminal         = "xfce4-terminal"
	defaultSignalPath       = "/tmp/vibeos-command"
	defaultSignalPollMS     = 500
	defaultTemplate         = "default"

	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

type Config struct {
	Server   ServerConfig   `json:"server" toml:"server"`
	Session  SessionConfig  `json:"session" toml:"session"`
	Stream   StreamConfig   `json:"stream" toml:"stream"`
	Health   HealthConfig   `json:"health" toml:"health"`
	Launcher LauncherConfig `json:"launcher" toml:"launcher"`
	Signal   SignalConfig   `json:"signal" toml:"signal"`
	Logging  LoggingConfig  `json:"logging" toml:"logging"`
	UI       UIConfig       `json:"ui" toml:"ui"`
}

type ServerConfig struct {
	URL       string `json:"url" toml:"url"`
	Username  string `json:"username" toml:"username"`
	Password  string `json:"password,omitempty" toml:"password,omitempty"`
	TimeoutMS int    `json:"timeout_ms" toml:"timeout_ms"`
}

type SessionConfig struct {
	Title             string `json:"title" toml:"title"`
	CorrelateMessages *bool  `json:"correlate_messages,omitempty" toml:"correlate_messages,omitempty"`
}

type StreamConfig struct {
	ReconnectDelayMS int    `json:"reconnect_delay_ms" toml:"reconnect_delay_ms"`
	Backoff          string `json:"backoff" toml:"backoff"`
	MaxDelayMS       int    `json:"max_delay_ms" toml:"max_delay_ms"`
}

type HealthConfig struct {
	Attempts   int `json:"attempts" toml:"attempts"`
	IntervalMS int `json:"interval_ms" toml:"interval_ms"`
}

type LauncherConfig struct {
	Terminal string            `json:"terminal" toml:"terminal"`
	Apps     map[string]string `json:"apps,omitempty" toml:"apps,omitempty"`
}

type SignalConfig struct {
	Path           string `json:"path" toml:"path"`
	PollIntervalMS int    `json:"poll_interval_ms" toml:"poll_interval_ms"`
	Disabled       bool   `json:"disabled" toml:"disabled"`
}

type LoggingConfig struct {
	Level string `json:"level" toml:"level"`
	Path  string `json:"path,omitempty" toml:"path,omitempty"`
}

type UIConfig struct {
	Template string `json:"template" toml:"template"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:       defaultServerURL,
			Username:  defaultServerUsername,
			TimeoutMS: defaultRequestTimeoutMS,
		},
		Session: SessionConfig{
			Title: defaultSessionTitle,
		},
		Stream: StreamConfig{
			ReconnectDelayMS: defaultReconnectDelayMS,
			Backoff:          BackoffFixed,
			MaxDelayMS:       defaultMaxDelayMS,
		},
		Health: HealthConfig{
			Attempts:   defaultHealthAttempts,
			IntervalMS: defaultHealthIntervalMS,
		},
		Launcher: LauncherConfig{
			Terminal: defaultTerminal,
		},
		Signal: SignalConfig{
			Path:           defaultSignalPath,
			PollIntervalMS: defaultSignalPollMS,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Template: defaultTemplate,
		},
	}
}

// Load reads the config file from the data directory and applies
// environment overrides. A missing file yields the defaults.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFromPath(path)
}

func LoadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if value, ok := lookup("OPENCODE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Server.URL = strings.TrimSpace(value)
	}
	if value, ok := lookup("OPENCODE_SERVER_USERNAME"); ok && strings.TrimSpace(value) != "" {
		c.Server.Username = strings.TrimSpace(value)
	}
	if value, ok := lookup("OPENCODE_SERVER_PASSWORD"); ok && strings.TrimSpace(value) != "" {
		c.Server.Password = strings.TrimSpace(value)
	}
	if value, ok := lookup("VIBEOS_TERMINAL"); ok && strings.TrimSpace(value) != "" {
		c.Launcher.Terminal = strings.TrimSpace(value)
	}
	if value, ok := lookup("VIBESHELL_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = strings.TrimSpace(value)
	}
}

func (c Config) Validate() error {
	parsed, err := url.Parse(c.ServerURL())
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid server url: %s", c.ServerURL())
	}
	switch c.StreamBackoff() {
	case BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("invalid stream backoff %q (want %s or %s)", c.Stream.Backoff, BackoffFixed, BackoffExponential)
	}
	return nil
}

func (c Config) ServerURL() string {
	raw := strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	if raw == "" {
		return defaultServerURL
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return raw
}

func (c Config) ServerUsername() string {
	if name := strings.TrimSpace(c.Server.Username); name != "" {
		return name
	}
	return defaultServerUsername
}

func (c Config) ServerPassword() string {
	return strings.TrimSpace(c.Server.Password)
}

func (c Config) RequestTimeout() time.Duration {
	return millis(c.Server.TimeoutMS, defaultRequestTimeoutMS)
}

func (c Config) SessionTitle() string {
	if title := strings.TrimSpace(c.Session.Title); title != "" {
		return title
	}
	return defaultSessionTitle
}

// CorrelateMessages reports whether submissions carry a client-generated
// message id. Enabled unless explicitly turned off.
func (c Config) CorrelateMessages() bool {
	if c.Session.CorrelateMessages == nil {
		return true
	}
	return *c.Session.CorrelateMessages
}

func (c Config) ReconnectDelay() time.Duration {
	return millis(c.Stream.ReconnectDelayMS, defaultReconnectDelayMS)
}

func (c Config) ReconnectMaxDelay() time.Duration {
	maxDelay := millis(c.Stream.MaxDelayMS, defaultMaxDelayMS)
	if base := c.ReconnectDelay(); maxDelay < base {
		return base
	}
	return maxDelay
}

func (c Config) StreamBackoff() string {
	backoff := strings.ToLower(strings.TrimSpace(c.Stream.Backoff))
	if backoff == "" {
		return BackoffFixed
	}
	return backoff
}

func (c Config) HealthAttempts() int {
	if c.Health.Attempts <= 0 {
		return defaultHealthAttempts
	}
	return c.Health.Attempts
}

func (c Config) HealthInterval() time.Duration {
	return millis(c.Health.IntervalMS, defaultHealthIntervalMS)
}

func (c Config) Terminal() string {
	if term := strings.TrimSpace(c.Launcher.Terminal); term != "" {
		return term
	}
	return defaultTerminal
}

// AppAliases returns the configured alias overrides with normalized keys.
func (c Config) AppAliases() map[string]string {
	out := map[string]string{}
	for alias, executable := range c.Launcher.Apps {
		alias = strings.ToLower(strings.TrimSpace(alias))
		executable = strings.TrimSpace(executable)
		if alias == "" || executable == "" {
			continue
		}
		out[alias] = executable
	}
	return out
}

func (c Config) SignalPath() string {
	if path := strings.TrimSpace(c.Signal.Path); path != "" {
		return path
	}
	return defaultSignalPath
}

func (c Config) SignalPollInterval() time.Duration {
	return millis(c.Signal.PollIntervalMS, defaultSignalPollMS)
}

func (c Config) SignalEnabled() bool {
	return !c.Signal.Disabled
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

// LogPath resolves the configured UI log path, defaulting to the data dir.
func (c Config) LogPath() (string, error) {
	path := strings.TrimSpace(c.Logging.Path)
	if path == "" {
		return UILogPath()
	}
	return resolveConfigPath(path)
}

func (c Config) Template() string {
	if template := strings.TrimSpace(c.UI.Template); template != "" {
		return template
	}
	return defaultTemplate
}

// Redacted returns a copy safe to print: the server password is masked.
func (c Config) Redacted() Config {
	out := c
	if out.Server.Password != "" {
		out.Server.Password = "********"
	}
	if c.Launcher.Apps != nil {
		out.Launcher.Apps = make(map[string]string, len(c.Launcher.Apps))
		for alias, executable := range c.Launcher.Apps {
			out.Launcher.Apps[alias] = executable
		}
	}
	return out
}

// Encode renders the effective configuration as TOML. The server password
// is redacted.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c.Redacted())
}

func millis(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Millisecond
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func resolveConfigPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}
