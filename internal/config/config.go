package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/unicornguard/internal/launcher"
	"github.com/loykin/unicornguard/internal/lifecycle"
	"github.com/loykin/unicornguard/internal/logger"
	"github.com/loykin/unicornguard/internal/signaler"
	apitls "github.com/loykin/unicornguard/internal/tls"
	"github.com/loykin/unicornguard/internal/watch"
)

// EnvPrefix namespaces environment overrides, e.g. UNICORNGUARD_STOP_TIMEOUT.
const EnvPrefix = "UNICORNGUARD"

// FileConfig represents the top-level configuration file.
type FileConfig struct {
	PIDFile    string `toml:"pidfile" mapstructure:"pidfile"`
	ConfigPath string `toml:"config_path" mapstructure:"config_path"`
	WorkDir    string `toml:"work_dir" mapstructure:"work_dir"`
	Daemonize  bool   `toml:"daemonize" mapstructure:"daemonize"`
	Bundler    bool   `toml:"bundler" mapstructure:"bundler"`
	Executable string `toml:"executable" mapstructure:"executable"`
	Wrapper    string `toml:"wrapper" mapstructure:"wrapper"`
	ChildLog   string `toml:"child_log" mapstructure:"child_log"`

	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`

	Signals SignalsConfig `toml:"signals" mapstructure:"signals"`
	Stop    StopConfig    `toml:"stop" mapstructure:"stop"`
	Watch   WatchConfig   `toml:"watch" mapstructure:"watch"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	HTTP    HTTPConfig    `toml:"http" mapstructure:"http"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Notify  NotifyConfig  `toml:"notify" mapstructure:"notify"`
}

type SignalsConfig struct {
	Quit   string `toml:"quit" mapstructure:"quit"`
	Reload string `toml:"reload" mapstructure:"reload"`
	Kill   string `toml:"kill" mapstructure:"kill"`
}

type StopConfig struct {
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	Timeout      time.Duration `toml:"timeout" mapstructure:"timeout"`
	KillTimeout  time.Duration `toml:"kill_timeout" mapstructure:"kill_timeout"`
	Escalate     bool          `toml:"escalate" mapstructure:"escalate"`
}

type WatchConfig struct {
	Root     string        `toml:"root" mapstructure:"root"`
	Patterns []string      `toml:"patterns" mapstructure:"patterns"`
	Ignore   []string      `toml:"ignore" mapstructure:"ignore"`
	Debounce time.Duration `toml:"debounce" mapstructure:"debounce"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Timestamps bool   `toml:"timestamps" mapstructure:"timestamps"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type HTTPConfig struct {
	Listen   string    `toml:"listen" mapstructure:"listen"`
	BasePath string    `toml:"base_path" mapstructure:"base_path"`
	TLS      TLSConfig `toml:"tls" mapstructure:"tls"`
}

type TLSConfig struct {
	Enabled      bool     `toml:"enabled" mapstructure:"enabled"`
	CertFile     string   `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile      string   `toml:"key_file" mapstructure:"key_file"`
	Dir          string   `toml:"dir" mapstructure:"dir"`
	AutoGenerate bool     `toml:"auto_generate" mapstructure:"auto_generate"`
	MinVersion   string   `toml:"min_version" mapstructure:"min_version"`
	Hosts        []string `toml:"hosts" mapstructure:"hosts"`
	ValidDays    int      `toml:"valid_days" mapstructure:"valid_days"`
}

type HistoryConfig struct {
	Enabled bool          `toml:"enabled" mapstructure:"enabled"`
	DSN     string        `toml:"dsn" mapstructure:"dsn"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type NotifyConfig struct {
	Console    bool `toml:"console" mapstructure:"console"`
	Timestamps bool `toml:"timestamps" mapstructure:"timestamps"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pidfile", lifecycle.DefaultPIDFile)
	v.SetDefault("config_path", lifecycle.DefaultConfigPath)
	v.SetDefault("work_dir", "")
	v.SetDefault("daemonize", false)
	v.SetDefault("bundler", true)
	v.SetDefault("executable", launcher.DefaultExecutable)
	v.SetDefault("wrapper", launcher.DefaultWrapper)
	v.SetDefault("child_log", "")
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})

	v.SetDefault("signals.quit", "QUIT")
	v.SetDefault("signals.reload", "HUP")
	v.SetDefault("signals.kill", "KILL")

	v.SetDefault("stop.poll_interval", signaler.DefaultPollInterval)
	v.SetDefault("stop.timeout", signaler.DefaultStopTimeout)
	v.SetDefault("stop.kill_timeout", signaler.DefaultKillTimeout)
	v.SetDefault("stop.escalate", true)

	v.SetDefault("watch.root", ".")
	v.SetDefault("watch.patterns", watch.DefaultPatterns)
	v.SetDefault("watch.ignore", []string{})
	v.SetDefault("watch.debounce", watch.DefaultDebounce)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", string(logger.FormatColor))
	v.SetDefault("log.timestamps", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("http.listen", "")
	v.SetDefault("http.base_path", "/api")
	v.SetDefault("http.tls.enabled", false)
	v.SetDefault("http.tls.auto_generate", false)
	v.SetDefault("http.tls.min_version", "1.3")
	v.SetDefault("http.tls.valid_days", 365)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.timeout", 5*time.Second)

	v.SetDefault("notify.console", true)
	v.SetDefault("notify.timestamps", false)
}

// Default returns the configuration used when no file is given.
func Default() (*FileConfig, error) { return Load("") }

// Load reads path (TOML unless the extension says YAML or JSON) over the
// built-in defaults and applies UNICORNGUARD_* environment overrides.
// An empty path loads defaults and environment only.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "toml"
	}
}

// Validate checks values that decoding alone cannot.
func (c *FileConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.PIDFile) == "" {
		errs = append(errs, errors.New("pidfile must not be empty"))
	}
	if _, err := c.SignalConfig(); err != nil {
		errs = append(errs, err)
	}
	if c.Stop.Timeout < 0 || c.Stop.KillTimeout < 0 || c.Stop.PollInterval < 0 {
		errs = append(errs, errors.New("stop durations must not be negative"))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}
	switch logger.Format(c.Log.Format) {
	case logger.FormatColor, logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if t := c.HTTP.TLS; t.Enabled {
		if _, err := apitls.ParseVersion(t.MinVersion); err != nil {
			errs = append(errs, fmt.Errorf("http.tls.min_version: %w", err))
		}
		if (t.CertFile == "") != (t.KeyFile == "") {
			errs = append(errs, errors.New("http.tls.cert_file and http.tls.key_file must be set together"))
		}
		if t.CertFile == "" && t.Dir == "" {
			errs = append(errs, errors.New("http.tls requires cert_file/key_file or dir"))
		}
	}
	if c.History.Enabled && strings.TrimSpace(c.History.DSN) == "" {
		errs = append(errs, errors.New("history.enabled requires history.dsn"))
	}
	return errors.Join(errs...)
}

// SignalConfig resolves signal names and stop timings.
func (c *FileConfig) SignalConfig() (signaler.Config, error) {
	out := signaler.Config{
		PollInterval: c.Stop.PollInterval,
		StopTimeout:  c.Stop.Timeout,
		KillTimeout:  c.Stop.KillTimeout,
		Escalate:     c.Stop.Escalate,
	}
	var err error
	if out.QuitSignal, err = signaler.ParseSignal(c.Signals.Quit); err != nil {
		return out, fmt.Errorf("signals.quit: %w", err)
	}
	if out.ReloadSignal, err = signaler.ParseSignal(c.Signals.Reload); err != nil {
		return out, fmt.Errorf("signals.reload: %w", err)
	}
	if out.KillSignal, err = signaler.ParseSignal(c.Signals.Kill); err != nil {
		return out, fmt.Errorf("signals.kill: %w", err)
	}
	return out, nil
}

// Lifecycle builds the controller configuration.
func (c *FileConfig) Lifecycle() (lifecycle.Config, error) {
	sig, err := c.SignalConfig()
	if err != nil {
		return lifecycle.Config{}, err
	}
	env, err := c.ChildEnv()
	if err != nil {
		return lifecycle.Config{}, err
	}
	return lifecycle.Config{
		Process: lifecycle.Process{
			PIDFile:    c.resolve(c.PIDFile),
			ConfigPath: c.ConfigPath,
			Daemonize:  c.Daemonize,
			Bundler:    c.Bundler,
		},
		Launch: launcher.Options{
			Executable:    c.Executable,
			WrapperPrefix: c.Wrapper,
			WorkDir:       c.WorkDir,
			LogFile:       c.resolve(c.ChildLog),
			Env:           env,
		},
		Signals: sig,
	}, nil
}

// resolve anchors relative paths at WorkDir so the supervisor and the server
// agree on where the pidfile lives.
func (c *FileConfig) resolve(p string) string {
	if p == "" || c.WorkDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// Logger returns the logging configuration.
func (c *FileConfig) Logger() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Format:     logger.Format(c.Log.Format),
		TimeStamps: c.Log.Timestamps,
		File: logger.FileConfig{
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		},
	}
}

// APITLS returns the HTTP API TLS settings with paths anchored at WorkDir.
func (c *FileConfig) APITLS() apitls.Config {
	t := c.HTTP.TLS
	return apitls.Config{
		Enabled:      t.Enabled,
		CertFile:     c.resolve(t.CertFile),
		KeyFile:      c.resolve(t.KeyFile),
		Dir:          c.resolve(t.Dir),
		AutoGenerate: t.AutoGenerate,
		MinVersion:   t.MinVersion,
		Hosts:        t.Hosts,
		ValidDays:    t.ValidDays,
	}
}

// WatchConfig returns the file watcher configuration.
func (c *FileConfig) WatchConfig() watch.Config {
	root := c.Watch.Root
	if root == "" || root == "." {
		if c.WorkDir != "" {
			root = c.WorkDir
		}
	}
	return watch.Config{
		Root:     root,
		Patterns: c.Watch.Patterns,
		Ignore:   c.Watch.Ignore,
		Debounce: c.Watch.Debounce,
	}
}

// ChildEnv merges env_files in order and then the env list, later entries
// winning. The result is appended to the supervisor's own environment.
func (c *FileConfig) ChildEnv() ([]string, error) {
	m := make(map[string]string)
	var order []string
	set := func(k, v string) {
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = v
	}
	for _, p := range c.EnvFiles {
		pairs, err := loadEnvFile(c.resolve(p))
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
		for _, kv := range pairs {
			set(kv[0], kv[1])
		}
	}
	for _, kv := range c.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			set(kv[:i], kv[i+1:])
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out, nil
}

// LoadEnvFile parses a simple .env file and returns a slice of "KEY=VALUE" entries.
func LoadEnvFile(path string) ([]string, error) {
	pairs, err := loadEnvFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		out = append(out, kv[0]+"="+kv[1])
	}
	return out, nil
}

// loadEnvFile parses KEY=VALUE lines (no export, no quotes) in file order.
// Lines starting with # are ignored.
func loadEnvFile(path string) ([][2]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, [2]string{strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])})
		}
	}
	return out, nil
}
