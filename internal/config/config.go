// Package config provides configuration management for lodeb.
//
// Configuration controls:
//   - Which debug adapter drives the target (lldb-dap, gdb, dlv) and its path
//   - Where the session file is persisted
//   - Logging level, format and destination
//   - Timeouts for adapter round-trips and launches
//   - Limits on captured output and symbol search results
//
// Values come from defaults, then an optional config file (JSON, YAML or
// TOML), then LODEB_* environment variables.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AdapterKind names a supported debug adapter
type AdapterKind string

const (
	AdapterLLDB  AdapterKind = "lldb"
	AdapterGDB   AdapterKind = "gdb"
	AdapterDelve AdapterKind = "dlv"
)

// EnvPrefix is the prefix for environment overrides, e.g. LODEB_LOG_LEVEL
const EnvPrefix = "LODEB"

// Config holds the application configuration
type Config struct {
	Adapter   AdapterKind    `mapstructure:"adapter"`
	Adapters  AdapterConfigs `mapstructure:"adapters"`
	StatePath string         `mapstructure:"state_path"`

	Log      LogConfig     `mapstructure:"log"`
	Timeouts TimeoutConfig `mapstructure:"timeouts"`
	Output   OutputConfig  `mapstructure:"output"`
	Symbols  SymbolsConfig `mapstructure:"symbols"`
	MCP      MCPConfig     `mapstructure:"mcp"`

	// PollInterval bounds how long the driver sleeps between ticks when idle
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// AdapterConfigs holds configuration for each adapter
type AdapterConfigs struct {
	LLDB  AdapterPath `mapstructure:"lldb"`
	GDB   AdapterPath `mapstructure:"gdb"`
	Delve AdapterPath `mapstructure:"dlv"`
}

// AdapterPath points at an adapter binary
type AdapterPath struct {
	Path string `mapstructure:"path"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
	File   string `mapstructure:"file"`   // empty means stderr
}

// TimeoutConfig holds adapter timeouts
type TimeoutConfig struct {
	Request time.Duration `mapstructure:"request"`
	Launch  time.Duration `mapstructure:"launch"`
}

// OutputConfig bounds captured process output
type OutputConfig struct {
	MaxBytes int `mapstructure:"max_bytes"`
}

// SymbolsConfig bounds symbol search
type SymbolsConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// MCPConfig controls the MCP tool server
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// findLLDBDap searches for lldb-dap in common locations across platforms
func findLLDBDap() string {
	if path, err := exec.LookPath("lldb-dap"); err == nil {
		return path
	}

	locations := []string{
		"/Library/Developer/CommandLineTools/usr/bin/lldb-dap",
		"/Applications/Xcode.app/Contents/Developer/usr/bin/lldb-dap",
		"/opt/homebrew/bin/lldb-dap",
		"/usr/local/bin/lldb-dap",
		"/usr/bin/lldb-dap",
		"/usr/bin/lldb-dap-18",
		"/usr/bin/lldb-dap-17",
		"/usr/lib/llvm-18/bin/lldb-dap",
		"/usr/lib/llvm-17/bin/lldb-dap",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	// Pre-LLVM 16 name
	if path, err := exec.LookPath("lldb-vscode"); err == nil {
		return path
	}

	return "lldb-dap"
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Adapter: AdapterLLDB,
		Adapters: AdapterConfigs{
			LLDB:  AdapterPath{Path: findLLDBDap()},
			GDB:   AdapterPath{Path: "gdb"},
			Delve: AdapterPath{Path: "dlv"},
		},
		StatePath: "lodeb.json",
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Timeouts: TimeoutConfig{
			Request: 10 * time.Second,
			Launch:  30 * time.Second,
		},
		Output:       OutputConfig{MaxBytes: 1 << 20},
		Symbols:      SymbolsConfig{MaxResults: 50},
		MCP:          MCPConfig{Enabled: true},
		PollInterval: 50 * time.Millisecond,
	}
}

// setDefaults registers default values with v so that env overrides work
// for keys that never appear in a file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("adapter", string(d.Adapter))
	v.SetDefault("adapters.lldb.path", d.Adapters.LLDB.Path)
	v.SetDefault("adapters.gdb.path", d.Adapters.GDB.Path)
	v.SetDefault("adapters.dlv.path", d.Adapters.Delve.Path)
	v.SetDefault("state_path", d.StatePath)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("timeouts.request", d.Timeouts.Request)
	v.SetDefault("timeouts.launch", d.Timeouts.Launch)
	v.SetDefault("output.max_bytes", d.Output.MaxBytes)
	v.SetDefault("symbols.max_results", d.Symbols.MaxResults)
	v.SetDefault("mcp.enabled", d.MCP.Enabled)
	v.SetDefault("poll_interval", d.PollInterval)
}

// New returns a viper instance primed with defaults and env bindings
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// LODEB_LOG_LEVEL for log.level
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig loads configuration from an optional file plus the environment
func LoadConfig(path string) (*Config, error) {
	return LoadWith(New(), path)
}

// LoadWith loads configuration into a caller-supplied viper instance.
// The CLI uses this to bind flags before reading.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later and far away
func (c *Config) Validate() error {
	if _, err := c.AdapterPathFor(c.Adapter); err != nil {
		return err
	}
	if c.Timeouts.Request <= 0 {
		return fmt.Errorf("timeouts.request must be positive, got %v", c.Timeouts.Request)
	}
	if c.Timeouts.Launch <= 0 {
		return fmt.Errorf("timeouts.launch must be positive, got %v", c.Timeouts.Launch)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultConfig().PollInterval
	}
	return nil
}

// AdapterPathFor returns the configured binary path for an adapter kind
func (c *Config) AdapterPathFor(kind AdapterKind) (string, error) {
	switch kind {
	case AdapterLLDB:
		return c.Adapters.LLDB.Path, nil
	case AdapterGDB:
		return c.Adapters.GDB.Path, nil
	case AdapterDelve:
		return c.Adapters.Delve.Path, nil
	}
	return "", fmt.Errorf("unknown adapter %q (supported: %s)", kind, strings.Join(SupportedAdapters(), ", "))
}

// SupportedAdapters lists the adapter kinds in preference order
func SupportedAdapters() []string {
	return []string{string(AdapterLLDB), string(AdapterGDB), string(AdapterDelve)}
}
