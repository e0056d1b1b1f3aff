// Package config handles configuration loading from CLI flags, environment variables, and TOML files.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration settings for the desktop shell.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Desktop DesktopConfig `toml:"desktop"`
	Lua     LuaConfig     `toml:"lua"`
	MCP     MCPConfig     `toml:"mcp"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds bridge server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	Dir  string `toml:"-"` // Static site directory (CLI only, not in config file)
}

// StorageConfig holds storage-related settings.
type StorageConfig struct {
	Type string `toml:"type"` // "memory", "file", "sqlite", "postgresql"
	Path string `toml:"path"` // SQLite file or state directory
	URL  string `toml:"url"`  // PostgreSQL connection URL
	Key  string `toml:"key"`  // Key the persisted snapshot is stored under
}

// DesktopConfig holds window and session behaviour settings.
type DesktopConfig struct {
	ViewportWidth    float64  `toml:"viewport_width"`
	ViewportHeight   float64  `toml:"viewport_height"`
	TaskbarHeight    float64  `toml:"taskbar_height"`
	MinWindowWidth   float64  `toml:"min_window_width"`
	MinWindowHeight  float64  `toml:"min_window_height"`
	FrameInterval    Duration `toml:"frame_interval"`
	AutosaveInterval Duration `toml:"autosave_interval"` // 0 disables autosave
	StartDirectory   string   `toml:"start_directory"`
}

// LuaConfig holds Lua runtime settings.
type LuaConfig struct {
	Enabled bool   `toml:"enabled"`
	Startup string `toml:"startup"`
	Watch   bool   `toml:"watch"` // Re-run the startup script when it changes
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `toml:"level"`     // "debug", "info", "warn", "error"
	Verbosity int    `toml:"verbosity"` // 0=lifecycle, 1=connections, 2=messages, 3=state, 4=values
}

// verbosityCounter implements flag.Value for counting -v flags.
type verbosityCounter int

func (v *verbosityCounter) String() string {
	return fmt.Sprintf("%d", *v)
}

func (v *verbosityCounter) Set(string) error {
	*v++
	return nil
}

func (v *verbosityCounter) IsBoolFlag() bool {
	return true
}

// expandVerbosityFlags preprocesses args to expand -vvv into -v -v -v.
func expandVerbosityFlags(args []string) []string {
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] == 'v' {
			allV := true
			for _, c := range arg[1:] {
				if c != 'v' {
					allV = false
					break
				}
			}
			if allV {
				for range arg[1:] {
					result = append(result, "-v")
				}
				continue
			}
		}
		result = append(result, arg)
	}
	return result
}

// Duration is a time.Duration that can be unmarshaled from TOML strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			Type: "file",
			Path: "state",
			Key:  "nexusShellState",
		},
		Desktop: DesktopConfig{
			ViewportWidth:    1280,
			ViewportHeight:   800,
			TaskbarHeight:    50,
			MinWindowWidth:   320,
			MinWindowHeight:  200,
			FrameInterval:    Duration(16 * time.Millisecond),
			AutosaveInterval: Duration(30 * time.Second),
			StartDirectory:   "/home",
		},
		Lua: LuaConfig{
			Enabled: true,
			Startup: "lua/startup.lua",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Verbosity: 0,
		},
	}
}

// Load loads configuration from CLI flags, environment variables, and TOML file.
// Priority: CLI flags > env vars > TOML file > defaults
func Load(args []string) (*Config, error) {
	cfg, _, err := LoadWithArgs(args)
	return cfg, err
}

// LoadWithArgs is Load that also returns the positional arguments left after flag parsing.
func LoadWithArgs(args []string) (*Config, []string, error) {
	cfg := DefaultConfig()

	args = expandVerbosityFlags(args)

	fs := flag.NewFlagSet("nexus-shell", flag.ContinueOnError)
	dir := fs.String("dir", "", "Serve the shell chrome from directory")
	configPath := fs.String("config", "", "Config file path")

	host := fs.String("host", "", "Bridge listen address")
	port := fs.Int("port", 0, "Bridge listen port")

	storage := fs.String("storage", "", "Storage type: memory, file, sqlite, postgresql")
	storagePath := fs.String("storage-path", "", "SQLite database path or state directory")
	storageURL := fs.String("storage-url", "", "PostgreSQL connection URL")

	autosave := fs.Duration("autosave", -1, "Autosave interval (0=disabled)")
	lua := fs.Bool("lua", true, "Run the Lua startup script")
	luaStartup := fs.String("lua-startup", "", "Lua startup script")
	luaWatch := fs.Bool("lua-watch", false, "Re-run the startup script when it changes")
	mcp := fs.Bool("mcp", false, "Serve MCP on stdio")

	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	var verbosity verbosityCounter
	fs.Var(&verbosity, "v", "Verbosity level (use -v, -vv, or -vvv)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	path := *configPath
	if path == "" {
		path = "config/config.toml"
		if *dir != "" {
			path = *dir + "/config/config.toml"
		}
	}
	if err := cfg.loadTOML(path); err != nil && !os.IsNotExist(err) {
		return nil, nil, err
	}

	cfg.applyEnv()

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *storage != "" {
		cfg.Storage.Type = *storage
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if *storageURL != "" {
		cfg.Storage.URL = *storageURL
	}
	if *autosave >= 0 {
		cfg.Desktop.AutosaveInterval = Duration(*autosave)
	}
	if !*lua {
		cfg.Lua.Enabled = false
	}
	if *luaStartup != "" {
		cfg.Lua.Startup = *luaStartup
	}
	if *luaWatch {
		cfg.Lua.Watch = true
	}
	if *mcp {
		cfg.MCP.Enabled = true
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if verbosity > 0 {
		cfg.Logging.Verbosity = int(verbosity)
	}

	cfg.Server.Dir = *dir

	return cfg, fs.Args(), nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("NEXUS_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("NEXUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("NEXUS_STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("NEXUS_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("NEXUS_STORAGE_URL"); v != "" {
		c.Storage.URL = v
	}
	if v := os.Getenv("NEXUS_AUTOSAVE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Desktop.AutosaveInterval = Duration(d)
		}
	}
	if v := os.Getenv("NEXUS_LUA"); v != "" {
		c.Lua.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("NEXUS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NEXUS_VERBOSITY"); v != "" {
		if verbosity, err := strconv.Atoi(v); err == nil {
			c.Logging.Verbosity = verbosity
		}
	}
}

// Verbosity returns the configured verbosity level.
func (c *Config) Verbosity() int {
	if c == nil {
		return 0
	}
	return c.Logging.Verbosity
}

// Log writes a message when level is at or below the configured verbosity.
// Level 0 messages are always written, even on a nil Config.
func (c *Config) Log(level int, format string, args ...interface{}) {
	if level > c.Verbosity() {
		return
	}
	if level > 0 {
		format = fmt.Sprintf("[v%d] %s", level, format)
	}
	log.Printf(format, args...)
}
