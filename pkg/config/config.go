package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is resolved once at startup and treated as read-only afterwards.
type Config struct {
	Server  ServerConfig
	Assets  AssetsConfig
	Admin   AdminConfig
	Probe   ProbeConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AssetsConfig describes the pre-built directory and its entry document.
type AssetsConfig struct {
	Dir           string
	EntryDocument string // relative to Dir
	BuildCommand  string // shown in the startup diagnostic
}

type AdminConfig struct {
	Addr string // empty disables the admin listener
}

type ProbeConfig struct {
	Interval time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "3000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	readTimeout, err := parseDuration("SERVER_READ_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	writeTimeout, err := parseDuration("SERVER_WRITE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	idleTimeout, err := parseDuration("SERVER_IDLE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	probeInterval, err := parseDuration("PROBE_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", ""),
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			IdleTimeout:     idleTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		Assets: AssetsConfig{
			Dir:           getEnv("ASSET_DIR", "dist"),
			EntryDocument: getEnv("ENTRY_DOCUMENT", "index.html"),
			BuildCommand:  getEnv("BUILD_COMMAND", "pnpm run build"),
		},
		Admin: AdminConfig{
			Addr: getEnv("ADMIN_ADDR", ""),
		},
		Probe: ProbeConfig{
			Interval: probeInterval,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

// Validate checks the values that flags or the environment may have broken.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if strings.TrimSpace(c.Assets.Dir) == "" {
		return fmt.Errorf("asset directory is required")
	}
	if err := validateEntryDocument(c.Assets.EntryDocument); err != nil {
		return err
	}
	if c.Probe.Interval <= 0 {
		return fmt.Errorf("probe interval must be positive")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", c.Logging.Format)
	}
	return nil
}

// Addr is the listen address of the main listener.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func validateEntryDocument(entry string) error {
	if entry == "" {
		return fmt.Errorf("entry document is required")
	}
	if filepath.IsAbs(entry) || strings.HasPrefix(entry, "/") {
		return fmt.Errorf("entry document %q must be relative to the asset directory", entry)
	}
	cleaned := path.Clean(filepath.ToSlash(entry))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("entry document %q escapes the asset directory", entry)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
