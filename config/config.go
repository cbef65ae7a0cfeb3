// Package config loads integrald.yaml.
//
// The file is optional. Discovery is first-match: an explicit --config path,
// then ./integrald.yaml, then ~/.integrald/config.yaml. Fields missing from
// the file keep the values from Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/integrald/quadrature"
)

const (
	projectConfigName = "integrald.yaml"
	homeConfigName    = "config.yaml"
	homeConfigDir     = ".integrald"

	// SQLitePathEnv overrides history.path when set.
	SQLitePathEnv = "INTEGRALD_SQLITE_PATH"
)

// History drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverNone   = "none"
)

// File is the full configuration shape.
type File struct {
	Server     ServerConfig       `yaml:"server"`
	Quadrature quadrature.Options `yaml:"quadrature"`
	History    HistoryConfig      `yaml:"history"`
	Telemetry  TelemetryConfig    `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBody      int64         `yaml:"max_body"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	BatchLimit   int           `yaml:"batch_limit"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HistoryConfig selects where computed integrals are recorded.
type HistoryConfig struct {
	Driver     string `yaml:"driver"`
	Path       string `yaml:"path"`
	MaxRecords int    `yaml:"max_records"`
	// Retention is a 5-field cron expression for the pruning job. Empty
	// disables pruning.
	Retention string        `yaml:"retention"`
	MaxAge    time.Duration `yaml:"max_age"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Insecure     bool   `yaml:"insecure"`
}

// Default returns the built-in configuration.
func Default() File {
	return File{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxBody:      1 << 20,
			CORSOrigins: []string{
				"http://localhost:4200",
				"http://127.0.0.1:4200",
			},
			BatchLimit: 64,
		},
		Quadrature: quadrature.DefaultOptions(),
		History: HistoryConfig{
			Driver:     DriverMemory,
			MaxRecords: 1000,
			Retention:  "0 * * * *",
			MaxAge:     7 * 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "integrald",
		},
	}
}

// DefaultSQLitePath returns ~/.integrald/history.db.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(homeConfigDir, "history.db")
	}
	return filepath.Join(home, homeConfigDir, "history.db")
}

// DiscoverPath resolves the config location with first-match semantics.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	explicit := strings.TrimSpace(explicitPath)
	candidates := make([]string, 0, 2)
	if explicit != "" {
		candidates = append(candidates, filepath.Clean(explicit))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if explicit != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads path over the defaults. An empty path yields the defaults
// with environment overrides applied.
func Load(path string) (File, error) {
	cfg := Default()
	if clean := strings.TrimSpace(path); clean != "" {
		data, err := os.ReadFile(clean) // #nosec G304 -- path comes from trusted CLI/config discovery.
		if err != nil {
			return File{}, fmt.Errorf("reading config %q: %w", clean, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return File{}, fmt.Errorf("parsing config %q: %w", clean, err)
		}
		if cfg.History.Path != "" {
			cfg.History.Path = resolveConfigRelative(filepath.Dir(clean), os.ExpandEnv(cfg.History.Path))
		}
	}
	cfg.Telemetry.OTLPEndpoint = os.ExpandEnv(cfg.Telemetry.OTLPEndpoint)

	if p := strings.TrimSpace(os.Getenv(SQLitePathEnv)); p != "" {
		cfg.History.Path = p
	}
	if cfg.History.Driver == DriverSQLite && cfg.History.Path == "" {
		cfg.History.Path = DefaultSQLitePath()
	}
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

// Discover combines DiscoverPath and Load.
func Discover(explicitPath string) (File, string, error) {
	path, found, err := DiscoverPath(explicitPath)
	if err != nil {
		return File{}, "", err
	}
	if !found {
		path = ""
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Validate reports the first invalid field.
func (f File) Validate() error {
	if f.Server.Port < 0 || f.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", f.Server.Port)
	}
	if f.Server.MaxBody <= 0 {
		return errors.New("server.max_body must be positive")
	}
	if f.Server.BatchLimit <= 0 {
		return errors.New("server.batch_limit must be positive")
	}
	switch f.History.Driver {
	case DriverMemory, DriverSQLite, DriverNone:
	default:
		return fmt.Errorf("history.driver %q must be one of memory, sqlite, none", f.History.Driver)
	}
	if f.History.MaxRecords < 0 {
		return errors.New("history.max_records must not be negative")
	}
	if f.History.MaxAge < 0 {
		return errors.New("history.max_age must not be negative")
	}
	q := f.Quadrature
	if q.AbsTol < 0 || q.RelTol < 0 {
		return errors.New("quadrature tolerances must not be negative")
	}
	return nil
}

func resolveConfigRelative(baseDir, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Join(baseDir, clean)
}
