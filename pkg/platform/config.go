// Package platform wires configuration, the engine, provisioning and the
// servers into one process.
package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tmdc-io/pgduck/internal/env"
	"github.com/tmdc-io/pgduck/pkg/depot"
	"github.com/tmdc-io/pgduck/pkg/provision"
)

// Defaults.
const (
	DefaultConfigPath    = "/etc/dataos/config/pgduck.yaml"
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 5433
	DefaultHealthAddress = "0.0.0.0:8080"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	defaultDepotTimeout  = 30 * time.Second
)

// Environment variables overlaid on the configuration document.
const (
	EnvConfigPath          = "CONFIG_FILE_PATH"
	EnvDepotServiceURL     = "DEPOT_SERVICE_URL"
	EnvAPIKey              = "DATAOS_RUN_AS_APIKEY" // #nosec G101 -- variable name, not a credential
	EnvSecretDir           = "DATAOS_SECRET_DIR"
	EnvDepotTimeout        = "DEPOT_SERVICE_TIMEOUT"
	EnvPreflightEnabled    = "PGDUCK_PREFLIGHT_ENABLED"
	EnvHealthEnabled       = "PGDUCK_HEALTH_ENABLED"
	EnvHost                = "PGDUCK_HOST"
	EnvPort                = "PGDUCK_PORT"
	EnvOfficialExtensions  = "OFFICIAL_DUCKDB_EXTENSIONS"
	EnvLocalExtensions     = "LOCAL_DUCKDB_EXTENSIONS"
	EnvLocalExtensionRepo  = "LOCAL_DUCKDB_EXTENSION_REPO"
	EnvBootstrapSQL        = "DUCKDB_SECRET_SQLS"
	EnvDuckDBPath          = "DUCKDB_PATH"
	EnvLogLevel            = "LOG_LEVEL"
	EnvLogFormat           = "LOG_FORMAT"
	bootstrapSQLSeparator  = "||"
	extensionListSeparator = ","
)

// Config holds the complete process configuration.
type Config struct {
	Datasets  []provision.Dataset `yaml:"datasets"`
	SQLs      []string            `yaml:"sqls"`
	Depot     DepotConfig         `yaml:"depot"`
	Engine    EngineConfig        `yaml:"engine"`
	Server    ServerConfig        `yaml:"server"`
	Health    HealthConfig        `yaml:"health"`
	Preflight PreflightConfig     `yaml:"preflight"`
	Log       LogConfig           `yaml:"log"`
}

// DepotConfig configures the catalog service client and the secret store.
type DepotConfig struct {
	ServiceURL string        `yaml:"service_url"`
	APIKey     string        `yaml:"api_key"`
	SecretDir  string        `yaml:"secret_dir"`
	Timeout    time.Duration `yaml:"timeout"`
}

// EngineConfig configures the DuckDB database.
type EngineConfig struct {
	// Path is the database file. Empty means in-memory.
	Path string `yaml:"path"`

	// AllowUnsignedExtensions defaults to true for in-memory databases.
	AllowUnsignedExtensions *bool `yaml:"allow_unsigned_extensions"`

	Extensions          []string `yaml:"extensions"`
	LocalExtensions     []string `yaml:"local_extensions"`
	ExtensionRepository string   `yaml:"extension_repository"`

	// BootstrapSQL runs before provisioning, typically static CREATE SECRET statements.
	BootstrapSQL []string `yaml:"bootstrap_sql"`
}

// ServerConfig configures the PostgreSQL wire server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Users maps user names to bcrypt hashes. Empty disables password auth.
	Users map[string]string `yaml:"users"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// HealthConfig configures the health HTTP endpoints.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// PreflightConfig configures the storage preflight phase.
type PreflightConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig configures the default logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ResolveConfigPath picks the config path: flag value, then CONFIG_FILE_PATH,
// then the default.
func ResolveConfigPath(flagValue string, lookup env.Lookup) string {
	if flagValue != "" {
		return flagValue
	}
	return lookup.String(EnvConfigPath, DefaultConfigPath)
}

// LoadConfig loads configuration from a file and overlays the environment.
// The path is expected to come from command line arguments or the environment,
// controlled by the administrator.
func LoadConfig(path string, lookup env.Lookup) (*Config, error) {
	// #nosec G304 -- path is from CLI args or env, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: config file %s not found", ErrConfig, path)
		}
		return nil, fmt.Errorf("%w: reading config file: %w", ErrConfig, err)
	}
	return ParseConfig(data, lookup)
}

// ParseConfig parses a YAML document, expands ${VAR} references and applies
// the environment overlay and defaults.
func ParseConfig(data []byte, lookup env.Lookup) (*Config, error) {
	data = []byte(expandEnvVars(string(data), lookup))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config: %w", ErrConfig, err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string, lookup env.Lookup) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return lookup.String(match[2:len(match)-1], "")
	})
}

// applyEnv overlays the environment variables that are set.
func applyEnv(cfg *Config, lookup env.Lookup) error {
	cfg.Depot.ServiceURL = lookup.String(EnvDepotServiceURL, cfg.Depot.ServiceURL)
	cfg.Depot.APIKey = lookup.String(EnvAPIKey, cfg.Depot.APIKey)
	cfg.Depot.SecretDir = lookup.String(EnvSecretDir, cfg.Depot.SecretDir)
	timeout, err := lookup.Duration(EnvDepotTimeout, cfg.Depot.Timeout)
	if err != nil {
		return err
	}
	cfg.Depot.Timeout = timeout

	cfg.Server.Host = lookup.String(EnvHost, cfg.Server.Host)
	port, err := lookup.Int(EnvPort, cfg.Server.Port)
	if err != nil {
		return err
	}
	cfg.Server.Port = port

	cfg.Engine.Path = lookup.String(EnvDuckDBPath, cfg.Engine.Path)
	cfg.Engine.Extensions = lookup.List(EnvOfficialExtensions, extensionListSeparator, cfg.Engine.Extensions)
	cfg.Engine.LocalExtensions = lookup.List(EnvLocalExtensions, extensionListSeparator, cfg.Engine.LocalExtensions)
	cfg.Engine.ExtensionRepository = lookup.String(EnvLocalExtensionRepo, cfg.Engine.ExtensionRepository)
	cfg.Engine.BootstrapSQL = lookup.List(EnvBootstrapSQL, bootstrapSQLSeparator, cfg.Engine.BootstrapSQL)

	if cfg.Preflight.Enabled, err = lookup.Bool(EnvPreflightEnabled, cfg.Preflight.Enabled); err != nil {
		return err
	}
	if cfg.Health.Enabled, err = lookup.Bool(EnvHealthEnabled, cfg.Health.Enabled); err != nil {
		return err
	}

	cfg.Log.Level = lookup.String(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = lookup.String(EnvLogFormat, cfg.Log.Format)
	return nil
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Depot.SecretDir == "" {
		cfg.Depot.SecretDir = depot.DefaultSecretDir
	}
	if cfg.Depot.Timeout == 0 {
		cfg.Depot.Timeout = defaultDepotTimeout
	}
	if cfg.Engine.AllowUnsignedExtensions == nil {
		inMemory := cfg.Engine.Path == ""
		cfg.Engine.AllowUnsignedExtensions = &inMemory
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Health.Address == "" {
		cfg.Health.Address = DefaultHealthAddress
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// Plan returns the provisioning input declared by the configuration.
func (c *Config) Plan() provision.Plan {
	return provision.Plan{Datasets: c.Datasets, SQLs: c.SQLs}
}
