// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Pipeline  PipelineConfig          `mapstructure:"pipeline"`
	Readiness ReadinessConfig         `mapstructure:"readiness"`
	Coalescer CoalescerConfig         `mapstructure:"coalescer"`
	Server    ServerConfig            `mapstructure:"server"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// ActivityRegistry is the JSON file describing every task type served.
	ActivityRegistry string `mapstructure:"activity_registry"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// DatabaseConfig carries two postgres roles. Postgres is the service role used
// for the primary match read; PostgresScoped is the caller-scoped role used for
// the fallback read.
type DatabaseConfig struct {
	Postgres       PostgresConfig `mapstructure:"postgres"`
	PostgresScoped PostgresConfig `mapstructure:"postgres_scoped"`
	Redis          RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Domain Configuration Sections ---

// PipelineConfig points at the remote investor-matching pipeline.
type PipelineConfig struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	StatusTimeout       int    `mapstructure:"status_timeout"`  // milliseconds
	TriggerTimeout      int    `mapstructure:"trigger_timeout"` // milliseconds
	TopUpTimeout        int    `mapstructure:"topup_timeout"`   // milliseconds
	ReadTimeout         int    `mapstructure:"read_timeout"`    // milliseconds
	TargetMatches       int    `mapstructure:"target_matches"`
	TriggerRatePerMin   int    `mapstructure:"trigger_rate_per_minute"`
	TriggerBurst        int    `mapstructure:"trigger_burst"`
	TopUpThrottleTTL    int    `mapstructure:"topup_throttle_ttl"` // milliseconds
	TopUpThrottleEnable bool   `mapstructure:"topup_throttle_enabled"`
}

// ReadinessConfig drives the readiness snapshot store and gap ranking.
type ReadinessConfig struct {
	CacheTTL       int `mapstructure:"cache_ttl"` // milliseconds
	DefaultMaxGaps int `mapstructure:"default_max_gaps"`
}

type CoalescerConfig struct {
	Cooldown int `mapstructure:"cooldown"` // milliseconds
}

// ServerConfig holds the HTTP API / health / metrics listener.
type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
