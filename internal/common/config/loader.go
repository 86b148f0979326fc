// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// expands ${VAR} placeholders and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finalize(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bools cannot be defaulted after unmarshal, false is a legitimate value.
	v.SetDefault("pipeline.topup_throttle_enabled", true)
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working
// directory. Missing files are fine; the process environment still applies.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are usually only present in the environment.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.PostgresScoped.User, "DB_SCOPED_USER")
	setIfEmpty(&cfg.Database.PostgresScoped.Password, "DB_SCOPED_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Pipeline.BaseURL, "PIPELINE_BASE_URL")
	setIfEmpty(&cfg.Pipeline.APIKey, "PIPELINE_API_KEY")
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "readiness-workers"
	}
	if cfg.App.ActivityRegistry == "" {
		cfg.App.ActivityRegistry = "configs/activity-registry.json"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	applyPostgresDefaults(&cfg.Database.Postgres)
	if cfg.Database.PostgresScoped.Host == "" {
		// Without a dedicated role the fallback read reuses the primary connection settings.
		scoped := cfg.Database.Postgres
		if cfg.Database.PostgresScoped.User != "" {
			scoped.User = cfg.Database.PostgresScoped.User
			scoped.Password = cfg.Database.PostgresScoped.Password
		}
		cfg.Database.PostgresScoped = scoped
	}
	applyPostgresDefaults(&cfg.Database.PostgresScoped)

	// Pipeline defaults
	if cfg.Pipeline.StatusTimeout == 0 {
		cfg.Pipeline.StatusTimeout = 5000
	}
	if cfg.Pipeline.TriggerTimeout == 0 {
		cfg.Pipeline.TriggerTimeout = 10000
	}
	if cfg.Pipeline.TopUpTimeout == 0 {
		cfg.Pipeline.TopUpTimeout = 30000
	}
	if cfg.Pipeline.ReadTimeout == 0 {
		cfg.Pipeline.ReadTimeout = 5000
	}
	if cfg.Pipeline.TargetMatches == 0 {
		cfg.Pipeline.TargetMatches = 10
	}
	if cfg.Pipeline.TriggerRatePerMin == 0 {
		cfg.Pipeline.TriggerRatePerMin = 30
	}
	if cfg.Pipeline.TriggerBurst == 0 {
		cfg.Pipeline.TriggerBurst = 5
	}
	if cfg.Pipeline.TopUpThrottleTTL == 0 {
		cfg.Pipeline.TopUpThrottleTTL = 120000
	}

	// Readiness / coalescer defaults
	if cfg.Readiness.CacheTTL == 0 {
		cfg.Readiness.CacheTTL = 300000
	}
	if cfg.Readiness.DefaultMaxGaps == 0 {
		cfg.Readiness.DefaultMaxGaps = 3
	}
	if cfg.Coalescer.Cooldown == 0 {
		cfg.Coalescer.Cooldown = 10000
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func applyPostgresDefaults(p *PostgresConfig) {
	if p.Port == 0 {
		p.Port = 5432
	}
	if p.MaxConnections == 0 {
		p.MaxConnections = 25
	}
	if p.MaxIdle == 0 {
		p.MaxIdle = 5
	}
	if p.SSLMode == "" {
		p.SSLMode = "disable"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Pipeline.BaseURL == "" {
		return fmt.Errorf("pipeline.base_url is required")
	}
	if cfg.Pipeline.TargetMatches < 0 {
		return fmt.Errorf("pipeline.target_matches must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
