// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Model         ModelConfig             `mapstructure:"model"`
	Scoring       ScoringConfig           `mapstructure:"scoring"`
	Session       SessionConfig           `mapstructure:"session"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Database      DatabaseConfig          `mapstructure:"database"`
	History       HistoryConfig           `mapstructure:"history"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production test"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address" validate:"required"`
	ReadTimeout     int    `mapstructure:"read_timeout" validate:"gt=0"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout" validate:"gt=0"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"gt=0"` // milliseconds
}

// ModelConfig controls where artifacts are looked up and how the
// placeholder forest is built when none loads.
type ModelConfig struct {
	SearchDirs         []string `mapstructure:"search_dirs" validate:"min=1"`
	ArtifactNames      []string `mapstructure:"artifact_names" validate:"min=1"`
	PlaceholderSeed    uint64   `mapstructure:"placeholder_seed"`
	PlaceholderTrees   int      `mapstructure:"placeholder_trees" validate:"min=1,max=500"`
	PlaceholderSamples int      `mapstructure:"placeholder_samples" validate:"min=2"`
}

type ScoringConfig struct {
	Jitter              string  `mapstructure:"jitter" validate:"oneof=random profile none"`
	JitterRange         float64 `mapstructure:"jitter_range" validate:"min=0,max=50"`
	Locale              string  `mapstructure:"locale" validate:"oneof=en zh"`
	RecommendationsFile string  `mapstructure:"recommendations_file"`
}

type SessionConfig struct {
	Backend    string `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL        int    `mapstructure:"ttl" validate:"gt=0"` // seconds
	CookieName string `mapstructure:"cookie_name" validate:"required"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the URL field or the first address
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
}

// HistoryConfig enables the postgres assessment log and the search index.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListLimit     int    `mapstructure:"list_limit" validate:"min=1,max=500"`
	SearchEnabled bool   `mapstructure:"search_enabled"`
	Index         string `mapstructure:"index"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// NotificationConfig holds the AWS delivery channels.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email" validate:"omitempty,email"`
	} `mapstructure:"email"`
	Alerts struct {
		Enabled  bool    `mapstructure:"enabled"`
		TopicARN string  `mapstructure:"topic_arn"`
		MinScore float64 `mapstructure:"min_score" validate:"min=0,max=100"`
	} `mapstructure:"alerts"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output"`
}
