// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Engine   EngineConfig            `mapstructure:"engine"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
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

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Enabled   bool     `mapstructure:"enabled"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// EngineConfig holds the decision-pipeline tunables. All thresholds and
// weights are deployment-global; there is no per-scheme variation.
type EngineConfig struct {
	RuleWeight           float64 `mapstructure:"rule_weight"`
	MLWeight             float64 `mapstructure:"ml_weight"`
	ConflictLow          float64 `mapstructure:"conflict_low"`         // model disagrees below this
	ConflictHigh         float64 `mapstructure:"conflict_high"`        // model disagrees above this
	ConfidenceThreshold  float64 `mapstructure:"confidence_threshold"` // keep RULE_ELIGIBLE through a conflict
	EligibilityThreshold float64 `mapstructure:"eligibility_threshold"`

	RuleCacheTTL      int `mapstructure:"rule_cache_ttl"`      // seconds
	AttributeCacheTTL int `mapstructure:"attribute_cache_ttl"` // seconds
	AttributionTopN   int `mapstructure:"attribution_top_n"`
	BatchConcurrency  int `mapstructure:"batch_concurrency"`
	ScorerTimeout     int `mapstructure:"scorer_timeout"` // milliseconds

	UnderCoverageBoost    float64 `mapstructure:"under_coverage_boost"`
	ClusterBoostPerMember float64 `mapstructure:"cluster_boost_per_member"`
	ClusterBoostCap       float64 `mapstructure:"cluster_boost_cap"`
	HintTopK              int     `mapstructure:"hint_top_k"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
