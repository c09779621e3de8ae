// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Billing       BillingConfig       `yaml:"billing" mapstructure:"billing"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Worker        WorkerConfig        `yaml:"worker" mapstructure:"worker"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// ShutdownTimeout 优雅停机时等待进行中请求的时长
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LLMConfig 生成引擎配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig 生成引擎提供商配置
type ProviderConfig struct {
	// Driver 客户端实现：eino（默认）或 openai
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GenerationConfig 生成流水线配置
type GenerationConfig struct {
	Brief      BriefConfig      `yaml:"brief" mapstructure:"brief"`
	Refinement RefinementConfig `yaml:"refinement" mapstructure:"refinement"`
	Evaluation EvaluationConfig `yaml:"evaluation" mapstructure:"evaluation"`
	Humanizer  HumanizerConfig  `yaml:"humanizer" mapstructure:"humanizer"`

	// InternalRetries 评估/润色内部故障时整次生成的重试次数
	InternalRetries int `yaml:"internal_retries" mapstructure:"internal_retries"`
	// ResultTTL 结果在 Redis 中的保留时长（幂等重放）
	ResultTTL time.Duration `yaml:"result_ttl" mapstructure:"result_ttl"`
	// InFlightTTL 进行中标记的过期时间，需大于单次生成的时间预算
	InFlightTTL time.Duration `yaml:"in_flight_ttl" mapstructure:"in_flight_ttl"`
}

// BriefConfig 需求规范化配置
type BriefConfig struct {
	MinWordCount      int    `yaml:"min_word_count" mapstructure:"min_word_count"`
	MaxWordCount      int    `yaml:"max_word_count" mapstructure:"max_word_count"`
	DefaultTone       string `yaml:"default_tone" mapstructure:"default_tone"`
	DefaultStyle      string `yaml:"default_style" mapstructure:"default_style"`
	DefaultGradeLevel string `yaml:"default_grade_level" mapstructure:"default_grade_level"`
	MaxRevisionRounds int    `yaml:"max_revision_rounds" mapstructure:"max_revision_rounds"`
}

// RefinementConfig 迭代修正控制器配置
type RefinementConfig struct {
	MaxIterations     int           `yaml:"max_iterations" mapstructure:"max_iterations"`
	TimeBudget        time.Duration `yaml:"time_budget" mapstructure:"time_budget"`
	EngineTimeout     time.Duration `yaml:"engine_timeout" mapstructure:"engine_timeout"`
	EngineMaxAttempts int           `yaml:"engine_max_attempts" mapstructure:"engine_max_attempts"`
	EngineBackoff     BackoffConfig `yaml:"engine_backoff" mapstructure:"engine_backoff"`

	RegenerateWordDeviation   float64 `yaml:"regenerate_word_deviation" mapstructure:"regenerate_word_deviation"`
	RepairMaxFailingRatio     float64 `yaml:"repair_max_failing_ratio" mapstructure:"repair_max_failing_ratio"`
	BaseTemperature           float64 `yaml:"base_temperature" mapstructure:"base_temperature"`
	RegenerateTemperatureStep float64 `yaml:"regenerate_temperature_step" mapstructure:"regenerate_temperature_step"`
	MinTemperature            float64 `yaml:"min_temperature" mapstructure:"min_temperature"`
	MaxTemperature            float64 `yaml:"max_temperature" mapstructure:"max_temperature"`
	// MaxTokensPerWord 按目标字数估算 max_tokens 的系数
	MaxTokensPerWord float64 `yaml:"max_tokens_per_word" mapstructure:"max_tokens_per_word"`
}

// EvaluationConfig 约束评估配置
type EvaluationConfig struct {
	WordCountTolerance float64            `yaml:"word_count_tolerance" mapstructure:"word_count_tolerance"`
	SoftConstraints    []string           `yaml:"soft_constraints" mapstructure:"soft_constraints"`
	Weights            map[string]float64 `yaml:"weights" mapstructure:"weights"`
}

// HumanizerConfig 拟人化后处理配置
type HumanizerConfig struct {
	SeedSalt       string  `yaml:"seed_salt" mapstructure:"seed_salt"`
	WordCountSlack float64 `yaml:"word_count_slack" mapstructure:"word_count_slack"`
	// TypoNeighbors 键盘相邻字母替换表，key 为小写字母
	TypoNeighbors map[string]string `yaml:"typo_neighbors" mapstructure:"typo_neighbors"`
}

// BillingConfig 计费配置
type BillingConfig struct {
	CreditsPer100Words int  `yaml:"credits_per_100_words" mapstructure:"credits_per_100_words"`
	ChargePartial      bool `yaml:"charge_partial" mapstructure:"charge_partial"`
	// MaxTokensPerDay 单用户每日引擎 Token 上限，0 表示不限
	MaxTokensPerDay int64 `yaml:"max_tokens_per_day" mapstructure:"max_tokens_per_day"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	JobStream           string        `yaml:"job_stream" mapstructure:"job_stream"`
	AnalyticsStream     string        `yaml:"analytics_stream" mapstructure:"analytics_stream"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// WorkerConfig 异步任务 worker 配置
type WorkerConfig struct {
	Concurrency    int           `yaml:"concurrency" mapstructure:"concurrency"`
	CancelPollRate time.Duration `yaml:"cancel_poll_rate" mapstructure:"cancel_poll_rate"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// JWTConfig 身份令牌校验配置
type JWTConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Secret  string `yaml:"secret" mapstructure:"secret"`
	Issuer  string `yaml:"issuer" mapstructure:"issuer"`
}

// RateLimitConfig 限流配置（按用户滑动窗口）
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Limit   int           `yaml:"limit" mapstructure:"limit"`
	Window  time.Duration `yaml:"window" mapstructure:"window"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
