// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPlaceholder 匹配 ${VAR} 与 ${VAR:default}
var envPlaceholder = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 从 CONFIG_DIR（默认 configs）加载配置
func Load() (*Config, error) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "configs"
	}
	return LoadFrom(dir)
}

// LoadFrom 按优先级加载：config.yaml -> config.<APP_ENV>.yaml -> 环境变量 -> 默认值
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := loadConfigFile(v, filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env)), true); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFile 读取文件并替换环境变量占位符后合并进 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	reader := strings.NewReader(expandEnv(string(content)))
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		v.SetConfigFile(path)
		return nil
	}
	if err := v.MergeConfig(reader); err != nil {
		return fmt.Errorf("failed to merge processed config %s: %w", path, err)
	}
	return nil
}

// expandEnv 替换 ${VAR:default} 占位符，未定义且无默认值的保持原样
func expandEnv(s string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		sub := envPlaceholder.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok {
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 检查互相关联的配置项
func (c *Config) Validate() error {
	b := c.Generation.Brief
	if b.MinWordCount <= 0 || b.MaxWordCount < b.MinWordCount {
		return fmt.Errorf("invalid generation.brief word count range [%d, %d]", b.MinWordCount, b.MaxWordCount)
	}
	r := c.Generation.Refinement
	if r.MaxIterations <= 0 {
		return fmt.Errorf("generation.refinement.max_iterations must be positive")
	}
	if r.EngineMaxAttempts <= 0 {
		return fmt.Errorf("generation.refinement.engine_max_attempts must be positive")
	}
	if r.MinTemperature > r.MaxTemperature {
		return fmt.Errorf("generation.refinement temperature range is empty")
	}
	worst := c.MaxGenerationDuration()
	if c.Generation.InFlightTTL <= worst {
		return fmt.Errorf("generation.in_flight_ttl must exceed the longest generation (%s)", worst)
	}
	if w := c.Server.HTTP.WriteTimeout; w > 0 && w < worst {
		return fmt.Errorf("server.http.write_timeout %s is shorter than the longest generation (%s)", w, worst)
	}
	return nil
}

// MaxGenerationDuration 同步生成的最长耗时估计。
// 时间预算只在状态切换时检查，每次尝试最多再超出一次引擎调用的超时；内部重试会整体重跑。
func (c *Config) MaxGenerationDuration() time.Duration {
	r := c.Generation.Refinement
	return time.Duration(c.Generation.InternalRetries+1) * (r.TimeBudget + r.EngineTimeout)
}

// setDefaults 兜底默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "z-writer-ai-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "10m")
	v.SetDefault("server.http.idle_timeout", "120s")
	v.SetDefault("server.http.shutdown_timeout", "10m")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "z_writer_ai")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 50)
	v.SetDefault("database.postgres.max_idle_conns", 10)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")

	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 100)
	v.SetDefault("cache.redis.min_idle_conns", 10)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	v.SetDefault("llm.default_provider", "openai")

	v.SetDefault("generation.brief.min_word_count", 50)
	v.SetDefault("generation.brief.max_word_count", 10000)
	v.SetDefault("generation.brief.default_tone", "professional")
	v.SetDefault("generation.brief.default_style", "informative")
	v.SetDefault("generation.brief.default_grade_level", "high_school")
	v.SetDefault("generation.brief.max_revision_rounds", 10)

	v.SetDefault("generation.refinement.max_iterations", 5)
	v.SetDefault("generation.refinement.time_budget", "3m")
	v.SetDefault("generation.refinement.engine_timeout", "60s")
	v.SetDefault("generation.refinement.engine_max_attempts", 3)
	v.SetDefault("generation.refinement.engine_backoff.initial", "500ms")
	v.SetDefault("generation.refinement.engine_backoff.max", "8s")
	v.SetDefault("generation.refinement.engine_backoff.multiplier", 2.0)
	v.SetDefault("generation.refinement.regenerate_word_deviation", 0.5)
	v.SetDefault("generation.refinement.repair_max_failing_ratio", 0.5)
	v.SetDefault("generation.refinement.base_temperature", 0.7)
	v.SetDefault("generation.refinement.regenerate_temperature_step", -0.1)
	v.SetDefault("generation.refinement.min_temperature", 0.2)
	v.SetDefault("generation.refinement.max_temperature", 1.2)
	v.SetDefault("generation.refinement.max_tokens_per_word", 2.5)

	v.SetDefault("generation.evaluation.word_count_tolerance", 0.10)
	v.SetDefault("generation.evaluation.soft_constraints", []string{"reading_level", "citations"})
	v.SetDefault("generation.evaluation.weights", map[string]float64{
		"word_count":    3.0,
		"keyword":       2.0,
		"sections":      2.0,
		"reading_level": 1.0,
		"citations":     1.0,
	})

	v.SetDefault("generation.humanizer.seed_salt", "z-writer")
	v.SetDefault("generation.humanizer.word_count_slack", 0.02)

	v.SetDefault("generation.internal_retries", 1)
	v.SetDefault("generation.result_ttl", "72h")
	v.SetDefault("generation.in_flight_ttl", "10m")

	v.SetDefault("billing.credits_per_100_words", 1)
	v.SetDefault("billing.charge_partial", false)
	v.SetDefault("billing.max_tokens_per_day", 0)

	v.SetDefault("messaging.redis_stream.max_len", 100000)
	v.SetDefault("messaging.redis_stream.consumer_group_prefix", "z-writer")
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 3)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "1s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "30s")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)
	v.SetDefault("messaging.redis_stream.job_stream", "stream:generation:jobs")
	v.SetDefault("messaging.redis_stream.analytics_stream", "stream:analytics:generation")

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.cancel_poll_rate", "2s")

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.jwt.enabled", true)
	v.SetDefault("security.jwt.issuer", "z-writer")
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.limit", 60)
	v.SetDefault("security.rate_limit.window", "1m")
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"})
}
