package wire

import (
	"context"
	"fmt"
	"os"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/application/generation/brief"
	"z-writer-ai-api/internal/application/generation/compiler"
	"z-writer-ai-api/internal/application/generation/evaluator"
	"z-writer-ai-api/internal/application/generation/humanize"
	"z-writer-ai-api/internal/application/generation/pipeline"
	"z-writer-ai-api/internal/application/generation/refine"
	"z-writer-ai-api/internal/application/quota"
	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/infrastructure/llm"
	"z-writer-ai-api/internal/infrastructure/messaging"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
	"z-writer-ai-api/internal/infrastructure/persistence/redis"
	"z-writer-ai-api/internal/interfaces/http/handler"
	"z-writer-ai-api/internal/workflow/port"
	"z-writer-ai-api/internal/workflow/prompt"
	"z-writer-ai-api/pkg/logger"
)

// Worker 异步任务 worker 依赖容器
type Worker struct {
	Service  *generation.Service
	Consumer *messaging.Consumer
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error(ctx, "failed to close postgres client", err)
		}
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error(ctx, "failed to close redis client", err)
		}
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	return messaging.NewProducer(redisClient.Redis(), &cfg.Messaging.RedisStream)
}

// ProvideResultStore 提供结果存储
func ProvideResultStore(client *redis.Client, cfg *config.Config) *redis.ResultStore {
	return redis.NewResultStore(client, cfg.Generation.ResultTTL)
}

// ProvideInFlightGuard 提供进行中标记
func ProvideInFlightGuard(client *redis.Client, cfg *config.Config) *redis.InFlightGuard {
	return redis.NewInFlightGuard(client, cfg.Generation.InFlightTTL)
}

// ProvideRevisionCounter 提供修订计数器，与结果同寿命
func ProvideRevisionCounter(client *redis.Client, cfg *config.Config) *redis.RevisionCounter {
	return redis.NewRevisionCounter(client, cfg.Generation.ResultTTL)
}

// ProvideNormalizer 提供需求规范化器
func ProvideNormalizer(cfg *config.Config) *brief.Normalizer {
	b := cfg.Generation.Brief
	c := brief.DefaultConfig()
	if b.MinWordCount > 0 {
		c.MinWordCount = b.MinWordCount
	}
	if b.MaxWordCount > 0 {
		c.MaxWordCount = b.MaxWordCount
	}
	if b.DefaultTone != "" {
		c.DefaultTone = b.DefaultTone
	}
	if b.DefaultStyle != "" {
		c.DefaultStyle = b.DefaultStyle
	}
	if g := entity.GradeLevel(b.DefaultGradeLevel); g.Valid() {
		c.DefaultGradeLevel = g
	}
	if b.MaxRevisionRounds > 0 {
		c.MaxRevisionRounds = b.MaxRevisionRounds
	}
	return brief.NewNormalizer(c)
}

// ProvideCompiler 提供指令编译器
func ProvideCompiler(cfg *config.Config) *compiler.Compiler {
	return compiler.NewCompiler(compiler.Config{
		WordCountTolerance: cfg.Generation.Evaluation.WordCountTolerance,
	}, prompt.NewRegistry())
}

// ProvideSuite 提供约束评估套件
func ProvideSuite(cfg *config.Config) *evaluator.Suite {
	e := cfg.Generation.Evaluation
	c := evaluator.DefaultConfig()
	if e.WordCountTolerance > 0 {
		c.WordCountTolerance = e.WordCountTolerance
	}
	if e.SoftConstraints != nil {
		c.SoftConstraints = e.SoftConstraints
	}
	if len(e.Weights) > 0 {
		c.Weights = e.Weights
	}
	return evaluator.NewSuite(c)
}

// ProvideHumanizer 提供拟人化后处理器
func ProvideHumanizer(cfg *config.Config) *humanize.Humanizer {
	h := cfg.Generation.Humanizer
	c := humanize.DefaultConfig()
	if h.SeedSalt != "" {
		c.SeedSalt = h.SeedSalt
	}
	if len(h.TypoNeighbors) > 0 {
		c.TypoNeighbors = h.TypoNeighbors
	}
	return humanize.NewHumanizer(c)
}

// ProvideEngine 提供生成引擎
func ProvideEngine(cfg *config.Config, factory *llm.EinoFactory) (port.Engine, error) {
	return llm.NewEngine(cfg, factory)
}

// ProvideController 提供迭代修正控制器
func ProvideController(cfg *config.Config, engine port.Engine, comp *compiler.Compiler, suite *evaluator.Suite, usage *quota.LLMUsageRecorder) *refine.Controller {
	r := cfg.Generation.Refinement
	c := refine.DefaultConfig()
	if r.MaxIterations > 0 {
		c.MaxIterations = r.MaxIterations
	}
	if r.TimeBudget > 0 {
		c.TimeBudget = r.TimeBudget
	}
	if r.EngineTimeout > 0 {
		c.EngineTimeout = r.EngineTimeout
	}
	if r.EngineMaxAttempts > 0 {
		c.EngineMaxAttempts = r.EngineMaxAttempts
	}
	if r.EngineBackoff.Initial > 0 {
		c.BackoffInitial = r.EngineBackoff.Initial
	}
	if r.EngineBackoff.Max > 0 {
		c.BackoffMax = r.EngineBackoff.Max
	}
	if r.EngineBackoff.Multiplier > 0 {
		c.BackoffMultiplier = r.EngineBackoff.Multiplier
	}
	if r.RegenerateWordDeviation > 0 {
		c.RegenerateWordDeviation = r.RegenerateWordDeviation
	}
	if r.RepairMaxFailingRatio > 0 {
		c.RepairMaxFailingRatio = r.RepairMaxFailingRatio
	}
	if r.BaseTemperature > 0 {
		c.BaseTemperature = r.BaseTemperature
	}
	if r.RegenerateTemperatureStep != 0 {
		c.RegenerateTemperatureStep = r.RegenerateTemperatureStep
	}
	if r.MinTemperature > 0 {
		c.MinTemperature = r.MinTemperature
	}
	if r.MaxTemperature > 0 {
		c.MaxTemperature = r.MaxTemperature
	}
	if r.MaxTokensPerWord > 0 {
		c.MaxTokensPerWord = r.MaxTokensPerWord
	}
	return refine.NewController(c, engine, comp, suite, usage)
}

// ProvidePipeline 提供生成流水线
func ProvidePipeline(cfg *config.Config, comp *compiler.Compiler, ctrl *refine.Controller, h *humanize.Humanizer) *pipeline.Pipeline {
	return pipeline.NewPipeline(pipeline.Config{
		InternalRetries: cfg.Generation.InternalRetries,
		WordCountSlack:  cfg.Generation.Humanizer.WordCountSlack,
	}, comp, ctrl, h)
}

// ProvideTokenQuotaChecker 提供日配额检查
func ProvideTokenQuotaChecker(repo *postgres.LLMUsageEventRepository, cfg *config.Config) *quota.TokenQuotaChecker {
	return quota.NewTokenQuotaChecker(repo, cfg.Billing.MaxTokensPerDay)
}

// ProvideCreditCharger 提供计费
func ProvideCreditCharger(ledger *postgres.CreditLedgerRepository, cfg *config.Config) *quota.CreditCharger {
	return quota.NewCreditCharger(ledger, cfg.Billing.CreditsPer100Words, cfg.Billing.ChargePartial)
}

// ProvideLLMUsageRecorder 提供引擎用量记录
func ProvideLLMUsageRecorder(repo *postgres.LLMUsageEventRepository) *quota.LLMUsageRecorder {
	return quota.NewLLMUsageRecorder(repo)
}

// ProvideGenerationService 组装生成服务
func ProvideGenerationService(
	cfg *config.Config,
	normalizer *brief.Normalizer,
	p *pipeline.Pipeline,
	results *redis.ResultStore,
	guard *redis.InFlightGuard,
	revisions *redis.RevisionCounter,
	jobs *postgres.JobRepository,
	tx *postgres.TxManager,
	quotaChecker *quota.TokenQuotaChecker,
	charger *quota.CreditCharger,
	producer *messaging.Producer,
) *generation.Service {
	return generation.NewService(generation.Config{
		CancelPollRate: cfg.Worker.CancelPollRate,
	}, generation.Deps{
		Normalizer: normalizer,
		Pipeline:   p,
		Results:    results,
		Guard:      guard,
		Revisions:  revisions,
		Jobs:       jobs,
		Tx:         tx,
		Quota:      quotaChecker,
		Charger:    charger,
		JobQueue:   producer,
		Events:     producer,
	})
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, pg, redisClient)
}

// ProvideJobConsumer 提供任务流消费者，消费者名为主机名加进程号
func ProvideJobConsumer(redisClient *redis.Client, producer *messaging.Producer, cfg *config.Config) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	group := messaging.ConsumerGroupJobWorker
	if rs.ConsumerGroupPrefix != "" {
		group = messaging.ConsumerGroup(rs.ConsumerGroupPrefix + ":" + string(group))
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "job-worker"
	}
	name := fmt.Sprintf("%s-%d", host, os.Getpid())
	return messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        producer.JobStream(),
		Group:         group,
		ConsumerName:  name,
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Concurrency:   cfg.Worker.Concurrency,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
}

// ProvideWorker 组装 worker 并注册任务处理器
func ProvideWorker(svc *generation.Service, consumer *messaging.Consumer) *Worker {
	consumer.RegisterHandler(messaging.TypeGenerationJob, svc.HandleJobMessage)
	return &Worker{Service: svc, Consumer: consumer}
}
