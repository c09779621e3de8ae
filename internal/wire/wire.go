//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/infrastructure/llm"
	"z-writer-ai-api/internal/infrastructure/persistence/postgres"
	"z-writer-ai-api/internal/infrastructure/persistence/redis"
	"z-writer-ai-api/internal/interfaces/http/handler"
	"z-writer-ai-api/internal/interfaces/http/middleware"
	"z-writer-ai-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 HTTP 应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		DataSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化异步任务 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		DataSet,
		GenerationSet,
		ProvideJobConsumer,
		ProvideWorker,
	)
	return nil, nil, nil
}

// DataSet 存储与消息基础设施
var DataSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewJobRepository,
	postgres.NewTxManager,
	postgres.NewLLMUsageEventRepository,
	postgres.NewCreditLedgerRepository,
	ProvideRedisClient,
	ProvideResultStore,
	ProvideInFlightGuard,
	ProvideRevisionCounter,
	ProvideMessagingProducer,
)

// GenerationSet 生成流水线与服务
var GenerationSet = wire.NewSet(
	ProvideNormalizer,
	ProvideCompiler,
	ProvideSuite,
	ProvideHumanizer,
	llm.NewEinoFactory,
	ProvideEngine,
	ProvideLLMUsageRecorder,
	ProvideController,
	ProvidePipeline,
	ProvideTokenQuotaChecker,
	ProvideCreditCharger,
	ProvideGenerationService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	redis.NewRateLimiter,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
	ProvideHealthHandler,
	wire.Bind(new(handler.GenerationService), new(*generation.Service)),
	wire.Bind(new(handler.JobService), new(*generation.Service)),
	handler.NewGenerationHandler,
	handler.NewJobHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)
