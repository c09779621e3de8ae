// Package main 初始化数据库表结构与 Redis 消费组，可选签发开发用身份令牌
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/wire"
	"z-writer-ai-api/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 1. 表结构
	pg, cleanupPG, err := wire.ProvidePostgresClient(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer cleanupPG()

	if err := pg.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	fmt.Println("Database schema migrated.")

	// 2. 任务流消费组
	rc, cleanupRedis, err := wire.ProvideRedisClient(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer cleanupRedis()

	consumer := wire.ProvideJobConsumer(rc, wire.ProvideMessagingProducer(rc, cfg), cfg)
	if err := consumer.EnsureGroup(ctx); err != nil {
		log.Fatalf("failed to create consumer group: %v", err)
	}
	fmt.Println("Job stream consumer group ready.")

	// 3. 开发用身份令牌
	userID := os.Getenv("BOOTSTRAP_USER_ID")
	if userID != "" && cfg.Security.JWT.Enabled {
		token, err := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer).GenerateToken(userID, 24*time.Hour)
		if err != nil {
			log.Fatalf("failed to issue token: %v", err)
		}
		fmt.Printf("Token for %s (24h): %s\n", userID, token)
	}

	fmt.Println("Bootstrap completed successfully.")
}
