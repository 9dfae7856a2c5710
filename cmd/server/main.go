package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"coartistry-backend/internal/auth"
	"coartistry-backend/internal/cache"
	"coartistry-backend/internal/config"
	"coartistry-backend/internal/database"
	"coartistry-backend/internal/handler"
	"coartistry-backend/internal/logging"
	"coartistry-backend/internal/repository"
	"coartistry-backend/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// 데이터베이스 연결
	db, err := database.ConnectDB(database.LoadConfig(), log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Ping(context.Background(), db); err != nil {
		return err
	}
	log.Info("database connected")

	checks := []handler.Check{{
		Name: "database",
		Ping: func(ctx context.Context) error { return database.Ping(ctx, db) },
	}}

	// 토큰 폐기 목록: Redis 가 있으면 Redis, 없으면 프로세스 메모리
	var revoked auth.RevocationList = auth.NewMemoryRevocationList()
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		revoked = rc
		checks = append(checks, handler.Check{Name: "redis", Ping: rc.Health})
	} else {
		log.Warn("REDIS_ADDR not set, revoked tokens are kept in memory")
	}

	srv := server.New(cfg, server.Deps{
		Users:   repository.NewUserRepository(db),
		Rooms:   repository.NewRoomRepository(db),
		Revoked: revoked,
		Checks:  checks,
	}, log)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
