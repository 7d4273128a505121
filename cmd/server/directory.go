package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SteamVC/steamvc-relay/internal/config"
	"github.com/SteamVC/steamvc-relay/internal/repo"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// openDirectory は設定に応じたルームディレクトリのバックエンドを開きます
// 戻り値の close は接続を解放します
func openDirectory(ctx context.Context, cfg *config.Config, log *slog.Logger) (repo.RoomRepo, func(), error) {
	log = log.With(slog.String("op", "main.openDirectory"), slog.String("backend", cfg.Directory.Backend))

	switch cfg.Directory.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			DB:           cfg.Redis.DB,
			PoolSize:     10,              // 接続プールサイズ
			MinIdleConns: 5,               // 最小アイドル接続数
			MaxRetries:   3,               // リトライ回数
			DialTimeout:  5 * time.Second, // 接続タイムアウト
			ReadTimeout:  3 * time.Second, // 読み込みタイムアウト
			WriteTimeout: 3 * time.Second, // 書き込みタイムアウト
			PoolTimeout:  4 * time.Second, // プールからの取得タイムアウト
		})
		// Redis接続確認
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
		return repo.NewRedisRoomRepo(rdb), func() { rdb.Close() }, nil

	case config.BackendPostgres:
		pcfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse PG_URL: %w", err)
		}
		if cfg.Postgres.MaxConns > 0 {
			pcfg.MaxConns = cfg.Postgres.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create pg pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pr := repo.NewPostgresRoomRepo(pool, log)
		if err := pr.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("connected to postgres")
		return pr, pool.Close, nil

	case config.BackendMemory:
		log.Warn("using in-memory room directory, rooms are lost on restart")
		return repo.NewMemoryRoomRepo(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
}
