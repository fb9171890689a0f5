package app

import (
	"fmt"
	"log/slog"

	"github.com/hitoshi/appshell/internal/config"
	"github.com/hitoshi/appshell/internal/database"
	"github.com/hitoshi/appshell/internal/handler"
	"github.com/hitoshi/appshell/internal/repository"
	"github.com/hitoshi/appshell/internal/worker/cleanup"
)

// kvStore は設定に応じて開いたKVストアと付随するリソース。
type kvStore struct {
	repository.KVStore

	// health はヘルスチェック用。メモリストアではnil
	health handler.HealthChecker

	// db と dialect は保持期間切れエントリの削除に使う。SQL系ストア以外ではnil
	db      cleanup.Executor
	dialect cleanup.Dialect

	close func() error
}

// Close は下層の接続を閉じる。
func (s *kvStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStore はSTORE_DRIVERに対応するKVストアを開く。
func openStore(cfg *config.Config) (*kvStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		// 1. DB接続
		db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		repo := repository.NewPostgresKVRepo(db)
		return &kvStore{
			KVStore: repo,
			health:  repo,
			db:      db,
			dialect: cleanup.DialectPostgres,
			close:   db.Close,
		}, nil

	case config.StoreSQLite:
		repo, err := repository.OpenSQLiteKVRepo(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		slog.Info("sqlite store opened", slog.String("path", cfg.SQLitePath))

		return &kvStore{
			KVStore: repo,
			health:  repo,
			db:      repo.DB(),
			dialect: cleanup.DialectSQLite,
			close:   repo.Close,
		}, nil

	case config.StoreRedis:
		repo, err := repository.NewRedisKVRepo(cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, err
		}
		return &kvStore{
			KVStore: repo,
			health:  repo,
			close:   repo.Close,
		}, nil

	default:
		slog.Warn("using in-memory store; sessions are lost on restart")
		return &kvStore{KVStore: repository.NewMemoryKVRepo()}, nil
	}
}
