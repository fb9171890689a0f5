// Package cleanup はKVストアの古いエントリを削除するジョブを提供する。
// 保持期間（デフォルト180日）を超えて更新されていないエントリ
// （放置されたクライアントのセッションやテーマ設定）を日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays はエントリの保持日数のデフォルト値。
const DefaultRetentionDays = 180

// Dialect は削除クエリのSQL方言。
type Dialect string

const (
	// DialectPostgres はPostgreSQL（updated_atはTIMESTAMPTZ）。
	DialectPostgres Dialect = "postgres"
	// DialectSQLite はSQLite（updated_atはUNIX秒）。
	DialectSQLite Dialect = "sqlite"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過したKVエントリの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	dialect       Dialect
	logger        *slog.Logger
	RetentionDays int // エントリの保持日数（デフォルト: 180）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は180日。
func NewCleanupJob(db Executor, dialect Dialect, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		dialect:       dialect,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
	}
}

// query は方言ごとの削除クエリと引数を返す。
func (j *CleanupJob) query() (string, []interface{}, error) {
	switch j.dialect {
	case DialectPostgres:
		return `DELETE FROM kv_entries WHERE updated_at < now() - $1::interval`,
			[]interface{}{fmt.Sprintf("%d days", j.RetentionDays)}, nil
	case DialectSQLite:
		return `DELETE FROM kv_entries WHERE updated_at < unixepoch() - ?`,
			[]interface{}{int64(j.RetentionDays) * 24 * 60 * 60}, nil
	default:
		return "", nil, fmt.Errorf("unsupported dialect: %q", j.dialect)
	}
}

// Run は保持期間を超過したエントリを削除する。
// updated_atがRetentionDays日前より古いエントリをDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	query, args, err := j.query()
	if err != nil {
		return err
	}

	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("KVクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("KVクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("KVクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.String("dialect", string(j.dialect)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以後intervalごとにRunを実行する。
// ctxがキャンセルされると終了する。失敗はログに記録して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
