package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKVRepo はRedisを使用したKVStore。
// キーにはprefixを付与して他用途のキーと衝突しないようにする。
type RedisKVRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisKVRepo はRedis接続URLからRedisKVRepoを生成し、接続を確認する。
func NewRedisKVRepo(redisURL, prefix string) (*RedisKVRepo, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established")
	return NewRedisKVRepoWithClient(client, prefix), nil
}

// NewRedisKVRepoWithClient は既存のクライアントからRedisKVRepoを生成する。
func NewRedisKVRepoWithClient(client *redis.Client, prefix string) *RedisKVRepo {
	return &RedisKVRepo{client: client, prefix: prefix}
}

// Get はキーの値を取得する。
func (r *RedisKVRepo) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get redis key: %w", err)
	}
	return v, nil
}

// Set はキーに値を保存する。有効期限は設定しない。
func (r *RedisKVRepo) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set redis key: %w", err)
	}
	return nil
}

// Delete はキーを削除する。
func (r *RedisKVRepo) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete redis key: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。ヘルスチェックで使用する。
func (r *RedisKVRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close はRedis接続を閉じる。
func (r *RedisKVRepo) Close() error {
	return r.client.Close()
}

// compile-time interface check
var _ KVStore = (*RedisKVRepo)(nil)
