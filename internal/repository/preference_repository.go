package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrPreferenceNotFound is returned when no value is stored under a key.
var ErrPreferenceNotFound = errors.New("preference not found")

// PreferenceRepository persists small desk preferences such as the
// selected identity.
type PreferenceRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type memoryPreferenceRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryPreferenceRepository keeps preferences for the life of the process.
func NewMemoryPreferenceRepository() PreferenceRepository {
	return &memoryPreferenceRepository{values: make(map[string]string)}
}

func (r *memoryPreferenceRepository) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", ErrPreferenceNotFound
	}
	return v, nil
}

func (r *memoryPreferenceRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	r.values[key] = value
	r.mu.Unlock()
	return nil
}

type redisPreferenceRepository struct {
	client *redis.Client
}

// NewRedisPreferenceRepository stores preferences as plain redis strings.
func NewRedisPreferenceRepository(client *redis.Client) PreferenceRepository {
	return &redisPreferenceRepository{client: client}
}

func (r *redisPreferenceRepository) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrPreferenceNotFound
	}
	return v, err
}

func (r *redisPreferenceRepository) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

type postgresPreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPreferenceRepository stores preferences in desk_preferences.
func NewPostgresPreferenceRepository(pool *pgxpool.Pool) PreferenceRepository {
	return &postgresPreferenceRepository{pool: pool}
}

func (r *postgresPreferenceRepository) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT pref_value FROM desk_preferences WHERE pref_key=$1`
	var v string
	if err := r.pool.QueryRow(ctx, query, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPreferenceNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *postgresPreferenceRepository) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO desk_preferences (pref_key, pref_value)
        VALUES ($1,$2)
        ON CONFLICT (pref_key) DO UPDATE SET pref_value=EXCLUDED.pref_value, updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}
