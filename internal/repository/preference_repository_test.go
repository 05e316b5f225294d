package repository

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postgresDSNEnv points the postgres-backed tests at a scratch database.
const postgresDSNEnv = "DESK_TEST_POSTGRES_DSN"

func testPreferenceRepository(t *testing.T, repo PreferenceRepository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Get(ctx, "desk.identity")
	assert.ErrorIs(t, err, ErrPreferenceNotFound)

	require.NoError(t, repo.Set(ctx, "desk.identity", "user-3"))
	v, err := repo.Get(ctx, "desk.identity")
	require.NoError(t, err)
	assert.Equal(t, "user-3", v)

	require.NoError(t, repo.Set(ctx, "desk.identity", "user-5"))
	v, err = repo.Get(ctx, "desk.identity")
	require.NoError(t, err)
	assert.Equal(t, "user-5", v)

	_, err = repo.Get(ctx, "other")
	assert.ErrorIs(t, err, ErrPreferenceNotFound)
}

func TestRedisPreferenceRepository(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	testPreferenceRepository(t, NewRedisPreferenceRepository(client))

	stored, err := srv.Get("desk.identity")
	require.NoError(t, err)
	assert.Equal(t, "user-5", stored)
}

func TestRedisPreferenceRepositoryUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	srv.Close()

	repo := NewRedisPreferenceRepository(client)
	_, err := repo.Get(context.Background(), "desk.identity")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPreferenceNotFound)
}

func TestPostgresPreferenceRepository(t *testing.T) {
	pool := testPostgresPool(t)
	testPreferenceRepository(t, NewPostgresPreferenceRepository(pool))
}

func testPostgresPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, file := range []string{"001_desk_preferences.sql", "002_desk_activity.sql"} {
		ddl, err := os.ReadFile("../../migrations/" + file)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(ddl))
		require.NoError(t, err)
	}
	_, err = pool.Exec(ctx, "TRUNCATE desk_preferences, desk_activity")
	require.NoError(t, err)
	return pool
}
