package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// ActivityRepository stores the ticket activity feed.
type ActivityRepository interface {
	Append(ctx context.Context, activity domain.Activity) error
	// Recent returns up to limit entries, newest first. limit <= 0 returns all.
	Recent(ctx context.Context, limit int) ([]domain.Activity, error)
}

type memoryActivityRepository struct {
	mu      sync.RWMutex
	entries []domain.Activity
	head    int
	full    bool
}

// NewMemoryActivityRepository keeps the newest capacity entries in memory.
func NewMemoryActivityRepository(capacity int) ActivityRepository {
	if capacity <= 0 {
		capacity = 1
	}
	return &memoryActivityRepository{entries: make([]domain.Activity, capacity)}
}

func (r *memoryActivityRepository) Append(_ context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.head] = activity
	r.head = (r.head + 1) % len(r.entries)
	if r.head == 0 {
		r.full = true
	}
	return nil
}

func (r *memoryActivityRepository) Recent(_ context.Context, limit int) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	capacity := len(r.entries)
	size := r.head
	if r.full {
		size = capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]domain.Activity, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, r.entries[(r.head-i+capacity)%capacity])
	}
	return out, nil
}

type postgresActivityRepository struct {
	pool     *pgxpool.Pool
	capacity int
}

// NewPostgresActivityRepository stores activity in the desk_activity table,
// pruning beyond capacity rows on every append.
func NewPostgresActivityRepository(pool *pgxpool.Pool, capacity int) ActivityRepository {
	return &postgresActivityRepository{pool: pool, capacity: capacity}
}

func (r *postgresActivityRepository) Append(ctx context.Context, activity domain.Activity) error {
	const insert = `
        INSERT INTO desk_activity (event_id, kind, ticket_id, title, occurred_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (event_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, insert,
		activity.ID,
		activity.Kind,
		activity.TicketID,
		activity.Title,
		activity.Timestamp,
	); err != nil {
		return err
	}
	if r.capacity <= 0 {
		return nil
	}
	const prune = `
        DELETE FROM desk_activity WHERE seq <= (
            SELECT seq FROM desk_activity ORDER BY seq DESC OFFSET $1 LIMIT 1)`
	_, err := r.pool.Exec(ctx, prune, r.capacity)
	return err
}

func (r *postgresActivityRepository) Recent(ctx context.Context, limit int) ([]domain.Activity, error) {
	const query = `
        SELECT event_id, kind, ticket_id, title, occurred_at
        FROM desk_activity ORDER BY seq DESC LIMIT $1`
	if limit <= 0 {
		limit = r.capacity
	}
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Activity, 0, limit)
	for rows.Next() {
		var activity domain.Activity
		if err := rows.Scan(
			&activity.ID,
			&activity.Kind,
			&activity.TicketID,
			&activity.Title,
			&activity.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, activity)
	}
	return result, rows.Err()
}
