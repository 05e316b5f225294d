package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/remote"
	"github.com/spec-kit/ticket-desk/internal/translate"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

// ErrSuperseded is returned by a reload that a newer reload cancelled or
// outran. It is never recorded as the sync error.
var ErrSuperseded = errors.New("reload superseded")

const defaultPageSize = 100

// SnapshotService fetches full snapshots from the ticket service into the cache.
type SnapshotService struct {
	remote     remote.TicketService
	cache      *cache.Store
	translator translate.Translator
	resolver   translate.Resolver
	pageSize   int
	debounce   time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics

	baseCtx context.Context
	stop    context.CancelFunc

	mu          sync.Mutex
	seq         uint64
	cancelFetch context.CancelFunc
	loading     bool
	lastErr     error
	lastSuccess time.Time
	pending     *time.Timer
	closed      bool
}

// SnapshotDependencies bundles collaborators for SnapshotService.
type SnapshotDependencies struct {
	Remote     remote.TicketService
	Cache      *cache.Store
	Translator translate.Translator
	Resolver   translate.Resolver
	PageSize   int
	Debounce   time.Duration
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// SyncState is what the rendering layer shows about snapshot health.
type SyncState struct {
	Loading     bool
	LastError   error
	LastSuccess time.Time
}

// NewSnapshotService constructs the service.
func NewSnapshotService(deps SnapshotDependencies) *SnapshotService {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	ctx, stop := context.WithCancel(context.Background())
	return &SnapshotService{
		remote:     deps.Remote,
		cache:      deps.Cache,
		translator: deps.Translator,
		resolver:   deps.Resolver,
		pageSize:   pageSize,
		debounce:   deps.Debounce,
		logger:     observability.OrNop(deps.Logger),
		metrics:    deps.Metrics,
		baseCtx:    ctx,
		stop:       stop,
	}
}

// Reload fetches every page and swaps it into the cache. Starting a reload
// cancels the one in flight, which then returns ErrSuperseded.
func (s *SnapshotService) Reload(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return cache.ErrClosed
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.seq++
	seq := s.seq
	s.cancelFetch = cancel
	s.loading = true
	s.mu.Unlock()

	rev := s.cache.NextRevision()
	start := time.Now()
	recs, err := s.fetchAll(ctx)
	if err == nil {
		err = s.cache.ReplaceAll(s.translator.Tickets(recs, s.resolver), rev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	latest := seq == s.seq
	if latest {
		s.cancelFetch = nil
		s.loading = false
	}

	switch {
	case err == nil:
		if latest {
			s.lastErr = nil
		}
		s.lastSuccess = time.Now()
		s.metrics.RecordReload("ok", time.Since(start))
		s.metrics.SetCacheSize(s.cache.Len())
		s.logger.Debug("snapshot applied", zap.Int("tickets", len(recs)), zap.Uint64("revision", rev))
		return nil
	case !latest || errors.Is(err, cache.ErrStaleRevision):
		s.metrics.RecordReload("superseded", time.Since(start))
		if errors.Is(err, cache.ErrStaleRevision) {
			s.metrics.RecordStaleWrite()
		}
		return ErrSuperseded
	default:
		s.lastErr = err
		s.metrics.RecordReload("error", time.Since(start))
		s.logger.Warn("snapshot reload failed", zap.Error(err))
		return err
	}
}

func (s *SnapshotService) fetchAll(ctx context.Context) ([]dto.TicketRecord, error) {
	var (
		all    []dto.TicketRecord
		seen   = make(map[string]struct{})
		offset int
	)
	for {
		page, err := s.remote.ListTickets(ctx, dto.TicketListQuery{Limit: s.pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Tickets {
			// Pages can shift under concurrent inserts; keep the first copy.
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			all = append(all, rec)
		}
		limit := page.Limit
		if limit <= 0 {
			limit = s.pageSize
		}
		offset += len(page.Tickets)
		if len(page.Tickets) == 0 || len(page.Tickets) < limit || offset >= page.Total {
			return all, nil
		}
	}
}

// Trigger schedules a reload after the debounce window. Triggers arriving
// while one is pending coalesce into it.
func (s *SnapshotService) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending != nil {
		return
	}
	s.pending = time.AfterFunc(s.debounce, s.fire)
}

func (s *SnapshotService) fire() {
	s.mu.Lock()
	s.pending = nil
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	_ = s.Reload(s.baseCtx)
}

// Refresh re-reads one ticket. A ticket the service no longer knows is
// dropped from the cache.
func (s *SnapshotService) Refresh(ctx context.Context, id string) error {
	rev := s.cache.NextRevision()
	rec, err := s.remote.GetTicket(ctx, id)
	if err != nil {
		if status, ok := util.RemoteStatus(err); ok && status == 404 {
			if _, rmErr := s.cache.Remove(id, rev); rmErr != nil && !errors.Is(rmErr, cache.ErrStaleRevision) {
				return rmErr
			}
		}
		return err
	}
	if err := s.cache.Put(s.translator.Ticket(*rec, s.resolver), rev); err != nil {
		if errors.Is(err, cache.ErrStaleRevision) {
			s.metrics.RecordStaleWrite()
			return nil
		}
		return err
	}
	return nil
}

// State reports whether a reload is running and the last reload error.
func (s *SnapshotService) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncState{Loading: s.loading, LastError: s.lastErr, LastSuccess: s.lastSuccess}
}

// Close cancels pending and in-flight reloads.
func (s *SnapshotService) Close() {
	s.mu.Lock()
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.mu.Unlock()
	s.stop()
}
