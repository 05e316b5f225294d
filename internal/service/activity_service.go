package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/repository"
)

// DefaultActivityLimit bounds the activity feed when no limit is configured.
const DefaultActivityLimit = 100

// ActivityService records ticket events into the activity feed.
type ActivityService struct {
	dispatcher events.Dispatcher
	repo       repository.ActivityRepository
	cache      *cache.Store
	logger     *zap.Logger
	now        func() time.Time
}

// ActivityDependencies bundles collaborators for ActivityService.
type ActivityDependencies struct {
	Dispatcher events.Dispatcher
	// Repo defaults to an in-memory feed of DefaultActivityLimit entries.
	Repo   repository.ActivityRepository
	Cache  *cache.Store
	Logger *zap.Logger
	Now    func() time.Time
}

// NewActivityService creates the service.
func NewActivityService(deps ActivityDependencies) *ActivityService {
	repo := deps.Repo
	if repo == nil {
		repo = repository.NewMemoryActivityRepository(DefaultActivityLimit)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ActivityService{
		dispatcher: deps.Dispatcher,
		repo:       repo,
		cache:      deps.Cache,
		logger:     observability.OrNop(deps.Logger),
		now:        now,
	}
}

// RegisterHandlers subscribes to ticket events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, t := range []events.EventType{
		events.EventCreated,
		events.EventUpdated,
		events.EventMoved,
		events.EventAssigned,
		events.EventTriagePending,
	} {
		a.dispatcher.Subscribe(t, a.record)
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns the whole feed.
func (a *ActivityService) Recent(ctx context.Context, n int) ([]domain.Activity, error) {
	return a.repo.Recent(ctx, n)
}

func (a *ActivityService) record(ctx context.Context, ev events.Event) error {
	entry := domain.Activity{
		ID:        ev.ID,
		Kind:      string(ev.Type),
		TicketID:  ev.TicketID,
		Timestamp: ev.Timestamp,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now()
	}
	if a.cache != nil && ev.TicketID != "" {
		if t, ok := a.cache.Get(ev.TicketID); ok {
			entry.Title = t.Title
		}
	}

	if err := a.repo.Append(ctx, entry); err != nil {
		a.logger.Warn("record ticket activity", zap.String("kind", entry.Kind), zap.Error(err))
		return err
	}
	a.logger.Debug("ticket activity",
		zap.String("kind", entry.Kind),
		zap.String("ticket_id", entry.TicketID))
	return nil
}
