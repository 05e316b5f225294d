package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/translate"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

// Reloader schedules a coalesced snapshot reload.
type Reloader interface {
	Trigger()
}

// Reconciler folds push events into the cache. Events whose effects the
// client cannot derive schedule a reload; assignment changes are patched
// in place.
type Reconciler struct {
	dispatcher Dispatcher
	reloader   Reloader
	cache      *cache.Store
	resolver   translate.Resolver
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ReconcilerDependencies bundles collaborators for Reconciler.
type ReconcilerDependencies struct {
	Dispatcher Dispatcher
	Reloader   Reloader
	Cache      *cache.Store
	Resolver   translate.Resolver
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewReconciler registers the reconciler's handlers on the dispatcher.
func NewReconciler(deps ReconcilerDependencies) *Reconciler {
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = NewInMemoryDispatcher()
	}
	r := &Reconciler{
		dispatcher: dispatcher,
		reloader:   deps.Reloader,
		cache:      deps.Cache,
		resolver:   deps.Resolver,
		logger:     observability.OrNop(deps.Logger),
		metrics:    deps.Metrics,
	}

	for _, t := range []EventType{EventCreated, EventUpdated, EventMoved, EventTriagePending} {
		dispatcher.Subscribe(t, r.reload)
	}
	dispatcher.Subscribe(EventAssigned, r.assigned)
	for _, t := range []EventType{EventSubscribed, EventUnsubscribed, EventPong, EventQueueStats} {
		dispatcher.Subscribe(t, ignore)
	}
	dispatcher.Subscribe(EventError, r.serverError)
	return r
}

// HandleFrame decodes and dispatches one raw frame. Malformed frames are
// dropped; unknown kinds are ignored.
func (r *Reconciler) HandleFrame(ctx context.Context, raw []byte) {
	ev, err := DecodeFrame(raw)
	if err != nil {
		r.metrics.RecordDroppedFrame()
		r.logger.Warn("dropping malformed push frame", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}
	if err := r.Handle(ctx, ev); err != nil {
		r.logger.Warn("push event not applied",
			zap.String("event_id", ev.ID),
			zap.String("kind", string(ev.Type)),
			zap.String("ticket_id", ev.TicketID),
			zap.Error(err))
	}
}

// Handle dispatches a decoded event.
func (r *Reconciler) Handle(ctx context.Context, ev Event) error {
	r.metrics.RecordPushEvent(string(ev.Type))
	err := r.dispatcher.Publish(ctx, ev)
	if errors.Is(err, ErrNoHandler) {
		r.logger.Info("ignoring unknown push event", zap.String("kind", string(ev.Type)))
		return nil
	}
	return err
}

func (r *Reconciler) reload(_ context.Context, ev Event) error {
	r.logger.Debug("push event schedules reload", zap.String("kind", string(ev.Type)), zap.String("ticket_id", ev.TicketID))
	if r.reloader != nil {
		r.reloader.Trigger()
	}
	return nil
}

func (r *Reconciler) assigned(_ context.Context, ev Event) error {
	var payload AssignedPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		r.metrics.RecordDroppedFrame()
		return util.NewDecodeError("assigned payload", err)
	}
	if payload.TicketID == "" {
		r.metrics.RecordDroppedFrame()
		return util.NewDecodeError("assigned payload", errors.New("missing ticket_id"))
	}

	var p cache.Patch
	if payload.Assignee == nil || strings.TrimSpace(*payload.Assignee) == "" {
		p.ClearAssignee = true
	} else {
		p.Assignee = translate.Assignee(*payload.Assignee, r.resolver)
	}

	applied, err := r.cache.Patch(payload.TicketID, p, r.cache.NextRevision())
	if err != nil {
		return err
	}
	if !applied {
		r.logger.Debug("assigned event for uncached ticket", zap.String("ticket_id", payload.TicketID))
	}
	return nil
}

func (r *Reconciler) serverError(_ context.Context, ev Event) error {
	r.logger.Warn("push channel reported error", zap.String("message", ev.Message))
	return nil
}

func ignore(context.Context, Event) error {
	return nil
}
