package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/remote"
	"github.com/spec-kit/ticket-desk/internal/translate"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

// Mutation operation names, used in errors, logs and metrics.
const (
	OpStatus      = "status"
	OpPriority    = "priority"
	OpTitle       = "title"
	OpDescription = "description"
	OpAssign      = "assign"
	OpRelease     = "release"
	OpTransfer    = "transfer"
	OpClaim       = "claim"
	OpCreate      = "create"
	OpDelete      = "delete"
)

const defaultIngestSource = "form"

// MutationError reports a mutation the ticket service rejected or never saw.
// RolledBack is true when the optimistic change was undone in the cache.
type MutationError struct {
	Op         string
	TicketID   string
	RolledBack bool
	Err        error
}

func (e *MutationError) Error() string {
	if e.TicketID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.TicketID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// MutationService applies ticket edits. Field edits are applied to the cache
// before the remote call and undone if it fails. Operations whose effects
// the server decides are confirmed by a snapshot reload.
type MutationService struct {
	remote     remote.TicketService
	cache      *cache.Store
	snapshots  *SnapshotService
	translator translate.Translator
	resolver   translate.Resolver
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// MutationDependencies bundles collaborators for MutationService.
type MutationDependencies struct {
	Remote     remote.TicketService
	Cache      *cache.Store
	Snapshots  *SnapshotService
	Translator translate.Translator
	Resolver   translate.Resolver
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// CreateInput describes a ticket submitted through the desk.
type CreateInput struct {
	Title       string
	Description string
	Priority    domain.Priority
	Labels      []string
	Category    string
	Source      string
}

// ClaimInput narrows which ticket a claim may pick.
type ClaimInput struct {
	AgentID             string
	PreferredCategories []string
	MaxPriority         domain.Priority
}

// NewMutationService constructs the service.
func NewMutationService(deps MutationDependencies) *MutationService {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MutationService{
		remote:     deps.Remote,
		cache:      deps.Cache,
		snapshots:  deps.Snapshots,
		translator: deps.Translator,
		resolver:   deps.Resolver,
		logger:     observability.OrNop(deps.Logger),
		metrics:    deps.Metrics,
		now:        now,
	}
}

// ChangeStatus moves a ticket to status.
func (s *MutationService) ChangeStatus(ctx context.Context, id string, status domain.Status) error {
	if !s.translator.Valid(status) {
		return s.fail(OpStatus, id, util.NewValidationError("unknown status", map[string]any{"status": status}))
	}
	backend := s.translator.ToBackend(status).Status
	return s.optimistic(ctx, OpStatus, id,
		cache.Patch{Status: &status},
		dto.TicketUpdateRequest{Status: &backend})
}

// ChangePriority sets a ticket's priority.
func (s *MutationService) ChangePriority(ctx context.Context, id string, priority domain.Priority) error {
	if !priority.Valid() {
		return s.fail(OpPriority, id, util.NewValidationError("unknown priority", map[string]any{"priority": priority}))
	}
	backend := translate.ToBackendPriority(priority)
	return s.optimistic(ctx, OpPriority, id,
		cache.Patch{Priority: &priority},
		dto.TicketUpdateRequest{Priority: &backend})
}

// EditTitle replaces a ticket's title.
func (s *MutationService) EditTitle(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return s.fail(OpTitle, id, util.NewValidationError("title is required", nil))
	}
	return s.optimistic(ctx, OpTitle, id,
		cache.Patch{Title: &title},
		dto.TicketUpdateRequest{Title: &title})
}

// EditDescription replaces a ticket's description.
func (s *MutationService) EditDescription(ctx context.Context, id, description string) error {
	return s.optimistic(ctx, OpDescription, id,
		cache.Patch{Description: &description},
		dto.TicketUpdateRequest{Description: &description})
}

// Assign gives a ticket to agentID. The assignee shows immediately; status
// follows from the reload once the service accepts.
func (s *MutationService) Assign(ctx context.Context, id, agentID, reason string) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return s.fail(OpAssign, id, util.NewValidationError("agent_id is required", nil))
	}
	p := cache.Patch{Assignee: translate.Assignee(agentID, s.resolver)}
	return s.optimisticCall(ctx, OpAssign, id, p, func(ctx context.Context, _ uint64) error {
		_, err := s.remote.Assign(ctx, dto.AssignRequest{TicketID: id, AgentID: agentID, Reason: optional(reason)})
		return err
	}, true)
}

// Release returns a ticket held by agentID to the pool. retriage is
// forwarded as is.
func (s *MutationService) Release(ctx context.Context, id, agentID string, retriage bool, reason string) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return s.fail(OpRelease, id, util.NewValidationError("agent_id is required", nil))
	}
	return s.optimisticCall(ctx, OpRelease, id, cache.Patch{ClearAssignee: true}, func(ctx context.Context, _ uint64) error {
		_, err := s.remote.Release(ctx, dto.ReleaseRequest{
			TicketID: id,
			AgentID:  agentID,
			Reason:   optional(reason),
			Retriage: &retriage,
		})
		return err
	}, true)
}

// Transfer moves a ticket from one agent to another.
func (s *MutationService) Transfer(ctx context.Context, id, fromAgentID, toAgentID, reason string) error {
	if strings.TrimSpace(fromAgentID) == "" || strings.TrimSpace(toAgentID) == "" {
		return s.fail(OpTransfer, id, util.NewValidationError("from_agent_id and to_agent_id are required", nil))
	}
	p := cache.Patch{Assignee: translate.Assignee(toAgentID, s.resolver)}
	return s.optimisticCall(ctx, OpTransfer, id, p, func(ctx context.Context, _ uint64) error {
		_, err := s.remote.Transfer(ctx, dto.TransferRequest{
			TicketID:    id,
			FromAgentID: fromAgentID,
			ToAgentID:   toAgentID,
			Reason:      optional(reason),
		})
		return err
	}, true)
}

// Claim takes the next available ticket for in.AgentID. It returns nil
// without error when nothing matched.
func (s *MutationService) Claim(ctx context.Context, in ClaimInput) (*domain.Ticket, error) {
	if strings.TrimSpace(in.AgentID) == "" {
		return nil, s.fail(OpClaim, "", util.NewValidationError("agent_id is required", nil))
	}
	req := dto.ClaimRequest{AgentID: in.AgentID, PreferredCategories: in.PreferredCategories}
	if in.MaxPriority != "" {
		if !in.MaxPriority.Valid() {
			return nil, s.fail(OpClaim, "", util.NewValidationError("unknown priority", map[string]any{"max_priority": in.MaxPriority}))
		}
		p := translate.ToBackendPriority(in.MaxPriority)
		req.MaxPriority = &p
	}

	resp, err := s.remote.Claim(ctx, req)
	if err != nil {
		return nil, s.fail(OpClaim, "", err)
	}
	s.metrics.RecordMutation(OpClaim, "ok")
	if !resp.Success || resp.Ticket == nil {
		s.logger.Info("nothing to claim", zap.String("agent_id", in.AgentID), zap.String("message", resp.Message))
		return nil, nil
	}
	s.reload(ctx, OpClaim)
	t := s.translator.Ticket(*resp.Ticket, s.resolver)
	if cached, ok := s.cache.Get(t.ID); ok {
		t = cached
	}
	return &t, nil
}

// Create submits a new ticket through the ingest endpoint and reloads so the
// ticket appears with its server-assigned id and queue.
func (s *MutationService) Create(ctx context.Context, in CreateInput) (*dto.IngestResponse, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, s.fail(OpCreate, "", util.NewValidationError("title is required", nil))
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, s.fail(OpCreate, "", util.NewValidationError("unknown priority", map[string]any{"priority": in.Priority}))
	}
	source := in.Source
	if source == "" {
		source = defaultIngestSource
	}

	req := dto.IngestRequest{
		Source:      source,
		ContentType: source,
		Payload: dto.IngestPayload{
			Fields:         dto.IngestFields{Title: title, Description: in.Description},
			SubmissionTime: s.now().Format(time.RFC3339),
		},
		Metadata: dto.IngestMetadata{
			Priority: translate.ToBackendPriority(priority),
			Tags:     append([]string{}, in.Labels...),
			Category: optional(in.Category),
		},
	}
	resp, err := s.remote.Ingest(ctx, req)
	if err != nil {
		return nil, s.fail(OpCreate, "", err)
	}
	s.metrics.RecordMutation(OpCreate, "ok")
	s.logger.Info("ticket created",
		zap.String("ticket_id", resp.TicketID),
		zap.String("queue", resp.Queue),
		zap.Int("position", resp.PositionInQueue))
	s.reload(ctx, OpCreate)
	return resp, nil
}

// Delete removes a ticket remotely, then purges it from the cache.
func (s *MutationService) Delete(ctx context.Context, id string) error {
	if _, err := s.remote.DeleteTicket(ctx, id); err != nil {
		return s.fail(OpDelete, id, err)
	}
	if _, err := s.cache.Remove(id, s.cache.NextRevision()); err != nil {
		s.logger.Warn("remove deleted ticket from cache", zap.String("ticket_id", id), zap.Error(err))
	}
	s.metrics.RecordMutation(OpDelete, "ok")
	s.metrics.SetCacheSize(s.cache.Len())
	return nil
}

func (s *MutationService) optimistic(ctx context.Context, op, id string, p cache.Patch, req dto.TicketUpdateRequest) error {
	return s.optimisticCall(ctx, op, id, p, func(ctx context.Context, _ uint64) error {
		rec, err := s.remote.UpdateTicket(ctx, id, req)
		if err != nil {
			return err
		}
		s.confirm(ctx, op, *rec)
		return nil
	}, false)
}

// optimisticCall applies p, runs call, and on failure restores the fields p
// touched. The restore only lands while the ticket still carries the
// optimistic revision; anything written since wins.
func (s *MutationService) optimisticCall(ctx context.Context, op, id string, p cache.Patch, call func(ctx context.Context, rev uint64) error, reloadAfter bool) error {
	before, ok := s.cache.Get(id)
	if !ok {
		return s.fail(op, id, util.NewNotFound("ticket", map[string]any{"ticket_id": id}))
	}

	stamp := s.now()
	p.UpdatedAt = &stamp
	rev := s.cache.NextRevision()
	if applied, err := s.cache.Patch(id, p, rev); err != nil || !applied {
		if err == nil {
			err = util.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return s.fail(op, id, err)
	}

	if err := call(ctx, rev); err != nil {
		undo := cache.Restore(before, p)
		undoStamp := s.now()
		undo.UpdatedAt = &undoStamp
		rolledBack, rbErr := s.cache.CompareAndPatch(id, rev, undo, s.cache.NextRevision())
		switch {
		case rbErr != nil:
			s.logger.Error("rollback failed", zap.String("op", op), zap.String("ticket_id", id), zap.Error(rbErr))
		case rolledBack:
			s.metrics.RecordRollback(op)
			s.logger.Warn("mutation rolled back", zap.String("op", op), zap.String("ticket_id", id), zap.Error(err))
		default:
			s.logger.Warn("mutation failed; newer state kept", zap.String("op", op), zap.String("ticket_id", id), zap.Error(err))
		}
		s.metrics.RecordMutation(op, "error")
		return &MutationError{Op: op, TicketID: id, RolledBack: rolledBack, Err: err}
	}

	s.metrics.RecordMutation(op, "ok")
	if reloadAfter {
		s.reload(ctx, op)
	}
	return nil
}

// confirm stores the service's answer under a revision taken on arrival. The
// answer is at least as new as any snapshot whose fetch began before it, so a
// reload racing the call cannot shadow it. If the write is still refused the
// ticket is re-read.
func (s *MutationService) confirm(ctx context.Context, op string, rec dto.TicketRecord) {
	err := s.cache.Put(s.translator.Ticket(rec, s.resolver), s.cache.NextRevision())
	if err == nil {
		return
	}
	if errors.Is(err, cache.ErrStaleRevision) {
		s.metrics.RecordStaleWrite()
	}
	s.logger.Warn("confirmed record not stored", zap.String("op", op), zap.String("ticket_id", rec.ID), zap.Error(err))
	if s.snapshots == nil || rec.ID == "" {
		return
	}
	if err := s.snapshots.Refresh(ctx, rec.ID); err != nil {
		s.logger.Warn("refresh after refused confirmation failed", zap.String("op", op), zap.String("ticket_id", rec.ID), zap.Error(err))
	}
}

func (s *MutationService) reload(ctx context.Context, op string) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Reload(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		s.logger.Warn("reload after mutation failed", zap.String("op", op), zap.Error(err))
	}
}

func (s *MutationService) fail(op, id string, err error) error {
	s.metrics.RecordMutation(op, "error")
	var domainErr *util.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == util.CodeValidation {
		return err
	}
	s.logger.Warn("mutation failed", zap.String("op", op), zap.String("ticket_id", id), zap.Error(err))
	return &MutationError{Op: op, TicketID: id, Err: err}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
