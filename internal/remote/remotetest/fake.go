// Package remotetest provides an in-memory remote.TicketService for tests.
package remotetest

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/remote"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

// Operation names accepted by Fail, Block and Calls.
const (
	OpList       = "list"
	OpGet        = "get"
	OpUpdate     = "update"
	OpIngest     = "ingest"
	OpDelete     = "delete"
	OpClaim      = "claim"
	OpAssign     = "assign"
	OpRelease    = "release"
	OpTransfer   = "transfer"
	OpAvailable  = "available"
	OpMyTickets  = "my-tickets"
	OpAgentStats = "agent-stats"
)

// Service mimics the ticket service's queue and assignment rules closely
// enough to drive the sync layer end to end.
type Service struct {
	mu      sync.Mutex
	order   []string
	records map[string]dto.TicketRecord
	fail    map[string]error
	blocks  map[string]chan struct{}
	calls   map[string]int

	// Now stamps created_at/updated_at.
	Now func() time.Time
}

var _ remote.TicketService = (*Service)(nil)

// New returns an empty service.
func New() *Service {
	return &Service{
		records: make(map[string]dto.TicketRecord),
		fail:    make(map[string]error),
		blocks:  make(map[string]chan struct{}),
		calls:   make(map[string]int),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Seed stores records in order, replacing any with the same id.
func (s *Service) Seed(recs ...dto.TicketRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if _, ok := s.records[rec.ID]; !ok {
			s.order = append(s.order, rec.ID)
		}
		s.records[rec.ID] = rec
	}
}

// Record returns the stored record for id.
func (s *Service) Record(id string) (dto.TicketRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Fail makes every call to op return err until cleared with a nil err.
func (s *Service) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Block holds calls to op until the returned release func runs or the
// call's context ends.
func (s *Service) Block(op string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.blocks[op] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.blocks[op] == ch {
				delete(s.blocks, op)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls reports how many times op was invoked.
func (s *Service) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// RejectWith builds the error the real client returns for a non-2xx answer.
func RejectWith(status int, detail string) error {
	return util.NewRemoteStatusError("fake", status, http.StatusText(status), detail)
}

func (s *Service) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	ch := s.blocks[op]
	err := s.fail[op]
	s.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return util.NewTransportError(op, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return util.NewTransportError(op, err)
	}
	return err
}

func (s *Service) ListTickets(ctx context.Context, q dto.TicketListQuery) (*dto.TicketListResponse, error) {
	if err := s.enter(ctx, OpList); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]dto.TicketRecord, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		if q.Status != "" && rec.Status != q.Status {
			continue
		}
		if q.Queue != "" && rec.CurrentQueue != q.Queue {
			continue
		}
		if q.Priority != "" && rec.Priority != q.Priority {
			continue
		}
		if q.Assignee != "" && (rec.Assignee == nil || *rec.Assignee != q.Assignee) {
			continue
		}
		matched = append(matched, rec)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	start := min(q.Offset, len(matched))
	end := min(start+limit, len(matched))
	return &dto.TicketListResponse{
		Tickets: slices.Clone(matched[start:end]),
		Total:   len(matched),
		Limit:   limit,
		Offset:  q.Offset,
	}, nil
}

func (s *Service) GetTicket(ctx context.Context, id string) (*dto.TicketRecord, error) {
	if err := s.enter(ctx, OpGet); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, RejectWith(http.StatusNotFound, "Ticket not found")
	}
	return &rec, nil
}

func (s *Service) UpdateTicket(ctx context.Context, id string, req dto.TicketUpdateRequest) (*dto.TicketRecord, error) {
	if err := s.enter(ctx, OpUpdate); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, RejectWith(http.StatusNotFound, "Ticket not found")
	}
	if req.Title != nil {
		rec.Title = *req.Title
	}
	if req.Description != nil {
		rec.Description = *req.Description
	}
	if req.Status != nil {
		rec.Status = *req.Status
		rec.CurrentQueue = queueFor(*req.Status)
	}
	if req.Priority != nil {
		rec.Priority = strings.ToUpper(*req.Priority)
	}
	if req.Category != nil {
		rec.Category = req.Category
	}
	for _, tag := range req.Tags {
		if !slices.Contains(rec.Tags, tag) {
			rec.Tags = append(rec.Tags, tag)
		}
	}
	if req.Assignee != nil {
		assign(&rec, *req.Assignee)
	}
	rec.UpdatedAt = s.stamp()
	s.records[id] = rec
	return &rec, nil
}

func (s *Service) Ingest(ctx context.Context, req dto.IngestRequest) (*dto.IngestResponse, error) {
	if err := s.enter(ctx, OpIngest); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Payload.Fields.Title) == "" {
		return nil, RejectWith(http.StatusUnprocessableEntity, "title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stamp()
	priority := strings.ToUpper(req.Metadata.Priority)
	if priority == "" {
		priority = "MEDIUM"
	}
	rec := dto.TicketRecord{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Source:       req.Source,
		Priority:     priority,
		Category:     req.Metadata.Category,
		Status:       dto.BackendStatusInbox,
		CurrentQueue: dto.QueueInbox,
		Tags:         slices.Clone(req.Metadata.Tags),
		Title:        req.Payload.Fields.Title,
		Description:  req.Payload.Fields.Description,
	}
	s.order = append(s.order, rec.ID)
	s.records[rec.ID] = rec

	position := 0
	for _, id := range s.order {
		if s.records[id].CurrentQueue == dto.QueueInbox {
			position++
		}
	}
	return &dto.IngestResponse{
		TicketID:              rec.ID,
		Status:                rec.Status,
		Queue:                 rec.CurrentQueue,
		PositionInQueue:       position,
		EstimatedTimeToTriage: fmt.Sprintf("%d seconds", position*5),
		CreatedAt:             now,
	}, nil
}

func (s *Service) DeleteTicket(ctx context.Context, id string) (*dto.DeleteResponse, error) {
	if err := s.enter(ctx, OpDelete); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return nil, RejectWith(http.StatusNotFound, "Ticket not found")
	}
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return &dto.DeleteResponse{Success: true, TicketID: id, Message: "Ticket deleted successfully"}, nil
}

func (s *Service) Claim(ctx context.Context, req dto.ClaimRequest) (*dto.ClaimResponse, error) {
	if err := s.enter(ctx, OpClaim); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		rec := s.records[id]
		if rec.CurrentQueue != dto.QueueAssignment || rec.Assignee != nil {
			continue
		}
		if len(req.PreferredCategories) > 0 && rec.Category != nil && !slices.Contains(req.PreferredCategories, *rec.Category) {
			continue
		}
		assign(&rec, req.AgentID)
		rec.Status = dto.BackendStatusInProgress
		rec.CurrentQueue = dto.QueueActive
		rec.UpdatedAt = s.stamp()
		s.records[id] = rec
		return &dto.ClaimResponse{Success: true, TicketID: &rec.ID, Ticket: &rec, Message: "Ticket claimed successfully"}, nil
	}
	return &dto.ClaimResponse{Success: false, Message: "No tickets available for claiming"}, nil
}

func (s *Service) Assign(ctx context.Context, req dto.AssignRequest) (*dto.AssignmentResponse, error) {
	if err := s.enter(ctx, OpAssign); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[req.TicketID]
	if !ok {
		return nil, RejectWith(http.StatusNotFound, "Ticket not found")
	}
	assign(&rec, req.AgentID)
	rec.UpdatedAt = s.stamp()
	s.records[rec.ID] = rec
	return &dto.AssignmentResponse{
		Success: true, TicketID: rec.ID, AgentID: req.AgentID,
		Status: rec.Status, Queue: rec.CurrentQueue, Message: "Ticket assigned successfully",
	}, nil
}

func (s *Service) Release(ctx context.Context, req dto.ReleaseRequest) (*dto.AssignmentResponse, error) {
	if err := s.enter(ctx, OpRelease); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[req.TicketID]
	if !ok {
		return nil, RejectWith(http.StatusNotFound, "Ticket not found")
	}
	if rec.Assignee == nil || *rec.Assignee != req.AgentID {
		return nil, RejectWith(http.StatusForbidden, "You can only release tickets assigned to you")
	}
	rec.Assignee = nil
	rec.Status = dto.BackendStatusInbox
	rec.CurrentQueue = dto.QueueInbox
	if req.Retriage != nil && *req.Retriage {
		rec.Status = dto.BackendStatusTriagePending
		rec.AIReasoning = nil
	}
	rec.UpdatedAt = s.stamp()
	s.records[rec.ID] = rec
	return &dto.AssignmentResponse{
		Success: true, TicketID: rec.ID, AgentID: req.AgentID,
		Status: rec.Status, Queue: rec.CurrentQueue, Message: "Ticket released successfully",
	}, nil
}

func (s *Service) Transfer(ctx context.Context, req dto.TransferRequest) (*dto.AssignmentResponse, error) {
	if err := s.enter(ctx, OpTransfer); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[req.TicketID]
	if !ok {
		return nil, RejectWith(http.StatusNotFound, "Ticket not found")
	}
	if rec.Assignee == nil || *rec.Assignee != req.FromAgentID {
		return nil, RejectWith(http.StatusForbidden, "You can only transfer tickets assigned to you")
	}
	assign(&rec, req.ToAgentID)
	rec.UpdatedAt = s.stamp()
	s.records[rec.ID] = rec
	return &dto.AssignmentResponse{
		Success: true, TicketID: rec.ID, AgentID: req.ToAgentID,
		Status: rec.Status, Queue: rec.CurrentQueue,
		Message: fmt.Sprintf("Ticket transferred from %s to %s", req.FromAgentID, req.ToAgentID),
	}, nil
}

func (s *Service) Available(ctx context.Context, q dto.AvailableQuery) (*dto.AvailableTicketsResponse, error) {
	if err := s.enter(ctx, OpAvailable); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.TicketRecord, 0)
	for _, id := range s.order {
		rec := s.records[id]
		if rec.CurrentQueue != dto.QueueAssignment || rec.Assignee != nil {
			continue
		}
		if q.Priority != "" && rec.Priority != strings.ToUpper(q.Priority) {
			continue
		}
		if q.Category != "" && (rec.Category == nil || *rec.Category != strings.ToUpper(q.Category)) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return &dto.AvailableTicketsResponse{Tickets: out, Count: len(out)}, nil
}

func (s *Service) MyTickets(ctx context.Context, agentID string) (*dto.AgentTicketsResponse, error) {
	if err := s.enter(ctx, OpMyTickets); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tickets := s.assignedTo(agentID)
	return &dto.AgentTicketsResponse{AgentID: agentID, Tickets: tickets, Count: len(tickets)}, nil
}

func (s *Service) AgentStats(ctx context.Context, agentID string) (*dto.AgentStatsResponse, error) {
	if err := s.enter(ctx, OpAgentStats); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := dto.AgentStats{
		ByPriority: map[string]int{},
		ByCategory: map[string]int{},
		ByStatus:   map[string]int{},
	}
	for _, rec := range s.assignedTo(agentID) {
		stats.Total++
		stats.ByPriority[rec.Priority]++
		stats.ByStatus[rec.Status]++
		if rec.Category != nil {
			stats.ByCategory[*rec.Category]++
		}
	}
	return &dto.AgentStatsResponse{AgentID: agentID, Stats: stats}, nil
}

func (s *Service) assignedTo(agentID string) []dto.TicketRecord {
	out := make([]dto.TicketRecord, 0)
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Assignee != nil && *rec.Assignee == agentID {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Service) stamp() string {
	return s.Now().Format(time.RFC3339Nano)
}

// assign mirrors the backend: the first assignment moves intake tickets to
// the assignment queue, reassignment keeps the current status.
func assign(rec *dto.TicketRecord, agentID string) {
	rec.Assignee = &agentID
	if rec.Status == dto.BackendStatusInbox || rec.Status == dto.BackendStatusTriagePending {
		rec.Status = dto.BackendStatusAssigned
		rec.CurrentQueue = dto.QueueAssignment
	}
}

func queueFor(status string) string {
	switch status {
	case dto.BackendStatusTriaging, dto.BackendStatusTriagePending:
		return dto.QueueTriage
	case dto.BackendStatusAssigned:
		return dto.QueueAssignment
	case dto.BackendStatusInProgress:
		return dto.QueueActive
	case dto.BackendStatusResolved, dto.BackendStatusClosed:
		return dto.QueueResolution
	default:
		return dto.QueueInbox
	}
}
