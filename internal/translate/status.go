// Package translate maps between the ticket service's vocabularies and the
// desk's. Every function here is pure and total.
package translate

import (
	"strings"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/domain"
)

// Taxonomy selects which status generation the desk renders.
type Taxonomy string

const (
	// TaxonomyQueue derives status from the backend queue.
	TaxonomyQueue Taxonomy = "queue"
	// TaxonomyStatus maps the explicit backend status enum.
	TaxonomyStatus Taxonomy = "status"
)

var (
	queueStatuses = []domain.Status{
		domain.StatusOpen,
		domain.StatusInProgress,
		domain.StatusReview,
		domain.StatusDone,
	}
	explicitStatuses = []domain.Status{
		domain.StatusOpen,
		domain.StatusTriage,
		domain.StatusAssigned,
		domain.StatusInProgress,
		domain.StatusResolved,
		domain.StatusClosed,
	}
)

// BackendRecord is the slice of a backend ticket that decides its status.
type BackendRecord struct {
	Status string
	Queue  string
}

// BackendFields is the canonical backend representation of a desk status.
type BackendFields struct {
	Status string
	Queue  string
}

// Translator converts statuses for one taxonomy.
type Translator struct {
	taxonomy Taxonomy
}

// New returns a translator. Unknown taxonomies fall back to TaxonomyQueue.
func New(taxonomy Taxonomy) Translator {
	if taxonomy != TaxonomyStatus {
		taxonomy = TaxonomyQueue
	}
	return Translator{taxonomy: taxonomy}
}

// Taxonomy returns the active taxonomy.
func (t Translator) Taxonomy() Taxonomy {
	if t.taxonomy == "" {
		return TaxonomyQueue
	}
	return t.taxonomy
}

// Statuses returns the canonical status set in board order.
func (t Translator) Statuses() []domain.Status {
	src := queueStatuses
	if t.Taxonomy() == TaxonomyStatus {
		src = explicitStatuses
	}
	return append([]domain.Status(nil), src...)
}

// Valid reports whether s belongs to the canonical set.
func (t Translator) Valid(s domain.Status) bool {
	for _, candidate := range t.Statuses() {
		if candidate == s {
			return true
		}
	}
	return false
}

// ToFrontendStatus maps a backend record to exactly one canonical status.
func (t Translator) ToFrontendStatus(rec BackendRecord) domain.Status {
	if t.Taxonomy() == TaxonomyStatus {
		return fromExplicitStatus(rec.Status)
	}
	return fromQueue(rec)
}

func fromQueue(rec BackendRecord) domain.Status {
	switch strings.ToUpper(strings.TrimSpace(rec.Queue)) {
	case dto.QueueInbox, dto.QueueTriage, dto.QueueAssignment:
		return domain.StatusOpen
	case dto.QueueActive:
		return domain.StatusInProgress
	case dto.QueueResolution:
		if strings.EqualFold(rec.Status, dto.BackendStatusClosed) {
			return domain.StatusDone
		}
		return domain.StatusReview
	default:
		return domain.StatusOpen
	}
}

func fromExplicitStatus(status string) domain.Status {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case dto.BackendStatusTriaging, dto.BackendStatusTriagePending:
		return domain.StatusTriage
	case dto.BackendStatusAssigned:
		return domain.StatusAssigned
	case dto.BackendStatusInProgress:
		return domain.StatusInProgress
	case dto.BackendStatusResolved:
		return domain.StatusResolved
	case dto.BackendStatusClosed:
		return domain.StatusClosed
	default:
		return domain.StatusOpen
	}
}

// ToBackend picks the single canonical (queue, status) pair for s.
//
// The mapping is lossy: TRIAGE and ASSIGNMENT queues both read back as open,
// and open always writes INBOX. review and done share the RESOLUTION queue and
// are told apart only by the CLOSED status. A round trip is therefore not
// guaranteed to reproduce the original backend pair.
func (t Translator) ToBackend(s domain.Status) BackendFields {
	if t.Taxonomy() == TaxonomyStatus {
		return toExplicitBackend(s)
	}
	switch s {
	case domain.StatusInProgress:
		return BackendFields{Status: dto.BackendStatusInProgress, Queue: dto.QueueActive}
	case domain.StatusReview:
		return BackendFields{Status: dto.BackendStatusResolved, Queue: dto.QueueResolution}
	case domain.StatusDone:
		return BackendFields{Status: dto.BackendStatusClosed, Queue: dto.QueueResolution}
	default:
		return BackendFields{Status: dto.BackendStatusInbox, Queue: dto.QueueInbox}
	}
}

func toExplicitBackend(s domain.Status) BackendFields {
	switch s {
	case domain.StatusTriage:
		return BackendFields{Status: dto.BackendStatusTriagePending, Queue: dto.QueueTriage}
	case domain.StatusAssigned:
		return BackendFields{Status: dto.BackendStatusAssigned, Queue: dto.QueueAssignment}
	case domain.StatusInProgress:
		return BackendFields{Status: dto.BackendStatusInProgress, Queue: dto.QueueActive}
	case domain.StatusResolved:
		return BackendFields{Status: dto.BackendStatusResolved, Queue: dto.QueueResolution}
	case domain.StatusClosed:
		return BackendFields{Status: dto.BackendStatusClosed, Queue: dto.QueueResolution}
	default:
		return BackendFields{Status: dto.BackendStatusInbox, Queue: dto.QueueInbox}
	}
}

// ToFrontendPriority case-folds a backend priority. Unknown values read as medium.
func ToFrontendPriority(p string) domain.Priority {
	candidate := domain.Priority(strings.ToLower(strings.TrimSpace(p)))
	if candidate.Valid() {
		return candidate
	}
	return domain.PriorityMedium
}

// ToBackendPriority case-folds a desk priority.
func ToBackendPriority(p domain.Priority) string {
	if !p.Valid() {
		p = domain.PriorityMedium
	}
	return strings.ToUpper(string(p))
}
