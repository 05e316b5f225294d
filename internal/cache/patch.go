package cache

import (
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// Patch lists the fields to overwrite on one ticket. Nil fields are left
// untouched. ClearAssignee wins over Assignee.
type Patch struct {
	Title         *string
	Description   *string
	Status        *domain.Status
	Priority      *domain.Priority
	Assignee      *domain.Assignee
	ClearAssignee bool
	Labels        []string
	UpdatedAt     *time.Time
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Assignee == nil && !p.ClearAssignee &&
		p.Labels == nil && p.UpdatedAt == nil
}

func (p Patch) apply(t *domain.Ticket) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearAssignee:
		t.Assignee = nil
	case p.Assignee != nil:
		a := *p.Assignee
		t.Assignee = &a
	}
	if p.Labels != nil {
		t.Labels = append([]string{}, p.Labels...)
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
}

// Restore builds the patch that puts back the fields p would overwrite on t.
// UpdatedAt is not restored; callers stamp a fresh time.
func Restore(t domain.Ticket, p Patch) Patch {
	var out Patch
	if p.Title != nil {
		v := t.Title
		out.Title = &v
	}
	if p.Description != nil {
		v := t.Description
		out.Description = &v
	}
	if p.Status != nil {
		v := t.Status
		out.Status = &v
	}
	if p.Priority != nil {
		v := t.Priority
		out.Priority = &v
	}
	if p.Assignee != nil || p.ClearAssignee {
		if t.Assignee == nil {
			out.ClearAssignee = true
		} else {
			a := *t.Assignee
			out.Assignee = &a
		}
	}
	if p.Labels != nil {
		out.Labels = append([]string{}, t.Labels...)
	}
	return out
}
