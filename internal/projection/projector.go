// Package projection derives the role-filtered, status-grouped board from
// the ticket cache.
package projection

import (
	"fmt"
	"slices"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// MatchPolicy decides how a ticket's assignee is compared with an identity.
type MatchPolicy string

const (
	// MatchByID compares the resolved directory id.
	MatchByID MatchPolicy = "id"
	// MatchByName compares display names. Two people sharing a name see
	// each other's tickets.
	MatchByName MatchPolicy = "name"
)

// ParseMatchPolicy validates a configured policy.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch p := MatchPolicy(s); p {
	case MatchByID, MatchByName:
		return p, nil
	case "":
		return MatchByID, nil
	default:
		return "", fmt.Errorf("unknown match policy %q", s)
	}
}

// View is one identity's board.
type View struct {
	Identity   domain.Identity                   `json:"identity"`
	Privileged bool                              `json:"privileged"`
	Tickets    []domain.Ticket                   `json:"tickets"`
	Groups     map[domain.Status][]domain.Ticket `json:"groups"`
	Order      []domain.Status                   `json:"order"`
}

// Count returns the number of tickets grouped under status.
func (v View) Count(status domain.Status) int {
	return len(v.Groups[status])
}

// Projector filters and groups tickets. It never mutates its input.
type Projector struct {
	statuses     []domain.Status
	privilegedID string
	policy       MatchPolicy
}

// NewProjector groups by statuses, in that order. privilegedID sees every ticket.
func NewProjector(statuses []domain.Status, privilegedID string, policy MatchPolicy) *Projector {
	return &Projector{
		statuses:     slices.Clone(statuses),
		privilegedID: privilegedID,
		policy:       policy,
	}
}

// Statuses returns the group keys in display order.
func (p *Projector) Statuses() []domain.Status {
	return slices.Clone(p.statuses)
}

// Privileged reports whether who sees the whole cache.
func (p *Projector) Privileged(who domain.Identity) bool {
	return who.ID != "" && who.ID == p.privilegedID
}

// Visible reports whether who may see t.
func (p *Projector) Visible(t domain.Ticket, who domain.Identity) bool {
	if p.Privileged(who) {
		return true
	}
	if t.Assignee == nil {
		return false
	}
	if p.policy == MatchByName {
		return t.Assignee.Name != "" && t.Assignee.Name == who.Name
	}
	return t.Assignee.ID != "" && t.Assignee.ID == who.ID
}

// Project builds who's board from tickets, keeping their order. Every
// status key is present in Groups, empty or not.
func (p *Projector) Project(tickets []domain.Ticket, who domain.Identity) View {
	v := View{
		Identity:   who,
		Privileged: p.Privileged(who),
		Tickets:    make([]domain.Ticket, 0, len(tickets)),
		Groups:     make(map[domain.Status][]domain.Ticket, len(p.statuses)),
		Order:      p.Statuses(),
	}
	for _, s := range p.statuses {
		v.Groups[s] = []domain.Ticket{}
	}
	if len(p.statuses) == 0 {
		return v
	}

	for _, t := range tickets {
		if !p.Visible(t, who) {
			continue
		}
		v.Tickets = append(v.Tickets, t)
		key := t.Status
		if _, ok := v.Groups[key]; !ok {
			key = p.statuses[0]
		}
		v.Groups[key] = append(v.Groups[key], t)
	}
	return v
}
