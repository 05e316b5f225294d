package domain

import "time"

// Status is the frontend-facing lifecycle state of a ticket.
type Status string

// Members of the queue-derived taxonomy.
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Members of the explicit-status taxonomy that are not shared with the queue one.
const (
	StatusTriage   Status = "triage"
	StatusAssigned Status = "assigned"
	StatusResolved Status = "resolved"
	StatusClosed   Status = "closed"
)

// Priority enumerates ticket urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority in ascending urgency.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, candidate := range Priorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// Assignee is the display projection of whoever owns a ticket.
// ID is empty when the backend value could not be resolved in the directory.
type Assignee struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
}

// ReasoningStep is one entry of the AI triage trail.
type ReasoningStep struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AIReasoning summarizes automated triage output.
type AIReasoning struct {
	Summary    string          `json:"summary"`
	Confidence float64         `json:"confidence"`
	Steps      []ReasoningStep `json:"steps"`
}

// Ticket is the synchronized unit of work held by the cache.
type Ticket struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Status       Status      `json:"status"`
	Priority     Priority    `json:"priority"`
	Assignee     *Assignee   `json:"assignee"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	Labels       []string    `json:"labels"`
	AIReasoning  AIReasoning `json:"aiReasoning"`
	Source       string      `json:"source,omitempty"`
	Category     string      `json:"category,omitempty"`
	CurrentQueue string      `json:"currentQueue,omitempty"`
}

// Clone returns a deep copy so cached values never alias caller memory.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Assignee != nil {
		a := *t.Assignee
		out.Assignee = &a
	}
	if t.Labels != nil {
		out.Labels = append([]string(nil), t.Labels...)
	}
	if t.AIReasoning.Steps != nil {
		out.AIReasoning.Steps = append([]ReasoningStep(nil), t.AIReasoning.Steps...)
	}
	return out
}
