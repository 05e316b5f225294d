package dto

import (
	"time"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

// CreateTicketRequest payload for POST /api/tickets.
type CreateTicketRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
	Category    string   `json:"category"`
	Source      string   `json:"source"`
}

// UpdateTicketRequest payload for PATCH /api/tickets/:id. Absent fields are
// left untouched.
type UpdateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

// Empty reports whether no field is set.
func (r UpdateTicketRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil && r.Priority == nil
}

// AssignTicketRequest payload. AgentID defaults to the caller's identity.
type AssignTicketRequest struct {
	AgentID string `json:"agentId"`
	Reason  string `json:"reason"`
}

// ReleaseTicketRequest payload. AgentID defaults to the caller's identity.
type ReleaseTicketRequest struct {
	AgentID  string `json:"agentId"`
	Retriage bool   `json:"retriage"`
	Reason   string `json:"reason"`
}

// TransferTicketRequest payload. FromAgentID defaults to the caller's identity.
type TransferTicketRequest struct {
	FromAgentID string `json:"fromAgentId"`
	ToAgentID   string `json:"toAgentId"`
	Reason      string `json:"reason"`
}

// ClaimTicketRequest payload. AgentID defaults to the caller's identity.
type ClaimTicketRequest struct {
	AgentID             string   `json:"agentId"`
	PreferredCategories []string `json:"preferredCategories"`
	MaxPriority         string   `json:"maxPriority"`
}

// SelectIdentityRequest payload for PUT /api/identity.
type SelectIdentityRequest struct {
	ID string `json:"id"`
}

// BoardColumn is one status group of the board.
type BoardColumn struct {
	Status  domain.Status   `json:"status"`
	Count   int             `json:"count"`
	Tickets []domain.Ticket `json:"tickets"`
}

// BoardResponse is the grouped, role-filtered board.
type BoardResponse struct {
	Identity   domain.Identity `json:"identity"`
	Privileged bool            `json:"privileged"`
	Total      int             `json:"total"`
	Columns    []BoardColumn   `json:"columns"`
}

// SyncResponse reports snapshot and push channel health.
type SyncResponse struct {
	Loading     bool       `json:"loading"`
	LastError   string     `json:"lastError,omitempty"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	Connection  string     `json:"connection"`
	ClientID    string     `json:"clientId,omitempty"`
	Tickets     int        `json:"tickets"`
}

// IdentityResponse describes a directory entry.
type IdentityResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	Color      string `json:"color"`
	Privileged bool   `json:"privileged"`
	Active     bool   `json:"active"`
}
