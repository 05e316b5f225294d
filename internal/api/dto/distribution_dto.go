package dto

// ClaimRequest asks for the next available ticket.
type ClaimRequest struct {
	AgentID             string   `json:"agent_id"`
	PreferredCategories []string `json:"preferred_categories,omitempty"`
	MaxPriority         *string  `json:"max_priority,omitempty"`
}

// ClaimResponse is the claim answer; TicketID is nil when nothing was available.
type ClaimResponse struct {
	Success  bool          `json:"success"`
	TicketID *string       `json:"ticket_id"`
	Ticket   *TicketRecord `json:"ticket"`
	Message  string        `json:"message"`
}

// AssignRequest assigns a specific ticket.
type AssignRequest struct {
	TicketID string  `json:"ticket_id"`
	AgentID  string  `json:"agent_id"`
	Reason   *string `json:"reason,omitempty"`
}

// ReleaseRequest returns a ticket to the pool. Retriage is forwarded untouched.
type ReleaseRequest struct {
	TicketID string  `json:"ticket_id"`
	AgentID  string  `json:"agent_id"`
	Reason   *string `json:"reason,omitempty"`
	Retriage *bool   `json:"retriage,omitempty"`
}

// TransferRequest moves a ticket between agents.
type TransferRequest struct {
	TicketID    string  `json:"ticket_id"`
	FromAgentID string  `json:"from_agent_id"`
	ToAgentID   string  `json:"to_agent_id"`
	Reason      *string `json:"reason,omitempty"`
}

// AssignmentResponse answers assign, release and transfer.
type AssignmentResponse struct {
	Success  bool   `json:"success"`
	TicketID string `json:"ticket_id"`
	AgentID  string `json:"agent_id"`
	Status   string `json:"status"`
	Queue    string `json:"queue"`
	Message  string `json:"message"`
}

// AvailableQuery filters GET /distribution/available.
type AvailableQuery struct {
	Limit    int
	Category string
	Priority string
}

// AvailableTicketsResponse lists claimable tickets.
type AvailableTicketsResponse struct {
	Tickets []TicketRecord `json:"tickets"`
	Count   int            `json:"count"`
}

// AgentTicketsResponse lists an agent's tickets.
type AgentTicketsResponse struct {
	AgentID string         `json:"agent_id"`
	Tickets []TicketRecord `json:"tickets"`
	Count   int            `json:"count"`
}

// AgentStats is the workload breakdown of one agent.
type AgentStats struct {
	Total      int            `json:"total"`
	ByPriority map[string]int `json:"by_priority"`
	ByCategory map[string]int `json:"by_category"`
	ByStatus   map[string]int `json:"by_status"`
}

// AgentStatsResponse wraps AgentStats.
type AgentStatsResponse struct {
	AgentID string     `json:"agent_id"`
	Stats   AgentStats `json:"stats"`
}
