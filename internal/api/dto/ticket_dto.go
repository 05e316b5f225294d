package dto

// Backend status values.
const (
	BackendStatusInbox         = "INBOX"
	BackendStatusTriaging      = "TRIAGING"
	BackendStatusTriagePending = "TRIAGE_PENDING"
	BackendStatusAssigned      = "ASSIGNED"
	BackendStatusInProgress    = "IN_PROGRESS"
	BackendStatusResolved      = "RESOLVED"
	BackendStatusClosed        = "CLOSED"
)

// Backend queue values.
const (
	QueueInbox      = "INBOX"
	QueueTriage     = "TRIAGE"
	QueueAssignment = "ASSIGNMENT"
	QueueActive     = "ACTIVE"
	QueueResolution = "RESOLUTION"
)

// TicketRecord is a ticket as serialized by the remote ticket service.
// Timestamps stay strings; the translator parses them leniently.
type TicketRecord struct {
	ID                string         `json:"id"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
	Source            string         `json:"source"`
	Priority          string         `json:"priority"`
	Category          *string        `json:"category"`
	Status            string         `json:"status"`
	CurrentQueue      string         `json:"current_queue"`
	Content           map[string]any `json:"content,omitempty"`
	Assignee          *string        `json:"assignee"`
	Tags              []string       `json:"tags"`
	AIReasoning       map[string]any `json:"ai_reasoning"`
	ResolutionAction  string         `json:"resolution_action,omitempty"`
	SuggestedAssignee *string        `json:"suggested_assignee,omitempty"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	QueuePosition     *int           `json:"queue_position,omitempty"`
}

// TicketListQuery holds GET /tickets filters. Empty fields are omitted.
type TicketListQuery struct {
	Status   string
	Queue    string
	Priority string
	Assignee string
	Limit    int
	Offset   int
}

// TicketListResponse is the GET /tickets body.
type TicketListResponse struct {
	Tickets []TicketRecord `json:"tickets"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// TicketResponse wraps single-record answers.
type TicketResponse struct {
	Ticket TicketRecord `json:"ticket"`
}

// TicketUpdateRequest is the PATCH /tickets/{id} body; only set fields are sent.
type TicketUpdateRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Assignee    *string  `json:"assignee,omitempty"`
}

// IngestFields is the form content of an ingest payload.
type IngestFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// IngestPayload carries the submitted form.
type IngestPayload struct {
	Fields         IngestFields `json:"fields"`
	SubmissionTime string       `json:"submission_time"`
}

// IngestMetadata carries routing hints.
type IngestMetadata struct {
	Priority string   `json:"priority"`
	Tags     []string `json:"tags"`
	Category *string  `json:"category,omitempty"`
}

// IngestRequest is the POST /tickets/ingest body.
type IngestRequest struct {
	Source      string         `json:"source"`
	ContentType string         `json:"content_type"`
	Payload     IngestPayload  `json:"payload"`
	Metadata    IngestMetadata `json:"metadata"`
}

// IngestResponse is the POST /tickets/ingest answer.
type IngestResponse struct {
	TicketID              string `json:"ticket_id"`
	Status                string `json:"status"`
	Queue                 string `json:"queue"`
	PositionInQueue       int    `json:"position_in_queue"`
	EstimatedTimeToTriage string `json:"estimated_time_to_triage"`
	CreatedAt             string `json:"created_at"`
}

// DeleteResponse is the DELETE /tickets/{id} answer.
type DeleteResponse struct {
	Success  bool   `json:"success"`
	TicketID string `json:"ticket_id"`
	Message  string `json:"message"`
}
