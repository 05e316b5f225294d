package domain

import "time"

// Activity is one ticket event as shown in the desk's feed.
type Activity struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	TicketID  string    `json:"ticketId,omitempty"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
