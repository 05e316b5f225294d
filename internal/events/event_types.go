package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-desk/internal/translate"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

// EventType is the kind of a push frame, with the "ticket." prefix removed.
type EventType string

const (
	EventCreated       EventType = "created"
	EventUpdated       EventType = "updated"
	EventMoved         EventType = "moved"
	EventAssigned      EventType = "assigned"
	EventTriagePending EventType = "triage_pending"
	EventSubscribed    EventType = "subscribed"
	EventUnsubscribed  EventType = "unsubscribed"
	EventPong          EventType = "pong"
	EventError         EventType = "error"
	EventQueueStats    EventType = "queue.stats"
)

const ticketEventPrefix = "ticket."

// Frame is the JSON envelope the ticket service pushes.
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Event is a decoded push frame.
type Event struct {
	ID        string
	Type      EventType
	TicketID  string
	Timestamp time.Time
	Data      json.RawMessage
	Channel   string
	Message   string
}

// TicketRef is the part every ticket event payload shares.
type TicketRef struct {
	TicketID string `json:"ticket_id"`
}

// AssignedPayload is the data of an assigned event. A nil Assignee means
// the ticket was released.
type AssignedPayload struct {
	TicketID         string  `json:"ticket_id"`
	Assignee         *string `json:"assignee"`
	PreviousAssignee *string `json:"previous_assignee"`
	Queue            string  `json:"queue"`
}

// DecodeFrame parses one push frame. Frames without an event name or with
// unparseable JSON are rejected with a decode error.
func DecodeFrame(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, util.NewDecodeError("push frame", err)
	}
	name := strings.TrimSpace(f.Event)
	if name == "" {
		return Event{}, util.NewDecodeError("push frame", errors.New("missing event name"))
	}

	ev := Event{
		ID:      uuid.NewString(),
		Type:    EventType(strings.TrimPrefix(name, ticketEventPrefix)),
		Data:    f.Data,
		Channel: f.Channel,
		Message: f.Message,
	}
	if ts, ok := translate.ParseTimestamp(f.Timestamp); ok {
		ev.Timestamp = ts
	}
	if len(f.Data) > 0 && f.Data[0] == '{' {
		var ref TicketRef
		if err := json.Unmarshal(f.Data, &ref); err != nil {
			return Event{}, util.NewDecodeError("push frame data", err)
		}
		ev.TicketID = ref.TicketID
	}
	return ev, nil
}
