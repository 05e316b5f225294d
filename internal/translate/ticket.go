package translate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spec-kit/ticket-desk/internal/api/dto"
	"github.com/spec-kit/ticket-desk/internal/domain"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 and the naive ISO forms the backend emits.
// Naive values are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// Ticket converts a backend record into the desk model.
func (t Translator) Ticket(rec dto.TicketRecord, resolver Resolver) domain.Ticket {
	createdAt, _ := ParseTimestamp(rec.CreatedAt)
	updatedAt, ok := ParseTimestamp(rec.UpdatedAt)
	if !ok {
		updatedAt = createdAt
	}

	out := domain.Ticket{
		ID:           rec.ID,
		Title:        rec.Title,
		Description:  rec.Description,
		Status:       t.ToFrontendStatus(BackendRecord{Status: rec.Status, Queue: rec.CurrentQueue}),
		Priority:     ToFrontendPriority(rec.Priority),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		Labels:       append([]string{}, rec.Tags...),
		AIReasoning:  Reasoning(rec.AIReasoning, updatedAt),
		Source:       rec.Source,
		CurrentQueue: rec.CurrentQueue,
	}
	if rec.Category != nil {
		out.Category = *rec.Category
	}
	if rec.Assignee != nil {
		out.Assignee = Assignee(*rec.Assignee, resolver)
	}
	return out
}

// Tickets converts a page of backend records preserving order.
func (t Translator) Tickets(recs []dto.TicketRecord, resolver Resolver) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(recs))
	for _, rec := range recs {
		out = append(out, t.Ticket(rec, resolver))
	}
	return out
}

// Reasoning reads the free-form ai_reasoning object. Steps without their own
// timestamp inherit fallback.
func Reasoning(raw map[string]any, fallback time.Time) domain.AIReasoning {
	out := domain.AIReasoning{Steps: []domain.ReasoningStep{}}
	if len(raw) == 0 {
		return out
	}
	for _, key := range []string{"summary", "reasoning", "auto_response"} {
		if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
			out.Summary = s
			break
		}
	}
	out.Confidence = clamp01(toFloat(raw["confidence"]))

	steps, _ := raw["steps"].([]any)
	for i, item := range steps {
		step := domain.ReasoningStep{
			Type:      "analysis",
			Title:     fmt.Sprintf("Step %d", i+1),
			Timestamp: fallback,
		}
		switch v := item.(type) {
		case string:
			step.Content = v
		case map[string]any:
			if s, ok := v["type"].(string); ok && s != "" {
				step.Type = s
			}
			if s, ok := v["title"].(string); ok && s != "" {
				step.Title = s
			}
			if s, ok := v["content"].(string); ok {
				step.Content = s
			}
			if s, ok := v["timestamp"].(string); ok {
				if ts, ok := ParseTimestamp(s); ok {
					step.Timestamp = ts
				}
			}
		default:
			continue
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
