package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/projection"
)

type boardOptions struct {
	identity string
	compact  bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	columnStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	priorityStyles = map[domain.Priority]lipgloss.Style{
		domain.PriorityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		domain.PriorityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.PriorityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		domain.PriorityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

func runBoard(ctx context.Context, out io.Writer, opts boardOptions) error {
	d, err := loadDesk(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	who := d.identities.Active()
	if opts.identity != "" {
		found, ok := d.identities.Lookup(opts.identity)
		if !ok {
			return fmt.Errorf("unknown identity %q", opts.identity)
		}
		who = found
	}

	if err := d.snapshots.Reload(ctx); err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	_, err = io.WriteString(out, renderBoard(d.projector.Project(d.cache.Snapshot(), who), opts.compact))
	return err
}

// renderBoard formats v as one block per status column.
func renderBoard(v projection.View, compact bool) string {
	var b strings.Builder
	scope := "own tickets"
	if v.Privileged {
		scope = "all tickets"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", v.Identity.Name, scope)))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d total", len(v.Tickets))))
	b.WriteString("\n")

	for _, status := range v.Order {
		group := v.Groups[status]
		b.WriteString("\n")
		b.WriteString(columnStyle.Render(fmt.Sprintf("%s (%d)", statusLabel(status), len(group))))
		b.WriteString("\n")
		if compact {
			continue
		}
		if len(group) == 0 {
			b.WriteString(mutedStyle.Render("  no tickets"))
			b.WriteString("\n")
			continue
		}
		for _, t := range group {
			b.WriteString("  ")
			b.WriteString(renderPriority(t.Priority))
			b.WriteString(" ")
			b.WriteString(t.Title)
			if t.Assignee != nil {
				b.WriteString(" ")
				b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Assignee.Color)).Render(t.Assignee.Avatar))
			}
			b.WriteString(mutedStyle.Render("  " + t.ID))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderPriority(p domain.Priority) string {
	label := "[" + strings.ToUpper(string(p)) + "]"
	if style, ok := priorityStyles[p]; ok {
		return style.Render(label)
	}
	return label
}

func statusLabel(s domain.Status) string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
