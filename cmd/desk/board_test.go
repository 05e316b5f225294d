package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/projection"
	"github.com/spec-kit/ticket-desk/internal/translate"
)

func TestRenderBoard(t *testing.T) {
	lead := domain.Identity{ID: "user-0", Name: "Support Lead"}
	p := projection.NewProjector(translate.New(translate.TaxonomyQueue).Statuses(), lead.ID, projection.MatchByID)
	tickets := []domain.Ticket{
		{ID: "t1", Title: "Printer jammed", Status: domain.StatusOpen, Priority: domain.PriorityLow},
		{
			ID: "t2", Title: "VPN down", Status: domain.StatusInProgress, Priority: domain.PriorityCritical,
			Assignee: translate.Assignee("Network Engineer", nil),
		},
	}

	out := renderBoard(p.Project(tickets, lead), false)
	assert.Contains(t, out, "Support Lead")
	assert.Contains(t, out, "all tickets")
	assert.Contains(t, out, "Open (1)")
	assert.Contains(t, out, "In Progress (1)")
	assert.Contains(t, out, "Review (0)")
	assert.Contains(t, out, "Printer jammed")
	assert.Contains(t, out, "NE")
	assert.Contains(t, out, "[CRITICAL]")

	compact := renderBoard(p.Project(tickets, lead), true)
	assert.Contains(t, compact, "Done (0)")
	assert.False(t, strings.Contains(compact, "VPN down"))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "In Progress", statusLabel(domain.StatusInProgress))
	assert.Equal(t, "Triage", statusLabel(domain.StatusTriage))
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "board", "ingest"}, names)

	ingest, _, err := root.Find([]string{"ingest"})
	assert.NoError(t, err)
	assert.NotNil(t, ingest.Flags().Lookup("title"))
	assert.NotNil(t, ingest.Flags().Lookup("label"))
}
