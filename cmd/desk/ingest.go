package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/service"
)

type ingestOptions struct {
	title       string
	description string
	priority    string
	labels      []string
	category    string
}

func runIngest(ctx context.Context, out io.Writer, opts ingestOptions) error {
	d, err := loadDesk(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	resp, err := d.mutations.Create(ctx, service.CreateInput{
		Title:       opts.title,
		Description: opts.description,
		Priority:    domain.Priority(strings.ToLower(opts.priority)),
		Labels:      opts.labels,
		Category:    opts.category,
		Source:      "cli",
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "created %s in %s (position %d, triage in %s)\n",
		resp.TicketID, resp.Queue, resp.PositionInQueue, resp.EstimatedTimeToTriage)
	return err
}
