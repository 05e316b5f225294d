package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

type countingReloader struct {
	n atomic.Int32
}

func (c *countingReloader) Trigger() { c.n.Add(1) }

func newReconciler(t *testing.T) (*Reconciler, *cache.Store, *countingReloader) {
	t.Helper()
	dir, err := repository.LoadDirectory("")
	require.NoError(t, err)
	store := cache.New()
	reloader := &countingReloader{}
	r := NewReconciler(ReconcilerDependencies{
		Reloader: reloader,
		Cache:    store,
		Resolver: dir,
	})
	require.NoError(t, store.ReplaceAll([]domain.Ticket{
		{ID: "t1", Title: "Printer", Status: domain.StatusOpen, Priority: domain.PriorityHigh},
	}, store.NextRevision()))
	return r, store, reloader
}

func TestDecodeFrameStripsTicketPrefix(t *testing.T) {
	ev, err := DecodeFrame([]byte(`{"event":"ticket.moved","data":{"ticket_id":"t1","from_queue":"INBOX","to_queue":"TRIAGE"},"timestamp":"2025-03-01T10:00:00+00:00"}`))
	require.NoError(t, err)
	assert.Equal(t, EventMoved, ev.Type)
	assert.Equal(t, "t1", ev.TicketID)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ev.Timestamp)
	assert.NotEmpty(t, ev.ID)
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"data":{}}`, `{"event":"ticket.updated","data":{"ticket_id":5}}`} {
		_, err := DecodeFrame([]byte(raw))
		assert.True(t, util.IsCode(err, util.CodeDecode), raw)
	}
}

func TestReloadKindsTriggerReload(t *testing.T) {
	r, _, reloader := newReconciler(t)
	for _, name := range []string{"ticket.created", "ticket.updated", "ticket.moved", "ticket.triage_pending"} {
		r.HandleFrame(context.Background(), []byte(`{"event":"`+name+`","data":{"ticket_id":"t1"}}`))
	}
	assert.EqualValues(t, 4, reloader.n.Load())
}

func TestAssignedPatchesAssigneeOnly(t *testing.T) {
	r, store, reloader := newReconciler(t)
	r.HandleFrame(context.Background(), []byte(`{"event":"ticket.assigned","data":{"ticket_id":"t1","assignee":"user-4","previous_assignee":null,"queue":"ASSIGNMENT"}}`))

	tk, ok := store.Get("t1")
	require.True(t, ok)
	require.NotNil(t, tk.Assignee)
	assert.Equal(t, "Database Developer", tk.Assignee.Name)
	assert.Equal(t, "DD", tk.Assignee.Avatar)
	assert.Equal(t, domain.StatusOpen, tk.Status)
	assert.Zero(t, reloader.n.Load())
}

func TestAssignedWithNullAssigneeClears(t *testing.T) {
	r, store, _ := newReconciler(t)
	r.HandleFrame(context.Background(), []byte(`{"event":"ticket.assigned","data":{"ticket_id":"t1","assignee":"Jane Doe"}}`))
	tk, _ := store.Get("t1")
	require.NotNil(t, tk.Assignee)
	assert.Equal(t, "JD", tk.Assignee.Avatar)

	r.HandleFrame(context.Background(), []byte(`{"event":"ticket.assigned","data":{"ticket_id":"t1","assignee":null,"previous_assignee":"Jane Doe"}}`))
	tk, _ = store.Get("t1")
	assert.Nil(t, tk.Assignee)
}

func TestControlAndUnknownFramesAreNoOps(t *testing.T) {
	r, store, reloader := newReconciler(t)
	before := store.Snapshot()

	for _, raw := range []string{
		`{"event":"subscribed","channel":"all","timestamp":"2025-03-01T10:00:00Z"}`,
		`{"event":"unsubscribed","channel":"all"}`,
		`{"event":"pong","timestamp":"now"}`,
		`{"event":"queue.stats","data":{"queue":"INBOX","stats":{}}}`,
		`{"event":"error","message":"Unknown action: dance"}`,
		`{"event":"ticket.exploded","data":{"ticket_id":"t1"}}`,
		`garbage`,
	} {
		r.HandleFrame(context.Background(), []byte(raw))
	}

	assert.Zero(t, reloader.n.Load())
	assert.Equal(t, before, store.Snapshot())
}

func TestHandleUnknownKindIsNotAnError(t *testing.T) {
	r, _, _ := newReconciler(t)
	assert.NoError(t, r.Handle(context.Background(), Event{Type: "sla.breached"}))
}

func TestDispatcherJoinsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls int
	d.Subscribe(EventUpdated, func(context.Context, Event) error { calls++; return errors.New("first") })
	d.Subscribe(EventUpdated, func(context.Context, Event) error { calls++; return nil })

	err := d.Publish(context.Background(), Event{Type: EventUpdated})
	assert.EqualError(t, err, "first")
	assert.Equal(t, 2, calls)

	err = d.Publish(context.Background(), Event{Type: EventMoved})
	assert.ErrorIs(t, err, ErrNoHandler)
}
