package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/events"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
)

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() { c.n.Add(1) }

func TestReloadWorkerTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	trigger := &countingTrigger{}

	done := StartReloadWorker(ctx, 5*time.Millisecond, trigger, nil)
	require.Eventually(t, func() bool { return trigger.n.Load() >= 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	stopped := trigger.n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, trigger.n.Load())
}

func TestReloadWorkerDisabled(t *testing.T) {
	trigger := &countingTrigger{}
	done := StartReloadWorker(context.Background(), 0, trigger, nil)

	select {
	case <-done:
	default:
		t.Fatal("disabled worker should be done immediately")
	}
	assert.Zero(t, trigger.n.Load())
}

func TestActivityWorkerRecordsTicketEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	store := cache.New()
	require.NoError(t, store.Put(domain.Ticket{ID: "t-1", Title: "VPN down"}, store.NextRevision()))

	activity := service.NewActivityService(service.ActivityDependencies{
		Dispatcher: dispatcher,
		Repo:       repository.NewMemoryActivityRepository(2),
		Cache:      store,
	})
	StartActivityWorker(activity)
	StartActivityWorker(nil)

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "1", Type: events.EventCreated, TicketID: "t-1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "2", Type: events.EventMoved, TicketID: "t-1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "3", Type: events.EventAssigned, TicketID: "t-9"}))

	recent, err := activity.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].ID)
	assert.Empty(t, recent[0].Title)
	assert.Equal(t, "2", recent[1].ID)
	assert.Equal(t, "VPN down", recent[1].Title)
	assert.Equal(t, "moved", recent[1].Kind)
	assert.False(t, recent[1].Timestamp.IsZero())

	one, err := activity.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
