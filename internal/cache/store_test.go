package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

func sampleTickets() []domain.Ticket {
	return []domain.Ticket{
		{ID: "a", Title: "Printer down", Status: domain.StatusOpen, Priority: domain.PriorityHigh, Labels: []string{"hw"}},
		{ID: "b", Title: "VPN flaps", Status: domain.StatusInProgress, Priority: domain.PriorityLow},
		{ID: "c", Title: "Invoice wrong", Status: domain.StatusReview, Priority: domain.PriorityMedium,
			Assignee: &domain.Assignee{ID: "user-1", Name: "IT Person", Avatar: "IP", Color: "#2563eb"}},
	}
}

func ids(tickets []domain.Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestReplaceAllKeepsSnapshotOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Snapshot()))
	assert.Equal(t, 3, s.Len())
}

func TestReplaceAllIsIdempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))
	first := s.Snapshot()
	require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))

	assert.Equal(t, first, s.Snapshot())
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	s := New()
	input := sampleTickets()
	require.NoError(t, s.ReplaceAll(input, s.NextRevision()))

	input[0].Labels[0] = "mutated"
	out := s.Snapshot()
	out[2].Assignee.Name = "mutated"

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"hw"}, got.Labels)
	got, _ = s.Get("c")
	assert.Equal(t, "IT Person", got.Assignee.Name)
}

func TestPatch(t *testing.T) {
	s := New()
	require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))

	t.Run("updates only listed fields", func(t *testing.T) {
		applied, err := s.Patch("a", Patch{Status: ptr(domain.StatusDone)}, s.NextRevision())
		require.NoError(t, err)
		assert.True(t, applied)
		got, _ := s.Get("a")
		assert.Equal(t, domain.StatusDone, got.Status)
		assert.Equal(t, "Printer down", got.Title)
		assert.Equal(t, domain.PriorityHigh, got.Priority)
	})

	t.Run("absent id is a no-op", func(t *testing.T) {
		applied, err := s.Patch("zzz", Patch{Title: ptr("x")}, s.NextRevision())
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, 3, s.Len())
	})

	t.Run("clears assignee", func(t *testing.T) {
		_, err := s.Patch("c", Patch{ClearAssignee: true}, s.NextRevision())
		require.NoError(t, err)
		got, _ := s.Get("c")
		assert.Nil(t, got.Assignee)
	})

	t.Run("rejects stale revision", func(t *testing.T) {
		old := s.NextRevision()
		_, err := s.Patch("b", Patch{Title: ptr("newer")}, s.NextRevision())
		require.NoError(t, err)

		before := s.Rejected()
		applied, err := s.Patch("b", Patch{Title: ptr("older")}, old)
		assert.ErrorIs(t, err, ErrStaleRevision)
		assert.False(t, applied)
		assert.Equal(t, before+1, s.Rejected())
		got, _ := s.Get("b")
		assert.Equal(t, "newer", got.Title)
	})
}

func TestPatchesToDifferentIDsDoNotInterfere(t *testing.T) {
	s := New()
	var tickets []domain.Ticket
	for i := 0; i < 50; i++ {
		tickets = append(tickets, domain.Ticket{ID: fmt.Sprintf("t-%d", i), Priority: domain.PriorityLow})
	}
	require.NoError(t, s.ReplaceAll(tickets, s.NextRevision()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title := fmt.Sprintf("title-%d", i)
			_, err := s.Patch(fmt.Sprintf("t-%d", i), Patch{Title: &title}, s.NextRevision())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i, got := range s.Snapshot() {
		assert.Equal(t, fmt.Sprintf("title-%d", i), got.Title)
		assert.Equal(t, domain.PriorityLow, got.Priority)
	}
}

func TestCompareAndPatch(t *testing.T) {
	s := New()
	require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))

	optimistic := s.NextRevision()
	_, err := s.Patch("a", Patch{Status: ptr(domain.StatusDone)}, optimistic)
	require.NoError(t, err)

	t.Run("skips when superseded", func(t *testing.T) {
		_, err := s.Patch("a", Patch{Title: ptr("server says")}, s.NextRevision())
		require.NoError(t, err)

		applied, err := s.CompareAndPatch("a", optimistic, Patch{Status: ptr(domain.StatusOpen)}, s.NextRevision())
		require.NoError(t, err)
		assert.False(t, applied)
		got, _ := s.Get("a")
		assert.Equal(t, domain.StatusDone, got.Status)
	})

	t.Run("applies when unchanged", func(t *testing.T) {
		rev, _ := s.Revision("a")
		applied, err := s.CompareAndPatch("a", rev, Patch{Status: ptr(domain.StatusOpen)}, s.NextRevision())
		require.NoError(t, err)
		assert.True(t, applied)
		got, _ := s.Get("a")
		assert.Equal(t, domain.StatusOpen, got.Status)
	})
}

func TestReplaceAllFencing(t *testing.T) {
	t.Run("keeps entities written after the fetch began", func(t *testing.T) {
		s := New()
		require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))

		fetchRev := s.NextRevision()
		_, err := s.Patch("b", Patch{Priority: ptr(domain.PriorityCritical)}, s.NextRevision())
		require.NoError(t, err)

		require.NoError(t, s.ReplaceAll(sampleTickets(), fetchRev))
		got, _ := s.Get("b")
		assert.Equal(t, domain.PriorityCritical, got.Priority)
		got, _ = s.Get("a")
		assert.Equal(t, domain.StatusOpen, got.Status)
	})

	t.Run("rejects a snapshot older than the last one", func(t *testing.T) {
		s := New()
		older := s.NextRevision()
		newer := s.NextRevision()
		require.NoError(t, s.ReplaceAll(sampleTickets()[:1], newer))

		err := s.ReplaceAll(sampleTickets(), older)
		assert.ErrorIs(t, err, ErrStaleRevision)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("does not resurrect removed entities", func(t *testing.T) {
		s := New()
		require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))

		fetchRev := s.NextRevision()
		removed, err := s.Remove("c", s.NextRevision())
		require.NoError(t, err)
		require.True(t, removed)

		require.NoError(t, s.ReplaceAll(sampleTickets(), fetchRev))
		_, ok := s.Get("c")
		assert.False(t, ok)

		require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))
		_, ok = s.Get("c")
		assert.True(t, ok)
	})
}

func TestRemove(t *testing.T) {
	s := New()
	require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))

	removed, err := s.Remove("b", s.NextRevision())
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"a", "c"}, ids(s.Snapshot()))

	removed, err = s.Remove("b", s.NextRevision())
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPut(t *testing.T) {
	s := New()
	require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))

	require.NoError(t, s.Put(domain.Ticket{ID: "d", Title: "new"}, s.NextRevision()))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Snapshot()))

	old := s.NextRevision()
	require.NoError(t, s.Put(domain.Ticket{ID: "a", Title: "fresh"}, s.NextRevision()))
	assert.ErrorIs(t, s.Put(domain.Ticket{ID: "a", Title: "late"}, old), ErrStaleRevision)
	got, _ := s.Get("a")
	assert.Equal(t, "fresh", got.Title)

	assert.ErrorIs(t, s.Put(domain.Ticket{Title: "blank"}, s.NextRevision()), ErrMissingID)
	assert.Equal(t, 4, s.Len())
}

func TestSubscribe(t *testing.T) {
	s := New()
	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) { changes = append(changes, c) })

	require.NoError(t, s.ReplaceAll(sampleTickets(), s.NextRevision()))
	_, _ = s.Patch("a", Patch{Title: ptr("x")}, s.NextRevision())
	_, _ = s.Remove("b", s.NextRevision())
	_, _ = s.Patch("missing", Patch{Title: ptr("x")}, s.NextRevision())

	require.Len(t, changes, 3)
	assert.Equal(t, ChangeReplaced, changes[0].Kind)
	assert.Equal(t, []string{"a", "b", "c"}, changes[0].IDs)
	assert.Equal(t, ChangePatched, changes[1].Kind)
	assert.Equal(t, ChangeRemoved, changes[2].Kind)

	unsubscribe()
	_, _ = s.Patch("a", Patch{Title: ptr("y")}, s.NextRevision())
	assert.Len(t, changes, 3)
}

func TestClose(t *testing.T) {
	s := New()
	calls := 0
	s.Subscribe(func(Change) { calls++ })
	s.Close()

	assert.ErrorIs(t, s.ReplaceAll(sampleTickets(), s.NextRevision()), ErrClosed)
	_, err := s.Patch("a", Patch{}, s.NextRevision())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, calls)
}

func TestRestore(t *testing.T) {
	original := sampleTickets()[2]
	forward := Patch{Status: ptr(domain.StatusDone), ClearAssignee: true, UpdatedAt: ptr(time.Now())}

	back := Restore(original, forward)

	require.NotNil(t, back.Status)
	assert.Equal(t, domain.StatusReview, *back.Status)
	require.NotNil(t, back.Assignee)
	assert.Equal(t, "IT Person", back.Assignee.Name)
	assert.Nil(t, back.Title)
	assert.Nil(t, back.UpdatedAt)
}
