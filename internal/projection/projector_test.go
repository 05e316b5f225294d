package projection

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/translate"
)

var (
	lead    = domain.Identity{ID: "user-0", Name: "Support Lead"}
	backend = domain.Identity{ID: "user-3", Name: "Backend Developer"}
	network = domain.Identity{ID: "user-7", Name: "Network Engineer"}
)

func ticket(id string, status domain.Status, owner *domain.Identity) domain.Ticket {
	t := domain.Ticket{ID: id, Title: id, Status: status, Priority: domain.PriorityMedium}
	if owner != nil {
		t.Assignee = &domain.Assignee{ID: owner.ID, Name: owner.Name}
	}
	return t
}

func queueProjector(policy MatchPolicy) *Projector {
	return NewProjector(translate.New(translate.TaxonomyQueue).Statuses(), lead.ID, policy)
}

func TestProjectPrivilegedSeesEverything(t *testing.T) {
	p := queueProjector(MatchByID)
	tickets := []domain.Ticket{
		ticket("a", domain.StatusOpen, nil),
		ticket("b", domain.StatusInProgress, &backend),
		ticket("c", domain.StatusDone, &network),
	}

	v := p.Project(tickets, lead)

	assert.True(t, v.Privileged)
	assert.Len(t, v.Tickets, 3)
	assert.Equal(t, 1, v.Count(domain.StatusOpen))
	assert.Equal(t, 1, v.Count(domain.StatusInProgress))
	assert.Equal(t, 0, v.Count(domain.StatusReview))
	assert.Equal(t, 1, v.Count(domain.StatusDone))
}

func TestProjectFiltersToOwnTickets(t *testing.T) {
	p := queueProjector(MatchByID)
	tickets := []domain.Ticket{
		ticket("a", domain.StatusOpen, nil),
		ticket("b", domain.StatusInProgress, &backend),
		ticket("c", domain.StatusReview, &backend),
		ticket("d", domain.StatusDone, &network),
	}

	v := p.Project(tickets, backend)

	assert.False(t, v.Privileged)
	require.Len(t, v.Tickets, 2)
	assert.Equal(t, "b", v.Tickets[0].ID)
	assert.Equal(t, "c", v.Tickets[1].ID)
	assert.Equal(t, 0, v.Count(domain.StatusOpen))
	assert.Equal(t, 1, v.Count(domain.StatusInProgress))
	assert.Equal(t, 1, v.Count(domain.StatusReview))
}

func TestProjectMatchPolicies(t *testing.T) {
	namesake := domain.Identity{ID: "user-9", Name: backend.Name}
	tickets := []domain.Ticket{ticket("a", domain.StatusOpen, &namesake)}

	byID := queueProjector(MatchByID).Project(tickets, backend)
	assert.Empty(t, byID.Tickets)

	byName := queueProjector(MatchByName).Project(tickets, backend)
	assert.Len(t, byName.Tickets, 1)
}

func TestProjectUnresolvedAssigneeNeverMatchesByID(t *testing.T) {
	stranger := ticket("a", domain.StatusOpen, nil)
	stranger.Assignee = &domain.Assignee{Name: "someone@example.com"}

	v := queueProjector(MatchByID).Project([]domain.Ticket{stranger}, domain.Identity{Name: "someone@example.com"})
	assert.Empty(t, v.Tickets)
}

func TestProjectGroupsAreComplete(t *testing.T) {
	for _, taxonomy := range []translate.Taxonomy{translate.TaxonomyQueue, translate.TaxonomyStatus} {
		statuses := translate.New(taxonomy).Statuses()
		p := NewProjector(statuses, lead.ID, MatchByID)
		people := []*domain.Identity{nil, &lead, &backend, &network}
		rng := rand.New(rand.NewPCG(7, uint64(len(taxonomy))))

		for round := 0; round < 50; round++ {
			n := rng.IntN(30)
			tickets := make([]domain.Ticket, 0, n)
			for i := 0; i < n; i++ {
				tickets = append(tickets, ticket(
					fmt.Sprintf("t-%d-%d", round, i),
					statuses[rng.IntN(len(statuses))],
					people[rng.IntN(len(people))],
				))
			}

			for _, who := range []domain.Identity{lead, backend, network} {
				v := p.Project(tickets, who)
				assert.Equal(t, statuses, v.Order)
				total := 0
				for _, s := range statuses {
					group, ok := v.Groups[s]
					require.True(t, ok, "missing group %s", s)
					assert.NotNil(t, group)
					total += len(group)
				}
				assert.Len(t, v.Groups, len(statuses))
				assert.Equal(t, len(v.Tickets), total)
			}
		}
	}
}

func TestParseMatchPolicy(t *testing.T) {
	p, err := ParseMatchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MatchByID, p)

	p, err = ParseMatchPolicy("name")
	require.NoError(t, err)
	assert.Equal(t, MatchByName, p)

	_, err = ParseMatchPolicy("email")
	assert.Error(t, err)
}

func TestLiveViewFollowsCacheAndIdentity(t *testing.T) {
	dir, err := repository.LoadDirectory("")
	require.NoError(t, err)
	identities, err := service.NewIdentityService(service.IdentityDependencies{
		Directory:    dir,
		Key:          "desk.identity",
		DefaultID:    lead.ID,
		PrivilegedID: lead.ID,
	})
	require.NoError(t, err)
	identities.Restore(context.Background())

	store := cache.New()
	require.NoError(t, store.ReplaceAll([]domain.Ticket{
		ticket("a", domain.StatusOpen, nil),
		ticket("b", domain.StatusInProgress, &backend),
	}, store.NextRevision()))

	lv := NewLiveView(queueProjector(MatchByID), store, identities)
	t.Cleanup(lv.Close)

	var mu sync.Mutex
	var seen []View
	unsubscribe := lv.Subscribe(func(v View) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})
	defer unsubscribe()

	assert.Len(t, lv.View().Tickets, 2)

	require.NoError(t, store.Put(ticket("c", domain.StatusReview, &backend), store.NextRevision()))
	assert.Len(t, lv.View().Tickets, 3)

	_, err = identities.Select(context.Background(), backend.ID)
	require.NoError(t, err)
	v := lv.View()
	assert.Equal(t, backend, v.Identity)
	assert.Len(t, v.Tickets, 2)

	other := lv.ViewFor(network)
	assert.Empty(t, other.Tickets)
	assert.Equal(t, backend, lv.View().Identity)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Len(t, seen[1].Tickets, 2)
}
