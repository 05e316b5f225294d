package projection

import (
	"slices"
	"sync"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/service"
)

// LiveView keeps the active identity's board current as the cache and the
// active identity change.
type LiveView struct {
	projector  *Projector
	store      *cache.Store
	identities *service.IdentityService

	recompute sync.Mutex

	mu        sync.RWMutex
	view      View
	listeners map[uint64]func(View)
	nextSub   uint64
	unsubs    []func()
}

// NewLiveView computes the first view and starts following changes.
func NewLiveView(projector *Projector, store *cache.Store, identities *service.IdentityService) *LiveView {
	lv := &LiveView{
		projector:  projector,
		store:      store,
		identities: identities,
		listeners:  make(map[uint64]func(View)),
	}
	lv.unsubs = append(lv.unsubs,
		store.Subscribe(func(cache.Change) { lv.refresh() }),
		identities.Subscribe(func(domain.Identity) { lv.refresh() }),
	)
	lv.refresh()
	return lv
}

// View returns the active identity's board.
func (lv *LiveView) View() View {
	lv.mu.RLock()
	defer lv.mu.RUnlock()
	return lv.view
}

// ViewFor projects the current cache for another identity without
// changing the active one.
func (lv *LiveView) ViewFor(who domain.Identity) View {
	return lv.projector.Project(lv.store.Snapshot(), who)
}

// Subscribe registers fn for every recomputed view.
func (lv *LiveView) Subscribe(fn func(View)) func() {
	lv.mu.Lock()
	lv.nextSub++
	id := lv.nextSub
	lv.listeners[id] = fn
	lv.mu.Unlock()
	return func() {
		lv.mu.Lock()
		delete(lv.listeners, id)
		lv.mu.Unlock()
	}
}

// Close stops following the cache and identity.
func (lv *LiveView) Close() {
	lv.mu.Lock()
	unsubs := lv.unsubs
	lv.unsubs = nil
	lv.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (lv *LiveView) refresh() {
	lv.recompute.Lock()
	defer lv.recompute.Unlock()

	v := lv.projector.Project(lv.store.Snapshot(), lv.identities.Active())

	lv.mu.Lock()
	lv.view = v
	ids := make([]uint64, 0, len(lv.listeners))
	for id := range lv.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]func(View), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, lv.listeners[id])
	}
	lv.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}
