// Package cache holds the desk's authoritative in-memory ticket collection.
//
// Every write carries a revision issued by NextRevision. A revision is taken
// when an operation begins (before a snapshot fetch, before an optimistic
// apply), so a slow response can be recognized as older than writes that
// landed while it was in flight.
package cache

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

var (
	// ErrStaleRevision rejects a write older than the state it would overwrite.
	ErrStaleRevision = errors.New("stale revision")
	// ErrClosed rejects writes after Close.
	ErrClosed = errors.New("ticket cache closed")
	// ErrMissingID rejects a ticket without an id.
	ErrMissingID = errors.New("ticket has no id")
)

// ChangeKind says which operation produced a notification.
type ChangeKind string

const (
	ChangeReplaced ChangeKind = "replaced"
	ChangePatched  ChangeKind = "patched"
	ChangeRemoved  ChangeKind = "removed"
)

// Change describes one applied mutation.
type Change struct {
	Kind     ChangeKind
	IDs      []string
	Revision uint64
}

// Listener receives change notifications synchronously on the writer's goroutine.
type Listener func(Change)

type entry struct {
	ticket domain.Ticket
	rev    uint64
}

// Store is the ordered ticket collection.
type Store struct {
	mu         sync.RWMutex
	order      []string
	entries    map[string]*entry
	tombstones map[string]uint64
	snapshot   uint64
	closed     bool

	listenerMu sync.Mutex
	listeners  map[uint64]Listener
	nextSub    uint64

	revisions atomic.Uint64
	rejected  atomic.Uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entries:    make(map[string]*entry),
		tombstones: make(map[string]uint64),
		listeners:  make(map[uint64]Listener),
	}
}

// NextRevision issues a revision greater than every previously issued one.
func (s *Store) NextRevision() uint64 {
	return s.revisions.Add(1)
}

// Rejected counts writes refused as stale.
func (s *Store) Rejected() uint64 {
	return s.rejected.Load()
}

// Subscribe registers l and returns its unsubscribe function.
func (s *Store) Subscribe(l Listener) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.listeners[id] = l
	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

// Close drops every listener and refuses further writes.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.listenerMu.Lock()
	s.listeners = make(map[uint64]Listener)
	s.listenerMu.Unlock()
}

// Len returns the number of cached tickets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns a copy of every ticket in cache order.
func (s *Store) Snapshot() []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].ticket.Clone())
	}
	return out
}

// Get returns a copy of one ticket.
func (s *Store) Get(id string) (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.Ticket{}, false
	}
	return e.ticket.Clone(), true
}

// Revision returns the revision of the last write applied to id.
func (s *Store) Revision(id string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return 0, false
	}
	return e.rev, true
}

// ReplaceAll swaps in a snapshot fetched under rev.
//
// A snapshot older than the last applied one is rejected whole. Within an
// accepted snapshot, entities written after rev keep their local state and
// entities removed after rev stay removed.
func (s *Store) ReplaceAll(tickets []domain.Ticket, rev uint64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if rev < s.snapshot {
		s.mu.Unlock()
		s.rejected.Add(1)
		return ErrStaleRevision
	}

	order := make([]string, 0, len(tickets))
	entries := make(map[string]*entry, len(tickets))
	for _, t := range tickets {
		if _, dup := entries[t.ID]; dup || t.ID == "" {
			continue
		}
		if removedAt, gone := s.tombstones[t.ID]; gone && removedAt > rev {
			continue
		}
		if cur, ok := s.entries[t.ID]; ok && cur.rev > rev {
			entries[t.ID] = cur
		} else {
			entries[t.ID] = &entry{ticket: t.Clone(), rev: rev}
		}
		order = append(order, t.ID)
	}
	for _, id := range s.order {
		cur := s.entries[id]
		if _, kept := entries[id]; !kept && cur.rev > rev {
			entries[id] = cur
			order = append(order, id)
		}
	}
	for id, removedAt := range s.tombstones {
		if removedAt <= rev {
			delete(s.tombstones, id)
		}
	}

	s.order = order
	s.entries = entries
	s.snapshot = rev
	ids := append([]string(nil), order...)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReplaced, IDs: ids, Revision: rev})
	return nil
}

// Put writes a whole ticket under rev, appending it when absent.
func (s *Store) Put(t domain.Ticket, rev uint64) error {
	if t.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if removedAt, gone := s.tombstones[t.ID]; gone && removedAt > rev {
		s.mu.Unlock()
		s.rejected.Add(1)
		return ErrStaleRevision
	}
	cur, ok := s.entries[t.ID]
	switch {
	case ok && rev < cur.rev:
		s.mu.Unlock()
		s.rejected.Add(1)
		return ErrStaleRevision
	case ok:
		cur.ticket = t.Clone()
		cur.rev = rev
	default:
		s.entries[t.ID] = &entry{ticket: t.Clone(), rev: rev}
		s.order = append(s.order, t.ID)
		delete(s.tombstones, t.ID)
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangePatched, IDs: []string{t.ID}, Revision: rev})
	return nil
}

// Patch applies p to id under rev. It reports false without error when id is
// not cached.
func (s *Store) Patch(id string, p Patch, rev uint64) (bool, error) {
	return s.patch(id, p, rev, 0, false)
}

// CompareAndPatch applies p only while id still carries expect. It reports
// false without error when a newer write superseded expect or id is gone.
func (s *Store) CompareAndPatch(id string, expect uint64, p Patch, rev uint64) (bool, error) {
	return s.patch(id, p, rev, expect, true)
}

func (s *Store) patch(id string, p Patch, rev, expect uint64, conditional bool) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	cur, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if conditional && cur.rev != expect {
		s.mu.Unlock()
		return false, nil
	}
	if rev < cur.rev {
		s.mu.Unlock()
		s.rejected.Add(1)
		return false, ErrStaleRevision
	}
	p.apply(&cur.ticket)
	cur.rev = rev
	s.mu.Unlock()

	s.notify(Change{Kind: ChangePatched, IDs: []string{id}, Revision: rev})
	return true, nil
}

// Remove purges id. The removal is remembered so an older snapshot cannot
// bring the ticket back.
func (s *Store) Remove(id string, rev uint64) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	cur, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if rev < cur.rev {
		s.mu.Unlock()
		s.rejected.Add(1)
		return false, ErrStaleRevision
	}
	delete(s.entries, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.tombstones[id] = rev
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRemoved, IDs: []string{id}, Revision: rev})
	return true, nil
}

func (s *Store) notify(c Change) {
	s.listenerMu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	listeners := make([]Listener, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.listenerMu.Unlock()

	for _, l := range listeners {
		l(c)
	}
}
