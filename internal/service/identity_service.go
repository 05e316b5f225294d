package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/pkg/util"
)

// IdentityListener is told about every change of the active identity.
type IdentityListener func(domain.Identity)

// IdentityService tracks which directory identity the desk acts as and
// persists the choice under one preference key.
type IdentityService struct {
	directory    *repository.Directory
	preferences  repository.PreferenceRepository
	key          string
	defaultID    string
	privilegedID string
	logger       *zap.Logger

	mu        sync.RWMutex
	active    domain.Identity
	listeners map[uint64]IdentityListener
	nextSub   uint64
}

// IdentityDependencies bundles collaborators for IdentityService.
type IdentityDependencies struct {
	Directory    *repository.Directory
	Preferences  repository.PreferenceRepository
	Key          string
	DefaultID    string
	PrivilegedID string
	Logger       *zap.Logger
}

// NewIdentityService starts on the default identity, which must exist in
// the directory. Call Restore to load the persisted choice.
func NewIdentityService(deps IdentityDependencies) (*IdentityService, error) {
	def, ok := deps.Directory.ByID(deps.DefaultID)
	if !ok {
		return nil, util.NewValidationError("default identity not in directory", map[string]any{"identity": deps.DefaultID})
	}
	prefs := deps.Preferences
	if prefs == nil {
		prefs = repository.NewMemoryPreferenceRepository()
	}
	return &IdentityService{
		directory:    deps.Directory,
		preferences:  prefs,
		key:          deps.Key,
		defaultID:    deps.DefaultID,
		privilegedID: deps.PrivilegedID,
		logger:       observability.OrNop(deps.Logger),
		active:       def,
		listeners:    make(map[uint64]IdentityListener),
	}, nil
}

// Restore activates the persisted identity, falling back to the default
// when none is stored, the store fails, or the id left the directory.
func (s *IdentityService) Restore(ctx context.Context) domain.Identity {
	who, _ := s.directory.ByID(s.defaultID)
	stored, err := s.preferences.Get(ctx, s.key)
	switch {
	case errors.Is(err, repository.ErrPreferenceNotFound):
	case err != nil:
		s.logger.Warn("read identity preference", zap.Error(err))
	default:
		if found, ok := s.directory.ByID(stored); ok {
			who = found
		} else {
			s.logger.Info("stored identity not in directory; using default", zap.String("identity", stored))
		}
	}
	s.set(who)
	return who
}

// Active returns the identity the desk currently acts as.
func (s *IdentityService) Active() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Select activates id and persists it. A persistence failure is logged and
// the selection still applies for this process.
func (s *IdentityService) Select(ctx context.Context, id string) (domain.Identity, error) {
	who, ok := s.directory.ByID(id)
	if !ok {
		return domain.Identity{}, util.NewValidationError("unknown identity", map[string]any{"identity": id})
	}
	if err := s.preferences.Set(ctx, s.key, who.ID); err != nil {
		s.logger.Warn("persist identity preference", zap.String("identity", who.ID), zap.Error(err))
	}
	s.set(who)
	return who, nil
}

// Lookup finds a directory identity by id.
func (s *IdentityService) Lookup(id string) (domain.Identity, bool) {
	return s.directory.ByID(id)
}

// Directory lists every identity.
func (s *IdentityService) Directory() []domain.Identity {
	return s.directory.List()
}

// PrivilegedID is the identity that sees every ticket.
func (s *IdentityService) PrivilegedID() string {
	return s.privilegedID
}

// Subscribe registers l and returns its unsubscribe func.
func (s *IdentityService) Subscribe(l IdentityListener) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.listeners[id] = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *IdentityService) set(who domain.Identity) {
	s.mu.Lock()
	changed := s.active != who
	s.active = who
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]IdentityListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l(who)
	}
}
