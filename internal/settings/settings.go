package settings

import (
	"context"
	"strings"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/store"
)

// Snapshot is the user-visible settings state.
type Snapshot struct {
	CodexHome            string `json:"codex_home"`
	ActiveHomeID         int64  `json:"active_home_id"`
	ContextActiveMinutes int    `json:"context_active_minutes"`
}

type Service struct {
	store       *store.Store
	defaultHome string
}

// NewService returns a settings service. defaultHome is used when no active
// home is recorded yet.
func NewService(st *store.Store, defaultHome string) *Service {
	return &Service{store: st, defaultHome: defaultHome}
}

func (s *Service) Get(ctx context.Context) (Snapshot, error) {
	home, err := s.store.EnsureActiveHome(ctx, s.defaultHome)
	if err != nil {
		return Snapshot{}, err
	}
	minutes, err := s.store.ContextActiveMinutes(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		CodexHome:            home.Path,
		ActiveHomeID:         home.ID,
		ContextActiveMinutes: minutes,
	}, nil
}

// Update applies the non-nil fields. A new codex home path is created if
// unknown and becomes the active home.
func (s *Service) Update(ctx context.Context, codexHome *string, minutes *int) (Snapshot, error) {
	if codexHome != nil {
		path := strings.TrimSpace(*codexHome)
		if path == "" {
			return Snapshot{}, core.InvalidInput("codex home path is required")
		}
		home, err := s.store.GetOrCreateHome(ctx, path, "")
		if err != nil {
			return Snapshot{}, err
		}
		if err := s.store.SetActiveHome(ctx, home.ID); err != nil {
			return Snapshot{}, err
		}
		if err := s.store.TouchHome(ctx, home.ID); err != nil {
			return Snapshot{}, err
		}
	}
	if minutes != nil {
		if err := s.store.SetContextActiveMinutes(ctx, *minutes); err != nil {
			return Snapshot{}, err
		}
	}
	return s.Get(ctx)
}
