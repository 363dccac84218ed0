package settings

import (
	"context"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

// Service reads and updates the configuration record. Updates are
// read-modify-write with no concurrency control; the last writer wins.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Current returns the stored settings, or the defaults when none exist.
func (s *Service) Current(ctx context.Context) (*Settings, error) {
	stored, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return Defaults(), nil
	}
	return stored, nil
}

// Public returns the settings with the secret removed.
func (s *Service) Public(ctx context.Context) (View, error) {
	cur, err := s.Current(ctx)
	if err != nil {
		return View{}, err
	}
	return cur.Public(), nil
}

// Update merges u over the stored record and saves it.
func (s *Service) Update(ctx context.Context, u Update) (View, error) {
	cur, err := s.Current(ctx)
	if err != nil {
		return View{}, err
	}
	u.Apply(cur)
	if err := s.store.Set(ctx, cur); err != nil {
		return View{}, err
	}
	logging.NewLogger(ctx).LogInfof("set_config", "settings saved enabled=%t provider=%s model=%s secret_configured=%t",
		cur.Enabled, cur.AIProvider, cur.Model, cur.SecretValue != "")
	return cur.Public(), nil
}
