package group

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/model"
)

// ErrPersist marks a change that is live in memory but could not be made durable.
var ErrPersist = errors.New("failed to persist group config")

// persister makes group configs durable.
type persister interface {
	Save(ctx context.Context, cfg model.GroupConfig) error
	Delete(ctx context.Context, groupID int64) error
	LoadAll(ctx context.Context) ([]model.GroupConfig, error)
}

// assetDeleter removes overlay files owned by a group.
type assetDeleter interface {
	Delete(ctx context.Context, ref string) error
}

// Store keeps every group's config in memory and writes changes through to a persister.
// Configs are replaced as whole values, so readers never observe a partial update.
type Store struct {
	persister persister
	assets    assetDeleter
	now       func() time.Time

	writeMu sync.Mutex // serializes Upsert and Delete

	mu      sync.RWMutex
	configs map[int64]model.GroupConfig
}

// NewStore creates an empty Store. Call Load to read persisted configs.
func NewStore(p persister, assets assetDeleter) *Store {
	return &Store{
		persister: p,
		assets:    assets,
		now:       time.Now,
		configs:   make(map[int64]model.GroupConfig),
	}
}

// Load reads all persisted configs into memory and returns how many were loaded.
func (s *Store) Load(ctx context.Context) (int, error) {
	cfgs, err := s.persister.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cfg := range cfgs {
		s.configs[cfg.GroupID] = cfg
	}

	return len(cfgs), nil
}

// Get returns the config of groupID. A missing config is not an error.
func (s *Store) Get(groupID int64) (model.GroupConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[groupID]
	return cfg, ok
}

// Upsert creates the config from defaults or merges patch into the existing one.
// When persisting fails the new config is still returned and kept in memory,
// together with an error wrapping ErrPersist.
func (s *Store) Upsert(ctx context.Context, groupID int64, patch model.GroupPatch) (model.GroupConfig, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now().UTC()

	cfg, ok := s.Get(groupID)
	if !ok {
		cfg = model.NewGroupConfig(groupID)
		cfg.CreatedAt = now
	}
	cfg = patch.Apply(cfg)
	cfg.GroupID = groupID
	cfg.UpdatedAt = now

	s.mu.Lock()
	s.configs[groupID] = cfg
	s.mu.Unlock()

	if err := s.persister.Save(ctx, cfg); err != nil {
		zlog.Logger.Error().Err(err).Int64("group_id", groupID).Msg("failed to persist group config")
		return cfg, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	return cfg, nil
}

// Delete removes the config of groupID together with its overlay asset.
// It reports whether a config existed.
func (s *Store) Delete(ctx context.Context, groupID int64) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	cfg, ok := s.configs[groupID]
	delete(s.configs, groupID)
	s.mu.Unlock()

	if !ok {
		return false, nil
	}

	var errs []error

	if err := s.persister.Delete(ctx, groupID); err != nil {
		zlog.Logger.Error().Err(err).Int64("group_id", groupID).Msg("failed to delete persisted group config")
		errs = append(errs, fmt.Errorf("%w: %v", ErrPersist, err))
	}

	if cfg.AssetRef != "" {
		if err := s.assets.Delete(ctx, cfg.AssetRef); err != nil {
			zlog.Logger.Error().Err(err).Str("asset", cfg.AssetRef).Msg("failed to delete group asset")
			errs = append(errs, fmt.Errorf("delete asset: %w", err))
		}
	}

	return true, errors.Join(errs...)
}

// List returns a copy of all configs keyed by group id.
func (s *Store) List() map[int64]model.GroupConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]model.GroupConfig, len(s.configs))
	for id, cfg := range s.configs {
		out[id] = cfg
	}

	return out
}

// Len returns the number of configured groups.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.configs)
}
