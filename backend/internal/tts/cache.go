package tts

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ModelLoader is the part of the speech engine that manages voice models
type ModelLoader interface {
	IsModelLoaded(ctx context.Context, speakerID int) (bool, error)
	LoadModel(ctx context.Context, speakerID int) error
}

// ModelCache remembers which voice models the engine has loaded so each
// model is loaded at most once per process. Entries are never evicted.
type ModelCache struct {
	loader ModelLoader
	logger *zap.Logger

	mu     sync.RWMutex
	loaded map[int]struct{}
	group  singleflight.Group
}

// NewModelCache creates an empty cache in front of the given loader
func NewModelCache(loader ModelLoader, logger *zap.Logger) *ModelCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelCache{
		loader: loader,
		logger: logger,
		loaded: make(map[int]struct{}),
	}
}

// EnsureLoaded makes sure the model for speakerID is ready. Concurrent
// callers for the same id share one engine round trip. The shared load is
// detached from any one caller's cancellation; a cancelled caller stops
// waiting while the others keep theirs.
func (c *ModelCache) EnsureLoaded(ctx context.Context, speakerID int) error {
	if c.IsLoaded(speakerID) {
		return nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.Itoa(speakerID), func() (interface{}, error) {
		if c.IsLoaded(speakerID) {
			return nil, nil
		}

		ready, err := c.loader.IsModelLoaded(loadCtx, speakerID)
		if err != nil {
			return nil, err
		}
		if !ready {
			c.logger.Info("Loading voice model", zap.Int("speaker_id", speakerID))
			if err := c.loader.LoadModel(loadCtx, speakerID); err != nil {
				return nil, err
			}
		}

		c.mu.Lock()
		c.loaded[speakerID] = struct{}{}
		c.mu.Unlock()
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsLoaded reports whether the model is known to be loaded
func (c *ModelCache) IsLoaded(speakerID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.loaded[speakerID]
	return ok
}

// Loaded returns the loaded speaker ids in ascending order
func (c *ModelCache) Loaded() []int {
	c.mu.RLock()
	ids := make([]int, 0, len(c.loaded))
	for id := range c.loaded {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	slices.Sort(ids)
	return ids
}
