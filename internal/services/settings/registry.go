package settings

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Store interface {
	LoadAll(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, key, value string) error
}

// Registry owns the live settings. Writes are validated against the whole
// typed struct, persisted, and only then swapped into the cache, all under
// one lock.
type Registry struct {
	mu      sync.RWMutex
	store   Store
	current Settings
	logger  *zap.Logger
}

func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:   store,
		current: Defaults(),
		logger:  logger,
	}
}

// Load merges stored values over the defaults. Stored values are applied
// together and validated once, so related keys such as the top-up bounds are
// checked as a pair. When the combined set is invalid, keys are applied one at
// a time and the ones that break validation are skipped. Values that fail to
// parse are always skipped.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	stored, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parsed := make(map[string]string, len(stored))
	combined := r.current.Clone()
	for _, key := range Keys() {
		raw, ok := stored[key]
		if !ok {
			continue
		}
		if err := fields[key].parse(&combined, raw); err != nil {
			r.logger.Warn("skip stored setting", zap.String("key", key), zap.Error(err))
			continue
		}
		parsed[key] = raw
	}
	err = combined.Validate()
	if err == nil {
		r.current = combined
		return nil
	}
	r.logger.Warn("stored settings are inconsistent, applying keys one by one", zap.Error(err))

	next := r.current.Clone()
	for _, key := range Keys() {
		raw, ok := parsed[key]
		if !ok {
			continue
		}
		candidate := next.Clone()
		_ = fields[key].parse(&candidate, raw)
		if err := candidate.Validate(); err != nil {
			r.logger.Warn("skip stored setting", zap.String("key", key), zap.Error(err))
			continue
		}
		next = candidate
	}
	r.current = next
	return nil
}

func (r *Registry) Current() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Clone()
}

func (r *Registry) Get(key, def string) string {
	f, ok := fields[key]
	if !ok {
		return def
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return f.format(r.current)
}

func (r *Registry) GetAll() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(fields))
	for key, f := range fields {
		out[key] = f.format(r.current)
	}
	return out
}

// Set rejects the change and keeps the previous value when parsing,
// validation or persistence fails.
func (r *Registry) Set(ctx context.Context, key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setLocked(ctx, key, f, value)
}

func (r *Registry) setLocked(ctx context.Context, key string, f field, value string) error {
	next := r.current.Clone()
	if err := f.parse(&next, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if r.store != nil {
		if err := r.store.Save(ctx, key, f.format(next)); err != nil {
			return fmt.Errorf("persist setting %s: %w", key, err)
		}
	}
	r.current = next

	r.logger.Info("setting updated", zap.String("key", key), zap.String("value", f.format(next)))
	return nil
}

// Toggle flips a boolean setting and returns the new value. The read and the
// write happen under one lock.
func (r *Registry) Toggle(ctx context.Context, key string) (bool, error) {
	f, ok := fields[key]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := f.format(r.current)
	if current != "true" && current != "false" {
		return false, fmt.Errorf("%w: %s is not a toggle", ErrUnknownKey, key)
	}
	next := current != "true"
	if err := r.setLocked(ctx, key, f, fmt.Sprintf("%t", next)); err != nil {
		return false, err
	}
	return next, nil
}
