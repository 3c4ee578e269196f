package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/config/risk"
	"github.com/sawpanic/viralrisk/internal/persistence"
)

// Store keys
const (
	keyCurrent     = "config:current"
	keyHistory     = "config:history"
	keyABTestIndex = "abtest:index"
)

func versionKey(id string) string { return "config:" + id }
func abTestKey(id string) string  { return "abtest:" + id }

// DefaultCacheTTL bounds how stale the in-process current config may be
// relative to writes made by other processes.
const DefaultCacheTTL = 30 * time.Second

// Options tunes a Manager
type Options struct {
	CacheTTL time.Duration
	Now      func() time.Time
	Listener Listener
}

type cachedVersion struct {
	version  ConfigVersion
	loadedAt time.Time
}

// Manager stores, versions, validates, rolls back and A/B-tests risk
// configurations on top of a KeyValueStore. Writers are not serialised:
// concurrent publications race and the last pointer flip wins.
type Manager struct {
	store    persistence.KeyValueStore
	ttl      time.Duration
	now      func() time.Time
	listener Listener

	current atomic.Pointer[cachedVersion]
	tests   sync.Map // test id -> *abState
}

// NewManager creates a manager over store
func NewManager(store persistence.KeyValueStore, opts Options) *Manager {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:    store,
		ttl:      opts.CacheTTL,
		now:      opts.Now,
		listener: opts.Listener,
	}
}

// EnsureInitialized publishes the default configuration when the store has
// no current version. It returns the current version id.
func (m *Manager) EnsureInitialized(ctx context.Context) (string, error) {
	v, err := m.loadCurrent(ctx)
	if err == nil {
		return v.ID, nil
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		return "", err
	}
	return m.Publish(ctx, risk.Default(), "initial default configuration", "system", nil)
}

// GetCurrent returns the active version, served from the in-process pointer
// while it is fresher than the cache TTL.
func (m *Manager) GetCurrent(ctx context.Context) (ConfigVersion, error) {
	if c := m.current.Load(); c != nil && m.now().Sub(c.loadedAt) < m.ttl {
		return c.version.clone(), nil
	}
	v, err := m.loadCurrent(ctx)
	if err != nil {
		return ConfigVersion{}, err
	}
	return v.clone(), nil
}

// GetCurrentFresh bypasses the in-process pointer
func (m *Manager) GetCurrentFresh(ctx context.Context) (ConfigVersion, error) {
	v, err := m.loadCurrent(ctx)
	if err != nil {
		return ConfigVersion{}, err
	}
	return v.clone(), nil
}

func (m *Manager) loadCurrent(ctx context.Context) (ConfigVersion, error) {
	v, err := m.readVersion(ctx, keyCurrent, "current")
	if err != nil {
		return ConfigVersion{}, err
	}
	m.swap(v)
	return v, nil
}

func (m *Manager) swap(v ConfigVersion) {
	m.current.Store(&cachedVersion{version: v.clone(), loadedAt: m.now()})
}

// GetVersion returns a historical version by id. Only ids recorded in the
// history resolve; the pointer and history keys share the namespace.
func (m *Manager) GetVersion(ctx context.Context, id string) (ConfigVersion, error) {
	history, err := m.History(ctx)
	if err != nil {
		return ConfigVersion{}, err
	}
	return m.historicalVersion(ctx, history, id)
}

func (m *Manager) historicalVersion(ctx context.Context, history []string, id string) (ConfigVersion, error) {
	if !contains(history, id) {
		return ConfigVersion{}, &NotFoundError{Kind: KindVersion, ID: id}
	}
	return m.readVersion(ctx, versionKey(id), id)
}

func contains(ids []string, id string) bool {
	for _, h := range ids {
		if h == id {
			return true
		}
	}
	return false
}

// History returns version ids oldest first
func (m *Manager) History(ctx context.Context) ([]string, error) {
	ids, err := m.store.ListRange(ctx, keyHistory, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read config history: %w", err)
	}
	return ids, nil
}

// Update merges p over the current configuration and publishes the result.
// A merged config that fails validation is never written.
func (m *Manager) Update(ctx context.Context, p risk.Partial, description, author string) (string, error) {
	base := risk.Default()
	cur, err := m.loadCurrent(ctx)
	switch {
	case err == nil:
		base = cur.Config
	case !isNotFound(err):
		return "", err
	}
	return m.Publish(ctx, risk.Merge(base, p), description, author, nil)
}

// Publish validates cfg and makes it the current version
func (m *Manager) Publish(ctx context.Context, cfg risk.Config, description, author string, perf *Performance) (string, error) {
	v := ConfigVersion{
		Config:      cfg.Clone(),
		CreatedAt:   m.now().UTC(),
		CreatedBy:   author,
		Description: description,
		Performance: perf,
		State:       StateProposed,
	}

	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Str("author", author).Msg("Config rejected")
		return "", err
	}
	v.State = StateValidated

	history, err := m.History(ctx)
	if err != nil {
		return "", err
	}
	last := ""
	if len(history) > 0 {
		last = history[len(history)-1]
	}
	v.ID = nextVersionID(m.now(), last)

	activatedAt := v.CreatedAt
	v.IsActive = true
	v.State = StateActive
	v.ActivatedAt = &activatedAt
	v.ActivatedBy = author

	if err := m.writeVersion(ctx, versionKey(v.ID), v); err != nil {
		return "", err
	}
	if err := m.writeVersion(ctx, keyCurrent, v); err != nil {
		return "", err
	}
	if err := m.store.ListAppend(ctx, keyHistory, v.ID); err != nil {
		return "", fmt.Errorf("failed to append config history: %w", err)
	}
	m.swap(v)
	m.supersede(ctx, history, v.ID)

	log.Info().
		Str("version", v.ID).
		Str("author", author).
		Str("description", description).
		Float64("weight_sum", v.Config.Weights.Sum()).
		Msg("Config published")
	m.emit(Event{Type: EventPublished, VersionID: v.ID, Actor: author, At: v.CreatedAt})

	return v.ID, nil
}

// Rollback re-activates a historical version as current. Its stored config
// is left unchanged; every other version is deactivated.
func (m *Manager) Rollback(ctx context.Context, id, author string) error {
	history, err := m.History(ctx)
	if err != nil {
		return err
	}
	target, err := m.historicalVersion(ctx, history, id)
	if err != nil {
		return err
	}

	at := m.now().UTC()
	target.IsActive = true
	target.State = StateActive
	target.ActivatedAt = &at
	target.ActivatedBy = author

	if err := m.writeVersion(ctx, keyCurrent, target); err != nil {
		return err
	}
	m.swap(target)
	if err := m.writeVersion(ctx, versionKey(id), target); err != nil {
		log.Warn().Err(err).Str("version", id).Msg("Failed to mark rolled back version active")
	}
	m.supersede(ctx, history, id)

	log.Info().Str("version", id).Str("author", author).Msg("Config rolled back")
	m.emit(Event{Type: EventRolledBack, VersionID: id, Actor: author, At: at})
	return nil
}

// supersede runs once the new current version is fully written. A failure
// leaves stale isActive flags behind; config:current stays authoritative and
// the next publication retries them.
func (m *Manager) supersede(ctx context.Context, history []string, keep string) {
	if err := m.deactivateAll(ctx, history, keep); err != nil {
		log.Warn().Err(err).Str("current", keep).Msg("Failed to supersede previous versions")
	}
}

// deactivateAll marks every active version except keep as superseded
func (m *Manager) deactivateAll(ctx context.Context, history []string, keep string) error {
	for _, id := range history {
		if id == keep {
			continue
		}
		v, err := m.readVersion(ctx, versionKey(id), id)
		if err != nil {
			if isNotFound(err) {
				log.Warn().Str("version", id).Msg("History entry without stored version")
				continue
			}
			return err
		}
		if !v.IsActive && v.State == StateSuperseded {
			continue
		}
		v.IsActive = false
		v.State = StateSuperseded
		if err := m.writeVersion(ctx, versionKey(id), v); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) readVersion(ctx context.Context, key, id string) (ConfigVersion, error) {
	data, found, err := m.store.Get(ctx, key)
	if err != nil {
		return ConfigVersion{}, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found {
		return ConfigVersion{}, &NotFoundError{Kind: KindVersion, ID: id}
	}
	var v ConfigVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return ConfigVersion{}, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, nil
}

func (m *Manager) writeVersion(ctx context.Context, key string, v ConfigVersion) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode version %s: %w", v.ID, err)
	}
	if err := m.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (m *Manager) emit(e Event) {
	if m.listener != nil {
		m.listener(e)
	}
}

func isNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
