package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ceeval-hq/verdict/pkg/config"
)

// ReloadRecorder receives the outcome of every load attempt.
// *metrics.Collector satisfies it.
type ReloadRecorder interface {
	RecordCatalogReload(source string, ok bool, rules int)
}

type nopRecorder struct{}

func (nopRecorder) RecordCatalogReload(string, bool, int) {}

// Manager owns the active catalog snapshot. Readers call Current and keep
// the returned snapshot for the duration of their work; Reload swaps in a
// new snapshot atomically. A reload that fails to parse or validate leaves
// the previous snapshot in service.
type Manager struct {
	config   config.CatalogConfig
	loader   *Loader
	source   Source
	logger   *slog.Logger
	recorder ReloadRecorder

	current atomic.Pointer[Snapshot]

	mu        sync.Mutex // serializes loads
	lastError error
	listeners []func(*Snapshot)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder reports load attempts to r.
func WithRecorder(r ReloadRecorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithSource replaces the source derived from the configuration.
func WithSource(s Source) Option {
	return func(m *Manager) { m.source = s }
}

// NewManager creates a manager for cfg. Nothing is loaded until Load.
func NewManager(cfg config.CatalogConfig, loader *Loader, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if loader == nil {
		return nil, errors.New("catalog loader cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		config:   cfg,
		loader:   loader,
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.source == nil {
		switch cfg.Mode {
		case "git":
			src, err := NewGitSource(cfg.Git, cfg.Path, logger)
			if err != nil {
				return nil, err
			}
			m.source = src
		case "file", "":
			m.source = fileSource{path: cfg.Path}
		default:
			return nil, fmt.Errorf("unknown catalog mode %q", cfg.Mode)
		}
	}
	return m, nil
}

// OnReload registers fn to run after every successful load, with the new
// snapshot. Listeners run synchronously under the load lock.
func (m *Manager) OnReload(fn func(*Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Current returns the active snapshot.
func (m *Manager) Current() (*Snapshot, error) {
	snap := m.current.Load()
	if snap == nil {
		return nil, ErrNoCatalog
	}
	return snap, nil
}

// LastError returns the error of the most recent load, nil after a success.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// Load syncs the source and loads the catalog.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.load(ctx, true)
	return err
}

// Reload loads the catalog again. On failure the previous snapshot stays
// active and the error is returned.
func (m *Manager) Reload(ctx context.Context) error {
	return m.Load(ctx)
}

func (m *Manager) load(ctx context.Context, force bool) (*Snapshot, error) {
	start := time.Now()

	changed, err := m.source.Sync(ctx)
	if err != nil {
		return nil, m.fail(fmt.Errorf("catalog sync: %w", err))
	}
	if !force && !changed {
		return m.current.Load(), nil
	}

	snap, err := m.loader.Load(m.source.Path())
	if err != nil {
		return nil, m.fail(err)
	}

	prev := m.current.Swap(snap)
	m.lastError = nil
	m.recorder.RecordCatalogReload(m.source.Name(), true, snap.Rules.Len())

	attrs := []any{
		"source", m.source.Name(),
		"version", snap.Version,
		"rules", snap.Rules.Len(),
		"processes", len(snap.Processes),
		"warnings", len(snap.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if prev != nil {
		attrs = append(attrs, "previous_version", prev.Version)
	}
	m.logger.Info("catalog loaded", attrs...)

	for _, fn := range m.listeners {
		fn(snap)
	}
	return snap, nil
}

func (m *Manager) fail(err error) error {
	m.lastError = err
	m.recorder.RecordCatalogReload(m.source.Name(), false, 0)
	if prev := m.current.Load(); prev != nil {
		m.logger.Error("catalog reload failed, keeping previous catalog", "version", prev.Version, "error", err)
	} else {
		m.logger.Error("catalog load failed", "error", err)
	}
	return err
}

// Watch reloads the catalog when it changes, until ctx is done. File
// catalogs are watched with fsnotify when Watch is enabled; git catalogs
// are polled every PollInterval. Watch returns immediately when neither
// applies.
func (m *Manager) Watch(ctx context.Context) error {
	if _, ok := m.source.(*GitSource); ok {
		return m.poll(ctx, m.config.Git.PollInterval)
	}
	if !m.config.Watch {
		return nil
	}

	fw, err := newFileWatcher(m.source.Path(), m.config.Debounce, m.logger)
	if err != nil {
		return err
	}
	m.logger.Info("watching catalog", "path", m.source.Path(), "debounce", m.config.Debounce)
	return fw.run(ctx, func() {
		_ = m.Reload(ctx)
	})
}

func (m *Manager) poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("polling catalog repository", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.mu.Lock()
			_, _ = m.load(ctx, false)
			m.mu.Unlock()
		}
	}
}
