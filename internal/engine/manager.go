package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BadgerOps/jarsync/internal/artifact"
	"github.com/BadgerOps/jarsync/internal/config"
	"github.com/BadgerOps/jarsync/internal/download"
	"github.com/BadgerOps/jarsync/internal/manifest"
	"github.com/BadgerOps/jarsync/internal/registry"
	"github.com/BadgerOps/jarsync/internal/store"
)

// Manager wires the manifest, registry, fetcher and packer together and
// records each flow in the run history when a store is configured.
type Manager struct {
	config   *config.Config
	registry *registry.Client
	fetcher  *artifact.Fetcher
	store    *store.Store
	logger   *slog.Logger
	now      func() time.Time
	progress ProgressFunc

	transferInterval time.Duration
}

// NewManager builds a Manager from cfg. st may be nil, which disables run
// history.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	limit, err := cfg.MetadataLimit()
	if err != nil {
		return nil, err
	}
	reg, err := registry.NewClient(registry.Options{
		BaseURL:          cfg.Registry.BaseURL,
		Timeout:          cfg.Registry.Timeout,
		MaxMetadataBytes: limit,
	}, logger.With("component", "registry"))
	if err != nil {
		return nil, err
	}

	client := download.NewClient(logger.With("component", "download"), cfg.Registry.Timeout)
	fetcher, err := artifact.NewFetcher(artifact.FetcherOptions{
		BaseURL:    cfg.Registry.BaseURL,
		StoreDir:   cfg.Store.Dir,
		Rules:      cfg.BucketRules(),
		RetryCount: cfg.Registry.RetryAttempts,
	}, client, logger.With("component", "fetcher"))
	if err != nil {
		return nil, err
	}

	return &Manager{
		config:   cfg,
		registry: reg,
		fetcher:  fetcher,
		store:    st,
		logger:   logger,
		now:      time.Now,

		transferInterval: defaultTransferInterval,
	}, nil
}

// SetProgress installs a callback invoked as each coordinate finishes
// during CheckUpdates and Fetch.
func (m *Manager) SetProgress(fn ProgressFunc) {
	m.progress = fn
}

// Config returns the effective configuration.
func (m *Manager) Config() *config.Config { return m.config }

// loadManifest parses the configured manifest. Errors here are fatal and
// abort the flow before any network activity.
func (m *Manager) loadManifest() (*manifest.Document, error) {
	path := m.config.Project.Manifest
	m.logger.Info("parsing manifest", "path", path)
	doc, err := manifest.Parse(path)
	if err != nil {
		return nil, err
	}
	unresolved := doc.Unresolved()
	m.logger.Info("manifest parsed",
		"dependencies", len(doc.Dependencies),
		"properties", doc.Properties.Len(),
		"unresolved", len(unresolved),
	)
	m.logger.Debug("manifest properties", "names", doc.Properties.Names())
	return doc, nil
}

// beginRun opens a run history record. A nil run means history is disabled
// or could not be written; flows continue regardless.
func (m *Manager) beginRun(kind string) *store.Run {
	if m.store == nil {
		return nil
	}
	run := &store.Run{
		Kind:      kind,
		Manifest:  m.config.Project.Manifest,
		StartTime: m.now(),
		Status:    store.StatusRunning,
	}
	if err := m.store.CreateRun(run); err != nil {
		m.logger.Warn("failed to record run", "kind", kind, "error", err)
		return nil
	}
	return run
}

// finishRun stamps the end time and final status on run.
func (m *Manager) finishRun(run *store.Run, runErr error) {
	if run == nil {
		return
	}
	run.EndTime = m.now()
	switch {
	case runErr != nil:
		run.Status = store.StatusFailed
		run.ErrorMessage = runErr.Error()
	case run.ItemsFailed > 0:
		run.Status = store.StatusPartial
	default:
		run.Status = store.StatusSuccess
	}
	if err := m.store.UpdateRun(run); err != nil {
		m.logger.Warn("failed to update run", "id", run.ID, "error", err)
	}
}

func (m *Manager) recordItems(run *store.Run, items []store.RunItem) {
	if run == nil {
		return
	}
	if err := m.store.AddRunItems(run.ID, items); err != nil {
		m.logger.Warn("failed to record run items", "id", run.ID, "error", err)
	}
}

// History returns the most recent runs, newest first.
func (m *Manager) History(kind string, limit int) ([]store.Run, error) {
	if m.store == nil {
		return nil, fmt.Errorf("run history is disabled (store.db_path is empty)")
	}
	return m.store.ListRuns(kind, limit)
}

// Run returns one recorded run by ID.
func (m *Manager) Run(id int64) (*store.Run, error) {
	if m.store == nil {
		return nil, fmt.Errorf("run history is disabled (store.db_path is empty)")
	}
	return m.store.GetRun(id)
}

// Archives returns the archive parts written by a pack run.
func (m *Manager) Archives(runID int64) ([]store.Archive, error) {
	if m.store == nil {
		return nil, fmt.Errorf("run history is disabled (store.db_path is empty)")
	}
	return m.store.ListArchives(runID)
}

// RunItems returns the recorded per-item outcomes of a run.
func (m *Manager) RunItems(runID int64) ([]store.RunItem, error) {
	if m.store == nil {
		return nil, fmt.Errorf("run history is disabled (store.db_path is empty)")
	}
	return m.store.ListRunItems(runID)
}
