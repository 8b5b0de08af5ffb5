package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BadgerOps/jarsync/internal/pack"
	"github.com/BadgerOps/jarsync/internal/store"
)

// PackReport summarizes a packaging run.
type PackReport struct {
	StoreDir     string
	OutputDir    string
	Files        int
	TotalSize    int64
	SplitSize    int64
	Archives     []pack.ArchiveInfo
	Oversized    []string // parts holding a single file larger than SplitSize
	Removed      []string // stale parts from an earlier run
	ManifestPath string
	NothingToDo  bool
	Duration     time.Duration
}

// Package scans the artifact store, plans size-bounded parts and writes
// them with their manifest. An empty store is reported as nothing to do.
func (m *Manager) Package(ctx context.Context) (*PackReport, error) {
	start := m.now()
	run := m.beginRun(store.KindPack)

	report, err := m.pack(ctx)
	if report != nil {
		report.Duration = m.now().Sub(start)
	}
	if run != nil && report != nil {
		run.ItemsOK = report.Files
		run.ItemsChanged = len(report.Archives)
		run.Bytes = report.TotalSize
		m.recordArchives(run, report.Archives)
	}
	m.finishRun(run, err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (m *Manager) pack(ctx context.Context) (*PackReport, error) {
	cfg := m.config
	splitSize, err := cfg.SplitSizeBytes()
	if err != nil {
		return nil, err
	}
	if err := checkOutputOutsideStore(cfg.Store.Dir, cfg.Export.OutputDir); err != nil {
		return nil, err
	}

	report := &PackReport{
		StoreDir:  cfg.Store.Dir,
		OutputDir: cfg.Export.OutputDir,
		SplitSize: splitSize,
	}

	m.logger.Info("analyzing artifact store", "path", cfg.Store.Dir)
	files, err := pack.Scan(cfg.Store.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (run fetch first)", err)
		}
		return nil, err
	}
	report.Files = len(files)
	report.TotalSize = pack.TotalSize(files)
	m.logger.Info("artifact store scanned", "files", report.Files, "total_size", report.TotalSize)

	if len(files) == 0 {
		m.logger.Warn("no files found in artifact store, nothing to do", "path", cfg.Store.Dir)
		report.NothingToDo = true
		return report, nil
	}

	parts, err := pack.Plan(files, splitSize)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		if p.Oversized(splitSize) {
			name := pack.PartName(cfg.Export.Prefix, p.Index)
			report.Oversized = append(report.Oversized, name)
			m.logger.Warn("part exceeds split size", "name", name, "file", p.Entries[0].RelPath, "size", p.TotalSize)
		}
	}

	writer, err := pack.NewWriter(pack.WriterOptions{
		OutputDir:   cfg.Export.OutputDir,
		Prefix:      cfg.Export.Prefix,
		Compression: cfg.Export.Compression,
		SplitSize:   splitSize,
	}, m.logger.With("component", "pack"))
	if err != nil {
		return nil, err
	}

	res, err := writer.Write(ctx, parts)
	if err != nil {
		return nil, err
	}
	report.Archives = res.Archives
	report.Removed = res.Removed
	report.ManifestPath = res.ManifestPath

	m.logger.Info("packaging complete", "parts", len(res.Archives), "manifest", res.ManifestPath)
	return report, nil
}

func (m *Manager) recordArchives(run *store.Run, archives []pack.ArchiveInfo) {
	for _, a := range archives {
		rec := &store.Archive{
			RunID:     run.ID,
			Name:      a.Name,
			SHA256:    a.SHA256,
			Size:      a.Size,
			FileCount: len(a.Files),
		}
		if err := m.store.CreateArchive(rec); err != nil {
			m.logger.Warn("failed to record archive", "name", a.Name, "error", err)
		}
	}
}

// checkOutputOutsideStore rejects an output directory inside the store,
// which would make the next scan pick up previously written parts.
func checkOutputOutsideStore(storeDir, outputDir string) error {
	s, err := filepath.Abs(storeDir)
	if err != nil {
		return err
	}
	o, err := filepath.Abs(outputDir)
	if err != nil {
		return err
	}
	if o == s || strings.HasPrefix(o, s+string(filepath.Separator)) {
		return fmt.Errorf("export.output_dir %s must not be inside store.dir %s", outputDir, storeDir)
	}
	return nil
}
