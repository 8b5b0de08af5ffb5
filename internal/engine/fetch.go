package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/BadgerOps/jarsync/internal/artifact"
	"github.com/BadgerOps/jarsync/internal/manifest"
	"github.com/BadgerOps/jarsync/internal/store"
	"github.com/BadgerOps/jarsync/internal/workpool"
	"github.com/dustin/go-humanize"
)

// FetchReport lists fetch outcomes in manifest declaration order.
type FetchReport struct {
	Manifest string
	StoreDir string
	Items    []artifact.Outcome
	Excluded []manifest.Coordinate // build-only scope, never fetched
	Duration time.Duration
}

// Count returns the number of outcomes with status s.
func (r *FetchReport) Count(s artifact.Status) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// Failures returns the outcomes that failed.
func (r *FetchReport) Failures() []artifact.Outcome {
	var out []artifact.Outcome
	for _, it := range r.Items {
		if it.Status == artifact.Failed {
			out = append(out, it)
		}
	}
	return out
}

// BytesDownloaded sums the sizes of newly downloaded artifacts.
func (r *FetchReport) BytesDownloaded() int64 {
	var total int64
	for _, it := range r.Items {
		if it.Status == artifact.Downloaded {
			total += it.Size
		}
	}
	return total
}

// HasFailures reports whether any artifact failed to download.
func (r *FetchReport) HasFailures() bool {
	return r.Count(artifact.Failed) > 0
}

// Fetch downloads every runtime dependency into the bucketed store.
// Dependencies with the build-only scope are excluded and existing files are
// left untouched, so repeated runs only fetch what is missing.
func (m *Manager) Fetch(ctx context.Context) (*FetchReport, error) {
	start := m.now()
	run := m.beginRun(store.KindFetch)

	doc, err := m.loadManifest()
	if err != nil {
		m.finishRun(run, err)
		return nil, err
	}

	deps, excluded := artifact.SplitBuildOnly(doc.Dependencies, m.config.Project.BuildOnlyScope)
	m.logger.Info("fetching runtime dependencies",
		"count", len(deps),
		"excluded", len(excluded),
		"store", m.config.Store.Dir,
	)

	if err := m.fetcher.EnsureBuckets(); err != nil {
		m.finishRun(run, err)
		return nil, err
	}

	tr := newTracker(store.KindFetch, len(deps), m.progress)
	tr.interval = m.transferInterval
	pool := workpool.New(m.config.Registry.Workers,
		func(ctx context.Context, _ int, c manifest.Coordinate) artifact.Outcome {
			name := artifact.FileName(c)
			out := m.fetcher.FetchWithProgress(ctx, c, func(received, total int64) {
				tr.transfer(name, received, total)
			})
			tr.done(name, out.Status.String(), fetchDetail(out), out.Status == artifact.Failed)
			return out
		},
		func(c manifest.Coordinate, err error) artifact.Outcome {
			out := artifact.Outcome{
				Coordinate: c,
				Status:     artifact.Failed,
				Reason:     fmt.Sprintf("cancelled: %v", err),
			}
			tr.done(artifact.FileName(c), out.Status.String(), out.Reason, true)
			return out
		},
	)
	items := pool.Execute(ctx, deps)

	report := &FetchReport{
		Manifest: m.config.Project.Manifest,
		StoreDir: m.config.Store.Dir,
		Items:    items,
		Excluded: excluded,
		Duration: m.now().Sub(start),
	}

	if run != nil {
		run.ItemsOK = report.Count(artifact.SkippedExists)
		run.ItemsChanged = report.Count(artifact.Downloaded)
		run.ItemsFailed = report.Count(artifact.Failed)
		run.Bytes = report.BytesDownloaded()
		m.recordItems(run, fetchRunItems(items))
	}
	m.finishRun(run, nil)

	m.logger.Info("fetch complete",
		"downloaded", report.Count(artifact.Downloaded),
		"skipped", report.Count(artifact.SkippedExists),
		"failed", report.Count(artifact.Failed),
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

func fetchDetail(o artifact.Outcome) string {
	switch o.Status {
	case artifact.Downloaded:
		return humanize.IBytes(uint64(o.Size))
	case artifact.Failed:
		return o.Reason
	default:
		return "already exists"
	}
}

func fetchRunItems(items []artifact.Outcome) []store.RunItem {
	out := make([]store.RunItem, 0, len(items))
	for _, it := range items {
		detail := it.Path
		if it.Status == artifact.Failed {
			detail = it.Reason
		}
		out = append(out, store.RunItem{
			Coordinate: it.Coordinate.String(),
			Outcome:    it.Status.String(),
			Detail:     detail,
		})
	}
	return out
}
