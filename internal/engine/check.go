package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/BadgerOps/jarsync/internal/manifest"
	"github.com/BadgerOps/jarsync/internal/store"
	"github.com/BadgerOps/jarsync/internal/version"
	"github.com/BadgerOps/jarsync/internal/workpool"
)

// CheckStatus classifies one coordinate in an update check.
type CheckStatus int

const (
	UpToDate CheckStatus = iota
	UpdateAvailable
	CheckFailed
)

func (s CheckStatus) String() string {
	switch s {
	case UpToDate:
		return "up-to-date"
	case UpdateAvailable:
		return "update"
	case CheckFailed:
		return "failed"
	default:
		return fmt.Sprintf("CheckStatus(%d)", int(s))
	}
}

// CheckItem is the update-check outcome for one declared dependency.
type CheckItem struct {
	Coordinate manifest.Coordinate
	Status     CheckStatus
	Latest     string
	Reason     string // set when Status is CheckFailed
}

// CheckReport lists outcomes in manifest declaration order.
type CheckReport struct {
	Manifest string
	Items    []CheckItem
	Duration time.Duration
}

// Count returns the number of items with status s.
func (r *CheckReport) Count(s CheckStatus) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// Updates returns the items with a newer version available.
func (r *CheckReport) Updates() []CheckItem {
	return r.filter(UpdateAvailable)
}

// Failures returns the items that could not be checked.
func (r *CheckReport) Failures() []CheckItem {
	return r.filter(CheckFailed)
}

func (r *CheckReport) filter(s CheckStatus) []CheckItem {
	var out []CheckItem
	for _, it := range r.Items {
		if it.Status == s {
			out = append(out, it)
		}
	}
	return out
}

// HasFailures reports whether any coordinate failed to check.
func (r *CheckReport) HasFailures() bool {
	return r.Count(CheckFailed) > 0
}

// CheckUpdates looks up the latest version of every declared dependency and
// classifies it against the declared version. Per-item failures are part of
// the report; only a missing or malformed manifest is returned as an error.
func (m *Manager) CheckUpdates(ctx context.Context) (*CheckReport, error) {
	start := m.now()
	run := m.beginRun(store.KindCheck)

	doc, err := m.loadManifest()
	if err != nil {
		m.finishRun(run, err)
		return nil, err
	}

	m.logger.Info("checking dependencies for updates",
		"count", len(doc.Dependencies),
		"workers", m.config.Registry.Workers,
	)

	tr := newTracker(store.KindCheck, len(doc.Dependencies), m.progress)
	pool := workpool.New(m.config.Registry.Workers,
		func(ctx context.Context, i int, c manifest.Coordinate) CheckItem {
			item := m.checkOne(ctx, i, c)
			tr.done(c.Key(), item.Status.String(), checkDetail(item), item.Status == CheckFailed)
			return item
		},
		func(c manifest.Coordinate, err error) CheckItem {
			item := CheckItem{Coordinate: c, Status: CheckFailed, Reason: err.Error()}
			tr.done(c.Key(), item.Status.String(), item.Reason, true)
			return item
		},
	)
	items := pool.Execute(ctx, doc.Dependencies)

	report := &CheckReport{
		Manifest: m.config.Project.Manifest,
		Items:    items,
		Duration: m.now().Sub(start),
	}

	if run != nil {
		run.ItemsOK = report.Count(UpToDate)
		run.ItemsChanged = report.Count(UpdateAvailable)
		run.ItemsFailed = report.Count(CheckFailed)
		m.recordItems(run, checkRunItems(items))
	}
	m.finishRun(run, nil)

	m.logger.Info("update check complete",
		"up_to_date", report.Count(UpToDate),
		"updates", report.Count(UpdateAvailable),
		"failed", report.Count(CheckFailed),
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

func (m *Manager) checkOne(ctx context.Context, _ int, coord manifest.Coordinate) CheckItem {
	item := CheckItem{Coordinate: coord}

	if !coord.Resolved() {
		item.Status = CheckFailed
		item.Reason = fmt.Sprintf("unresolved version %q", coord.Version)
		m.logger.Warn("unresolved_version", "artifact", coord.Key(), "version", coord.Version)
		return item
	}

	res := m.registry.FetchLatest(ctx, coord)
	latest, ok := res.Version()
	if !ok {
		item.Status = CheckFailed
		item.Reason = res.Kind.String()
		if res.Err != nil {
			item.Reason += ": " + res.Err.Error()
		}
		m.logger.Warn("could not check for updates", "artifact", coord.Key(), "reason", item.Reason)
		return item
	}

	item.Latest = latest
	if version.Newer(coord.Version, latest) {
		item.Status = UpdateAvailable
		m.logger.Info("update available", "artifact", coord.Key(), "current", coord.Version, "latest", latest)
	} else {
		item.Status = UpToDate
		m.logger.Debug("up to date", "artifact", coord.Key(), "version", coord.Version)
	}
	return item
}

func checkDetail(it CheckItem) string {
	switch it.Status {
	case UpdateAvailable:
		return it.Coordinate.Version + " -> " + it.Latest
	case CheckFailed:
		return it.Reason
	default:
		return it.Coordinate.Version
	}
}

func checkRunItems(items []CheckItem) []store.RunItem {
	out := make([]store.RunItem, 0, len(items))
	for _, it := range items {
		detail := it.Latest
		if it.Status == CheckFailed {
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
