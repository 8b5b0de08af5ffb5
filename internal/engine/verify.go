package engine

import (
	"context"
	"time"

	"github.com/BadgerOps/jarsync/internal/pack"
	"github.com/BadgerOps/jarsync/internal/store"
)

// VerifyReport wraps the part checks with extraction results.
type VerifyReport struct {
	Dir       string
	Parts     []pack.PartCheck
	Manifest  *pack.DistributionManifest
	Extracted int
	Duration  time.Duration
}

// Failed returns the parts that did not verify.
func (r *VerifyReport) Failed() []pack.PartCheck {
	var out []pack.PartCheck
	for _, p := range r.Parts {
		if !p.OK {
			out = append(out, p)
		}
	}
	return out
}

// Verify checks the parts in dir (the configured output directory when
// empty) against their distribution manifest. When extractTo is set and
// every part verifies, the parts are unpacked there.
func (m *Manager) Verify(ctx context.Context, dir, extractTo string) (*VerifyReport, error) {
	if dir == "" {
		dir = m.config.Export.OutputDir
	}
	start := m.now()
	run := m.beginRun(store.KindVerify)

	var (
		res       *pack.VerifyReport
		extracted int
		err       error
	)
	if extractTo != "" {
		res, extracted, err = pack.Extract(ctx, dir, m.config.Export.Prefix, extractTo)
	} else {
		res, err = pack.Verify(ctx, dir, m.config.Export.Prefix)
	}
	if res == nil {
		m.finishRun(run, err)
		return nil, err
	}

	report := &VerifyReport{
		Dir:       dir,
		Parts:     res.Parts,
		Manifest:  res.Manifest,
		Extracted: extracted,
		Duration:  m.now().Sub(start),
	}

	for _, p := range res.Parts {
		if !p.OK {
			m.logger.Error("part failed verification", "name", p.Name, "error", p.Error)
			continue
		}
		m.markVerified(res.Manifest, p.Name)
	}

	if run != nil {
		run.ItemsOK = len(res.Parts) - len(report.Failed())
		run.ItemsChanged = extracted
		run.ItemsFailed = len(report.Failed())
		m.recordItems(run, verifyRunItems(res.Parts))
	}
	m.finishRun(run, err)

	m.logger.Info("verification complete",
		"parts", len(res.Parts),
		"failed", len(report.Failed()),
		"extracted", extracted,
	)
	// An extraction error after a clean verification is still fatal.
	if err != nil && len(report.Failed()) == 0 {
		return report, err
	}
	return report, nil
}

func (m *Manager) markVerified(dm *pack.DistributionManifest, name string) {
	if m.store == nil {
		return
	}
	for _, p := range dm.Parts {
		if p.Name != name {
			continue
		}
		if _, err := m.store.MarkArchiveVerified(p.Name, p.SHA256); err != nil {
			m.logger.Warn("failed to mark archive verified", "name", p.Name, "error", err)
		}
	}
}

func verifyRunItems(parts []pack.PartCheck) []store.RunItem {
	out := make([]store.RunItem, 0, len(parts))
	for _, p := range parts {
		outcome := "verified"
		if !p.OK {
			outcome = "failed"
		}
		out = append(out, store.RunItem{Coordinate: p.Name, Outcome: outcome, Detail: p.Error})
	}
	return out
}
