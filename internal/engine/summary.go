package engine

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BadgerOps/jarsync/internal/artifact"
	"github.com/BadgerOps/jarsync/internal/store"
	"github.com/dustin/go-humanize"
)

const rule = "======================================================================"

func banner(w io.Writer, title string) {
	pad := (len(rule) - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", pad), title)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// WriteCheckSummary renders the update summary. Output depends only on the
// report contents, in declaration order.
func WriteCheckSummary(w io.Writer, r *CheckReport) {
	banner(w, "UPDATE SUMMARY")

	updates := r.Updates()
	if len(updates) > 0 {
		fmt.Fprintf(w, "[UPDATES AVAILABLE] %d dependencies have newer versions:\n\n", len(updates))
		for _, it := range updates {
			fmt.Fprintf(w, "  %s\n", it.Coordinate.Key())
			fmt.Fprintf(w, "    Current: %s\n", it.Coordinate.Version)
			fmt.Fprintf(w, "    Latest:  %s\n\n", it.Latest)
		}
	} else {
		fmt.Fprintln(w, "[OK] All dependencies are up to date!")
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "[INFO] Up to date: %d\n", r.Count(UpToDate))
	fmt.Fprintf(w, "[INFO] Updates available: %d\n", r.Count(UpdateAvailable))
	if failures := r.Failures(); len(failures) > 0 {
		fmt.Fprintf(w, "[WARNING] Could not check: %d\n", len(failures))
		for _, it := range failures {
			fmt.Fprintf(w, "  %s (%s)\n", it.Coordinate.String(), it.Reason)
		}
	}
	fmt.Fprintln(w, rule)
}

// WriteFetchSummary renders the totals and the failure list. Per-item lines
// are left to the progress callback.
func WriteFetchSummary(w io.Writer, r *FetchReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule[:50])
	fmt.Fprintln(w, "[INFO] Download complete!")
	fmt.Fprintf(w, "[INFO] Downloaded: %d (%s), Skipped: %d, Failed: %d\n",
		r.Count(artifact.Downloaded), humanize.IBytes(uint64(r.BytesDownloaded())),
		r.Count(artifact.SkippedExists), r.Count(artifact.Failed))
	if len(r.Excluded) > 0 {
		fmt.Fprintf(w, "[INFO] Build-only dependencies excluded: %d\n", len(r.Excluded))
	}
	fmt.Fprintln(w, rule[:50])

	if failures := r.Failures(); len(failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "[WARNING] Some downloads failed:")
		for _, it := range failures {
			fmt.Fprintf(w, "  %s: %s\n", it.Coordinate.String(), it.Reason)
		}
	}
}

// WritePackSummary renders the list of written parts.
func WritePackSummary(w io.Writer, r *PackReport) {
	if r.NothingToDo {
		fmt.Fprintf(w, "[INFO] No files found in %s, nothing to do.\n", r.StoreDir)
		return
	}

	fmt.Fprintf(w, "[INFO] Total size: %s\n", humanize.IBytes(uint64(r.TotalSize)))
	fmt.Fprintf(w, "[INFO] Number of files: %d\n\n", r.Files)
	for _, a := range r.Archives {
		fmt.Fprintf(w, "[OK] %s (%d files, content %s, compressed %s)\n",
			a.Name, len(a.Files), humanize.IBytes(uint64(a.ContentSize)), humanize.IBytes(uint64(a.Size)))
	}
	for _, name := range r.Oversized {
		fmt.Fprintf(w, "[WARNING] %s holds a single file larger than %s\n", name, humanize.IBytes(uint64(r.SplitSize)))
	}
	for _, name := range r.Removed {
		fmt.Fprintf(w, "[INFO] Removed stale part %s\n", name)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule[:50])
	fmt.Fprintf(w, "[SUCCESS] Created %d archive parts\n", len(r.Archives))
	fmt.Fprintf(w, "[INFO] Manifest: %s\n", r.ManifestPath)
	fmt.Fprintln(w, rule[:50])
}

// WriteVerifySummary renders per-part verification results.
func WriteVerifySummary(w io.Writer, r *VerifyReport) {
	for _, p := range r.Parts {
		if p.OK {
			fmt.Fprintf(w, "[OK] %s\n", p.Name)
		} else {
			fmt.Fprintf(w, "[FAILED] %s: %s\n", p.Name, p.Error)
		}
	}
	failed := len(r.Failed())
	fmt.Fprintf(w, "\n[INFO] Parts verified: %d, failed: %d\n", len(r.Parts)-failed, failed)
	if r.Extracted > 0 {
		fmt.Fprintf(w, "[INFO] Files extracted: %d\n", r.Extracted)
	}
}

// WriteHistory renders recorded runs as a fixed-width table.
func WriteHistory(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-6s %-7s %-20s %-9s %-8s %-8s %-8s %s\n",
		"ID", "Kind", "Started", "Status", "OK", "Changed", "Failed", "Duration")
	for _, r := range runs {
		dur := "-"
		if !r.EndTime.IsZero() && r.EndTime.After(r.StartTime) {
			dur = r.EndTime.Sub(r.StartTime).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%-6d %-7s %-20s %-9s %-8d %-8d %-8d %s\n",
			r.ID, r.Kind, r.StartTime.Local().Format("2006-01-02 15:04:05"), r.Status,
			r.ItemsOK, r.ItemsChanged, r.ItemsFailed, dur)
	}
}

// WriteRunDetail renders one run with its recorded items and, for pack
// runs, the archive parts it wrote.
func WriteRunDetail(w io.Writer, run *store.Run, items []store.RunItem, archives []store.Archive) {
	fmt.Fprintf(w, "Run %d: %s %s, started %s\n",
		run.ID, run.Kind, run.Status, run.StartTime.Local().Format("2006-01-02 15:04:05"))
	if run.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n", run.ErrorMessage)
	}
	fmt.Fprintln(w)

	if len(items) == 0 {
		fmt.Fprintln(w, "No recorded items.")
	} else {
		fmt.Fprintf(w, "%-12s %-50s %s\n", "Outcome", "Item", "Detail")
		for _, it := range items {
			fmt.Fprintf(w, "%-12s %-50s %s\n", it.Outcome, it.Coordinate, it.Detail)
		}
	}

	if len(archives) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-28s %-10s %-6s %-9s %s\n", "Archive", "Size", "Files", "Verified", "SHA256")
	for _, a := range archives {
		verified := "no"
		if a.Verified {
			verified = "yes"
		}
		fmt.Fprintf(w, "%-28s %-10s %-6d %-9s %s\n",
			a.Name, humanize.IBytes(uint64(a.Size)), a.FileCount, verified, a.SHA256)
	}
}
