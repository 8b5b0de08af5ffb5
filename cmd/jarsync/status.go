package main

import (
	"fmt"

	"github.com/BadgerOps/jarsync/internal/engine"
	"github.com/BadgerOps/jarsync/internal/store"
	"github.com/spf13/cobra"
)

var (
	statusKind  string
	statusLimit int
	statusRunID int64
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs from the run history",
		Long: `Show the most recent check, fetch, pack and verify runs recorded in the
run history database (store.db_path). Use --run to list the per-item
outcomes of a single run, and the archive parts written by a pack run.`,
		Example: `  jarsync status
  jarsync status --kind fetch --limit 5
  jarsync status --run 12`,
		RunE: statusRunE,
	}

	cmd.Flags().StringVar(&statusKind, "kind", "", "only show runs of this kind (check, fetch, pack, verify)")
	cmd.Flags().IntVar(&statusLimit, "limit", 10, "maximum number of runs to show")
	cmd.Flags().Int64Var(&statusRunID, "run", 0, "show the items of this run")

	return cmd
}

func statusRunE(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}

	out := output(cmd)

	if statusRunID > 0 {
		run, err := m.Run(statusRunID)
		if err != nil {
			return fmt.Errorf("run %d: %w", statusRunID, err)
		}
		items, err := m.RunItems(run.ID)
		if err != nil {
			return err
		}
		var archives []store.Archive
		if run.Kind == store.KindPack {
			if archives, err = m.Archives(run.ID); err != nil {
				return err
			}
		}
		engine.WriteRunDetail(out, run, items, archives)
		return nil
	}

	runs, err := m.History(statusKind, statusLimit)
	if err != nil {
		return err
	}
	engine.WriteHistory(out, runs)
	return nil
}
