package main

import (
	"fmt"

	"github.com/BadgerOps/jarsync/internal/engine"
	"github.com/spf13/cobra"
)

var checkWorkers int

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check declared dependencies for newer versions",
		Long: `Check every dependency declared in the project manifest against the
remote repository's maven-metadata.xml and report which ones have a newer
version available.

Versions written as ${property} are resolved from the manifest's
<properties> block. Dependencies that cannot be resolved or looked up are
reported as "could not check" and make the command exit with status 2.`,
		Example: `  jarsync check
  jarsync check --manifest app/pom.xml
  jarsync check --workers 8 --log-level debug`,
		RunE: checkRun,
	}

	cmd.Flags().IntVar(&checkWorkers, "workers", 0, "concurrent lookups (overrides registry.workers)")

	return cmd
}

func checkRun(cmd *cobra.Command, args []string) error {
	if checkWorkers > 0 {
		globalCfg.Registry.Workers = checkWorkers
	}

	m, err := newManager()
	if err != nil {
		return err
	}
	m.SetProgress(progressPrinter(output(cmd)))

	report, err := m.CheckUpdates(cmd.Context())
	if err != nil {
		return err
	}

	engine.WriteCheckSummary(output(cmd), report)

	if report.HasFailures() {
		return fmt.Errorf("%d dependencies could not be checked: %w", report.Count(engine.CheckFailed), errItemFailures)
	}
	return nil
}
