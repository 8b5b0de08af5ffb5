package main

import (
	"fmt"

	"github.com/BadgerOps/jarsync/internal/artifact"
	"github.com/BadgerOps/jarsync/internal/engine"
	"github.com/spf13/cobra"
)

var (
	fetchWorkers  int
	fetchStoreDir string
	fetchRetries  int
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download runtime dependencies into the local store",
		Long: `Download the jar of every runtime dependency declared in the project
manifest into the local store, one directory per bucket (javafx, rag,
text-component, others by default).

Dependencies with the build-only scope (provided by default) are skipped.
Files already present in the store are not downloaded again. Failed
downloads are listed at the end and make the command exit with status 2.`,
		Example: `  jarsync fetch
  jarsync fetch --store-dir /srv/jars --workers 4
  jarsync fetch --retries 3`,
		RunE: fetchRun,
	}

	cmd.Flags().IntVar(&fetchWorkers, "workers", 0, "concurrent downloads (overrides registry.workers)")
	cmd.Flags().StringVar(&fetchStoreDir, "store-dir", "", "artifact store directory (overrides store.dir)")
	cmd.Flags().IntVar(&fetchRetries, "retries", 0, "download attempts per artifact (overrides registry.retry_attempts)")

	return cmd
}

func fetchRun(cmd *cobra.Command, args []string) error {
	if fetchWorkers > 0 {
		globalCfg.Registry.Workers = fetchWorkers
	}
	if fetchStoreDir != "" {
		globalCfg.Store.Dir = fetchStoreDir
	}
	if fetchRetries > 0 {
		globalCfg.Registry.RetryAttempts = fetchRetries
	}

	m, err := newManager()
	if err != nil {
		return err
	}
	m.SetProgress(progressPrinter(output(cmd)))

	report, err := m.Fetch(cmd.Context())
	if err != nil {
		return err
	}

	engine.WriteFetchSummary(output(cmd), report)

	if report.HasFailures() {
		return fmt.Errorf("%d downloads failed: %w", report.Count(artifact.Failed), errItemFailures)
	}
	return nil
}
