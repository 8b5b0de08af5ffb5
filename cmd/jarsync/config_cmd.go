package main

import (
	"fmt"

	"github.com/BadgerOps/jarsync/internal/config"
	"github.com/spf13/cobra"
)

var configInitPath string

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage jarsync configuration. Subcommands print the effective
configuration or write a default config file to start from.`,
		Example: `  jarsync config show
  jarsync config init --path jarsync.yaml`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration: the loaded config file (or the
defaults when none is found) with command-line overrides applied. Output
is TOML when the loaded file is a .toml file and YAML otherwise.`,
		Example: `  jarsync config show
  jarsync config show --config /etc/jarsync/jarsync.yaml`,
		RunE: configShowRun,
	}

	return cmd
}

func configShowRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	data, err := config.Marshal(globalCfg, cfgPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfgPath != "" {
		fmt.Fprintf(out, "# loaded from %s\n", cfgPath)
	} else {
		fmt.Fprintln(out, "# defaults (no config file found)")
	}
	fmt.Fprint(out, string(data))

	return nil
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write the default configuration to a file, as TOML when the path ends in
.toml and YAML otherwise. An existing file is never overwritten.`,
		Example: `  jarsync config init
  jarsync config init --path ~/.config/jarsync/jarsync.yaml`,
		RunE: configInitRun,
	}

	cmd.Flags().StringVar(&configInitPath, "path", "jarsync.yaml", "where to write the config file")

	return cmd
}

func configInitRun(cmd *cobra.Command, args []string) error {
	if err := config.Write(config.DefaultConfig(), configInitPath); err != nil {
		return err
	}
	logger.Info("config file written", "path", configInitPath)
	fmt.Fprintf(output(cmd), "Wrote %s\n", configInitPath)
	return nil
}
