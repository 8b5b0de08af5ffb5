package main

import (
	"github.com/BadgerOps/jarsync/internal/engine"
	"github.com/spf13/cobra"
)

var (
	packStoreDir    string
	packOutput      string
	packSplitSize   string
	packCompression string
	packPrefix      string
)

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Pack the local store into size-bounded zip parts",
		Long: `Pack every file in the local store into numbered zip parts for transfer
to offline machines. Files are placed largest first and a new part is
started whenever the next file would push the current one past the split
size; a single file larger than the split size gets a part of its own.

Alongside the parts, a JSON manifest with per-part and per-file SHA-256
checksums, a .sha256 file per part and a TRANSFER-README.txt are written.
An empty store is not an error: there is simply nothing to pack.`,
		Example: `  jarsync pack
  jarsync pack --split-size 100MB --output /mnt/usb
  jarsync pack --compression zstd`,
		RunE: packRun,
	}

	cmd.Flags().StringVar(&packStoreDir, "store-dir", "", "artifact store directory (overrides store.dir)")
	cmd.Flags().StringVar(&packOutput, "output", "", "output directory for parts (overrides export.output_dir)")
	cmd.Flags().StringVar(&packSplitSize, "split-size", "", "maximum content per part, e.g. 45MiB (overrides export.split_size)")
	cmd.Flags().StringVar(&packCompression, "compression", "", "deflate, zstd or store (overrides export.compression)")
	cmd.Flags().StringVar(&packPrefix, "prefix", "", "part file name prefix (overrides export.prefix)")

	return cmd
}

func packRun(cmd *cobra.Command, args []string) error {
	if packStoreDir != "" {
		globalCfg.Store.Dir = packStoreDir
	}
	if packOutput != "" {
		globalCfg.Export.OutputDir = packOutput
	}
	if packSplitSize != "" {
		globalCfg.Export.SplitSize = packSplitSize
	}
	if packCompression != "" {
		globalCfg.Export.Compression = packCompression
	}
	if packPrefix != "" {
		globalCfg.Export.Prefix = packPrefix
	}

	m, err := newManager()
	if err != nil {
		return err
	}

	report, err := m.Package(cmd.Context())
	if err != nil {
		return err
	}

	engine.WritePackSummary(output(cmd), report)
	return nil
}
