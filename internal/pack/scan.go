package pack

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BadgerOps/jarsync/internal/safety"
)

// Scan walks root and returns every regular file beneath it. RelPath is
// relative to root's parent, so entries from a store at ./lib are archived
// as lib/<bucket>/<file>. Hidden files (including in-progress downloads)
// are skipped.
func Scan(root string) ([]FileEntry, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	fi, err := os.Stat(rootAbs)
	if err != nil {
		return nil, fmt.Errorf("store directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("store path %s is not a directory", root)
	}
	parent := filepath.Dir(rootAbs)

	var entries []FileEntry
	err = filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != rootAbs {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		name, err := safety.ArchiveName(rel)
		if err != nil {
			return err
		}
		entries = append(entries, FileEntry{
			AbsPath: path,
			RelPath: name,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return entries, nil
}

// TotalSize sums the sizes of entries.
func TotalSize(entries []FileEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}
