// Package pack partitions the artifact store into size-capped parts and
// writes them as numbered zip archives for offline transfer.
package pack

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidCap is returned when the part size cap is not positive.
	ErrInvalidCap = errors.New("part size cap must be positive")
	// ErrNoFiles is returned when there is nothing to pack.
	ErrNoFiles = errors.New("no files to pack")
)

// FileEntry is one file to pack. Size is read once at scan time.
type FileEntry struct {
	AbsPath string
	RelPath string // slash-separated name inside the archive
	Size    int64
}

// Part is one sealed batch of files.
type Part struct {
	Index     int // 1-based, in creation order
	Entries   []FileEntry
	TotalSize int64
}

// Plan partitions files into parts whose total size stays within capBytes.
//
// Files are taken largest first. A part is sealed when adding the next file
// to a non-empty part would exceed the cap; a single file larger than the cap
// therefore gets a part of its own rather than being dropped or split.
// Equal-sized files keep their input order, so the result is stable for a
// given input ordering and cap.
func Plan(files []FileEntry, capBytes int64) ([]Part, error) {
	if capBytes <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCap, capBytes)
	}

	sorted := make([]FileEntry, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Size > sorted[j].Size
	})

	var parts []Part
	var current []FileEntry
	var running int64

	seal := func() {
		parts = append(parts, Part{
			Index:     len(parts) + 1,
			Entries:   current,
			TotalSize: running,
		})
		current = nil
		running = 0
	}

	for _, f := range sorted {
		if len(current) > 0 && running+f.Size > capBytes {
			seal()
		}
		current = append(current, f)
		running += f.Size
	}
	if len(current) > 0 {
		seal()
	}

	return parts, nil
}

// Oversized reports whether the part exceeds capBytes, which only happens
// for a part holding a single file larger than the cap.
func (p Part) Oversized(capBytes int64) bool {
	return p.TotalSize > capBytes
}
