package pack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Compression methods for archive entries.
const (
	CompressionDeflate = "deflate"
	CompressionZstd    = "zstd"
	CompressionStore   = "store"
)

// ReadmeName is the human-readable instructions file written next to the parts.
const ReadmeName = "TRANSFER-README.txt"

// WriterOptions configures a Writer.
type WriterOptions struct {
	OutputDir   string
	Prefix      string
	Compression string
	SplitSize   int64 // recorded in the manifest
}

// Writer seals planned parts to disk.
type Writer struct {
	opts   WriterOptions
	method uint16
	logger *slog.Logger
}

// ArchiveInfo describes one written part.
type ArchiveInfo struct {
	Index       int
	Name        string
	Path        string
	Size        int64
	ContentSize int64
	SHA256      string
	Files       []ManifestFile
}

// Result summarizes a Write call.
type Result struct {
	Archives     []ArchiveInfo
	ManifestPath string
	Manifest     *DistributionManifest
	Removed      []string // parts left by an earlier run with more parts
}

// NewWriter validates options and creates a Writer.
func NewWriter(opts WriterOptions, logger *slog.Logger) (*Writer, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.Prefix == "" || strings.ContainsAny(opts.Prefix, `/\`) {
		return nil, fmt.Errorf("invalid archive prefix %q", opts.Prefix)
	}
	method, err := zipMethod(opts.Compression)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{opts: opts, method: method, logger: logger}, nil
}

func zipMethod(compression string) (uint16, error) {
	switch compression {
	case "", CompressionDeflate:
		return zip.Deflate, nil
	case CompressionZstd:
		return zstd.ZipMethodWinZip, nil
	case CompressionStore:
		return zip.Store, nil
	}
	return 0, fmt.Errorf("unsupported compression %q (deflate, zstd or store)", compression)
}

// PartName returns "{prefix}-part{NN}.zip".
func PartName(prefix string, index int) string {
	return fmt.Sprintf("%s-part%02d.zip", prefix, index)
}

// ManifestName returns the distribution manifest file name for prefix.
func ManifestName(prefix string) string {
	return prefix + "-manifest.json"
}

// Write seals every part in order, then writes the distribution manifest,
// per-part .sha256 sidecars and the transfer README.
func (w *Writer) Write(ctx context.Context, parts []Part) (*Result, error) {
	if len(parts) == 0 {
		return nil, ErrNoFiles
	}
	if err := os.MkdirAll(w.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	res := &Result{}
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := w.writePart(p)
		if err != nil {
			return nil, err
		}
		res.Archives = append(res.Archives, *info)
		w.logger.Info("archive part sealed",
			"name", info.Name,
			"files", len(info.Files),
			"content_size", info.ContentSize,
			"archive_size", info.Size,
		)
	}

	removed, err := w.removeStaleParts(len(parts))
	if err != nil {
		return nil, err
	}
	res.Removed = removed

	manifest := w.buildManifest(res.Archives)
	manifestPath := filepath.Join(w.opts.OutputDir, ManifestName(w.opts.Prefix))
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	readmePath := filepath.Join(w.opts.OutputDir, ReadmeName)
	if err := os.WriteFile(readmePath, []byte(generateReadme(manifest)), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", ReadmeName, err)
	}

	res.ManifestPath = manifestPath
	res.Manifest = manifest
	return res, nil
}

// removeStaleParts deletes "{prefix}-partNN.zip" files (and their sidecars)
// numbered above keep, so the output directory only holds the current set.
func (w *Writer) removeStaleParts(keep int) ([]string, error) {
	entries, err := os.ReadDir(w.opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("reading output directory: %w", err)
	}
	var removed []string
	for _, e := range entries {
		idx, ok := partIndex(w.opts.Prefix, e.Name())
		if !ok || idx <= keep || e.IsDir() {
			continue
		}
		path := filepath.Join(w.opts.OutputDir, e.Name())
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("removing stale part %s: %w", e.Name(), err)
		}
		if err := os.Remove(path + ".sha256"); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing stale sidecar for %s: %w", e.Name(), err)
		}
		w.logger.Warn("removed stale archive part", "name", e.Name())
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// partIndex parses the NN of "{prefix}-partNN.zip".
func partIndex(prefix, name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, prefix+"-part")
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, ".zip")
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (w *Writer) writePart(p Part) (info *ArchiveInfo, err error) {
	name := PartName(w.opts.Prefix, p.Index)
	path := filepath.Join(w.opts.OutputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating archive %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	files := make([]ManifestFile, 0, len(p.Entries))
	for _, e := range p.Entries {
		sum, err := w.addFile(zw, e)
		if err != nil {
			return nil, fmt.Errorf("adding %s to %s: %w", e.RelPath, name, err)
		}
		files = append(files, ManifestFile{Path: e.RelPath, Size: e.Size, SHA256: sum})
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing zip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing archive file: %w", err)
	}

	hash, size, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hashing archive: %w", err)
	}
	sidecar := fmt.Sprintf("%s  %s\n", hash, name)
	if err := os.WriteFile(path+".sha256", []byte(sidecar), 0o644); err != nil {
		return nil, fmt.Errorf("writing sha256 sidecar: %w", err)
	}

	return &ArchiveInfo{
		Index:       p.Index,
		Name:        name,
		Path:        path,
		Size:        size,
		ContentSize: p.TotalSize,
		SHA256:      hash,
		Files:       files,
	}, nil
}

// addFile streams one file into the archive and returns its SHA256.
func (w *Writer) addFile(zw *zip.Writer, e FileEntry) (string, error) {
	src, err := os.Open(e.AbsPath)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = src.Close()
	}()

	stat, err := src.Stat()
	if err != nil {
		return "", err
	}
	header, err := zip.FileInfoHeader(stat)
	if err != nil {
		return "", err
	}
	header.Name = e.RelPath
	header.Method = w.method

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, h), src); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (w *Writer) buildManifest(archives []ArchiveInfo) *DistributionManifest {
	hostname, _ := os.Hostname()
	m := &DistributionManifest{
		Version:     "1.0",
		ID:          uuid.NewString(),
		Created:     time.Now().UTC(),
		SourceHost:  hostname,
		Prefix:      w.opts.Prefix,
		SplitSize:   w.opts.SplitSize,
		Compression: w.compressionName(),
		TotalParts:  len(archives),
	}
	for _, a := range archives {
		m.Parts = append(m.Parts, ManifestPart{
			Index:       a.Index,
			Name:        a.Name,
			Size:        a.Size,
			ContentSize: a.ContentSize,
			SHA256:      a.SHA256,
			Files:       a.Files,
		})
		m.TotalSize += a.ContentSize
		m.FileCount += len(a.Files)
	}
	return m
}

func (w *Writer) compressionName() string {
	if w.opts.Compression == "" {
		return CompressionDeflate
	}
	return w.opts.Compression
}

// hashFile computes the SHA256 of a file, returning hex string and size.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// generateReadme creates the human-readable README for transfer media.
func generateReadme(m *DistributionManifest) string {
	var b strings.Builder
	b.WriteString("OFFLINE DEPENDENCY PACKAGE\n")
	b.WriteString("==========================\n")
	b.WriteString(fmt.Sprintf("Created: %s\n", m.Created.Format("2006-01-02 15:04 UTC")))
	b.WriteString(fmt.Sprintf("Source: %s\n", m.SourceHost))
	b.WriteString(fmt.Sprintf("Parts: %d (max %s of content each)\n", m.TotalParts, humanize.IBytes(uint64(m.SplitSize))))
	b.WriteString(fmt.Sprintf("Total size: %s\n", humanize.IBytes(uint64(m.TotalSize))))
	b.WriteString(fmt.Sprintf("Files: %d\n", m.FileCount))
	b.WriteString("\nParts included:\n")
	for _, p := range m.Parts {
		b.WriteString(fmt.Sprintf("  - %s (%d files, %s)\n", p.Name, len(p.Files), humanize.IBytes(uint64(p.Size))))
	}
	b.WriteString("\nTO INSTALL:\n")
	b.WriteString("1. Copy every part and " + ManifestName(m.Prefix) + " to the offline machine\n")
	b.WriteString("2. Run: jarsync verify --from <dir>\n")
	b.WriteString("3. Extract each part into the project root; files land under their bucket directories\n")
	if m.Compression == CompressionZstd {
		b.WriteString("\nParts use zstd entries (zip method 93); extract with jarsync or a zstd-aware unzip.\n")
	}
	b.WriteString("\nIF A PART IS CORRUPT:\n")
	b.WriteString("- verify names the part(s) that failed\n")
	b.WriteString("- Re-copy only those parts from the source machine\n")
	return b.String()
}
