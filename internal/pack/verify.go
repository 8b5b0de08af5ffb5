package pack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BadgerOps/jarsync/internal/safety"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// PartCheck is the verification outcome for one part.
type PartCheck struct {
	Name  string
	OK    bool
	Error string
}

// VerifyReport summarizes a verification run.
type VerifyReport struct {
	Manifest *DistributionManifest
	Parts    []PartCheck
}

// Failed returns the checks that did not pass.
func (r *VerifyReport) Failed() []PartCheck {
	var out []PartCheck
	for _, p := range r.Parts {
		if !p.OK {
			out = append(out, p)
		}
	}
	return out
}

// ReadManifest loads the distribution manifest for prefix from dir.
func ReadManifest(dir, prefix string) (*DistributionManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName(prefix)))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m DistributionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Verify checks every part listed in the manifest: present, matching
// checksum, and containing exactly the listed entries. A missing or corrupt
// part is reported, not returned as an error.
func Verify(ctx context.Context, dir, prefix string) (*VerifyReport, error) {
	m, err := ReadManifest(dir, prefix)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{Manifest: m}
	for _, p := range m.Parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		check := PartCheck{Name: p.Name}
		if err := verifyPart(filepath.Join(dir, p.Name), p); err != nil {
			check.Error = err.Error()
		} else {
			check.OK = true
		}
		report.Parts = append(report.Parts, check)
	}
	return report, nil
}

func verifyPart(path string, p ManifestPart) error {
	hash, _, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}
	if hash != p.SHA256 {
		return fmt.Errorf("expected sha256 %s, got %s", p.SHA256, hash)
	}

	zr, err := openArchive(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = zr.Close()
	}()

	want := make(map[string]int64, len(p.Files))
	for _, f := range p.Files {
		want[f.Path] = f.Size
	}
	if len(zr.File) != len(want) {
		return fmt.Errorf("archive has %d entries, manifest lists %d", len(zr.File), len(want))
	}
	for _, f := range zr.File {
		size, ok := want[f.Name]
		if !ok {
			return fmt.Errorf("unexpected entry %s", f.Name)
		}
		if int64(f.UncompressedSize64) != size {
			return fmt.Errorf("entry %s is %d bytes, manifest says %d", f.Name, f.UncompressedSize64, size)
		}
	}
	return nil
}

func openArchive(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	return zr, nil
}

// Extract verifies the parts in dir and unpacks them under dest. Nothing is
// extracted if any part fails verification.
func Extract(ctx context.Context, dir, prefix, dest string) (*VerifyReport, int, error) {
	report, err := Verify(ctx, dir, prefix)
	if err != nil {
		return nil, 0, err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return report, 0, fmt.Errorf("%d part(s) failed verification", len(failed))
	}

	extracted := 0
	for _, p := range report.Manifest.Parts {
		n, err := extractPart(ctx, filepath.Join(dir, p.Name), dest)
		extracted += n
		if err != nil {
			return report, extracted, fmt.Errorf("extracting %s: %w", p.Name, err)
		}
	}
	return report, extracted, nil
}

func extractPart(ctx context.Context, path, dest string) (int, error) {
	zr, err := openArchive(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = zr.Close()
	}()

	n := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		target, err := safety.SafeJoinUnder(dest, f.Name)
		if err != nil {
			return n, err
		}
		if err := extractFile(f, target); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
