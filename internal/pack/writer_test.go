package pack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupStore creates lib/<bucket>/<file> under a temp project root.
func setupStore(t *testing.T, files map[string]int) (projectRoot, storeDir string) {
	t.Helper()
	projectRoot = t.TempDir()
	storeDir = filepath.Join(projectRoot, "lib")
	for rel, size := range files {
		p := filepath.Join(storeDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		content := bytes.Repeat([]byte(filepath.Base(rel)[:1]), size)
		if err := os.WriteFile(p, content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return projectRoot, storeDir
}

func TestScan(t *testing.T) {
	_, storeDir := setupStore(t, map[string]int{
		"rag/lucene-core-9.9.1.jar":        30,
		"javafx/javafx-base-21.jar":        20,
		"others/.sqlite-jdbc.jar.123.part": 5,
	})
	if err := os.MkdirAll(filepath.Join(storeDir, "text-component"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Scan(storeDir)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(got), got)
	}
	if got[0].RelPath != "lib/javafx/javafx-base-21.jar" || got[0].Size != 20 {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].RelPath != "lib/rag/lucene-core-9.9.1.jar" || got[1].Size != 30 {
		t.Errorf("entry 1 = %+v", got[1])
	}
	if TotalSize(got) != 50 {
		t.Errorf("TotalSize = %d", TotalSize(got))
	}
}

func TestScanMissingDir(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing store")
	}
}

func writeParts(t *testing.T, storeDir, compression string, capBytes int64) (string, *Result) {
	t.Helper()
	files, err := Scan(storeDir)
	if err != nil {
		t.Fatal(err)
	}
	parts, err := Plan(files, capBytes)
	if err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()
	w, err := NewWriter(WriterOptions{
		OutputDir:   outDir,
		Prefix:      "pcm-libs",
		Compression: compression,
		SplitSize:   capBytes,
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	res, err := w.Write(context.Background(), parts)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	return outDir, res
}

var sampleStore = map[string]int{
	"javafx/javafx-controls-21.jar": 400,
	"rag/lucene-core-9.9.1.jar":     300,
	"rag/onnxruntime-1.16.jar":      250,
	"others/gson-2.10.jar":          100,
	"others/slf4j-api-2.0.jar":      50,
}

func TestWriteCreatesPartsAndManifest(t *testing.T) {
	_, storeDir := setupStore(t, sampleStore)
	outDir, res := writeParts(t, storeDir, CompressionDeflate, 500)

	// 400 | 300 | 250+100+50
	if len(res.Archives) != 3 {
		t.Fatalf("expected 3 archives, got %d", len(res.Archives))
	}
	for i, a := range res.Archives {
		if want := PartName("pcm-libs", i+1); a.Name != want {
			t.Errorf("archive %d name = %s, want %s", i, a.Name, want)
		}
		if _, err := os.Stat(filepath.Join(outDir, a.Name+".sha256")); err != nil {
			t.Errorf("missing sidecar for %s: %v", a.Name, err)
		}
	}
	if res.Archives[0].Name != "pcm-libs-part01.zip" {
		t.Errorf("unexpected first part name %s", res.Archives[0].Name)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "pcm-libs-manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m DistributionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if m.TotalParts != 3 || m.FileCount != 5 || m.TotalSize != 1100 {
		t.Errorf("manifest totals = parts %d files %d size %d", m.TotalParts, m.FileCount, m.TotalSize)
	}
	if m.ID == "" {
		t.Error("manifest id should be set")
	}

	readme, err := os.ReadFile(filepath.Join(outDir, ReadmeName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(readme), "pcm-libs-part03.zip") {
		t.Errorf("README does not list parts:\n%s", readme)
	}
}

func TestVerifyAndExtractRoundTrip(t *testing.T) {
	for _, compression := range []string{CompressionDeflate, CompressionZstd, CompressionStore} {
		t.Run(compression, func(t *testing.T) {
			_, storeDir := setupStore(t, sampleStore)
			outDir, _ := writeParts(t, storeDir, compression, 500)

			report, err := Verify(context.Background(), outDir, "pcm-libs")
			if err != nil {
				t.Fatalf("Verify() error: %v", err)
			}
			if failed := report.Failed(); len(failed) != 0 {
				t.Fatalf("unexpected failures: %+v", failed)
			}

			dest := t.TempDir()
			_, n, err := Extract(context.Background(), outDir, "pcm-libs", dest)
			if err != nil {
				t.Fatalf("Extract() error: %v", err)
			}
			if n != len(sampleStore) {
				t.Errorf("extracted %d files, want %d", n, len(sampleStore))
			}
			for rel, size := range sampleStore {
				fi, err := os.Stat(filepath.Join(dest, "lib", filepath.FromSlash(rel)))
				if err != nil {
					t.Errorf("missing %s: %v", rel, err)
					continue
				}
				if fi.Size() != int64(size) {
					t.Errorf("%s size = %d, want %d", rel, fi.Size(), size)
				}
			}
		})
	}
}

func TestVerifyDetectsCorruptAndMissingParts(t *testing.T) {
	_, storeDir := setupStore(t, sampleStore)
	outDir, res := writeParts(t, storeDir, CompressionDeflate, 500)

	if err := os.WriteFile(res.Archives[0].Path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(res.Archives[2].Path); err != nil {
		t.Fatal(err)
	}

	report, err := Verify(context.Background(), outDir, "pcm-libs")
	if err != nil {
		t.Fatal(err)
	}
	failed := report.Failed()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed parts, got %+v", failed)
	}
	if failed[0].Name != res.Archives[0].Name || failed[1].Name != res.Archives[2].Name {
		t.Errorf("unexpected failed parts %+v", failed)
	}

	dest := t.TempDir()
	if _, n, err := Extract(context.Background(), outDir, "pcm-libs", dest); err == nil || n != 0 {
		t.Errorf("Extract should refuse corrupt set, got n=%d err=%v", n, err)
	}
}

func TestVerifyMissingManifest(t *testing.T) {
	_, err := Verify(context.Background(), t.TempDir(), "pcm-libs")
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestNewWriterValidation(t *testing.T) {
	tests := []struct {
		name string
		opts WriterOptions
	}{
		{"no output", WriterOptions{Prefix: "p"}},
		{"bad prefix", WriterOptions{OutputDir: "out", Prefix: "a/b"}},
		{"empty prefix", WriterOptions{OutputDir: "out"}},
		{"bad compression", WriterOptions{OutputDir: "out", Prefix: "p", Compression: "rar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWriter(tt.opts, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteNoParts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "archives")
	w, err := NewWriter(WriterOptions{OutputDir: out, Prefix: "pcm-libs"}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(context.Background(), nil); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("Write(nil) error = %v, want ErrNoFiles", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output directory should not be created for an empty plan")
	}
}

func TestWriteRemovesStaleParts(t *testing.T) {
	_, storeDir := setupStore(t, sampleStore)
	files, err := Scan(storeDir)
	if err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()
	w, err := NewWriter(WriterOptions{OutputDir: outDir, Prefix: "pcm-libs"}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	// an earlier run with a smaller cap left more parts behind
	small, err := Plan(files, 300)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(context.Background(), small); err != nil {
		t.Fatalf("first Write() error: %v", err)
	}
	for _, name := range []string{"pcm-libs-part99.zip", "other-part07.zip", "pcm-libs-partXX.zip"} {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	large, err := Plan(files, 2000)
	if err != nil {
		t.Fatal(err)
	}
	res, err := w.Write(context.Background(), large)
	if err != nil {
		t.Fatalf("second Write() error: %v", err)
	}
	if len(res.Archives) != 1 {
		t.Fatalf("expected 1 archive, got %d", len(res.Archives))
	}

	tests := []struct {
		name   string
		exists bool
	}{
		{"pcm-libs-part01.zip", true},
		{"pcm-libs-part01.zip.sha256", true},
		{"pcm-libs-part02.zip", false},
		{"pcm-libs-part02.zip.sha256", false},
		{"pcm-libs-part99.zip", false},
		{"other-part07.zip", true},
		{"pcm-libs-partXX.zip", true},
	}
	for _, tt := range tests {
		_, err := os.Stat(filepath.Join(outDir, tt.name))
		if got := err == nil; got != tt.exists {
			t.Errorf("%s exists = %v, want %v", tt.name, got, tt.exists)
		}
	}
	if len(res.Removed) < 2 {
		t.Errorf("Removed = %v, want at least part02 and part99", res.Removed)
	}

	if _, err := Verify(context.Background(), outDir, "pcm-libs"); err != nil {
		t.Errorf("Verify() after rewrite error: %v", err)
	}
}

func TestPartIndex(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"pcm-libs-part01.zip", 1, true},
		{"pcm-libs-part120.zip", 120, true},
		{"pcm-libs-part01.zip.sha256", 0, false},
		{"pcm-libs-part.zip", 0, false},
		{"pcm-libs-part-1.zip", 0, false},
		{"pcm-libs-manifest.json", 0, false},
	}
	for _, tt := range tests {
		got, ok := partIndex("pcm-libs", tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("partIndex(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}
