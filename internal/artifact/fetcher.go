// Package artifact downloads dependency jars into a bucketed local store.
package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BadgerOps/jarsync/internal/download"
	"github.com/BadgerOps/jarsync/internal/manifest"
	"github.com/BadgerOps/jarsync/internal/safety"
)

// Status is the outcome class of a fetch.
type Status int

const (
	Downloaded Status = iota
	SkippedExists
	Failed
)

func (s Status) String() string {
	switch s {
	case Downloaded:
		return "downloaded"
	case SkippedExists:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome describes what Fetch did for one coordinate.
type Outcome struct {
	Coordinate manifest.Coordinate
	Status     Status
	Bucket     string
	Path       string
	URL        string
	Size       int64  // bytes written, or the existing file's size when skipped
	SHA256     string // set for downloads only
	Reason     string // set when Status is Failed
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	BaseURL    string
	StoreDir   string
	Rules      []Rule
	RetryCount int
}

// Fetcher downloads one artifact per coordinate into StoreDir/<bucket>/.
type Fetcher struct {
	client     *download.Client
	classifier *Classifier
	baseURL    string
	storeDir   string
	retryCount int
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetcherOptions, client *download.Client, logger *slog.Logger) (*Fetcher, error) {
	base, err := safety.ValidateBaseURL(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("registry base url: %w", err)
	}
	if opts.StoreDir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	classifier, err := NewClassifier(rules)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:     client,
		classifier: classifier,
		baseURL:    base,
		storeDir:   opts.StoreDir,
		retryCount: opts.RetryCount,
		logger:     logger,
	}, nil
}

// EnsureBuckets creates every bucket directory under the store.
func (f *Fetcher) EnsureBuckets() error {
	for _, b := range f.classifier.Buckets() {
		if err := os.MkdirAll(filepath.Join(f.storeDir, b), 0o755); err != nil {
			return fmt.Errorf("creating bucket %s: %w", b, err)
		}
	}
	return nil
}

// FileName returns "{artifactId}-{version}.jar".
func FileName(coord manifest.Coordinate) string {
	return coord.ArtifactID + "-" + coord.Version + ".jar"
}

// ArtifactURL returns {base}/{groupPath}/{artifactId}/{version}/{artifactId}-{version}.jar.
func (f *Fetcher) ArtifactURL(coord manifest.Coordinate) string {
	return safety.JoinURL(f.baseURL, coord.GroupPath(), coord.ArtifactID, coord.Version, FileName(coord))
}

// Destination returns the bucket and absolute destination path for coord.
func (f *Fetcher) Destination(coord manifest.Coordinate) (string, string, error) {
	name := FileName(coord)
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", "", fmt.Errorf("invalid artifact file name %q", name)
	}
	bucket := f.classifier.Bucket(coord)
	path, err := safety.SafeJoinUnder(f.storeDir, filepath.Join(bucket, name))
	if err != nil {
		return "", "", err
	}
	return bucket, path, nil
}

// Fetch downloads coord unless its destination already exists. It never
// returns an error; failures are reported in the Outcome.
func (f *Fetcher) Fetch(ctx context.Context, coord manifest.Coordinate) Outcome {
	return f.FetchWithProgress(ctx, coord, nil)
}

// FetchWithProgress is Fetch with a callback for bytes received during the
// transfer. onBytes may be nil.
func (f *Fetcher) FetchWithProgress(ctx context.Context, coord manifest.Coordinate, onBytes download.ProgressFunc) Outcome {
	out := Outcome{Coordinate: coord}

	if !coord.Resolved() {
		out.Status = Failed
		out.Reason = fmt.Sprintf("unresolved version %q", coord.Version)
		f.logger.Warn("unresolved_version", "artifact", coord.Key(), "version", coord.Version)
		return out
	}

	bucket, dest, err := f.Destination(coord)
	if err != nil {
		out.Status = Failed
		out.Reason = err.Error()
		return out
	}
	out.Bucket = bucket
	out.Path = dest
	out.URL = f.ArtifactURL(coord)

	if fi, err := os.Stat(dest); err == nil {
		out.Status = SkippedExists
		out.Size = fi.Size()
		f.logger.Debug("artifact already present", "artifact", coord.String(), "path", dest)
		return out
	}

	res, err := f.client.Download(ctx, download.DownloadOptions{
		URL:        out.URL,
		DestPath:   dest,
		RetryCount: f.retryCount,
		OnProgress: onBytes,
	})
	if err != nil {
		out.Status = Failed
		out.Reason = err.Error()
		f.logger.Error("artifact download failed", "artifact", coord.String(), "url", out.URL, "error", err)
		return out
	}

	out.Status = Downloaded
	out.Size = res.Size
	out.SHA256 = res.SHA256
	f.logger.Info("artifact downloaded",
		"artifact", coord.String(),
		"bucket", bucket,
		"size", res.Size,
		"attempts", res.Attempts,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return out
}

// SplitBuildOnly separates dependencies declared with the build-only scope
// from the ones that should be fetched. Order is preserved in both lists.
func SplitBuildOnly(deps []manifest.Coordinate, buildOnlyScope string) (fetch, excluded []manifest.Coordinate) {
	for _, d := range deps {
		if buildOnlyScope != "" && d.Scope == buildOnlyScope {
			excluded = append(excluded, d)
			continue
		}
		fetch = append(fetch, d)
	}
	return fetch, excluded
}
