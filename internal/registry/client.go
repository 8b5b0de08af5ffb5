// Package registry looks up the newest published version of an artifact in a
// Maven-layout repository.
package registry

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BadgerOps/jarsync/internal/manifest"
	"github.com/BadgerOps/jarsync/internal/safety"
)

// MetadataFile is the per-artifact metadata document name.
const MetadataFile = "maven-metadata.xml"

// DefaultMaxMetadataBytes bounds metadata document reads.
const DefaultMaxMetadataBytes = 1 << 20

// Kind classifies a lookup outcome.
type Kind int

const (
	// Found means a latest or release version was read.
	Found Kind = iota
	// NoData means the registry answered but had no version to offer.
	NoData
	// NetworkError covers transport failures, timeouts and error statuses.
	NetworkError
	// ParseError means the metadata document was not usable XML.
	ParseError
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case NoData:
		return "no-data"
	case NetworkError:
		return "network-error"
	case ParseError:
		return "parse-error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Result is the outcome of one lookup. Callers that only care whether a
// version is known use Version or Failed; Kind and Err keep the cause.
type Result struct {
	Coordinate manifest.Coordinate
	Latest     string
	Kind       Kind
	Err        error
	URL        string
}

// Version returns the latest known version, if any.
func (r Result) Version() (string, bool) {
	return r.Latest, r.Kind == Found
}

// Failed reports whether the lookup produced no version.
func (r Result) Failed() bool {
	return r.Kind != Found
}

// Options configures a Client.
type Options struct {
	BaseURL          string
	Timeout          time.Duration
	MaxMetadataBytes int64
}

// Client reads maven-metadata.xml documents. A lookup is a single request
// with no retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxBytes   int64
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a registry client.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	base, err := safety.ValidateBaseURL(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("registry base url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := opts.MaxMetadataBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMetadataBytes
	}
	return &Client{
		httpClient: safety.NewHTTPClient(opts.Timeout),
		baseURL:    base,
		maxBytes:   maxBytes,
		logger:     logger,
		userAgent:  "jarsync/1.0",
	}, nil
}

// MetadataURL returns {base}/{group/path}/{artifactId}/maven-metadata.xml.
func (c *Client) MetadataURL(coord manifest.Coordinate) string {
	return safety.JoinURL(c.baseURL, coord.GroupPath(), coord.ArtifactID, MetadataFile)
}

// FetchLatest looks up the newest version of coord. It never returns an
// error; failures are reported through the Result.
func (c *Client) FetchLatest(ctx context.Context, coord manifest.Coordinate) Result {
	res := Result{Coordinate: coord, URL: c.MetadataURL(coord)}

	data, err := c.get(ctx, res.URL)
	if err != nil {
		res.Err = err
		res.Kind = NetworkError
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			res.Kind = NoData
		}
		c.logger.Debug("metadata lookup failed", "artifact", coord.Key(), "kind", res.Kind, "error", err)
		return res
	}

	latest, err := ParseLatest(data)
	switch {
	case err != nil:
		res.Kind = ParseError
		res.Err = err
	case latest == "":
		res.Kind = NoData
		res.Err = errors.New("metadata lists neither latest nor release")
	default:
		res.Kind = Found
		res.Latest = latest
	}

	c.logger.Debug("metadata lookup", "artifact", coord.Key(), "kind", res.Kind, "latest", res.Latest)
	return res
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := safety.ReadAllWithLimit(resp.Body, c.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	return data, nil
}

// StatusError is a non-2xx registry response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry returned %s", e.Status)
}

type metadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest      string   `xml:"latest"`
		Release     string   `xml:"release"`
		Versions    []string `xml:"versions>version"`
		LastUpdated string   `xml:"lastUpdated"`
	} `xml:"versioning"`
}

// ParseLatest extracts versioning/latest from a metadata document, falling
// back to versioning/release. An empty string with a nil error means the
// document has neither.
func ParseLatest(data []byte) (string, error) {
	var md metadata
	if err := manifest.NewDecoder(bytes.NewReader(data)).Decode(&md); err != nil {
		return "", fmt.Errorf("parsing metadata: %w", err)
	}
	if v := strings.TrimSpace(md.Versioning.Latest); v != "" {
		return v, nil
	}
	return strings.TrimSpace(md.Versioning.Release), nil
}
