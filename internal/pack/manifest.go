package pack

import "time"

// DistributionManifest describes a complete set of parts for transfer.
type DistributionManifest struct {
	Version     string         `json:"version"`
	ID          string         `json:"id"`
	Created     time.Time      `json:"created"`
	SourceHost  string         `json:"source_host"`
	Prefix      string         `json:"prefix"`
	SplitSize   int64          `json:"split_size"`
	Compression string         `json:"compression"`
	Parts       []ManifestPart `json:"parts"`
	TotalParts  int            `json:"total_parts"`
	TotalSize   int64          `json:"total_size"`
	FileCount   int            `json:"file_count"`
}

// ManifestPart describes one archive.
type ManifestPart struct {
	Index       int            `json:"index"`
	Name        string         `json:"name"`
	Size        int64          `json:"size"`         // archive size on disk
	ContentSize int64          `json:"content_size"` // uncompressed input bytes
	SHA256      string         `json:"sha256"`
	Files       []ManifestFile `json:"files"`
}

// ManifestFile is one archived file.
type ManifestFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}
