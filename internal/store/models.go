package store

import "time"

// Run kinds
const (
	KindCheck  = "check"
	KindFetch  = "fetch"
	KindPack   = "pack"
	KindVerify = "verify"
)

// Run statuses
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Run records one execution of a flow. The three counters mean
// up-to-date/updates/failed for checks, skipped/downloaded/failed for
// fetches and files/parts/corrupt for pack and verify.
type Run struct {
	ID           int64
	Kind         string
	Manifest     string
	StartTime    time.Time
	EndTime      time.Time
	ItemsOK      int
	ItemsChanged int
	ItemsFailed  int
	Bytes        int64
	Status       string
	ErrorMessage string
}

// RunItem is the per-coordinate outcome of a run
type RunItem struct {
	ID         int64
	RunID      int64
	Coordinate string
	Outcome    string // "update", "up-to-date", "downloaded", "skipped", "failed"
	Detail     string // latest version, destination path or failure reason
}

// Archive records a sealed part produced by a pack run
type Archive struct {
	ID         int64
	RunID      int64
	Name       string
	SHA256     string
	Size       int64
	FileCount  int
	Verified   bool
	VerifiedAt time.Time
}
