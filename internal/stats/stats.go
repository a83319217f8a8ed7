// Package stats accumulates per-record outcomes of the image pipeline into
// batch, run and collection-level summaries. Everything here is a value type.
package stats

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/siva27neelam/story-telling/pkg/enums"
)

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the result of processing a single record or object.
type Outcome struct {
	Kind  OutcomeKind
	Bytes int64
	Err   error
}

func Succeeded(bytes int64) Outcome { return Outcome{Kind: OutcomeSuccess, Bytes: bytes} }

func Skipped() Outcome { return Outcome{Kind: OutcomeSkipped} }

func Failed(err error) Outcome { return Outcome{Kind: OutcomeError, Err: err} }

// BatchStats counts the outcomes of one batch.
type BatchStats struct {
	Success    int   `json:"success_count"`
	Error      int   `json:"error_count"`
	Skipped    int   `json:"skipped_count"`
	TotalBytes int64 `json:"total_bytes"`
}

// Add folds one outcome into the batch. Bytes only count for successes.
func (b *BatchStats) Add(o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		b.Success++
		b.TotalBytes += o.Bytes
	case OutcomeSkipped:
		b.Skipped++
	default:
		b.Error++
	}
}

func (b BatchStats) Processed() int {
	return b.Success + b.Error + b.Skipped
}

// Fold reduces a slice of outcomes to batch counters.
func Fold(outcomes []Outcome) BatchStats {
	var b BatchStats
	for _, o := range outcomes {
		b.Add(o)
	}
	return b
}

// RunStats is the running total for one collection across batches.
type RunStats struct {
	Success    int   `json:"success_count"`
	Error      int   `json:"error_count"`
	Skipped    int   `json:"skipped_count"`
	TotalBytes int64 `json:"total_bytes"`
	Batches    int   `json:"batches"`
}

func (r *RunStats) Merge(b BatchStats) {
	r.Success += b.Success
	r.Error += b.Error
	r.Skipped += b.Skipped
	r.TotalBytes += b.TotalBytes
	r.Batches++
}

func (r RunStats) plus(o RunStats) RunStats {
	return RunStats{
		Success:    r.Success + o.Success,
		Error:      r.Error + o.Error,
		Skipped:    r.Skipped + o.Skipped,
		TotalBytes: r.TotalBytes + o.TotalBytes,
		Batches:    r.Batches + o.Batches,
	}
}

func (r RunStats) String() string {
	return fmt.Sprintf("success=%d errors=%d skipped=%d bytes=%s",
		r.Success, r.Error, r.Skipped, humanize.IBytes(uint64(max(r.TotalBytes, 0))))
}

// MigrationStats is the result of moving both collections to the object store.
type MigrationStats struct {
	Covers RunStats `json:"covers"`
	Pages  RunStats `json:"pages"`
}

func (m MigrationStats) Total() RunStats {
	return m.Covers.plus(m.Pages)
}

// For returns a pointer to the run stats of collection so callers can merge
// batches into it.
func (m *MigrationStats) For(collection enums.ImageCollection) *RunStats {
	if collection == enums.ImageCollectionPages {
		return &m.Pages
	}
	return &m.Covers
}

// CompressionStats summarizes a compression pass. TotalBytes holds bytes saved.
type CompressionStats struct {
	Covers RunStats `json:"covers"`
	Pages  RunStats `json:"pages"`
}

func (c CompressionStats) Total() RunStats {
	return c.Covers.plus(c.Pages)
}

func (c *CompressionStats) For(collection enums.ImageCollection) *RunStats {
	if collection == enums.ImageCollectionPages {
		return &c.Pages
	}
	return &c.Covers
}

// CompressionOutcome is what the remote optimizer did with one stored object.
// CompressedSize is nil when the optimizer never produced a result.
type CompressionOutcome struct {
	Key            string
	OriginalSize   int64
	CompressedSize *int64
	Decision       enums.CompressionDecision
	Err            error
}

// Saved returns the bytes removed by an applied compression.
func (c CompressionOutcome) Saved() int64 {
	if c.Decision != enums.CompressionApplied || c.CompressedSize == nil {
		return 0
	}
	return c.OriginalSize - *c.CompressedSize
}

var hundred = decimal.NewFromInt(100)

// Reduction is the exact size reduction as a percentage of the original.
func (c CompressionOutcome) Reduction() decimal.Decimal {
	if c.CompressedSize == nil || c.OriginalSize <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(c.OriginalSize - *c.CompressedSize).
		Mul(hundred).
		Div(decimal.NewFromInt(c.OriginalSize))
}

func (c CompressionOutcome) ReductionPercent() float64 {
	return c.Reduction().InexactFloat64()
}

func (c CompressionOutcome) Outcome() Outcome {
	switch {
	case c.Decision == enums.CompressionApplied:
		return Succeeded(c.Saved())
	case c.Decision.IsSkip():
		return Skipped()
	default:
		return Failed(c.Err)
	}
}
