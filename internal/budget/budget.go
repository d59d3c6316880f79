// Package budget tracks the scan budget of one verification run.
//
// A Budget is created per run and threaded by pointer through every matcher
// call. It is not safe for concurrent use; runs are single-threaded and the
// decrement-before-continue order is what keeps the counters honest.
package budget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrExhausted is returned once the run has used up its bytes, files, or time.
var ErrExhausted = errors.New("scan budget exceeded")

// Reasons reported by Snapshot.
const (
	ReasonDeadline = "deadline"
	ReasonBytes    = "bytes"
	ReasonFiles    = "files"
	ReasonCanceled = "canceled"
)

// Limits configures a Budget. A zero or negative field means unlimited.
type Limits struct {
	MaxBytes     int64
	MaxFileBytes int64
	MaxFiles     int
	Timeout      time.Duration
}

// Budget holds the remaining scan allowance for one run.
type Budget struct {
	ctx context.Context
	now func() time.Time

	limits         Limits
	remainingBytes int64
	remainingFiles int
	deadline       time.Time

	consumedBytes int64
	visitedFiles  int
	reason        string
}

// Snapshot is a point-in-time view of a Budget for reports.
type Snapshot struct {
	RemainingBytes int64  `json:"remaining_bytes" yaml:"remaining_bytes"`
	RemainingFiles int    `json:"remaining_files" yaml:"remaining_files"`
	ConsumedBytes  int64  `json:"consumed_bytes" yaml:"consumed_bytes"`
	VisitedFiles   int    `json:"visited_files" yaml:"visited_files"`
	Exhausted      bool   `json:"exhausted" yaml:"exhausted"`
	Reason         string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// New creates a budget whose deadline starts now.
func New(ctx context.Context, l Limits) *Budget {
	return NewWithClock(ctx, l, time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock(ctx context.Context, l Limits, now func() time.Time) *Budget {
	if ctx == nil {
		ctx = context.Background()
	}
	if now == nil {
		now = time.Now
	}
	b := &Budget{
		ctx:            ctx,
		now:            now,
		limits:         l,
		remainingBytes: l.MaxBytes,
		remainingFiles: l.MaxFiles,
	}
	if l.Timeout > 0 {
		b.deadline = now().Add(l.Timeout)
	}
	return b
}

// Check must be called before each unit of scan work.
func (b *Budget) Check() error {
	if err := b.ctx.Err(); err != nil {
		return b.exhaust(ReasonCanceled)
	}
	if !b.deadline.IsZero() && !b.now().Before(b.deadline) {
		return b.exhaust(ReasonDeadline)
	}
	if b.limits.MaxBytes > 0 && b.remainingBytes <= 0 {
		return b.exhaust(ReasonBytes)
	}
	return nil
}

// CheckFile is Check plus the remaining-files counter, for directory walks.
func (b *Budget) CheckFile() error {
	if err := b.Check(); err != nil {
		return err
	}
	if b.limits.MaxFiles > 0 && b.remainingFiles <= 0 {
		return b.exhaust(ReasonFiles)
	}
	return nil
}

// Consume records n bytes read.
func (b *Budget) Consume(n int64) {
	if n <= 0 {
		return
	}
	b.consumedBytes += n
	if b.limits.MaxBytes > 0 {
		b.remainingBytes -= n
		if b.remainingBytes < 0 {
			b.remainingBytes = 0
		}
	}
}

// VisitFile records one file visited by a walk.
func (b *Budget) VisitFile() {
	b.visitedFiles++
	if b.limits.MaxFiles > 0 && b.remainingFiles > 0 {
		b.remainingFiles--
	}
}

// ReadFile checks the budget, reads at most MaxFileBytes from path, and
// charges the bytes actually read. truncated reports whether the file was
// longer than the per-file cap.
func (b *Budget) ReadFile(path string) (data []byte, truncated bool, err error) {
	if err := b.Check(); err != nil {
		return nil, false, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // read-only
	}()

	var r io.Reader = f
	if b.limits.MaxFileBytes > 0 {
		// One extra byte tells a file of exactly MaxFileBytes from a longer one.
		r = io.LimitReader(f, b.limits.MaxFileBytes+1)
	}
	data, err = io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	if b.limits.MaxFileBytes > 0 && int64(len(data)) > b.limits.MaxFileBytes {
		data = data[:b.limits.MaxFileBytes]
		truncated = true
	}
	b.Consume(int64(len(data)))
	return data, truncated, nil
}

// Exhausted reports whether the budget has been found exhausted.
func (b *Budget) Exhausted() bool {
	return b.reason != ""
}

// Snapshot returns the current counters.
func (b *Budget) Snapshot() Snapshot {
	return Snapshot{
		RemainingBytes: b.remainingBytes,
		RemainingFiles: b.remainingFiles,
		ConsumedBytes:  b.consumedBytes,
		VisitedFiles:   b.visitedFiles,
		Exhausted:      b.reason != "",
		Reason:         b.reason,
	}
}

func (b *Budget) exhaust(reason string) error {
	if b.reason == "" {
		b.reason = reason
	}
	return fmt.Errorf("%w: %s", ErrExhausted, reason)
}
