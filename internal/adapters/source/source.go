// Package source defines the tabular read primitives the dashboard is built
// on, and the per-request read tally.
package source

import (
	"context"
	"errors"
	"sync/atomic"
)

// Sentinel errors shared by the adapters.
var (
	ErrNotFound      = errors.New("table or section not found")
	ErrEmptySourceID = errors.New("empty source id")
)

// Source reads rows from a workbook-like store. A source id names a
// workbook and a section names one sheet inside it. Rows are returned as
// read, header row first.
type Source interface {
	ReadTable(ctx context.Context, sourceID, section string) ([][]any, error)
	ListSections(ctx context.Context, sourceID string) ([]string, error)
}

// Tally counts reads issued on behalf of one request.
type Tally struct {
	n atomic.Int64
}

// Queries is the number of reads counted so far.
func (t *Tally) Queries() int {
	if t == nil {
		return 0
	}
	return int(t.n.Load())
}

type tallyKey struct{}

// WithTally returns a context carrying a fresh tally.
func WithTally(ctx context.Context) (context.Context, *Tally) {
	t := &Tally{}
	return context.WithValue(ctx, tallyKey{}, t), t
}

// Count adds one read to the tally carried by ctx, if any.
func Count(ctx context.Context) {
	if t, ok := ctx.Value(tallyKey{}).(*Tally); ok {
		t.n.Add(1)
	}
}
