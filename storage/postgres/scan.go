package postgres

import (
	"context"

	"github.com/sage-x-project/sage-vault/storage"
)

// scanPageSize bounds how many entries one Next call returns.
const scanPageSize = 100

// pagedScan implements storage.Scan over an already-materialized slice,
// handing pages back in scanPageSize chunks until exhausted.
type pagedScan struct {
	entries []*storage.Entry
	pos     int
}

func newPagedScan(entries []*storage.Entry) *pagedScan {
	return &pagedScan{entries: entries}
}

// Next returns the next page, or nil, nil once the cursor is exhausted.
func (p *pagedScan) Next(ctx context.Context) ([]*storage.Entry, error) {
	if p.pos >= len(p.entries) {
		return nil, nil
	}
	end := p.pos + scanPageSize
	if end > len(p.entries) {
		end = len(p.entries)
	}
	page := p.entries[p.pos:end]
	p.pos = end
	return page, nil
}
