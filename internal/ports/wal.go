package ports

import "github.com/zhuoqizheng/rovio/internal/domain"

type WALEntryID uint64

// WAL buffers decisions durably between the guard loop and the journal so a
// journal outage never loses a reset record. The monitor's own state is
// deliberately not persisted.
type WAL interface {
	Append(d *domain.Decision) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, d *domain.Decision) error) error
	Commit(upto WALEntryID) error
	TruncateCommitted() error
	Stats() WALStats
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
