// Package export mirrors recorded ledger entries to an external sheet.
// Purely downstream of the ledger: export failures never affect writes.
package export

import (
	"context"

	"tally/internal/core"
)

// RowAppender is the outbound mirror target.
type RowAppender interface {
	// AppendEntry appends one entry as a row and returns a row reference.
	AppendEntry(ctx context.Context, e core.Entry) (rowRef string, err error)

	// DeleteEntry removes the row previously appended for the entry id.
	// Missing rows are not an error.
	DeleteEntry(ctx context.Context, id int64) error
}
