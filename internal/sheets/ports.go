package sheets

import "context"

// Ports for outbound adapters.
type (
	// RowWriter appends and removes rows of a named sheet. Column A of every
	// row holds the record id.
	RowWriter interface {
		AppendRow(ctx context.Context, sheet string, row []any) (rowRef string, err error)
		// DeleteRowByID removes the first row whose column A equals id and
		// reports whether one was found.
		DeleteRowByID(ctx context.Context, sheet, id string) (bool, error)
	}

	// IDLister returns the ids already present in a sheet.
	IDLister interface {
		ListIDs(ctx context.Context, sheet string) (map[string]bool, error)
	}

	// Writer is the full adapter surface used by the mirror.
	Writer interface {
		RowWriter
		IDLister
	}
)
