package connectome

import "errors"

// Sentinel errors returned by the loader. Callers match them with errors.Is;
// file-level context is added with %w at the call site.
var (
	// ErrEmpty is returned when a file holds no numeric rows.
	ErrEmpty = errors.New("connectome: empty matrix")

	// ErrNotSquare is returned for ragged rows or a row count that differs
	// from the column count.
	ErrNotSquare = errors.New("connectome: matrix is not square")

	// ErrParse is returned when a token is not a number.
	ErrParse = errors.New("connectome: unparseable value")
)
