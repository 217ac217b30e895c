package sqlite

import "errors"

var (
	// ErrDBRequired is returned when a nil database handle is provided.
	ErrDBRequired = errors.New("sendq sqlite: db is required")
	// ErrPathRequired is returned when Open is called with an empty path.
	ErrPathRequired = errors.New("sendq sqlite: database path is required")
)
