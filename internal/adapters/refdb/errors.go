package refdb

import "errors"

// Sentinel kinds for reference-database errors.
var (
	ErrNotFound     = errors.New("flight not found")
	ErrMissingID    = errors.New("record has no flight ID")
	ErrStoreBackend = errors.New("reference database backend failure")
)
