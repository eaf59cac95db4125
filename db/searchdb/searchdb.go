package searchdb

import "github.com/docufetch/docufetch/db/catalog"

// DB is the ranked full-text structure shadowing the catalog. It serves
// the preview search endpoint only; retrieval queries go through the
// catalog's substring scan.
type DB interface {
	IndexRecords(records []catalog.FileRecord) error
	Search(queryString string, limit int, offset int) (*Response, error)
	DocCount() (uint64, error)
	Reset() error
	Close() error
}
