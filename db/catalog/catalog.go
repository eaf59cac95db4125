package catalog

// Store is the persisted table of indexed file records plus the small
// key-value state shared by the engines (request progress, search history).
type Store interface {
	Clear() error
	ExistingPaths() (map[string]struct{}, error)
	InsertBatch(records []FileRecord) error
	Get(id uint64) (*FileRecord, error)
	Query(q Query) ([]FileRecord, error)
	Stats() (*Stats, error)

	SetRequestState(requestID string, state string) error
	GetRequestState(requestID string) (string, error)

	PushHistory(term string) error
	History() ([]string, error)

	Close() error
}
