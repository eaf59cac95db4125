package catalog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/docufetch/docufetch/config"
	"github.com/docufetch/docufetch/logger"
)

const (
	recordsBucket  = "records"
	pathsBucket    = "paths"
	requestsBucket = "requests"
	historyBucket  = "history"

	historyKey     = "recent_terms"
	historyMaxSize = 10
)

// Open date-range bounds default to far past / far future, matching the
// sentinels of the original retrieval query.
var (
	dateSentinelPast   = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	dateSentinelFuture = time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC)
)

// ShadowIndex is the optional full-text accelerator kept consistent with
// the record table. Its failures never surface to callers of the store:
// catalog queries stay authoritative substring scans either way.
type ShadowIndex interface {
	IndexRecords(records []FileRecord) error
	Reset() error
}

type BoltCatalog struct {
	store  *bolt.DB
	shadow ShadowIndex
	logger logger.Logger
}

func New(logger logger.Logger, cfg *config.Config, shadow ShadowIndex) (*BoltCatalog, error) {
	catalogPath := cfg.GetCatalogPath()
	if err := os.MkdirAll(filepath.Dir(catalogPath), 0755); err != nil {
		logger.Error("failed to create catalog directory", "err", err.Error(), "path", catalogPath)
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	store, err := bolt.Open(catalogPath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		logger.Error("failed to open catalog", "err", err.Error(), "path", catalogPath)
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	catalog := &BoltCatalog{
		store:  store,
		shadow: shadow,
		logger: logger,
	}

	if err := catalog.initBuckets(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return catalog, nil
}

func (c *BoltCatalog) initBuckets() error {
	return c.store.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{recordsBucket, pathsBucket, requestsBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				c.logger.Error("failed to create bucket", "bucket", bucket, "err", err.Error())
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// Clear drops every record and path. Used only for a full re-index.
func (c *BoltCatalog) Clear() error {
	err := c.store.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{recordsBucket, pathsBucket} {
			if err := tx.DeleteBucket([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
			}
			if _, err := tx.CreateBucket([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to recreate bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("failed to clear catalog", "err", err.Error())
		return err
	}

	if c.shadow != nil {
		if err := c.shadow.Reset(); err != nil {
			c.logger.Warn("failed to reset shadow index, preview search may be stale", "err", err.Error())
		}
	}

	return nil
}

// ExistingPaths returns every stored filepath in one scan. The indexing
// engine snapshots this once per incremental run as its baseline.
func (c *BoltCatalog) ExistingPaths() (map[string]struct{}, error) {
	paths := make(map[string]struct{})

	err := c.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pathsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", pathsBucket)
		}
		return bucket.ForEach(func(k, v []byte) error {
			paths[string(k)] = struct{}{}
			return nil
		})
	})
	if err != nil {
		c.logger.Error("failed to list existing paths", "err", err.Error())
		return nil, err
	}

	return paths, nil
}

// InsertBatch appends records in one transaction, assigning sequence IDs.
// Batching bounds per-record commit overhead; it is not an atomicity
// guarantee across a whole indexing run.
func (c *BoltCatalog) InsertBatch(records []FileRecord) error {
	if len(records) == 0 {
		return nil
	}

	indexed := make([]FileRecord, 0, len(records))
	err := c.store.Update(func(tx *bolt.Tx) error {
		recordsB := tx.Bucket([]byte(recordsBucket))
		pathsB := tx.Bucket([]byte(pathsBucket))
		if recordsB == nil || pathsB == nil {
			return fmt.Errorf("catalog buckets not found")
		}

		for _, record := range records {
			if record.Filepath == "" {
				return &InvalidKeyError{Key: record.Filepath, Reason: "filepath cannot be empty"}
			}

			id, err := recordsB.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to assign record id: %w", err)
			}
			record.ID = id

			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to marshal record for %s: %w", record.Filepath, err)
			}

			key := idKey(id)
			if err := recordsB.Put(key, data); err != nil {
				return fmt.Errorf("failed to put record for %s: %w", record.Filepath, err)
			}
			if err := pathsB.Put([]byte(record.Filepath), key); err != nil {
				return fmt.Errorf("failed to put path for %s: %w", record.Filepath, err)
			}
			indexed = append(indexed, record)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("failed to insert batch", "records", len(records), "err", err.Error())
		return err
	}

	if c.shadow != nil {
		if err := c.shadow.IndexRecords(indexed); err != nil {
			c.logger.Warn("failed to mirror batch into shadow index", "err", err.Error())
		}
	}

	return nil
}

func (c *BoltCatalog) Get(id uint64) (*FileRecord, error) {
	var record FileRecord

	err := c.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", recordsBucket)
		}
		data := bucket.Get(idKey(id))
		if data == nil {
			return &NotFoundError{Key: strconv.FormatUint(id, 10)}
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Query is a full scan over the records bucket with substring matching.
// The shadow index is deliberately not consulted here: its absence must
// not change query results, only the speed of the ranked preview search.
//
// The IndexedAt range applies only when at least one bound is set. With
// both bounds zero the scan ignores IndexedAt entirely, so records that
// carry no timestamp still match undated queries.
func (c *BoltCatalog) Query(q Query) ([]FileRecord, error) {
	filterByDate := !q.From.IsZero() || !q.To.IsZero()
	from, to := q.From, q.To
	if from.IsZero() {
		from = dateSentinelPast
	}
	if to.IsZero() {
		to = dateSentinelFuture
	}

	var results []FileRecord
	err := c.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", recordsBucket)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var record FileRecord
			if err := json.Unmarshal(v, &record); err != nil {
				c.logger.Warn("skipping undecodable record", "key", string(k), "err", err.Error())
				return nil
			}

			if !matchesTerm(&record, q.Kind, q.Value) {
				return nil
			}
			if filterByDate && (record.IndexedAt.Before(from) || record.IndexedAt.After(to)) {
				return nil
			}
			if len(q.Extensions) > 0 {
				if _, ok := q.Extensions[record.Extension]; !ok {
					return nil
				}
			}

			results = append(results, record)
			return nil
		})
	})
	if err != nil {
		c.logger.Error("catalog query failed", "err", err.Error())
		return nil, err
	}

	return results, nil
}

func matchesTerm(record *FileRecord, kind TermKind, value string) bool {
	switch kind {
	case TermKindAccount:
		return strings.Contains(record.Filename, value) || strings.Contains(record.Content, value)
	case TermKindName:
		return strings.Contains(record.Content, value)
	default:
		return false
	}
}

func (c *BoltCatalog) Stats() (*Stats, error) {
	stats := &Stats{}
	extensions := make(map[string]struct{})

	err := c.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", recordsBucket)
		}
		return bucket.ForEach(func(k, v []byte) error {
			var record FileRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return nil
			}
			stats.TotalCount++
			stats.TotalSizeBytes += record.Size
			extensions[record.Extension] = struct{}{}
			if record.IndexedAt.After(stats.LastIndexed) {
				stats.LastIndexed = record.IndexedAt
			}
			return nil
		})
	})
	if err != nil {
		c.logger.Error("failed to compute catalog stats", "err", err.Error())
		return nil, err
	}

	stats.ExtensionCount = len(extensions)
	return stats, nil
}

func (c *BoltCatalog) SetRequestState(requestID string, state string) error {
	if requestID == "" {
		return &InvalidKeyError{Key: requestID, Reason: "request id cannot be empty"}
	}

	return c.store.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(requestsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", requestsBucket)
		}
		if err := bucket.Put([]byte(requestID), []byte(state)); err != nil {
			return fmt.Errorf("failed to set request state for %s: %w", requestID, err)
		}
		return nil
	})
}

func (c *BoltCatalog) GetRequestState(requestID string) (string, error) {
	if requestID == "" {
		return "", &InvalidKeyError{Key: requestID, Reason: "request id cannot be empty"}
	}

	var state []byte
	err := c.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(requestsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", requestsBucket)
		}
		v := bucket.Get([]byte(requestID))
		if v == nil {
			return &NotFoundError{Key: requestID}
		}
		state = make([]byte, len(v))
		copy(state, v)
		return nil
	})
	if err != nil {
		return "", err
	}

	return string(state), nil
}

// PushHistory prepends a term to the bounded recency list, dropping
// duplicates and anything beyond the last ten entries.
func (c *BoltCatalog) PushHistory(term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}

	return c.store.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", historyBucket)
		}

		var terms []string
		if data := bucket.Get([]byte(historyKey)); data != nil {
			if err := json.Unmarshal(data, &terms); err != nil {
				c.logger.Warn("resetting undecodable search history", "err", err.Error())
				terms = nil
			}
		}

		updated := []string{term}
		for _, existing := range terms {
			if existing == term {
				continue
			}
			updated = append(updated, existing)
			if len(updated) == historyMaxSize {
				break
			}
		}

		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("failed to marshal search history: %w", err)
		}
		return bucket.Put([]byte(historyKey), data)
	})
}

func (c *BoltCatalog) History() ([]string, error) {
	var terms []string
	err := c.store.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(historyBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", historyBucket)
		}
		data := bucket.Get([]byte(historyKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &terms)
	})
	if err != nil {
		c.logger.Error("failed to read search history", "err", err.Error())
		return nil, err
	}

	return terms, nil
}

func (c *BoltCatalog) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
