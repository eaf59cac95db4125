package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docufetch/docufetch/config"
)

func newTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func newTestCatalog(t *testing.T, assert *require.Assertions) *BoltCatalog {
	t.Setenv("CATALOG_PATH", filepath.Join(t.TempDir(), "catalog.db"))

	cfg, err := config.Load()
	assert.NoError(err, "could not load config")

	store, err := New(newTestLogger(), cfg, nil)
	assert.NoError(err, "could not create catalog")
	t.Cleanup(func() {
		assert.NoError(store.Close(), "could not close catalog")
	})

	return store
}

func testRecords() []FileRecord {
	indexedAt := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	return []FileRecord{
		{
			Filename:  "123456_contract.pdf",
			Filepath:  "/mnt/drive/contracts/123456_contract.pdf",
			Extension: ".pdf",
			Size:      2048,
			Content:   "contract for John Smith",
			IndexedAt: indexedAt,
		},
		{
			Filename:  "statement.xlsx",
			Filepath:  "/mnt/drive/statements/statement.xlsx",
			Extension: ".xlsx",
			Size:      4096,
			Content:   "account 789012 balance",
			IndexedAt: indexedAt.AddDate(0, 1, 0),
		},
		{
			Filename:  "notes.txt",
			Filepath:  "/mnt/drive/notes.txt",
			Extension: ".txt",
			Size:      100,
			Content:   "",
			IndexedAt: indexedAt.AddDate(0, 2, 0),
		},
	}
}

var queryTestCases = []struct {
	name          string
	query         Query
	expectedPaths []string
}{
	{
		name: "AccountMatchesFilename",
		query: Query{
			Kind:       TermKindAccount,
			Value:      "123456",
			Extensions: NormalizeExtensions([]string{".pdf"}),
		},
		expectedPaths: []string{"/mnt/drive/contracts/123456_contract.pdf"},
	},
	{
		name: "AccountMatchesContent",
		query: Query{
			Kind:       TermKindAccount,
			Value:      "789012",
			Extensions: NormalizeExtensions([]string{".xlsx"}),
		},
		expectedPaths: []string{"/mnt/drive/statements/statement.xlsx"},
	},
	{
		name: "NameIgnoresFilename",
		query: Query{
			Kind:       TermKindName,
			Value:      "123456",
			Extensions: NormalizeExtensions([]string{".pdf"}),
		},
		expectedPaths: nil,
	},
	{
		name: "NameMatchesContent",
		query: Query{
			Kind:       TermKindName,
			Value:      "John Smith",
			Extensions: NormalizeExtensions([]string{".pdf", ".xlsx", ".txt"}),
		},
		expectedPaths: []string{"/mnt/drive/contracts/123456_contract.pdf"},
	},
	{
		name: "ExtensionFilterExcludes",
		query: Query{
			Kind:       TermKindAccount,
			Value:      "123456",
			Extensions: NormalizeExtensions([]string{".txt"}),
		},
		expectedPaths: nil,
	},
	{
		name: "MatchingIsCaseSensitive",
		query: Query{
			Kind:       TermKindName,
			Value:      "john smith",
			Extensions: NormalizeExtensions([]string{".pdf"}),
		},
		expectedPaths: nil,
	},
	{
		name: "DateRangeInclusive",
		query: Query{
			Kind:       TermKindAccount,
			Value:      "contract",
			From:       time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
			To:         time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
			Extensions: NormalizeExtensions([]string{".pdf"}),
		},
		expectedPaths: []string{"/mnt/drive/contracts/123456_contract.pdf"},
	},
	{
		name: "DateRangeExcludesOlder",
		query: Query{
			Kind:       TermKindAccount,
			Value:      "contract",
			From:       time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			Extensions: NormalizeExtensions([]string{".pdf"}),
		},
		expectedPaths: nil,
	},
}

func TestQuery(t *testing.T) {
	assert := require.New(t)
	store := newTestCatalog(t, assert)

	assert.NoError(store.InsertBatch(testRecords()))

	for _, testCase := range queryTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			results, err := store.Query(testCase.query)
			assert.NoError(err)

			var paths []string
			for _, record := range results {
				paths = append(paths, record.Filepath)
			}
			assert.Equal(testCase.expectedPaths, paths)
		})
	}
}

func TestQueryWithoutDateFilterIgnoresIndexedAt(t *testing.T) {
	assert := require.New(t)
	store := newTestCatalog(t, assert)

	// No IndexedAt set: undated queries must still match these records
	assert.NoError(store.InsertBatch([]FileRecord{
		{
			Filename:  "123456_undated.pdf",
			Filepath:  "/mnt/drive/123456_undated.pdf",
			Extension: ".pdf",
			Size:      128,
		},
	}))

	results, err := store.Query(Query{
		Kind:       TermKindAccount,
		Value:      "123456",
		Extensions: NormalizeExtensions([]string{".pdf"}),
	})
	assert.NoError(err)
	assert.Len(results, 1, "undated query should not exclude records without a timestamp")

	// Once a bound is set, the zero timestamp falls outside the range
	results, err = store.Query(Query{
		Kind:       TermKindAccount,
		Value:      "123456",
		From:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Extensions: NormalizeExtensions([]string{".pdf"}),
	})
	assert.NoError(err)
	assert.Empty(results)
}

func TestInsertBatchAssignsIDs(t *testing.T) {
	assert := require.New(t)
	store := newTestCatalog(t, assert)

	assert.NoError(store.InsertBatch(testRecords()))

	results, err := store.Query(Query{
		Kind:       TermKindAccount,
		Value:      "",
		Extensions: NormalizeExtensions([]string{".pdf", ".xlsx", ".txt"}),
	})
	assert.NoError(err)
	assert.Len(results, 3)

	seen := make(map[uint64]struct{})
	for _, record := range results {
		assert.NotZero(record.ID, "record id should be assigned")
		seen[record.ID] = struct{}{}

		got, err := store.Get(record.ID)
		assert.NoError(err)
		assert.Equal(record.Filepath, got.Filepath)
	}
	assert.Len(seen, 3, "record ids should be distinct")
}

func TestExistingPaths(t *testing.T) {
	assert := require.New(t)
	store := newTestCatalog(t, assert)

	paths, err := store.ExistingPaths()
	assert.NoError(err)
	assert.Empty(paths)

	assert.NoError(store.InsertBatch(testRecords()))

	paths, err = store.ExistingPaths()
	assert.NoError(err)
	assert.Len(paths, 3)
	assert.Contains(paths, "/mnt/drive/notes.txt")
}

func TestClear(t *testing.T) {
	assert := require.New(t)
	store := newTestCatalog(t, assert)

	assert.NoError(store.InsertBatch(testRecords()))
	assert.NoError(store.Clear())

	paths, err := store.ExistingPaths()
	assert.NoError(err)
	assert.Empty(paths)

	stats, err := store.Stats()
	assert.NoError(err)
	assert.Zero(stats.TotalCount)
}

func TestStats(t *testing.T) {
	assert := require.New(t)
	store := newTestCatalog(t, assert)

	records := testRecords()
	assert.NoError(store.InsertBatch(records))

	stats, err := store.Stats()
	assert.NoError(err)
	assert.Equal(3, stats.TotalCount)
	assert.Equal(3, stats.ExtensionCount)
	assert.Equal(int64(2048+4096+100), stats.TotalSizeBytes)
	assert.True(stats.LastIndexed.Equal(records[2].IndexedAt))
}

func TestRequestState(t *testing.T) {
	assert := require.New(t)
	store := newTestCatalog(t, assert)

	_, err := store.GetRequestState("unknown")
	assert.ErrorIs(err, ErrNotFound)

	assert.NoError(store.SetRequestState("req-1", `{"state":"running"}`))

	state, err := store.GetRequestState("req-1")
	assert.NoError(err)
	assert.Equal(`{"state":"running"}`, state)

	_, err = store.GetRequestState("")
	assert.ErrorIs(err, ErrInvalidKey)
}

func TestHistoryBounded(t *testing.T) {
	assert := require.New(t)
	store := newTestCatalog(t, assert)

	for i := 0; i < 15; i++ {
		assert.NoError(store.PushHistory(fmt.Sprintf("term-%d", i)))
	}
	// A repeated term moves to the front instead of duplicating
	assert.NoError(store.PushHistory("term-12"))

	terms, err := store.History()
	assert.NoError(err)
	assert.Len(terms, 10, "history should keep the last ten terms")
	assert.Equal("term-12", terms[0])
	assert.Equal("term-14", terms[1])

	count := 0
	for _, term := range terms {
		if term == "term-12" {
			count++
		}
	}
	assert.Equal(1, count, "history should not contain duplicates")
}
