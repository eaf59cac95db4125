// Package retrieve evaluates search terms against the catalog and copies
// matching files into a timestamped output bundle with manifest and CSV
// reports. One retrieval run is active at a time; progress is persisted
// per search term under the request ID.
package retrieve

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/logger"
)

const (
	StateRunning  = "running"
	StateComplete = "complete"
	StateFailed   = "failed"
)

const bundlePrefix = "retrieval_"
const bundleTimestampLayout = "20060102_150405"

// Filter is the per-run retrieval configuration, immutable for the
// duration of one run.
type Filter struct {
	Extensions   []string
	DateFrom     time.Time
	DateTo       time.Time
	RenamePrefix bool
	ExportXLSX   bool
}

type Params struct {
	Terms      []catalog.SearchTerm
	Filter     Filter
	OutputRoot string
}

// ManifestEntry describes one successful copy. It is output of a run,
// never persisted back to the catalog.
type ManifestEntry struct {
	Term           catalog.SearchTerm
	Filename       string
	Filepath       string
	Extension      string
	Size           int64
	OutputFilename string
	Duplicate      bool
}

type duplicateEntry struct {
	Original  string
	Duplicate string
	Term      string
}

// termBlock is one search term's outcome within the manifest.
type termBlock struct {
	Term    catalog.SearchTerm
	Entries []ManifestEntry
	Errors  []string
	Missing bool
}

// Report is the terminal state of a retrieval run. While the run is in
// flight, ProcessedTerms/TotalTerms carry its progress.
type Report struct {
	State          string `json:"state"`
	TotalFound     int    `json:"total_found"`
	MissingCount   int    `json:"missing_count"`
	DuplicateCount int    `json:"duplicate_count"`
	ProcessedTerms int    `json:"processed_terms"`
	TotalTerms     int    `json:"total_terms"`
	OutputPath     string `json:"output_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Service struct {
	logger    logger.Logger
	catalog   catalog.Store
	retrieveC chan retrieveRequest

	// OnProgress, when set, receives per-term progress alongside the
	// persisted request state.
	OnProgress func(processedTerms, totalTerms int)
}

type retrieveRequest struct {
	params    Params
	requestID string
}

func New(ctx context.Context, logger logger.Logger, store catalog.Store) *Service {
	service := &Service{
		logger:    logger,
		catalog:   store,
		retrieveC: make(chan retrieveRequest),
	}

	go service.run(ctx)
	return service
}

// Retrieve enqueues one retrieval run. A second request while one is
// active is rejected, not queued.
func (s *Service) Retrieve(params Params, requestID string) error {
	if len(params.Terms) == 0 {
		return errors.New("no search criteria provided")
	}
	if len(params.Filter.Extensions) == 0 {
		return errors.New("no file type selected")
	}
	if params.OutputRoot == "" {
		return errors.New("no output folder provided")
	}

	s.setReport(requestID, Report{State: StateRunning, TotalTerms: len(params.Terms)})

	select {
	case s.retrieveC <- retrieveRequest{params: params, requestID: requestID}:
		return nil
	default:
		s.logger.Warn("request to retrieve while retrieval is already in progress")
		return errors.New("retrieval already in progress")
	}
}

// GetReport retrieves the persisted progress or terminal report of a run.
func (s *Service) GetReport(requestID string) (*Report, error) {
	value, err := s.catalog.GetRequestState(requestID)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}

	var report Report
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		return nil, fmt.Errorf("invalid report state: %w", err)
	}

	return &report, nil
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case req := <-s.retrieveC:
			s.retrieve(req.params, req.requestID)
		case <-ctx.Done():
			s.logger.Info("retrieve service stopped", "reason", ctx.Err())
			return
		}
	}
}

func (s *Service) retrieve(params Params, requestID string) {
	outputPath := filepath.Join(params.OutputRoot, bundlePrefix+time.Now().Format(bundleTimestampLayout))
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		s.fail(requestID, len(params.Terms), fmt.Errorf("failed to create output folder: %w", err))
		return
	}

	allowed := catalog.NormalizeExtensions(params.Filter.Extensions)

	// hash of file bytes -> first-seen filename; duplicates are detected
	// within this run only, across all search terms in traversal order.
	seenHashes := make(map[string]string)

	var blocks []termBlock
	var duplicates []duplicateEntry
	totalFound := 0

	for processed, term := range params.Terms {
		if err := s.catalog.PushHistory(term.Value); err != nil {
			s.logger.Warn("failed to record search history", "term", term.Value, "err", err.Error())
		}

		records, err := s.catalog.Query(catalog.Query{
			Kind:       term.Kind,
			Value:      term.Value,
			From:       params.Filter.DateFrom,
			To:         params.Filter.DateTo,
			Extensions: allowed,
		})
		if err != nil {
			// A query failure indicates a persistence-layer fault and is
			// fatal to the run.
			s.fail(requestID, len(params.Terms), fmt.Errorf("catalog query failed: %w", err))
			return
		}

		block := termBlock{Term: term, Missing: len(records) == 0}
		for _, record := range records {
			entry, dup, err := s.copyRecord(&record, term, params.Filter.RenamePrefix, outputPath, seenHashes)
			if err != nil {
				s.logger.Warn("failed to copy file", "path", record.Filepath, "err", err.Error())
				block.Errors = append(block.Errors, err.Error())
				continue
			}
			if dup != nil {
				duplicates = append(duplicates, *dup)
			}
			block.Entries = append(block.Entries, *entry)
			totalFound++
		}
		blocks = append(blocks, block)

		s.setReport(requestID, Report{
			State:          StateRunning,
			TotalFound:     totalFound,
			ProcessedTerms: processed + 1,
			TotalTerms:     len(params.Terms),
		})
		if s.OnProgress != nil {
			s.OnProgress(processed+1, len(params.Terms))
		}
	}

	if err := s.writeReports(outputPath, blocks, duplicates, params.Filter.ExportXLSX); err != nil {
		s.fail(requestID, len(params.Terms), err)
		return
	}

	report := Report{
		State:          StateComplete,
		TotalFound:     totalFound,
		MissingCount:   countMissing(blocks),
		DuplicateCount: len(duplicates),
		ProcessedTerms: len(params.Terms),
		TotalTerms:     len(params.Terms),
		OutputPath:     outputPath,
	}
	s.logger.Info("retrieval complete", "found", report.TotalFound, "missing", report.MissingCount, "duplicates", report.DuplicateCount, "output", outputPath)
	s.setReport(requestID, report)
}

// copyRecord hashes, names and copies one matching file. The returned
// duplicate entry is non-nil when the file's bytes were already seen in
// this run; the file is still copied.
func (s *Service) copyRecord(record *catalog.FileRecord, term catalog.SearchTerm, renamePrefix bool, outputPath string, seenHashes map[string]string) (*ManifestEntry, *duplicateEntry, error) {
	var dup *duplicateEntry
	duplicate := false

	// Hashing is best-effort: an unreadable source yields no hash, not an
	// abort, and such files never count as duplicates.
	if hash, err := hashFile(record.Filepath); err == nil {
		if first, seen := seenHashes[hash]; seen {
			duplicate = true
			dup = &duplicateEntry{Original: first, Duplicate: record.Filename, Term: term.Value}
		} else {
			seenHashes[hash] = record.Filename
		}
	} else {
		s.logger.Warn("failed to hash file for duplicate detection", "path", record.Filepath, "err", err.Error())
	}

	outputName := record.Filename
	if renamePrefix {
		outputName = term.Value + "_" + outputName
	}

	dest := resolveCollision(outputPath, outputName)
	if err := copyFile(record.Filepath, dest); err != nil {
		return nil, nil, fmt.Errorf("failed to copy %s: %w", record.Filepath, err)
	}

	return &ManifestEntry{
		Term:           term,
		Filename:       record.Filename,
		Filepath:       record.Filepath,
		Extension:      record.Extension,
		Size:           record.Size,
		OutputFilename: filepath.Base(dest),
		Duplicate:      duplicate,
	}, dup, nil
}

// resolveCollision appends _1, _2, ... before the extension until the
// destination does not exist. The check-then-copy gap is an accepted
// best-effort limitation.
func resolveCollision(outputPath, filename string) string {
	dest := filepath.Join(outputPath, filename)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		dest = filepath.Join(outputPath, fmt.Sprintf("%s_%d%s", base, counter, ext))
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
	}
}

func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(target, source); err != nil {
		target.Close()
		return err
	}
	if err := target.Close(); err != nil {
		return err
	}

	// Preserve the source modification time where possible
	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return nil
	}

	return nil
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

func countMissing(blocks []termBlock) int {
	missing := 0
	for _, block := range blocks {
		if block.Missing {
			missing++
		}
	}
	return missing
}

func (s *Service) fail(requestID string, totalTerms int, err error) {
	s.logger.Error("retrieval run failed", "request_id", requestID, "err", err.Error())
	s.setReport(requestID, Report{State: StateFailed, TotalTerms: totalTerms, Error: err.Error()})
}

func (s *Service) setReport(requestID string, report Report) {
	data, err := json.Marshal(report)
	if err != nil {
		s.logger.Error("failed to marshal report", "request_id", requestID, "err", err.Error())
		return
	}
	if err := s.catalog.SetRequestState(requestID, string(data)); err != nil {
		s.logger.Error("failed to persist report", "request_id", requestID, "err", err.Error())
	}
}
