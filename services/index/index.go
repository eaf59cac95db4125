// Package index populates the catalog from a directory tree. A single
// background worker serves one indexing run at a time; progress is
// persisted per batch under the request ID so callers can poll it.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/logger"
)

const indexingBatchSize = 50

const (
	StateRunning  = "running"
	StateComplete = "complete"
	StateFailed   = "failed"
)

// RunState is the progress record persisted after every batch and at the
// terminal of a run. Progress always ends at 100 on success and stays at
// its last value with State=failed otherwise.
type RunState struct {
	State    string `json:"state"`
	Progress int    `json:"progress"`
	Indexed  int    `json:"indexed"`
	Total    int    `json:"total"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BuildParams configures one indexing run.
type BuildParams struct {
	RootPath       string
	Extensions     []string
	ExcludeFolders []string
	ExtractContent bool
	Incremental    bool
}

// Extractor is the content extraction capability used per file.
type Extractor interface {
	Extract(path string) string
}

type Service struct {
	logger  logger.Logger
	catalog catalog.Store
	extract Extractor
	buildC  chan buildRequest

	// OnProgress, when set, receives the same per-batch progress that is
	// persisted under the request ID.
	OnProgress func(indexed, total int, message string)
}

type buildRequest struct {
	params    BuildParams
	requestID string
}

func New(ctx context.Context, logger logger.Logger, store catalog.Store, extract Extractor) *Service {
	service := &Service{
		logger:  logger,
		catalog: store,
		extract: extract,
		buildC:  make(chan buildRequest),
	}

	go service.run(ctx)
	return service
}

// Build enqueues one indexing run. At most one run may be active against
// the catalog at a time; a second request is rejected, not queued.
func (s *Service) Build(params BuildParams, requestID string) error {
	if len(params.Extensions) == 0 {
		return errors.New("no file type selected")
	}
	if _, err := os.Stat(params.RootPath); err != nil {
		return fmt.Errorf("root path is not accessible: %w", err)
	}

	s.setRunState(requestID, RunState{State: StateRunning})

	select {
	case s.buildC <- buildRequest{params: params, requestID: requestID}:
		return nil
	default:
		s.logger.Warn("request to index while indexing is already in progress")
		return errors.New("indexing already in progress")
	}
}

// GetStatus retrieves the persisted progress for an indexing run.
func (s *Service) GetStatus(requestID string) (*RunState, error) {
	value, err := s.catalog.GetRequestState(requestID)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}

	var state RunState
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		return nil, fmt.Errorf("invalid run state: %w", err)
	}

	return &state, nil
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case req := <-s.buildC:
			s.buildIndex(req.params, req.requestID)
		case <-ctx.Done():
			s.logger.Info("index service stopped", "reason", ctx.Err())
			return
		}
	}
}

func (s *Service) buildIndex(params BuildParams, requestID string) {
	rootPath, err := filepath.Abs(params.RootPath)
	if err != nil {
		s.fail(requestID, fmt.Errorf("failed to resolve root path: %w", err))
		return
	}

	allowed := catalog.NormalizeExtensions(params.Extensions)
	exclude := lowerSet(params.ExcludeFolders)

	var baseline map[string]struct{}
	if params.Incremental {
		// Snapshot once before traversal; the whole run compares against
		// this baseline.
		if baseline, err = s.catalog.ExistingPaths(); err != nil {
			s.fail(requestID, fmt.Errorf("failed to load existing paths: %w", err))
			return
		}
	} else {
		if err := s.catalog.Clear(); err != nil {
			s.fail(requestID, fmt.Errorf("failed to clear catalog: %w", err))
			return
		}
	}

	files, err := s.discoverFiles(rootPath, allowed, exclude, baseline)
	if err != nil {
		s.fail(requestID, fmt.Errorf("failed to scan directory tree: %w", err))
		return
	}

	total := len(files)
	if total == 0 {
		s.logger.Info("no files found to index", "root", rootPath)
		s.setRunState(requestID, RunState{State: StateComplete, Progress: 100, Message: "no files found"})
		s.reportProgress(0, 0, "no files found")
		return
	}

	indexed := 0
	for start := 0; start < total; start += indexingBatchSize {
		end := min(start+indexingBatchSize, total)

		records := s.buildRecords(files[start:end], params.ExtractContent)
		if err := s.catalog.InsertBatch(records); err != nil {
			s.fail(requestID, fmt.Errorf("failed to commit batch: %w", err))
			return
		}
		indexed += len(records)

		message := fmt.Sprintf("indexed %d of %d files", indexed, total)
		s.setRunState(requestID, RunState{
			State:    StateRunning,
			Progress: progressPercentage(indexed, total),
			Indexed:  indexed,
			Total:    total,
			Message:  message,
		})
		s.reportProgress(indexed, total, message)
	}

	s.logger.Info("indexing complete", "indexed", indexed, "total", total)
	s.setRunState(requestID, RunState{State: StateComplete, Progress: 100, Indexed: indexed, Total: total})
	s.reportProgress(indexed, total, "complete")
}

// buildRecords captures one batch of files. A per-file failure is logged
// and the file skipped; it never aborts the batch or the run.
func (s *Service) buildRecords(paths []string, extractContent bool) []catalog.FileRecord {
	records := make([]catalog.FileRecord, 0, len(paths))

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			s.logger.Warn("skipping file that could not be read", "path", path, "err", err.Error())
			continue
		}

		record := catalog.FileRecord{
			Filename:  filepath.Base(path),
			Filepath:  path,
			Extension: strings.ToLower(filepath.Ext(path)),
			Size:      info.Size(),
			IndexedAt: time.Now().UTC(),
		}
		if extractContent {
			record.Content = s.extract.Extract(path)
		}

		records = append(records, record)
	}

	return records
}

func (s *Service) fail(requestID string, err error) {
	s.logger.Error("indexing run failed", "request_id", requestID, "err", err.Error())
	s.setRunState(requestID, RunState{State: StateFailed, Error: err.Error()})
}

func (s *Service) setRunState(requestID string, state RunState) {
	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Error("failed to marshal run state", "request_id", requestID, "err", err.Error())
		return
	}
	if err := s.catalog.SetRequestState(requestID, string(data)); err != nil {
		s.logger.Error("failed to persist run state", "request_id", requestID, "err", err.Error())
	}
}

func (s *Service) reportProgress(indexed, total int, message string) {
	if s.OnProgress != nil {
		s.OnProgress(indexed, total, message)
	}
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		set[value] = struct{}{}
	}
	return set
}

func progressPercentage(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
