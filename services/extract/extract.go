// Package extract turns documents into searchable plain text. Extraction
// never fails to the caller: an unregistered format yields empty text and
// a parse failure yields a short bracketed diagnostic returned as the
// content itself, so extraction problems surface in later searches.
package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docufetch/docufetch/logger"
)

// Func extracts plain text from one file of a known format.
type Func func(path string) (string, error)

// Registry maps lower-cased extensions to the extractors that declared
// themselves available at startup. Formats are registered up front rather
// than probed at call time, so a missing capability is visible in
// Supported rather than discovered through a runtime failure.
type Registry struct {
	logger     logger.Logger
	extractors map[string]Func
}

func NewRegistry(logger logger.Logger) *Registry {
	r := &Registry{
		logger:     logger,
		extractors: make(map[string]Func),
	}

	r.Register(".txt", readTextFile)
	r.Register(".csv", readTextFile)
	r.Register(".pdf", extractPDF)
	r.Register(".docx", extractDOCX)
	r.Register(".xlsx", extractXLSX)
	r.Register(".xls", extractXLS)

	return r
}

func (r *Registry) Register(extension string, fn Func) {
	r.extractors[strings.ToLower(extension)] = fn
}

func (r *Registry) Supported(extension string) bool {
	_, ok := r.extractors[strings.ToLower(extension)]
	return ok
}

// Extract dispatches on the lower-cased extension. Unregistered formats
// return empty text; failures return a bracketed marker in place of text.
func (r *Registry) Extract(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	fn, ok := r.extractors[ext]
	if !ok {
		return ""
	}

	text, err := fn(path)
	if err != nil {
		r.logger.Warn("content extraction failed", "path", path, "err", err.Error())
		return fmt.Sprintf("[%s extraction error: %s]", strings.ToUpper(strings.TrimPrefix(ext, ".")), err.Error())
	}

	return text
}

const maxTextFileSize = 10 * 1024 * 1024 // 10MB read cap

// readTextFile reads raw bytes as text. Invalid UTF-8 sequences are
// dropped, not fatal - a deliberately lossy decode.
func readTextFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", err
	}

	if stat.Size() > maxTextFileSize {
		// For large files, read only the first portion
		buffer := make([]byte, maxTextFileSize)
		n, err := file.Read(buffer)
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.ToValidUTF8(string(buffer[:n]), ""), nil
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}

	return strings.ToValidUTF8(string(content), ""), nil
}
