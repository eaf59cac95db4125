package catalog

import (
	"strings"
	"time"
)

// FileRecord is one row per indexed file. Records are created by the
// indexing engine, never mutated afterwards, and destroyed only by Clear.
type FileRecord struct {
	ID        uint64    `json:"id"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"filepath"`
	Extension string    `json:"extension"`
	Size      int64     `json:"size"`
	Content   string    `json:"content"`
	IndexedAt time.Time `json:"indexed_at"`
}

type TermKind string

const (
	TermKindAccount TermKind = "account"
	TermKindName    TermKind = "name"
)

// SearchTerm is one account-id or name query evaluated independently
// against the catalog.
type SearchTerm struct {
	Kind  TermKind `json:"kind"`
	Value string   `json:"value"`
}

// Query describes one catalog lookup. Kind=account matches Filename OR
// Content containing Value; Kind=name matches Content only. Matching is a
// case-sensitive substring scan, consistent with how content was stored.
//
// From/To bound IndexedAt inclusively; zero values mean open bounds.
// IndexedAt records indexing time, not any date intrinsic to the document,
// but it is the field user-supplied date filters compare against.
type Query struct {
	Kind       TermKind
	Value      string
	From       time.Time
	To         time.Time
	Extensions map[string]struct{}
}

// NormalizeExtensions lower-cases, trims and dot-prefixes extension names
// so ".PDF", "pdf" and " .pdf " all select the same records.
func NormalizeExtensions(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

type Stats struct {
	TotalCount     int       `json:"total_count"`
	ExtensionCount int       `json:"extension_count"`
	LastIndexed    time.Time `json:"last_indexed"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
}
