package searchdb

import "time"

type Document struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Extension string    `json:"extension"`
	Size      int64     `json:"size"`
	IndexedAt time.Time `json:"indexed_at"`
}

type Result struct {
	ID        uint64  `json:"id"`
	Path      string  `json:"path"`
	Name      string  `json:"name"`
	Extension string  `json:"extension"`
	Score     float64 `json:"score"`
	Size      int64   `json:"size"`
	Snippet   string  `json:"snippet,omitempty"`
}

type Response struct {
	Results    []Result `json:"results"`
	Total      uint64   `json:"total"`
	MaxScore   float64  `json:"max_score"`
	SearchTime string   `json:"search_time"`
}
