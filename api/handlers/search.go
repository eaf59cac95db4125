package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docufetch/docufetch/db/catalog"
	"github.com/docufetch/docufetch/db/searchdb"
	"github.com/docufetch/docufetch/logger"
	"github.com/docufetch/docufetch/validation"
)

const defaultResultsPerPage = 20
const snippetContext = 100

type SearchRequest struct {
	Query   string `form:"query" validate:"required,min=1,max=1000"`
	PerPage int    `form:"per_page" validate:"min=0,max=100"`
	Page    int    `form:"page" validate:"min=0"`
}

func (r *SearchRequest) setDefaults() {
	if r.PerPage == 0 {
		r.PerPage = defaultResultsPerPage
	}

	if r.Page == 0 {
		r.Page = 1
	}
}

type SearchResponse struct {
	Results     []searchdb.Result `json:"results"`
	PageDetails Pagination        `json:"page_details"`
}

// SetupSearch registers the ranked preview search. This is a convenience
// view over the shadow index; retrieval itself always queries the catalog.
func SetupSearch(router *gin.Engine, logger logger.Logger, store catalog.Store, searchDB searchdb.DB, validator *validation.Validator) {
	router.GET("/search", handleSearch(store, searchDB, logger, validator))

}

func handleSearch(store catalog.Store, searchDB searchdb.DB, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request parameters"})
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		limit := request.PerPage
		offset := (request.Page - 1) * request.PerPage
		results, err := searchDB.Search(request.Query, limit, offset)
		if err != nil {
			logger.Error("search failed", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		for i := range results.Results {
			results.Results[i].Snippet = buildSnippet(store, results.Results[i].ID, request.Query)
		}

		searchResponse := SearchResponse{
			Results: results.Results,
			PageDetails: calculatePagination(
				int(results.Total),
				limit,
				offset),
		}

		writeResponse(c, searchResponse, http.StatusOK, nil)
	}
}

// buildSnippet extracts a short context window around the first
// case-insensitive occurrence of the query within the stored content.
func buildSnippet(store catalog.Store, id uint64, query string) string {
	record, err := store.Get(id)
	if err != nil || record.Content == "" {
		return ""
	}

	lowered := strings.ToLower(record.Content)
	match := strings.Index(lowered, strings.ToLower(strings.TrimSpace(query)))
	if match < 0 {
		return ""
	}

	start := max(0, match-snippetContext)
	end := min(len(record.Content), match+len(query)+snippetContext)

	snippet := strings.TrimSpace(record.Content[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(record.Content) {
		snippet = snippet + "..."
	}

	return snippet
}
