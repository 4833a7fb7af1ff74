package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calegray/concepthub-backend/internal/services"
)

type SearchHandler struct {
	searchService services.SearchService
}

func NewSearchHandler(searchService services.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

func (sh *SearchHandler) Search(c *gin.Context) {
	params := services.SearchParams{
		Query:    c.Query("q"),
		Type:     c.Query("type"),
		Limit:    queryInt(c, "limit", 0),
		FileType: c.Query("file_type"),
	}

	if raw := c.Query("start_date"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid start_date"))
			return
		}
		params.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid end_date"))
			return
		}
		params.EndDate = &t
	}
	if raw := c.Query("min_words"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid min_words"))
			return
		}
		params.MinWords = &v
	}
	if raw := c.Query("max_words"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid max_words"))
			return
		}
		params.MaxWords = &v
	}
	if raw := c.Query("concepts"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid concept id %q", part))
				return
			}
			params.ConceptIDs = append(params.ConceptIDs, id)
		}
	}

	resp, err := sh.searchService.Search(c.Request.Context(), params)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, resp)
}

func (sh *SearchHandler) Suggestions(c *gin.Context) {
	suggestions, err := sh.searchService.Suggest(c.Request.Context(), c.Query("q"), queryInt(c, "limit", 10))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"suggestions": suggestions})
}

func (sh *SearchHandler) Similar(c *gin.Context) {
	id, err := uuid.Parse(c.Query("document_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid document_id"))
		return
	}
	results, err := sh.searchService.Similar(c.Request.Context(), id, queryInt(c, "limit", 5))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"results": results})
}

func (sh *SearchHandler) Reindex(c *gin.Context) {
	result, err := sh.searchService.Reindex(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (sh *SearchHandler) Analytics(c *gin.Context) {
	analytics, err := sh.searchService.Analytics(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, analytics)
}

// parseDate accepts date-only or RFC3339 timestamps.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
