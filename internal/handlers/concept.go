package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/calegray/concepthub-backend/internal/repos"
	"github.com/calegray/concepthub-backend/internal/services"
)

type ConceptHandler struct {
	conceptService services.ConceptService
}

func NewConceptHandler(conceptService services.ConceptService) *ConceptHandler {
	return &ConceptHandler{conceptService: conceptService}
}

func (ch *ConceptHandler) List(c *gin.Context) {
	filter := repos.ConceptListFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sort_by"),
		Page:     queryInt(c, "page", 1),
		PerPage:  queryInt(c, "per_page", 50),
	}
	concepts, total, err := ch.conceptService.List(c.Request.Context(), filter)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"concepts": concepts,
		"total":    total,
		"page":     filter.Page,
		"per_page": filter.PerPage,
	})
}

func (ch *ConceptHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	detail, err := ch.conceptService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, detail)
}

func (ch *ConceptHandler) Categories(c *gin.Context) {
	categories, err := ch.conceptService.Categories(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"categories": categories})
}

func (ch *ConceptHandler) Relations(c *gin.Context) {
	filter := repos.RelationListFilter{
		RelationType: c.Query("relation_type"),
		Limit:        queryInt(c, "limit", 0),
	}
	if raw := c.Query("concept_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid concept_id"))
			return
		}
		filter.ConceptID = &id
	}
	if raw := c.Query("min_strength"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid min_strength"))
			return
		}
		filter.MinStrength = v
	}
	relations, err := ch.conceptService.Relations(c.Request.Context(), filter)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"relations": relations})
}

func (ch *ConceptHandler) Graph(c *gin.Context) {
	minStrength := 0.0
	if raw := c.Query("min_strength"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid min_strength"))
			return
		}
		minStrength = v
	}
	payload, err := ch.conceptService.Graph(c.Request.Context(), minStrength, c.Query("category"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, payload)
}

func (ch *ConceptHandler) Stats(c *gin.Context) {
	stats, err := ch.conceptService.Stats(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}

func (ch *ConceptHandler) Merge(c *gin.Context) {
	var req struct {
		PrimaryID   uuid.UUID `json:"primary_id"`
		SecondaryID uuid.UUID `json:"secondary_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PrimaryID == uuid.Nil || req.SecondaryID == uuid.Nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("primary_id and secondary_id required"))
		return
	}
	merged, err := ch.conceptService.Merge(c.Request.Context(), req.PrimaryID, req.SecondaryID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, merged)
}
