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

type DocumentHandler struct {
	documentService  services.DocumentService
	thumbnailService services.ThumbnailService
}

func NewDocumentHandler(documentService services.DocumentService, thumbnailService services.ThumbnailService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, thumbnailService: thumbnailService}
}

func (dh *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("multipart field 'file' required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("unreadable upload"))
		return
	}
	defer file.Close()

	doc, err := dh.documentService.Upload(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (dh *DocumentHandler) List(c *gin.Context) {
	filter := repos.DocumentListFilter{
		Status:   c.Query("status"),
		FileType: c.Query("file_type"),
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PerPage:  queryInt(c, "per_page", 20),
	}
	docs, total, err := dh.documentService.List(c.Request.Context(), filter)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"documents": docs,
		"total":     total,
		"page":      filter.Page,
		"per_page":  filter.PerPage,
	})
}

func (dh *DocumentHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	doc, err := dh.documentService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, doc)
}

func (dh *DocumentHandler) Content(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	content, err := dh.documentService.Content(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"id": id, "content": content})
}

func (dh *DocumentHandler) Thumbnail(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	reader, err := dh.thumbnailService.Open(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	defer reader.Close()
	c.DataFromReader(http.StatusOK, -1, "image/png", reader, nil)
}

func (dh *DocumentHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := dh.documentService.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "document deleted"})
}

func (dh *DocumentHandler) Reanalyze(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	doc, err := dh.documentService.Reanalyze(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, doc)
}

func (dh *DocumentHandler) Stats(c *gin.Context) {
	stats, err := dh.documentService.Stats(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, stats)
}

func (dh *DocumentHandler) Similar(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	similar, err := dh.documentService.Similar(c.Request.Context(), id, queryInt(c, "limit", 5))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"documents": similar})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
