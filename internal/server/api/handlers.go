package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/avolkov/snapsync/internal/common"
	"github.com/avolkov/snapsync/internal/logging"
	"github.com/avolkov/snapsync/internal/server/services"
)

// Handler serves the metadata API endpoints.
type Handler struct {
	svc *services.FileService
	log logging.Logger
}

func NewHandler(svc *services.FileService, log logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// fail maps service errors onto HTTP statuses and writes the error body.
func (h *Handler) fail(c *gin.Context, err error) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, common.ErrInvalidRecord):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrVersionConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error(ctx, "internal error", "path", c.Request.URL.Path, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Ping reports server liveness.
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// ListSets returns the owner's sets with one representative file each,
// optionally filtered by the status query.
func (h *Handler) ListSets(c *gin.Context) {
	owner := ownerFromContext(c)

	overviews, err := h.svc.ListSets(c.Request.Context(), owner, c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}

	dtos := make([]setOverviewDTO, 0, len(overviews))
	for _, o := range overviews {
		d := setOverviewDTO{Name: o.Name, Status: o.Status}
		if o.File != nil {
			fd := toDTO(o.File)
			d.File = &fd
			d.UpdatedAt = o.File.UpdatedAt
		}
		dtos = append(dtos, d)
	}
	c.JSON(http.StatusOK, dtos)
}

// ListFiles returns metadata of a set, filtered by the updated_after
// watermark and tombstone visibility.
func (h *Handler) ListFiles(c *gin.Context) {
	owner := ownerFromContext(c)

	set := c.Query("name")
	if set == "" {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	var since int64
	if v := c.Query("updated_after"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.fail(c, common.ErrInvalidRecord)
			return
		}
		since = parsed
	}
	includeDeleted := c.Query("include_deleted") == "true"

	records, err := h.svc.List(c.Request.Context(), owner, set, since, includeDeleted)
	if err != nil {
		h.fail(c, err)
		return
	}

	dtos := make([]fileDTO, 0, len(records))
	for _, f := range records {
		dtos = append(dtos, toDTO(f))
	}
	c.JSON(http.StatusOK, dtos)
}

// CreateFile registers an uploaded record and returns its server id.
func (h *Handler) CreateFile(c *gin.Context) {
	owner := ownerFromContext(c)

	set := c.Query("name")
	if set == "" {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	var dto fileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	f := fromDTO(dto)
	id, err := h.svc.Register(c.Request.Context(), owner, set, &f)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, createResponse{RemoteID: id})
}

// UpdateFile applies a metadata-only update to a registered record.
func (h *Handler) UpdateFile(c *gin.Context) {
	owner := ownerFromContext(c)

	set := c.Query("name")
	id := c.Param("id")
	if set == "" || id == "" {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	var dto fileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	f := fromDTO(dto)
	if err := h.svc.Update(c.Request.Context(), owner, set, id, &f); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// DeleteFile tombstones a registered record.
func (h *Handler) DeleteFile(c *gin.Context) {
	owner := ownerFromContext(c)

	set := c.Query("name")
	id := c.Param("id")
	if set == "" || id == "" {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	var req tombstoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	err := h.svc.SoftDelete(c.Request.Context(), owner, set, id, req.Version, req.UpdatedAt, req.DeletedAt)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// IssueUpload presigns a PUT URL for a record's payload.
func (h *Handler) IssueUpload(c *gin.Context) {
	owner := ownerFromContext(c)

	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrInvalidRecord)
		return
	}
	if req.Set == "" {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	key, url, err := h.svc.IssueUploadURL(c.Request.Context(), owner, req.Set, req.LocalID, req.Filename, req.ContentType)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadURLResponse{Key: key, URL: url})
}

// BatchDownload returns payloads for the requested storage keys, in key
// order, with nil entries for keys that are missing or not the owner's.
func (h *Handler) BatchDownload(c *gin.Context) {
	owner := ownerFromContext(c)

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.ErrInvalidRecord)
		return
	}

	payloads, err := h.svc.BatchGet(c.Request.Context(), owner, req.Keys)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, batchResponse{Payloads: payloads})
}
