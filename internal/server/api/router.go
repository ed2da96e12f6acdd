// Package api exposes the metadata API over REST using gin.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/avolkov/snapsync/internal/logging"
	"github.com/avolkov/snapsync/internal/server/services"
)

// NewRouter assembles the gin engine: a public liveness probe plus the
// authenticated metadata and storage endpoints.
func NewRouter(svc *services.FileService, secretKey []byte, log logging.Logger) *gin.Engine {
	h := NewHandler(svc, log)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ping", h.Ping)

	authed := r.Group("/", authMiddleware(secretKey))
	{
		authed.GET("/imagesets", h.ListSets)
		authed.GET("/files", h.ListFiles)
		authed.POST("/files", h.CreateFile)
		authed.PUT("/files/:id", h.UpdateFile)
		authed.DELETE("/files/:id/s", h.DeleteFile)
		authed.POST("/storage/uploads", h.IssueUpload)
		authed.POST("/storage/batch", h.BatchDownload)
	}

	return r
}
