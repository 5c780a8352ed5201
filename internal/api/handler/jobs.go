package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eyu/animal-counter/internal/domain"
	"github.com/eyu/animal-counter/internal/logger"
	"github.com/eyu/animal-counter/internal/pipeline"
)

// JobHandler handles video submission and result endpoints.
type JobHandler struct {
	controller *pipeline.Controller
	uploadDir  string
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - controller: pipeline controller owning the job lifecycle.
//   - uploadDir: directory where uploaded videos are stored.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(controller *pipeline.Controller, uploadDir string) *JobHandler {
	return &JobHandler{
		controller: controller,
		uploadDir:  uploadDir,
	}
}

// Process handles POST /process. It accepts a multipart video upload plus a
// detection type, queues the counting job, and answers 202 immediately with
// the job ID for polling.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Process(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "missing video file in form field 'video'",
		})
		return
	}

	detectionType := c.PostForm("type")
	if _, err := domain.ParseDetectionType(detectionType); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown detection type: must be 'birds' or 'livestock'",
		})
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		logger.CtxError(ctx, "failed to create upload dir: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to store upload",
		})
		return
	}

	// A fresh name per upload avoids collisions between identically named files.
	dest := filepath.Join(h.uploadDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dest); err != nil {
		logger.CtxError(ctx, "failed to save upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to store upload",
		})
		return
	}

	id, err := h.controller.Submit(ctx, dest, detectionType)
	if err != nil {
		logger.CtxError(ctx, "failed to submit job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to create job",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"result_id": id,
		"status":    domain.JobStatusProcessing,
	})
}

// List handles GET /all, returning every job newest first.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) List(c *gin.Context) {
	views, err := h.controller.List(c.Request.Context())
	if err != nil {
		logger.CtxError(c.Request.Context(), "failed to list jobs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list jobs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": views,
		"count":   len(views),
	})
}

// Get handles GET /results/:id. Processing jobs answer with just their
// status; completed jobs include the counts, failed jobs the error message.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Get(c *gin.Context) {
	id := c.Param("id")

	view, err := h.controller.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "no such result: " + id,
			})
			return
		}
		logger.CtxError(c.Request.Context(), "failed to load job %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load job",
		})
		return
	}

	c.JSON(http.StatusOK, view)
}
