package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"codebrew/internal/scan"
)

type ScanRequest struct {
	Target    string `json:"target" binding:"required"`
	Extension string `json:"extension"`
}

// Scan queues a walk of a directory or repository and answers 202 with the job
func (h *Handler) Scan(c *gin.Context) {
	if h.deps.Scans == nil {
		unavailable(c, "scan queue")
		return
	}

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target is required"})
		return
	}

	job, err := h.deps.Scans.Enqueue(c.Request.Context(), scan.Request{Target: req.Target, Extension: req.Extension})
	if err != nil {
		if errors.Is(err, scan.ErrQueueFull) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		abortWithError(c, err)
		return
	}

	c.Header("Location", "/api/scan/"+job.ID)
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) ScanStatus(c *gin.Context) {
	if h.deps.Scans == nil {
		unavailable(c, "scan queue")
		return
	}
	job, ok := h.deps.Scans.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}
