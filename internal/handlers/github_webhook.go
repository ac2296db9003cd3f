package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v82/github"

	"codebrew/internal/scan"
)

// GitHubWebhook validates a delivery and, for pushes to the default branch,
// queues a scan of the changed files.
func (h *Handler) GitHubWebhook(c *gin.Context) {
	if h.deps.Webhooks == nil {
		unavailable(c, "webhook processing")
		return
	}

	eventType := github.WebHookType(c.Request)
	deliveryID := github.DeliveryID(c.Request)
	if eventType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-GitHub-Event header"})
		return
	}

	secret := []byte(h.deps.WebhookSecret)
	if len(secret) == 0 {
		secret = nil
	}

	payload, err := github.ValidatePayload(c.Request, secret)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload or signature", "details": err.Error()})
		return
	}

	summary := gin.H{"event_type": eventType, "delivery_id": deliveryID}

	job, err := h.deps.Webhooks.Process(c.Request.Context(), eventType, payload, deliveryID)
	if err != nil {
		log.Printf("github webhook event=%s delivery=%s: %v", eventType, deliveryID, err)
		if errors.Is(err, scan.ErrQueueFull) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported webhook event", "event_type": eventType, "details": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusOK, summary)
		return
	}

	summary["scan_id"] = job.ID
	summary["files"] = len(job.Request.Files)
	c.JSON(http.StatusAccepted, summary)
}
