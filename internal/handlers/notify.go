package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codebrew/internal/notify"
)

type NotifyRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	HTML    bool   `json:"html"`
}

func (h *Handler) Notify(c *gin.Context) {
	if h.deps.Notifier == nil {
		unavailable(c, "email")
		return
	}

	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Subject == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	status, err := h.deps.Notifier.Send(c.Request.Context(), notify.Message{
		To:      req.Email,
		Subject: req.Subject,
		Body:    req.Message,
		IsHTML:  req.HTML,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) Analytics(c *gin.Context) {
	if h.deps.Analytics == nil {
		unavailable(c, "analytics")
		return
	}
	totals, err := h.deps.Analytics.Totals()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}
