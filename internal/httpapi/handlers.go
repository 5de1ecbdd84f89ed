package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BiblioOps/Noticus/internal/domain/outbox"
	"github.com/BiblioOps/Noticus/internal/services/scheduler"
)

// runReminders triggers one reminder scan. The scan itself succeeding
// is a 200 even when individual reminders failed; only guard and
// store-level problems surface as hard failures.
func (s *Server) runReminders(c *gin.Context) {
	sum, err := s.Scheduler.RunDue(c.Request.Context(), c.GetHeader(headerCronSecret))
	switch {
	case errors.Is(err, scheduler.ErrGuardUnconfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	case errors.Is(err, scheduler.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.Log.Error("reminder run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reminder run failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) runDeliveries(c *gin.Context) {
	limit := s.DrainLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	sum, err := s.Worker.ProcessPending(c.Request.Context(), limit)
	if err != nil {
		s.Log.Error("delivery drain", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delivery drain failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) retryDelivery(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || eventID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	id, err := s.Deliveries.Requeue(c.Request.Context(), eventID)
	switch {
	case errors.Is(err, outbox.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	case err != nil:
		s.Log.Error("requeue delivery", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "requeue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery_id": id})
}

func (s *Server) listNotices(c *gin.Context) {
	recipient := strings.TrimSpace(c.Query("recipient"))
	if recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient is required"})
		return
	}
	limit := 50
	if q := c.Query("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.Notices.ListByRecipient(c.Request.Context(), recipient, limit)
	if err != nil {
		s.Log.Error("list notices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notices": events})
}

type createHandoffRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// createHandoff stores a secret and returns the one-time token, so the
// secret itself never has to ride along in the creation response of
// whatever produced it.
func (s *Server) createHandoff(c *gin.Context) {
	var req createHandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}

	token, err := s.Handoff.Put(req.Secret)
	if err != nil {
		s.Log.Error("store handoff secret", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// consumeHandoff is deliberately uniform: never-issued, consumed and
// expired tokens all read as 404.
func (s *Server) consumeHandoff(c *gin.Context) {
	secret, ok := s.Handoff.Consume(c.Param("token"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret})
}
