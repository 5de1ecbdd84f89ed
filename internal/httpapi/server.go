// Package httpapi exposes the trigger endpoints: reminder runs,
// delivery drains, retry enqueue, notice listing, and the one-time
// secret handoff.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/domain/outbox"
	"github.com/BiblioOps/Noticus/internal/handoff"
	"github.com/BiblioOps/Noticus/internal/services/deliverer"
	"github.com/BiblioOps/Noticus/internal/services/scheduler"
)

const headerCronSecret = "X-Cron-Secret"

type Server struct {
	Log        *zap.Logger
	Scheduler  *scheduler.Usecase
	Worker     *deliverer.Worker
	Deliveries outbox.Repository
	Notices    notice.Store
	Handoff    *handoff.Store
	DrainLimit int
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.logRequests())

	v1 := r.Group("/v1")
	v1.POST("/reminders/run", s.runReminders)
	v1.POST("/deliveries/run", s.runDeliveries)
	v1.POST("/events/:id/retry", s.retryDelivery)
	v1.GET("/notices", s.listNotices)
	v1.POST("/handoff", s.createHandoff)
	v1.POST("/handoff/:token", s.consumeHandoff)

	return r
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func Serve(addr string, r *gin.Engine, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("http listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", zap.Error(err))
		}
	}()
	return srv
}
