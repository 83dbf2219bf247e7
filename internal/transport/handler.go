package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/teddyrendahl/psbeam/internal/config"
	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
	"github.com/teddyrendahl/psbeam/internal/focus"
	"github.com/teddyrendahl/psbeam/internal/logger"
	"github.com/teddyrendahl/psbeam/internal/observer"
	"github.com/teddyrendahl/psbeam/internal/service"
	"github.com/teddyrendahl/psbeam/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Rig-local dashboards connect from arbitrary origins; restrict at
	// the reverse proxy if needed.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewHandler(svc service.FocusService, broadcaster *observer.Broadcaster, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)

	api := r.Group("/api/v1")
	api.POST("/runs", startRun(svc, cfg))
	api.GET("/runs", listRuns(svc))
	api.GET("/runs/:id", getRun(svc))
	api.GET("/runs/:id/events", streamRunEvents(svc, broadcaster))
	api.GET("/metrics", getMetrics(svc))

	return r
}

func startRun(svc service.FocusService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"ip":     c.ClientIP(),
		}).Info("Processing focus run request")

		var req models.FocusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"ip": c.ClientIP(),
			}).Error("Invalid request format")
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		record, err := svc.StartRun(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), "starting focus run failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"run_id":   record.ID,
			"target":   record.Target,
			"camera":   record.Camera,
			"strategy": record.Strategy,
		}).Info("Focus run accepted")
		c.JSON(http.StatusAccepted, record)
	}
}

func getRun(svc service.FocusService) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := svc.GetRun(c.Param("id"))
		if err != nil {
			respondError(c, determineStatusCode(err), "run lookup failed", err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func listRuns(svc service.FocusService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.ListRuns())
	}
}

func getMetrics(svc service.FocusService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Metrics())
	}
}

// streamRunEvents upgrades to a WebSocket and forwards the events of one
// run as JSON messages, closing after the run's terminal event. A run
// that already finished closes immediately; its record stays available
// on the runs endpoint.
func streamRunEvents(svc service.FocusService, broadcaster *observer.Broadcaster) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := svc.GetRun(c.Param("id"))
		if err != nil {
			respondError(c, determineStatusCode(err), "run lookup failed", err)
			return
		}

		// Subscribe before checking state so no event slips past between
		// the check and the first read.
		events, unsubscribe := broadcaster.Subscribe()
		defer unsubscribe()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithError(err).Error("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		if run.State != string(focus.StateSearching) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run already finished"))
			return
		}

		// Reader drains control frames and signals when the client
		// hangs up.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		heartbeat := time.NewTicker(30 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.RunID != run.ID {
					continue
				}
				if err := conn.WriteJSON(event); err != nil {
					return
				}
				if event.Type == observer.RunConverged || event.Type == observer.RunAborted {
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
					return
				}
			case <-heartbeat.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-clientGone:
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a structured focus error first
	if appErr, ok := apperrors.AsError(err); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
