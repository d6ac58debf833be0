// Package web exposes scan results and monitor controls over HTTP. It is a
// thin collaborator around the pipeline: all decisions live in processor.
package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/processor"
)

// Server hosts the Gin-powered API for one-shot scans, monitor control and
// the websocket push stream.
type Server struct {
	cfg        appconfig.WebConfig
	scanner    *processor.Scanner
	monitor    *processor.Monitor
	hub        *Hub
	httpServer *http.Server
	log        *logger.Log
}

// NewServer constructs the API server when the web feature is enabled.
// When disabled the returned server is nil.
func NewServer(cfg appconfig.WebConfig, scanner *processor.Scanner, monitor *processor.Monitor, hub *Hub) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		cfg:     cfg,
		scanner: scanner,
		monitor: monitor,
		hub:     hub,
		log:     logger.GetLogger(),
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.buildRouter(),
	}

	s.log.WithComponent("web").WithFields(logger.Fields{"address": s.cfg.Address}).Info("starting web server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.POST("/scan", s.handleScan)
	api.POST("/auto-monitor", s.handleAutoMonitor)
	api.GET("/status", s.handleStatus)

	router.GET("/ws", func(c *gin.Context) {
		s.hub.Handle(c.Writer, c.Request)
	})

	return router
}

func (s *Server) handleScan(c *gin.Context) {
	result, err := s.scanner.Scan(c.Request.Context())
	if err != nil {
		s.log.WithComponent("web").WithError(err).Error("one-shot scan failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"opportunities": result.Opportunities,
		"count":         result.Count,
		"timestamp":     result.Timestamp,
	})
}

type monitorRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleAutoMonitor(c *gin.Context) {
	var req monitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}

	switch req.Action {
	case "start":
		s.monitor.Start()
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"status":  "started",
			"message": "auto monitor started",
		})
	case "stop":
		s.monitor.Stop()
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"status":  "stopped",
			"message": "auto monitor stopped",
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid action",
		})
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"running":          s.monitor.IsRunning(),
		"interval_seconds": int(s.monitor.Interval().Seconds()),
		"ws_clients":       s.hub.ClientCount(),
	})
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ":8080"
	}
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
