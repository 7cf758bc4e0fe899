// Package httpd exposes the processing run over HTTP. The service is
// cron-triggered: an external scheduler invokes /run and relays the textual
// report.
package httpd

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cainozoic1865/wensco-pin-server1/internal/processor"
)

type Runner interface {
	Run(ctx context.Context) (*processor.Report, error)
}

type Handler struct {
	runner  Runner
	logger  *slog.Logger
	version string

	// serializes runs - an overlapping trigger would double-issue PINs for
	// rows the in-flight run has not written back yet
	mu sync.Mutex
}

func NewHandler(runner Runner, logger *slog.Logger, version string) *Handler {
	return &Handler{
		runner:  runner,
		logger:  logger,
		version: version,
	}
}

func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	engine.GET("/", h.root)
	engine.GET("/health", h.health)
	engine.GET("/version", h.getVersion)
	engine.GET("/run", h.run)

	return engine
}

func (h *Handler) root(c *gin.Context) {
	c.String(http.StatusOK, "Wensco PIN server is running.")
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getVersion(c *gin.Context) {
	c.String(http.StatusOK, h.version)
}

func (h *Handler) run(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	report, err := h.runner.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("run failed", "error", err)
		c.String(http.StatusInternalServerError, "Error: %v", err)
		return
	}

	c.String(http.StatusOK, report.Summary())
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started),
		)
	}
}
