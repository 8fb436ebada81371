// Package server exposes stored cycles over a read-only JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Benny93/sentinel-go/internal/logging"
	"github.com/Benny93/sentinel-go/internal/metrics"
	"github.com/Benny93/sentinel-go/internal/storage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
	shutdownTimeout  = 10 * time.Second
)

// Server serves snapshots from a SnapshotStore.
type Server struct {
	store     storage.SnapshotStore
	metrics   *metrics.Registry
	log       *slog.Logger
	startedAt time.Time
}

// New creates a Server. reg may be nil, in which case /metrics is not routed.
func New(store storage.SnapshotStore, reg *metrics.Registry, log *slog.Logger) *Server {
	return &Server{
		store:     store,
		metrics:   reg,
		log:       logging.OrDefault(log),
		startedAt: time.Now(),
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", s.Health)

	api := r.Group("/api")
	api.GET("/cycles", s.ListCycles)
	api.GET("/cycles/:id", s.GetCycle)
	api.GET("/stats", s.Stats)

	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("http server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime_secs": int(time.Since(s.startedAt).Seconds()),
	})
}

// ListCycles returns snapshot metadata, newest first.
func (s *Server) ListCycles(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxListLimit)})
			return
		}
		limit = n
	}

	metas, err := s.store.List(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, "list cycles", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": metas, "count": len(metas)})
}

// GetCycle returns one snapshot. The ID "latest" selects the newest.
func (s *Server) GetCycle(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var (
		snap *storage.Snapshot
		err  error
	)
	if id == "latest" {
		snap, err = s.store.Latest(ctx)
	} else {
		snap, err = s.store.Load(ctx, id)
	}
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "cycle not found", "id": id})
		return
	}
	if err != nil {
		s.fail(c, "load cycle", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Stats returns store statistics.
func (s *Server) Stats(c *gin.Context) {
	st, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	s.log.Error("request failed", "op", op, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// observe logs each request and records HTTP metrics labelled by route
// pattern.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		s.metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), elapsed)
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", elapsed)
	}
}
