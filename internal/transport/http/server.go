// Package http serves the read-only operational surface: health, ledger
// snapshot, recent fills and actions, and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
	"github.com/skittixch/GeminiTrader-sub000/internal/store/journal"
)

// Server is the admin HTTP endpoint.
type Server struct {
	addr    string
	engine  *gin.Engine
	snap    func() *ledger.Ledger
	stage   func() string
	journal *journal.Store
}

// New builds the server. journal may be nil; the fills and actions
// endpoints then return 404.
func New(addr string, snap func() *ledger.Ledger, stage func() string, jr *journal.Store, reg *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{addr: addr, engine: engine, snap: snap, stage: stage, journal: jr}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/ledger", s.handleLedger)
	engine.GET("/api/fills", s.handleFills)
	engine.GET("/api/actions", s.handleActions)
	if reg != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	return s
}

func (s *Server) handleLedger(c *gin.Context) {
	l := s.snap()
	if l == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no state yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ledger":        l,
		"cascade_state": s.stage(),
		"grid_orders":   len(l.GridOrders),
	})
}

func (s *Server) handleFills(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	fills, err := s.journal.RecentFills(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": fills})
}

func (s *Server) handleActions(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	actions, err := s.journal.RecentActions(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http: listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
