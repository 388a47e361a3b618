// Package status serves a read-only view of the running batch on an
// optional side-channel HTTP listener, for operators watching a long run.
package status

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matpris/backend/internal/usecase"
)

// Server exposes /healthz and /status while the batch runs.
type Server struct {
	srv *http.Server
}

// Start builds the router and begins serving on addr in the background.
func Start(addr, environment string, batch *usecase.BatchService) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "matpris-scraper",
		})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, batch.Progress())
	})

	s := &Server{srv: &http.Server{Addr: addr, Handler: router}}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[STATUS] Listener failed: %v", err)
		}
	}()
	log.Printf("[STATUS] Serving on %s", addr)
	return s
}

// Stop shuts the listener down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
