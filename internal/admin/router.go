// Package admin exposes the server's observability HTTP surface —
// /healthz, /stats and Prometheus's /metrics — separate from the game's
// TCP/UDP transports. Grounded on the teacher's cmd/api/main.go gin
// router + gin-contrib/cors setup, with metrics done the way
// iranpsc-microservice-metarang/shared/pkg/metrics does it
// (promauto-registered collectors) rather than the teacher's own
// hand-rolled HubMetrics struct.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider is the narrow view the admin surface needs into the
// rest of the server to answer /stats.
type StatsProvider interface {
	ConnectedClients() int
	ActiveSessions() int
	RegisteredAccounts() int
}

// Server is the admin HTTP surface.
type Server struct {
	httpServer *http.Server
	metrics    *Metrics
}

// New builds the admin router bound to addr.
func New(addr string, serverName string, stats StatsProvider) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies(nil)

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	m := NewMetrics()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "server": serverName})
	})
	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"connectedClients":   stats.ConnectedClients(),
			"activeSessions":     stats.ActiveSessions(),
			"registeredAccounts": stats.RegisteredAccounts(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		metrics:    m,
	}
}

// Metrics returns the Prometheus collectors so connmgr/sessionengine
// wiring can record against them.
func (s *Server) Metrics() *Metrics { return s.metrics }

// ListenAndServe blocks serving the admin surface until ctx is
// cancelled, then shuts the HTTP server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
