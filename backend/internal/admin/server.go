// Package admin serves the bot's health, metrics and read-only status API.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"texvoice/backend/internal/dictionary"
	"texvoice/backend/internal/playback"
	"texvoice/backend/internal/voicevox"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// SessionLister lists active voice sessions
type SessionLister interface {
	List() []playback.SessionInfo
}

// SpeakerCatalog lists the engine's speakers
type SpeakerCatalog interface {
	Speakers() []voicevox.Speaker
}

// ModelLister lists loaded voice models
type ModelLister interface {
	Loaded() []int
}

// DictionaryLookup finds a guild's dictionary
type DictionaryLookup interface {
	Get(guildID string) *dictionary.Dictionary
}

// Deps are the views the server exposes
type Deps struct {
	Sessions     SessionLister
	Speakers     SpeakerCatalog
	Models       ModelLister
	Dictionaries DictionaryLookup
	Metrics      http.Handler
}

// Server is the admin HTTP server
type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

// New builds the router. In production gin runs in release mode.
func New(deps Deps, production bool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := router.Group("/api")
	{
		api.GET("/sessions", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"sessions": deps.Sessions.List()})
		})

		api.GET("/speakers", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"speakers": deps.Speakers.Speakers()})
		})

		api.GET("/models", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"loaded": deps.Models.Loaded()})
		})

		api.GET("/guilds/:guild_id/dictionary", func(c *gin.Context) {
			guildID := c.Param("guild_id")

			d := deps.Dictionaries.Get(guildID)
			if d == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dictionary not found"})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"guild_id": guildID,
				"entries":  d.Entries(),
			})
		})
	}

	return &Server{router: router, logger: logger}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("Admin server started", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down admin server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Admin server forced to shutdown", zap.Error(err))
		return err
	}
	return nil
}

// ginLogger logs each request except health checks and scrapes
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if path == "/health" || path == "/metrics" {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
