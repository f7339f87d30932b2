// Package statusapi exposes a small read-only status surface plus a
// handful of operator controls (pause, resume, force-close) over HTTP.
// It never makes trading decisions itself; every handler reads from or
// signals into the orchestrator through the BotAPI interface.
package statusapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/position"
	"binance-trading-bot/internal/stats"
)

// Status is the point-in-time snapshot returned by GET /status.
type Status struct {
	Symbol       string          `json:"symbol"`
	DryRun       bool            `json:"dry_run"`
	Paused       bool            `json:"paused"`
	Frozen       bool            `json:"frozen"`
	Engine       string                      `json:"engine"`
	Position     position.LocalPositionState `json:"position"`
	Aggregates   stats.Aggregates            `json:"aggregates"`
	LastBarClose time.Time       `json:"last_bar_close"`
}

// BotAPI is the narrow surface the orchestrator implements for this
// package. Every method must be safe to call concurrently with the
// trading loop.
type BotAPI interface {
	Status() Status
	RecentTrades(limit int) []stats.Trade
	Pause()
	Resume()
	ForceClose(reason string) error
}

// Server is the read-only status/control HTTP surface.
type Server struct {
	log    zerolog.Logger
	router *gin.Engine
	http   *http.Server
	bot    BotAPI
}

// NewServer builds the HTTP surface over bot, applying cfg's CORS and
// timeout settings.
func NewServer(cfg config.ServerConfig, bot BotAPI, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		log:    logger.With().Str("component", "status-api").Logger(),
		router: router,
		bot:    bot,
	}
	s.registerRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/trades", s.handleTrades)
	s.router.POST("/control/pause", s.handlePause)
	s.router.POST("/control/resume", s.handleResume)
	s.router.POST("/control/close", s.handleForceClose)
}

// ListenAndServe blocks serving HTTP until the server errors or is shut
// down via Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("status api: listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status api: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, honoring shutdownTimeout.
func (s *Server) Shutdown(shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("status api: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleStatus(c *gin.Context) {
	successResponse(c, s.bot.Status())
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parsePositiveInt(l); err == nil {
			limit = parsed
		}
	}
	successResponse(c, s.bot.RecentTrades(limit))
}

func (s *Server) handlePause(c *gin.Context) {
	s.bot.Pause()
	successResponse(c, gin.H{"paused": true})
}

func (s *Server) handleResume(c *gin.Context) {
	s.bot.Resume()
	successResponse(c, gin.H{"paused": false})
}

func (s *Server) handleForceClose(c *gin.Context) {
	reason := c.Query("reason")
	if reason == "" {
		reason = "manual-close"
	}
	if err := s.bot.ForceClose(reason); err != nil {
		errorResponse(c, http.StatusConflict, err.Error())
		return
	}
	successResponse(c, gin.H{"closed": true})
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": true, "message": message})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	return n, nil
}
