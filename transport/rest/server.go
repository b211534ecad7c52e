package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the gin engine with one route per game operation plus /metrics.
func New(logger *slog.Logger, service GameService, registry *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger), newRequestMetrics(registry).middleware())

	h := NewHandlers(logger, service)

	engine.POST("/start_handshake", h.StartHandshake)
	engine.POST("/complete_handshake", h.CompleteHandshake)
	engine.GET("/current_move", h.CurrentMove)
	engine.GET("/board", h.Board)
	engine.POST("/place_piece", h.PlacePiece)
	engine.POST("/new_game", h.NewGame)
	engine.POST("/set_trash_talk", h.SetTrashTalk)
	engine.GET("/get_trash_talk", h.GetTrashTalk)
	engine.GET("/read_log", h.ReadLog)
	engine.GET("/ping", pingHandler)

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return &Server{
		logger: logger,
		engine: engine,
	}
}

func (that *Server) Handler() http.Handler {
	return that.engine
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	that.logger.Info("HTTP server stopped")

	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
