package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"carlton/internal/app"
	"carlton/internal/config"
	"carlton/internal/handler"
	"carlton/internal/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging, nil)

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Carlton property assistant")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer a.Close()

	if a.Syncer != nil {
		if err := a.Syncer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start listing sync")
		}
	}

	gin.SetMode(cfg.Server.GinMode)
	router := newRouter(a)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func newRouter(a *app.App) *gin.Engine {
	cfg := a.Config

	router := gin.New()
	router.Use(gin.Recovery(), handler.RequestLogger(), handler.SecurityHeaders())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitList(cfg.Server.AllowedOrigins)
	corsConfig.AllowMethods = splitList(cfg.Server.AllowedMethods)
	corsConfig.AllowHeaders = splitList(cfg.Server.AllowedHeaders)
	if len(corsConfig.AllowOrigins) == 0 || corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"status":    "healthy",
			"service":   "carlton-assistant",
			"version":   Version,
			"upstream":  a.Carlton.IsEnabled(),
			"generator": a.Generator != nil,
			"database":  a.Repo != nil,
		}
		if a.Repo != nil {
			if err := a.Repo.Ping(c.Request.Context()); err != nil {
				status["status"] = "degraded"
				status["database_error"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, status)
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	analysisHandler := handler.NewAnalysisHandler(a.Lexicon, a.Analyzer, a.Ranker, a.Redirect)
	chatHandler := handler.NewChatHandler(a.Chat)
	propertyHandler := handler.NewPropertyHandler(a.Inventory, a.Analyzer, a.Ranker, 20, cfg.Ranking.MaxListings)
	limiter := handler.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)

	apiV1 := router.Group("/api/v1", limiter.Middleware())
	{
		apiV1.POST("/analyze", analysisHandler.Analyze)
		apiV1.POST("/rank", analysisHandler.Rank)
		apiV1.POST("/redirect", analysisHandler.Redirect)
		apiV1.POST("/insights", analysisHandler.Insights)

		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.POST("/shortlist", chatHandler.Shortlist)
		apiV1.POST("/recommend", chatHandler.Recommend)
		apiV1.GET("/session/:id", chatHandler.Session)

		apiV1.GET("/properties", propertyHandler.Search)
		apiV1.GET("/properties/stream", propertyHandler.SearchStream)
		apiV1.GET("/properties/:id", propertyHandler.GetListing)
	}

	setupStaticFiles(router, cfg.Server.PublicDir)
	return router
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
