// Package app assembles the services from configuration. It is shared by the
// HTTP server and carltonctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"carlton/internal/cache"
	"carlton/internal/carlton"
	"carlton/internal/config"
	"carlton/internal/lexicon"
	"carlton/internal/repository"
	"carlton/internal/service"
)

// ErrSyncUnavailable is returned when sync needs both the upstream API and Postgres
var ErrSyncUnavailable = errors.New("listing sync needs CARLTON_API_KEY and a Postgres DSN")

const memoryCacheSize = 10000

// App holds the wired services. Repo and Syncer are nil when Postgres is
// not configured.
type App struct {
	Config    *config.Config
	Lexicon   *lexicon.Lexicon
	Cache     cache.Cache
	Repo      *repository.PostgresRepository
	Carlton   *carlton.Client
	Generator service.TextGenerator
	Analyzer  *service.Analyzer
	Redirect  *service.RedirectGenerator
	Ranker    *service.Ranker
	Inventory *service.Inventory
	Sessions  *service.SessionStore
	Chat      *service.ChatService
	Syncer    *service.ListingSyncer
}

// Options tweak construction for the CLI
type Options struct {
	// Random overrides the redirect randomizer, e.g. for a fixed seed
	Random service.Randomizer
	// SkipDatabase leaves Postgres unconnected even when configured
	SkipDatabase bool
}

// New builds every service described by cfg
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	lex, err := loadLexicon(cfg.Lexicon.Path)
	if err != nil {
		return nil, err
	}
	a.Lexicon = lex

	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		a.Cache = rc
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis cache")
	} else {
		a.Cache = cache.NewMemoryCache(memoryCacheSize, longestTTL(cfg.Session.TTL, cfg.Carlton.CacheTTL, cfg.Carlton.ImagesTTL))
		log.Info().Msg("REDIS_ADDR not set, using in-memory cache")
	}

	if cfg.PostgreSQL.Enabled && !opts.SkipDatabase {
		repo, err := repository.NewPostgresRepository(
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Repo = repo
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		log.Info().Msg("connected to PostgreSQL")
	}

	a.Carlton = carlton.NewClient(cfg.Carlton, a.Cache)
	if !a.Carlton.IsEnabled() {
		log.Warn().Msg("CARLTON_API_KEY not set, listings come from the stored snapshot only")
	}

	if cfg.Generator.Enabled {
		a.Generator = service.NewChatCompletionClient(cfg.Generator, "")
		log.Info().Str("model", cfg.Generator.Model).Str("api_base", cfg.Generator.APIBase).Msg("text generator enabled")
	} else {
		log.Info().Msg("text generator disabled, using structured replies")
	}

	if err := a.buildServices(opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildServices(opts Options) error {
	cfg := a.Config
	var err error

	a.Analyzer, err = service.NewAnalyzer(a.Lexicon, a.Generator, cfg.Generator.Timeout)
	if err != nil {
		return err
	}

	rnd := opts.Random
	if rnd == nil {
		rnd = service.NewTimeRandomizer()
	}
	a.Redirect, err = service.NewRedirectGenerator(a.Lexicon, a.Generator, cfg.Generator.Timeout, rnd)
	if err != nil {
		return err
	}

	a.Ranker = service.NewRanker(service.WeightsFromConfig(cfg.Ranking))
	a.Sessions = service.NewSessionStore(a.Cache, cfg.Session.TTL)

	// interface values stay nil when a backend is off
	var primary, fallback service.ListingSource
	var recorder service.TurnRecorder
	if a.Carlton.IsEnabled() {
		primary = a.Carlton
	}
	if a.Repo != nil {
		fallback = a.Repo
		recorder = a.Repo
	}
	a.Inventory = service.NewInventory(primary, fallback)

	a.Chat, err = service.NewChatService(service.ChatDeps{
		Lexicon:   a.Lexicon,
		Analyzer:  a.Analyzer,
		Redirect:  a.Redirect,
		Ranker:    a.Ranker,
		Listings:  a.Inventory,
		Images:    a.Carlton,
		Sessions:  a.Sessions,
		Recorder:  recorder,
		Generator: a.Generator,
		Random:    rnd,
	}, service.ChatOptions{
		MaxResults:       cfg.Ranking.MaxResults,
		MaxHistory:       cfg.Session.MaxHistory,
		GeneratorTimeout: cfg.Generator.Timeout,
		WhatsAppNumber:   cfg.Chat.WhatsAppNumber,
		Phone:            cfg.Chat.Phone,
		Email:            cfg.Chat.Email,
	})
	if err != nil {
		return err
	}

	if a.Carlton.IsEnabled() && a.Repo != nil {
		a.Syncer = service.NewListingSyncer(a.Carlton, a.Repo, cfg.Carlton.SyncSchedule, 0)
	}
	return nil
}

// Sync runs one listing sync
func (a *App) Sync(ctx context.Context) (int, error) {
	if a.Syncer == nil {
		return 0, ErrSyncUnavailable
	}
	return a.Syncer.SyncOnce(ctx)
}

// Close releases the database and cache connections
func (a *App) Close() {
	if a.Syncer != nil {
		a.Syncer.Stop()
	}
	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close cache")
		}
	}
}

func loadLexicon(path string) (*lexicon.Lexicon, error) {
	if path == "" {
		return lexicon.Default()
	}
	lex, err := lexicon.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("loaded lexicon override")
	return lex, nil
}

// longestTTL bounds the in-memory cache so no caller's entries outlive it
func longestTTL(ttls ...time.Duration) time.Duration {
	var longest time.Duration
	for _, ttl := range ttls {
		if ttl > longest {
			longest = ttl
		}
	}
	return longest
}
