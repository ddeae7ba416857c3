package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/UkralStul/blog-service/internal/auth"
	"github.com/UkralStul/blog-service/internal/cache"
	"github.com/UkralStul/blog-service/internal/config"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/handler"
	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/media"
	"github.com/UkralStul/blog-service/internal/pagination"
	"github.com/UkralStul/blog-service/internal/service"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/UkralStul/blog-service/internal/storage/gormstore"
	"github.com/UkralStul/blog-service/internal/storage/inmemory"
)

func main() {
	storageType := flag.String("storage", "", "Storage type (in-memory or gorm), overrides config")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		l := logging.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}
	if *storageType != "" {
		cfg.Storage.Driver = *storageType
	}

	logging.Init(cfg.Log)
	logger := logging.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.Storage
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("starting server")
	switch cfg.Storage.Driver {
	case "gorm", "postgres":
		db, err := gormstore.Open(gormstore.Config{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.Database.DSN,
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			DBName:          cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			FilePath:        cfg.Database.FilePath,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			LogLevel:        gormstore.LogLevel(cfg.Log.Level),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
		}
		defer sqlDB.Close()
		store = gormstore.New(db)
		logger.Info().Str("db_driver", cfg.Database.Driver).Msg("database ready")
	case "in-memory", "":
		store = inmemory.New()
	default:
		logger.Fatal().Str("driver", cfg.Storage.Driver).Msg("unsupported storage driver")
	}

	files, err := media.New(ctx, cfg.Media)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init media storage")
	}

	listingCache, err := cache.New(ctx, cfg.Cache, cache.RedisOptions{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init cache")
	}
	defer listingCache.Close()

	publisher, err := events.NewPublisher(ctx, cfg.Events)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Events.Driver).Msg("event bus unavailable, events disabled")
		publisher = events.Noop{}
	}
	defer publisher.Close()

	secret := cfg.Auth.Secret
	if secret == "" {
		// Токены, выданные этим ключом, не переживут рестарт
		secret = uuid.NewString()
		logger.Warn().Msg("AUTH_SECRET is not set, using an ephemeral secret")
	}
	tokens, err := auth.NewManager(secret, cfg.Auth.Issuer, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init auth")
	}

	paginator := pagination.New(cfg.Pagination.PageSize)
	observer := events.NewCommentObserver()
	users := service.NewUserService(store)
	content := service.NewContentService(store, files, paginator, observer, publisher)
	follows := service.NewFollowService(store, paginator, publisher)

	if cfg.Storage.SeedData && cfg.Storage.Driver != "gorm" && cfg.Storage.Driver != "postgres" {
		// Заполним данными для тестов
		fillWithMockData(ctx, store, content, follows, users, tokens)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(logging.HTTPMiddleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	h := handler.New(handler.Config{
		Store:     store,
		Content:   content,
		Follows:   follows,
		Files:     files,
		Cache:     listingCache,
		Observer:  observer,
		Identify:  auth.Identify(tokens, users),
		LoginURL:  cfg.Auth.LoginURL,
		URLExpiry: cfg.Media.URLExpiry,
	})
	h.RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: router}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msgf("connect to http://localhost:%d%s/posts", cfg.Server.Port, handler.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}
