package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/catalog-service/internal/api/http"
	"github.com/spec-kit/catalog-service/internal/api/http/handlers"
	"github.com/spec-kit/catalog-service/internal/auth"
	"github.com/spec-kit/catalog-service/internal/cache"
	"github.com/spec-kit/catalog-service/internal/config"
	"github.com/spec-kit/catalog-service/internal/events"
	"github.com/spec-kit/catalog-service/internal/observability"
	"github.com/spec-kit/catalog-service/internal/persistence"
	"github.com/spec-kit/catalog-service/internal/repository"
	"github.com/spec-kit/catalog-service/internal/service"
	"github.com/spec-kit/catalog-service/internal/worker"
)

// store is the persistence selected by STORE_DRIVER.
type store struct {
	credentials repository.CredentialStore
	books       repository.BookRepository
	pinger      handlers.Pinger
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.JWTIssuer,
		TTL:    cfg.Auth.AccessTokenTTL(),
	})
	if err != nil {
		logger.Fatal("invalid token configuration", zap.Error(err))
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		limiter   service.LoginLimiter
		bookCache service.BookCache
	)
	if redis != nil {
		if cfg.Auth.LoginMaxAttempts > 0 {
			limiter = cache.NewLoginLimiter(redis.Client, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow())
		}
		if ttl := cfg.Catalog.CacheTTL(); ttl > 0 {
			bookCache = cache.NewBookCache(redis.Client, ttl)
		}
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService := service.NewAuthService(service.AuthDependencies{
		Credentials: st.credentials,
		Hasher:      auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Tokens:      tokens,
		Limiter:     limiter,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})
	catalogService := service.NewCatalogService(service.CatalogDependencies{
		Books:      st.books,
		Cache:      bookCache,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	if err := service.BootstrapAdmin(ctx, authService, cfg.Auth, logger); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(auth.MiddlewareDeps{
		Tokens:      authService.TokenCodec(),
		Credentials: st.credentials,
		Logger:      logger,
		Metrics:     metrics,
	})

	dependencies := map[string]handlers.Pinger{}
	if st.pinger != nil {
		dependencies[cfg.Store.Driver] = st.pinger
	}
	if redis != nil {
		dependencies["redis"] = redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Auth:           handlers.NewAuthHandler(authService),
		Books:          handlers.NewBooksHandler(catalogService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	snapshot := metrics.Snapshot()
	logger.Info("stopped", zap.Any("auth_failures", snapshot.AuthFailures))
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &store{
			credentials: repository.NewInMemoryCredentialStore(),
			books:       repository.NewInMemoryBookRepository(),
			close:       func() {},
		}, nil
	case config.StoreDriverSQLite:
		lite, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		if err := persistence.RunMigrations(ctx, lite.SQL(), persistence.DialectSQLite, logger); err != nil {
			lite.Close()
			return nil, err
		}
		return sqlStore(lite.SQL(), lite, lite.Close), nil
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.SQL(), persistence.DialectPostgres, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return sqlStore(pg.SQL(), pg, pg.Close), nil
	}
}

func sqlStore(db *sql.DB, pinger handlers.Pinger, closeFn func()) *store {
	return &store{
		credentials: repository.NewCredentialRepository(db),
		books:       repository.NewBookRepository(db),
		pinger:      pinger,
		close:       closeFn,
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
