// @title           Auth Service API
// @version         1.0
// @description     User registration, login and profile management with JWT bearer tokens.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/auth-service/internal/api"
	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/service"
	"github.com/99minutos/auth-service/internal/infrastructure/config"
	"github.com/99minutos/auth-service/internal/infrastructure/db/memory"
	mongostore "github.com/99minutos/auth-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/auth-service/internal/infrastructure/db/postgres"
	rediscache "github.com/99minutos/auth-service/internal/infrastructure/db/redis"
	"github.com/99minutos/auth-service/internal/infrastructure/queue"
	"github.com/99minutos/auth-service/internal/infrastructure/security"
	"github.com/99minutos/auth-service/pkg/logger"
)

const serviceName = "auth-service"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

// storage is the backend selected by STORE_DRIVER.
type storage struct {
	users  ports.UserStore
	audit  ports.AuditRepository
	checks []handler.DependencyCheck
	close  func(ctx context.Context)
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		store.close(closeCtx)
	}()

	tokens := security.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration,
		security.WithIssuer(cfg.Auth.JWTIssuer))
	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost)

	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, store.audit, log)
	auditCtx, stopAudit := context.WithCancel(context.Background())
	dispatcher.Start(auditCtx)

	opts := []service.Option{
		service.WithAuditRecorder(dispatcher),
		service.WithPhoneRegion(cfg.PhoneRegion),
	}
	checks := store.checks

	if cfg.Redis.Enabled {
		rdb, err := rediscache.Connect(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			stopAudit()
			return err
		}
		defer rdb.Close()

		opts = append(opts, service.WithProfileCache(rediscache.NewProfileCache(rdb, cfg.Redis.ProfileCacheTTL)))
		checks = append(checks, handler.RedisCheck(rdb))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("profile cache enabled")
	}

	authService := service.NewAuthService(store.users, hasher, tokens, log, opts...)

	router := api.NewRouter(api.Dependencies{
		AuthService: authService,
		Tokens:      tokens,
		Checks:      checks,
		Log:         log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Str("store", cfg.StoreDriver).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Requests are finished; flush what they queued.
	stopAudit()
	dispatcher.Wait()
	log.Info().Msg("stopped")

	return err
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, users, audit, err := mongostore.Open(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  serviceName,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("db", cfg.Mongo.Database).Msg("connected to MongoDB")
		return &storage{
			users:  users,
			audit:  audit,
			checks: []handler.DependencyCheck{handler.MongoCheck(client)},
			close: func(ctx context.Context) {
				if err := client.Disconnect(ctx); err != nil {
					log.Warn().Err(err).Msg("mongo disconnect")
				}
			},
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("connected to PostgreSQL")
		return &storage{
			users:  postgres.NewUserStore(pool),
			audit:  postgres.NewAuditRepository(pool),
			checks: []handler.DependencyCheck{handler.PostgresCheck(pool)},
			close:  func(context.Context) { pool.Close() },
		}, nil

	default:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return &storage{
			users: memory.NewUserStore(),
			audit: memory.NewAuditLog(),
			close: func(context.Context) {},
		}, nil
	}
}
