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

	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/api"
	"github.com/lalith-99/echothread/internal/cache"
	"github.com/lalith-99/echothread/internal/config"
	"github.com/lalith-99/echothread/internal/db"
	"github.com/lalith-99/echothread/internal/models"
	"github.com/lalith-99/echothread/internal/notify"
	"github.com/lalith-99/echothread/internal/observ"
	"github.com/lalith-99/echothread/internal/repository/memory"
	"github.com/lalith-99/echothread/internal/repository/postgres"
	"github.com/lalith-99/echothread/internal/service"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no request deadline; Background never cancels.
	ctx := context.Background()
	health := map[string]api.HealthCheck{}

	// ---------------------------------------------------------------
	// 3. Storage: Postgres, or the in-process store for local runs
	// ---------------------------------------------------------------
	var stores service.Stores
	if cfg.DatabaseURL == config.MemoryDatabase {
		mem := memory.New()
		if err := seedUsers(mem, cfg.SeedUsers); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		stores = service.Stores{
			Channels:  mem.Channels(),
			Groups:    mem.Groups(),
			Members:   mem.Memberships(),
			Messages:  mem.Messages(),
			Reactions: mem.Reactions(),
			Mentions:  mem.Mentions(),
			Users:     mem.Users(),
		}
		logger.Warn("running on the in-memory store; data is lost on exit")
	} else {
		database, err := db.New(ctx, cfg.DatabaseURL, db.PoolSettings{
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()

		if cfg.AutoMigrate {
			if err := database.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		pool := database.Pool()
		stores = service.Stores{
			Channels:  postgres.NewChannelStore(pool),
			Groups:    postgres.NewGroupStore(pool),
			Members:   postgres.NewMembershipStore(pool),
			Messages:  postgres.NewMessageStore(pool),
			Reactions: postgres.NewReactionStore(pool),
			Mentions:  postgres.NewMentionStore(pool),
			Users:     postgres.NewUserStore(pool),
		}
		health["postgres"] = database.Health
	}

	// ---------------------------------------------------------------
	// 4. Redis: message window cache and mention fan-out (optional)
	// ---------------------------------------------------------------
	opts := service.Options{
		PageSize:    cfg.PageSize,
		MaxPageSize: cfg.MaxPageSize,
		DedupeDMs:   cfg.DedupeDMs,
		Dispatcher:  notify.NewLogDispatcher(logger),
	}
	if cfg.RedisURL != "" {
		rdb, err := db.NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()

		opts.Cache = cache.NewWindowCache(rdb, "echothread:conv", cfg.CacheTTL, cfg.PageSize)
		opts.Dispatcher = notify.NewRedisDispatcher(rdb, cfg.MentionChannel, logger)
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	engine := service.New(stores, opts, logger)

	// ---------------------------------------------------------------
	// 5. HTTP server with graceful shutdown
	// ---------------------------------------------------------------
	router := api.NewRouter(api.RouterConfig{
		Engine:    engine,
		JWTSecret: cfg.JWTSecret,
		Logger:    logger,
		Health:    health,
	})
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting EchoThread",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.Bool("cache", opts.Cache != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// seedUsers parses "tenant_id:user_id,..." into the memory store.
func seedUsers(mem *memory.Store, raw string) error {
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tenant, user, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("%q: want tenant_id:user_id", pair)
		}
		tenantID, err := uuid.Parse(tenant)
		if err != nil {
			return fmt.Errorf("%q: %w", pair, err)
		}
		userID, err := uuid.Parse(user)
		if err != nil {
			return fmt.Errorf("%q: %w", pair, err)
		}
		mem.AddUser(models.User{ID: userID, TenantID: tenantID})
	}
	return nil
}
