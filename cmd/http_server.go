package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/equipment-approvals/api"
	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/internal/auth"
	authPostgres "github.com/frahmantamala/equipment-approvals/internal/auth/postgres"
	"github.com/frahmantamala/equipment-approvals/internal/core/database"
	"github.com/frahmantamala/equipment-approvals/internal/core/events"
	"github.com/frahmantamala/equipment-approvals/internal/equipment"
	equipmentPostgres "github.com/frahmantamala/equipment-approvals/internal/equipment/postgres"
	"github.com/frahmantamala/equipment-approvals/internal/permission"
	permissionPostgres "github.com/frahmantamala/equipment-approvals/internal/permission/postgres"
	"github.com/frahmantamala/equipment-approvals/internal/request"
	requestPostgres "github.com/frahmantamala/equipment-approvals/internal/request/postgres"
	"github.com/frahmantamala/equipment-approvals/internal/transport"
	"github.com/frahmantamala/equipment-approvals/internal/transport/middleware"
	"github.com/frahmantamala/equipment-approvals/internal/transport/rest"
	"github.com/frahmantamala/equipment-approvals/internal/user"
	userPostgres "github.com/frahmantamala/equipment-approvals/internal/user/postgres"
	"github.com/frahmantamala/equipment-approvals/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const limiterSweepInterval = 5 * time.Minute

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Logger *slog.Logger
	Bus    *events.EventBus

	Users      *user.Service
	Resolver   *permission.Resolver
	Permission *permission.Service
	Auth       *auth.Service
	Equipment  *equipment.Service
	Requests   *request.Service
}

func (d *Dependencies) Close() {
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func startHTTPServer() error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	subscribeAudit(deps.Bus, deps.Logger)

	router, limiter, err := setupRoutes(deps)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepLimiter(ctx, limiter, deps.Logger)

	serverErrChan := make(chan error, 1)
	go func() {
		deps.Logger.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("received signal, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.Bus.Drain(shutdownCtx); err != nil {
			deps.Logger.Error("event drain error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	deps.Logger.Info("server stopped")
	return nil
}

func sweepLimiter(ctx context.Context, limiter *middleware.IPRateLimiter, lg *slog.Logger) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Sweep(); n > 0 {
				lg.Debug("swept idle login limiters", "removed", n)
			}
		}
	}
}

func setupRoutes(deps *Dependencies) (*chi.Mux, *middleware.IPRateLimiter, error) {
	validator, err := middleware.NewOpenAPIValidator(api.Spec, deps.Logger)
	if err != nil {
		return nil, nil, err
	}

	proxies, err := deps.Config.Server.TrustedProxyPrefixes()
	if err != nil {
		return nil, nil, err
	}

	throttle := deps.Config.LoginThrottle
	limiter := middleware.NewIPRateLimiter(throttle.RatePerSecond, throttle.Burst, deps.Logger)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, deps.DB.DB, rest.Handlers{
		Auth:           auth.NewHandler(deps.Auth),
		User:           user.NewHandler(deps.Users),
		Permission:     permission.NewHandler(deps.Permission),
		Equipment:      equipment.NewHandler(transport.NewBaseHandler(deps.Logger), deps.Equipment),
		Request:        request.NewHandler(deps.Requests),
		Authz:          permission.NewRBACAuthorization(deps.Resolver, deps.Logger),
		LoginLimiter:   limiter,
		Validator:      validator,
		OpenAPI:        api.Spec,
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		TrustedProxies: proxies,
	}, deps.Logger)

	return router, limiter, nil
}

func initializeDependencies() (*Dependencies, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := database.OpenGorm(db.DB)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	policy, err := request.ParseMissingApproverPolicy(cfg.Workflow.MissingApproverPolicy)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	timeout := cfg.Database.QueryTimeout
	bus := events.NewEventBus(lg)

	users := user.NewService(userPostgres.NewUserRepository(gormDB, timeout), lg)

	catalog := permission.DefaultCatalog()
	roles := permission.NewRoleDefaults(catalog, permission.DefaultGrants())
	resolver := permission.NewResolver(users, roles, permissionPostgres.NewOverrideRepository(gormDB, timeout), lg)

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(
		authPostgres.NewAccountRepository(gormDB, timeout),
		authPostgres.NewAttemptStore(db, timeout),
		tokens,
		auth.LockoutPolicy{
			MaxAttempts:     cfg.LoginThrottle.MaxAttempts,
			LockoutDuration: cfg.LoginThrottle.LockoutDuration,
			Retention:       cfg.LoginThrottle.Retention,
		},
		lg,
		auth.WithBCryptCost(cfg.Security.BCryptCost),
	)

	inventory := equipment.NewService(equipmentPostgres.NewEquipmentRepository(gormDB, timeout), lg)

	requests := request.NewService(
		requestPostgres.NewRequestRepository(gormDB, timeout),
		users,
		inventory,
		resolver,
		bus,
		request.Policy{MissingApprover: policy},
		lg,
	)

	return &Dependencies{
		Config:     cfg,
		DB:         db,
		Gorm:       gormDB,
		Logger:     lg,
		Bus:        bus,
		Users:      users,
		Resolver:   resolver,
		Permission: permission.NewService(resolver, catalog, bus, lg),
		Auth:       authService,
		Equipment:  inventory,
		Requests:   requests,
	}, nil
}
