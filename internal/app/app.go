package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/merchantlabs/backoffice/internal/account"
	"github.com/merchantlabs/backoffice/internal/adapter/cache"
	"github.com/merchantlabs/backoffice/internal/adapter/repository/postgres"
	"github.com/merchantlabs/backoffice/internal/adapter/stream"
	"github.com/merchantlabs/backoffice/internal/api"
	"github.com/merchantlabs/backoffice/internal/audit"
	"github.com/merchantlabs/backoffice/internal/auth"
	"github.com/merchantlabs/backoffice/internal/catalog"
	"github.com/merchantlabs/backoffice/internal/config"
	catalogdomain "github.com/merchantlabs/backoffice/internal/domain/catalog"
	"github.com/merchantlabs/backoffice/internal/domain/identity"
	orderdomain "github.com/merchantlabs/backoffice/internal/domain/order"
	"github.com/merchantlabs/backoffice/internal/event"
	"github.com/merchantlabs/backoffice/internal/notifier"
	"github.com/merchantlabs/backoffice/internal/outbox"
	"github.com/merchantlabs/backoffice/internal/usecase/ordering"
	"github.com/merchantlabs/backoffice/pkg/db"
	zaplog "github.com/merchantlabs/backoffice/pkg/log"
	"github.com/merchantlabs/backoffice/pkg/snowflake"
	"github.com/merchantlabs/backoffice/pkg/webhookclient"
	"github.com/merchantlabs/backoffice/sql/migrations"
)

// RunServer starts the HTTP server and background workers.
func RunServer() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,

			// Event plumbing
			newRegistry,
			event.NewDispatcher,
			event.NewBus,

			// Outbox
			fx.Annotate(
				outbox.NewGormStore,
				fx.As(new(outbox.Store)),
				fx.As(new(event.Enqueuer)),
			),
			outbox.NewPublisher,
			outbox.NewSweeper,
			outbox.NewRunner,

			// Repositories
			postgres.NewProductRepository,
			postgres.NewOrderRepository,
			fx.Annotate(
				postgres.NewUserRepository,
				fx.As(new(identity.Repository)),
			),

			// External adapters
			webhookclient.NewFromEnv,
			cache.NewProductCache,
			stream.NewOrderForwarder,
			notifier.NewWebhookNotifier,
			audit.NewReader,

			// Services and use cases
			newCatalogService,
			account.NewService,
			newPlaceOrderUseCase,
			newUpdateStatusUseCase,

			// Auth
			auth.NewSessions,
			newAuthMiddleware,

			// API
			api.NewRouter,
		),
		db.Module,
		snowflake.Module,
		zaplog.Module,
		fx.Invoke(installAuditPlugin),
		fx.Invoke(registerConsumers),
		fx.Invoke(registerHooks),
	)

	app.Run()
}

// newRegistry binds every event type the outbox may need to decode. An event
// missing here is delivered nowhere and its envelope keeps retrying, so new
// events register at the same time they are introduced.
func newRegistry() *event.Registry {
	r := event.NewRegistry()
	event.RegisterJSON[catalogdomain.ProductCreated](r)
	event.RegisterJSON[catalogdomain.ProductPriceChanged](r)
	event.RegisterJSON[orderdomain.OrderPlaced](r)
	event.RegisterJSON[orderdomain.OrderStatusChanged](r)
	return r
}

// installAuditPlugin registers change capture on the shared gorm connection.
// The outbox table is exempt so envelope writes never produce audit rows, and
// identity tables are only captured once an authenticated actor exists.
func installAuditPlugin(gdb *gorm.DB, node *snowflake.Node, logger *zap.Logger) error {
	plugin := audit.New(node, logger,
		audit.WithSkipTables(outbox.Message{}.TableName()),
		audit.WithPreAuthTables(
			postgres.UserModel{}.TableName(),
			postgres.RefreshTokenModel{}.TableName(),
		),
	)
	return gdb.Use(plugin)
}

func registerConsumers(
	d *event.Dispatcher,
	webhooks *notifier.WebhookNotifier,
	products *cache.ProductCache,
	orders *stream.OrderForwarder,
) {
	webhooks.Register(d)
	products.Register(d)
	orders.Register(d)
}

func newCatalogService(
	gdb *gorm.DB,
	products *postgres.ProductRepository,
	productCache *cache.ProductCache,
	bus *event.Bus,
	node *snowflake.Node,
	logger *zap.Logger,
) *catalog.Service {
	return catalog.NewService(gdb, products, productCache, bus, node, logger)
}

func newPlaceOrderUseCase(
	gdb *gorm.DB,
	orders *postgres.OrderRepository,
	products *postgres.ProductRepository,
	bus *event.Bus,
	node *snowflake.Node,
	logger *zap.Logger,
) *ordering.PlaceOrderUseCase {
	return ordering.NewPlaceOrderUseCase(gdb, orders, products, bus, node, logger)
}

func newUpdateStatusUseCase(
	gdb *gorm.DB,
	orders *postgres.OrderRepository,
	bus *event.Bus,
	logger *zap.Logger,
) *ordering.UpdateStatusUseCase {
	return ordering.NewUpdateStatusUseCase(gdb, orders, bus, logger)
}

func newAuthMiddleware(cfg *config.Config, sessions *auth.Sessions, accounts *account.Service) *auth.Middleware {
	verify := func(token string) (*auth.Claims, error) {
		claims, err := accounts.VerifyAccessToken(token)
		if err != nil {
			return nil, err
		}
		userID, err := auth.ParseSubject(claims.Subject)
		if err != nil {
			return nil, err
		}
		return &auth.Claims{UserID: userID, Role: claims.Role}, nil
	}
	return auth.NewMiddleware(cfg, sessions, verify)
}

// RunCleanup performs a one-shot retention sweep of the outbox table.
func RunCleanup(ctx context.Context, days int) error {
	cfg := config.Load()
	if days <= 0 {
		days = cfg.OutboxRetentionDays
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	gdb, err := db.New(cfg, logger)
	if err != nil {
		return err
	}

	node, err := snowflake.NewNode()
	if err != nil {
		return err
	}

	sweeper := outbox.NewSweeper(outbox.NewGormStore(gdb, node), logger)
	deleted, err := sweeper.CleanupOldMessages(ctx, days)
	if err != nil {
		return err
	}

	logger.Info("cleanup_complete", zap.Int64("deleted", deleted), zap.Int("days", days))
	return nil
}

// RunMigrations executes database migrations (up or down).
func RunMigrations(command string) error {
	if command == "" {
		command = "up"
	}

	cfg := config.Load()
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting database migration...", zap.String("command", command))

	d, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migration files: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, db.URL(cfg))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("Migration up applied")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("Migration down applied")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}

	return nil
}

func registerHooks(
	lc fx.Lifecycle,
	router *api.Router,
	runner *outbox.Runner,
	productCache *cache.ProductCache,
	orderForwarder *stream.OrderForwarder,
	cfg *config.Config,
	logger *zap.Logger,
) {
	var runnerCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

			runnerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			runnerCancel = cancel
			go runner.Run(runnerCtx)

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server gracefully...")

			if runnerCancel != nil {
				runnerCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			if err := productCache.Close(); err != nil {
				logger.Warn("product cache close failed", zap.Error(err))
			}
			if err := orderForwarder.Close(); err != nil {
				logger.Warn("order forwarder close failed", zap.Error(err))
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		},
	})
}
