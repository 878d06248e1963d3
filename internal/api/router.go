package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/account"
	"github.com/merchantlabs/backoffice/internal/api/middleware"
	"github.com/merchantlabs/backoffice/internal/audit"
	"github.com/merchantlabs/backoffice/internal/auth"
	"github.com/merchantlabs/backoffice/internal/catalog"
	"github.com/merchantlabs/backoffice/internal/config"
	"github.com/merchantlabs/backoffice/internal/domain/identity"
	"github.com/merchantlabs/backoffice/internal/outbox"
	"github.com/merchantlabs/backoffice/internal/usecase/ordering"
)

type Router struct {
	engine      *gin.Engine
	server      *http.Server
	cfg         *config.Config
	catalogSvc  *catalog.Service
	accountSvc  *account.Service
	placeUC     *ordering.PlaceOrderUseCase
	statusUC    *ordering.UpdateStatusUseCase
	sweeper     *outbox.Sweeper
	auditReader *audit.Reader
	sessions    *auth.Sessions
	authMW      *auth.Middleware
	logger      *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	catalogSvc *catalog.Service,
	accountSvc *account.Service,
	placeUC *ordering.PlaceOrderUseCase,
	statusUC *ordering.UpdateStatusUseCase,
	sweeper *outbox.Sweeper,
	auditReader *audit.Reader,
	sessions *auth.Sessions,
	authMW *auth.Middleware,
	logger *zap.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:      r,
		cfg:         cfg,
		catalogSvc:  catalogSvc,
		accountSvc:  accountSvc,
		placeUC:     placeUC,
		statusUC:    statusUC,
		sweeper:     sweeper,
		auditReader: auditReader,
		sessions:    sessions,
		authMW:      authMW,
		logger:      logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.engine.Use(r.authMW.Identify())

	authGroup := r.engine.Group("/auth")
	{
		authGroup.POST("/register", r.Register)
		authGroup.POST("/login", r.Login)
		authGroup.POST("/refresh", r.Refresh)
		authGroup.POST("/logout", r.Logout)
	}

	api := r.engine.Group("/api")
	{
		// Catalog reads are public.
		api.GET("/products", r.ListProducts)
		api.GET("/products/:id", r.GetProduct)

		// Catalog writes require back-office staff.
		manage := api.Group("")
		manage.Use(r.authMW.RequireRole(identity.RoleManager))
		{
			manage.POST("/products", r.CreateProduct)
			manage.PUT("/products/:id/price", r.ChangePrice)
			manage.POST("/products/:id/deactivate", r.DeactivateProduct)
			manage.DELETE("/products/:id", r.DeleteProduct)

			manage.POST("/orders/:id/pay", r.MarkOrderPaid)
			manage.POST("/orders/:id/ship", r.MarkOrderShipped)
		}

		// Ordering requires any authenticated user.
		orders := api.Group("/orders")
		orders.Use(r.authMW.RequireUser())
		{
			orders.POST("", r.PlaceOrder)
			orders.GET("", r.ListMyOrders)
			orders.GET("/:id", r.GetOrder)
			orders.POST("/:id/cancel", r.CancelOrder)
		}
	}

	// Operational endpoints guarded by the static admin token.
	admin := r.engine.Group("/admin")
	admin.Use(r.authMW.RequireAdminToken())
	{
		admin.POST("/outbox/sweep", r.SweepOutbox)
		admin.GET("/audit", r.ListAuditEntries)
	}
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

func (r *Router) SweepOutbox(c *gin.Context) {
	days := r.cfg.OutboxRetentionDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = parsed
	}

	deleted, err := r.sweeper.CleanupOldMessages(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "days": days})
}

func (r *Router) ListAuditEntries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := r.auditReader.ListRecent(
		c.Request.Context(),
		c.Query("entity_type"),
		c.Query("entity_id"),
		limit,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
