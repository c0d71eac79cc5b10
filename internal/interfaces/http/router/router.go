// Package router assembles the gin engine from handlers and middleware.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/infrastructure/config"
	"github.com/commercesync/backend/internal/infrastructure/logger"
	"github.com/commercesync/backend/internal/interfaces/http/handler"
	"github.com/commercesync/backend/internal/interfaces/http/middleware"
)

// webhookRateLimit caps deliveries per tenant and IP within the window
const (
	webhookRateLimit  = 120
	webhookRateWindow = time.Minute
)

// Deps holds everything the router wires together
type Deps struct {
	Logger    *zap.Logger
	HTTP      config.HTTPConfig
	Health    *handler.HealthHandler
	Sync      *handler.SyncHandler
	Bulk      *handler.BulkHandler
	Mapping   *handler.MappingHandler
	Conflict  *handler.ConflictHandler
	Inventory *handler.InventoryHandler
}

// New builds the gin engine with the full middleware chain and all routes
func New(deps Deps) *gin.Engine {
	middleware.SetupValidator()

	engine := gin.New()
	if len(deps.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(deps.HTTP.TrustedProxies)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(deps.Logger))
	engine.Use(logger.Recovery(deps.Logger))
	if len(deps.HTTP.CORSAllowOrigins) > 0 {
		engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: deps.HTTP.CORSAllowOrigins,
			AllowMethods: deps.HTTP.CORSAllowMethods,
			AllowHeaders: deps.HTTP.CORSAllowHeaders,
			MaxAge:       12 * time.Hour,
		}))
	}
	engine.Use(middleware.BodyLimit(deps.HTTP.MaxBodySize))

	deps.Health.RegisterRoutes(engine)

	api := engine.Group("/api/v1")
	api.Use(middleware.Tenant())

	deps.Sync.RegisterRoutes(api)
	deps.Sync.RegisterWebhookRoutes(api,
		middleware.RateLimit(middleware.NewRateLimiter(webhookRateLimit, webhookRateWindow)))
	deps.Bulk.RegisterRoutes(api)
	deps.Mapping.RegisterRoutes(api)
	deps.Conflict.RegisterRoutes(api)
	deps.Inventory.RegisterRoutes(api)

	return engine
}
