package http

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/inventoryhub/internal/authz"
	"github.com/geocoder89/inventoryhub/internal/cache"
	"github.com/geocoder89/inventoryhub/internal/config"
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/http/handlers"
	"github.com/geocoder89/inventoryhub/internal/http/middlewares"
	"github.com/geocoder89/inventoryhub/internal/observability"
)

// AccountService covers both the auth endpoints and session resolution.
type AccountService interface {
	handlers.Accounts
	middlewares.Authenticator
}

// Deps is everything the API needs, already constructed by the caller.
type Deps struct {
	Config config.Config
	Logger *slog.Logger

	// Prom and Gatherer are optional; without them /metrics is not mounted.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Accounts    AccountService
	Gate        middlewares.Authorizer
	Memberships handlers.MembershipManager
	Inventories handlers.InventoryStore
	Categories  handlers.CategoryStore
	Things      handlers.ThingStore

	// LoginLimiter defaults to an in-process limiter from Config.
	LoginLimiter middlewares.Limiter

	Ping func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	if !d.Config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("inventoryhub-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Logger))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(!d.Config.IsDevelopment()))
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	cookies := handlers.CookiePolicy{Secure: !d.Config.IsDevelopment()}
	cached := handlers.NewCachedInventories(d.Inventories, cache.New[inventory.Inventory](cache.DefaultMaxEntries, d.Config.InventoryCacheTTL))
	sessions := middlewares.NewSessions(d.Accounts, cached, d.Gate, cookies, d.Logger)

	limiter := d.LoginLimiter
	if limiter == nil {
		limiter = middlewares.NewRateLimiter(d.Config.LoginRateLimit, d.Config.LoginRateWindow)
	}

	authH := handlers.NewAuthHandler(d.Accounts, cookies)
	invH := handlers.NewInventoriesHandler(d.Inventories, d.Memberships, cached)
	catH := handlers.NewCategoriesHandler(d.Categories)
	thingH := handlers.NewThingsHandler(d.Things)

	api := r.Group("/api/v1")
	api.GET("/", health.Welcome)

	authG := api.Group("/auth")
	authG.POST("/register", middlewares.RateLimit(limiter, middlewares.KeyByIP, d.Logger), authH.Register)
	authG.POST("/login", middlewares.RateLimit(limiter, middlewares.KeyByIP, d.Logger), authH.Login)
	authG.POST("/logout", authH.Logout)
	authG.GET("", sessions.Authed(authH.Me))
	authG.POST("/2fa", sessions.Authed(authH.EnableTwoFactor))

	inv := api.Group("/inv")
	inv.GET("", sessions.Authed(invH.List))
	inv.POST("", sessions.Authed(invH.Create))
	inv.GET("/:inventoryId", sessions.Scoped(role.Read, invH.Get))
	inv.PUT("/:inventoryId", sessions.Scoped(role.Admin, invH.Replace))
	inv.DELETE("/:inventoryId", sessions.Scoped(role.Owner, invH.Delete))

	inv.GET("/:inventoryId/categories", sessions.Scoped(role.Read, catH.List))
	inv.GET("/:inventoryId/categories/:categoryNo", sessions.Scoped(role.Read, catH.Get))
	inv.POST("/:inventoryId/categories/:categoryNo", sessions.Scoped(role.Write, catH.Create))
	inv.PUT("/:inventoryId/categories/:categoryNo", sessions.Scoped(role.Write, catH.Update))
	inv.DELETE("/:inventoryId/categories/:categoryNo", sessions.Scoped(role.Write, catH.Delete))

	inv.GET("/:inventoryId/things", sessions.Scoped(role.Read, thingH.List))
	inv.POST("/:inventoryId/things", sessions.Scoped(role.Write, thingH.Create))
	inv.GET("/:inventoryId/things/:thingNo", sessions.Scoped(role.Read, thingH.Get))
	inv.PUT("/:inventoryId/things/:thingNo", sessions.Scoped(role.Write, thingH.Update))
	inv.DELETE("/:inventoryId/things/:thingNo", sessions.Scoped(role.Write, thingH.Delete))

	inv.GET("/:inventoryId/things/:thingNo/stocks", sessions.Scoped(role.Read, thingH.ListStocks))
	inv.POST("/:inventoryId/things/:thingNo/stocks", sessions.Scoped(role.Write, thingH.CreateStock))
	inv.GET("/:inventoryId/things/:thingNo/stocks/:stockNo", sessions.Scoped(role.Read, thingH.GetStock))
	inv.PUT("/:inventoryId/things/:thingNo/stocks/:stockNo", sessions.Scoped(role.Write, thingH.UpdateStock))
	inv.DELETE("/:inventoryId/things/:thingNo/stocks/:stockNo", sessions.Scoped(role.Write, thingH.DeleteStock))

	return r
}

// interface guard for the gate the router is normally given
var _ middlewares.Authorizer = (*authz.Gate)(nil)
