package handler

import (
	"net/http"

	"nft-marketplace/internal/adapter/http/middleware"
	redisStore "nft-marketplace/internal/adapter/storage/redis"
	"nft-marketplace/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	RegistrySvc    ports.RegistryService
	MarketSvc      ports.MarketplaceService
	AccountSvc     ports.AccountService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	EventStream    http.HandlerFunc   // nil = no /events/ws
	MetricsHandler http.Handler       // nil = no /metrics
	// DefaultRegistry is used by listings that do not name a registry.
	DefaultRegistry common.Address
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1")

	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/auth/login", rl("auth_login"), authHandler.Login)

	registryHandler := NewRegistryHandler(deps.RegistrySvc)
	v1.GET("/registry", rl("read"), registryHandler.Info)
	v1.GET("/registry/balances/:owner", rl("read"), registryHandler.BalanceOf)
	assets := v1.Group("/assets")
	{
		assets.POST("", jwtAuth, rl("mint"), registryHandler.Mint)
		assets.GET("/:id", rl("read"), registryHandler.GetAsset)
		assets.POST("/:id/transfer", jwtAuth, rl("registry_write"), registryHandler.Transfer)
	}
	approvals := v1.Group("/approvals")
	{
		approvals.PUT("", jwtAuth, rl("registry_write"), registryHandler.SetApproval)
		approvals.GET("/:owner/:operator", rl("read"), registryHandler.IsApproved)
	}

	marketHandler := NewMarketplaceHandler(deps.MarketSvc, deps.DefaultRegistry)
	statsHandler := NewStatsHandler(deps.ReportingSvc)
	v1.GET("/marketplace", rl("read"), marketHandler.Info)
	v1.GET("/marketplace/stats", rl("read"), statsHandler.GetStats)
	listings := v1.Group("/listings")
	{
		listings.POST("", jwtAuth, rl("listings_write"), marketHandler.CreateListing)
		listings.GET("", rl("read"), marketHandler.ListListings)
		listings.GET("/:id", rl("read"), marketHandler.GetListing)
		listings.GET("/:id/total", rl("read"), marketHandler.TotalPayable)
		listings.POST("/:id/purchase", jwtAuth, rl("purchase"), marketHandler.Purchase)
	}

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts/me", jwtAuth)
	{
		accounts.GET("/balance", rl("read"), accountHandler.GetBalance)
		accounts.POST("/deposit", rl("accounts_write"), accountHandler.Deposit)
		accounts.POST("/withdraw", rl("accounts_write"), accountHandler.Withdraw)
		accounts.GET("/transactions", rl("read"), accountHandler.ListTransactions)
	}

	if deps.EventStream != nil {
		v1.GET("/events/ws", rl("events"), gin.WrapF(deps.EventStream))
	}

	return r
}
