package handler

import (
	"quantumpay-core/internal/adapter/http/middleware"
	redisStore "quantumpay-core/internal/adapter/storage/redis"
	"quantumpay-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	SettlementSvc  ports.SettlementService
	BillSvc        ports.BillPaymentService
	DepositSvc     ports.DepositService
	FXSvc          ports.FXService
	ReconSvc       ports.ReconciliationService
	TokenSvc       ports.TokenService
	TxRepo         ports.TransactionRepository
	SigVerifier    SignatureVerifier
	WebhookSecrets map[string]string
	ProviderHealth ProviderHealthSource       // nil = provider health endpoint disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health checks (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.ProviderHealth != nil {
		r.GET("/health/providers", ProviderHealth(deps.ProviderHealth))
	}

	// Rate limit rules
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

	// --- Provider webhooks (signature-authenticated, no JWT) ---
	webhookHandler := NewWebhookHandler(deps.ReconSvc, deps.SigVerifier, deps.WebhookSecrets, deps.Logger)
	r.POST("/webhooks/:provider", rl("webhooks"), webhookHandler.HandleWebhook)

	// --- JWT-authenticated API ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	walletHandler := NewWalletHandler(deps.LedgerSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.GET("", rl("read"), walletHandler.ListWallets)
		wallets.POST("", rl("read"), walletHandler.CreateWallet)
	}

	transferHandler := NewTransferHandler(deps.SettlementSvc, deps.TxRepo)
	v1.POST("/transfers", rl("transfers"), transferHandler.CreateTransfer)
	transactions := v1.Group("/transactions")
	{
		transactions.GET("", rl("read"), transferHandler.ListTransactions)
		transactions.GET("/:id", rl("read"), transferHandler.GetTransaction)
	}

	billHandler := NewBillHandler(deps.BillSvc)
	bills := v1.Group("/bills")
	{
		bills.GET("/items", rl("read"), billHandler.ListItems)
		bills.POST("/validate", rl("bills"), billHandler.ValidateCustomer)
		bills.POST("/pay", rl("bills"), billHandler.PayBill)
	}

	depositHandler := NewDepositHandler(deps.DepositSvc)
	v1.POST("/deposits", rl("deposits"), depositHandler.InitiateDeposit)

	fxHandler := NewFXHandler(deps.FXSvc)
	fx := v1.Group("/fx")
	{
		fx.POST("/quotes", rl("fx_quotes"), fxHandler.GetQuote)
		fx.POST("/quotes/:id/execute", rl("fx_exec"), fxHandler.ExecuteQuote)
	}

	return r
}
