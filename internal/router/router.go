package router

import (
	"caixa/internal/handler"
	"caixa/internal/middleware"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-wired collaborators the routes need. DB and Redis
// may be nil when the corresponding backend is disabled.
type Deps struct {
	Production     bool
	AllowedOrigins []string
	RateLimiter    *middleware.IPRateLimiter
	Ledger         *handler.LedgerHandler
	DB             *gorm.DB
	Redis          *redis.Client
	Gatherer       prometheus.Gatherer
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(d Deps) *gin.Engine {
	if d.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(middleware.ErrorHandler())
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware())
	}

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(d.DB, d.Redis))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	ledger := d.Ledger
	v1 := r.Group("/v1")
	{
		v1.GET("/days", ledger.History)

		days := v1.Group("/days/:day")
		{
			days.GET("", ledger.GetDay)
			days.GET("/totals", ledger.Totals)
			days.POST("/payments", ledger.AddPayment)
			days.DELETE("/payments/:id", ledger.RemovePayment)
			days.POST("/close", ledger.CloseDay)
			days.GET("/report", ledger.Report)
		}

		v1.GET("/payments/:id/receipt", ledger.Receipt)
	}

	// Swagger UI, only enabled outside production
	if !d.Production {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
