package router

import (
	"caixa/internal/config"
	"caixa/internal/handler"
	"caixa/internal/metrics"
	"caixa/internal/middleware"
	"caixa/internal/report"
	"caixa/internal/repository"
	"caixa/internal/service"
	"caixa/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App is the wired object graph. Dispatcher is nil when Redis is disabled.
type App struct {
	Engine     *gin.Engine
	Ledger     service.LedgerService
	Reports    *report.Builder
	Exports    *worker.ExportWorker
	Dispatcher *worker.Dispatcher
	Metrics    *metrics.Metrics
}

// Wire builds every layer from cfg. db is nil for the memory driver and rdb
// is nil when REDIS_URL is empty. stop ends background goroutines owned by
// the HTTP edge.
func Wire(cfg *config.Config, db *gorm.DB, rdb *redis.Client, reg *prometheus.Registry, stop <-chan struct{}) *App {
	m := metrics.New(reg)

	// ── Repositories ─────────────────────────────────────────────────────────
	var repo repository.PaymentRepository
	if db != nil {
		repo = repository.NewPaymentRepository(db)
	} else {
		repo = repository.NewMemoryPaymentRepository()
	}

	// ── Services ─────────────────────────────────────────────────────────────
	ledgerOpts := []service.Option{service.WithMetrics(m)}
	reportOpts := []report.Option{report.WithMetrics(m), report.WithFormat(report.Format(cfg.ReportFormat))}

	var dispatcher *worker.Dispatcher
	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
		ledgerOpts = append(ledgerOpts, service.WithExportDispatcher(dispatcher))
		// Cached archives outlive the process; only a durable store may
		// feed them, or a restart would serve a stale day.
		if db != nil {
			reportOpts = append(reportOpts, report.WithCache(report.NewRedisCache(rdb, cfg.ReportCacheTTL)))
		}
	}

	ledger := service.NewLedgerService(repo, ledgerOpts...)
	reports := report.NewBuilder(ledger, reportOpts...)
	exports := worker.NewExportWorker(reports, cfg.ArchiveStoragePath)

	// ── Handlers ─────────────────────────────────────────────────────────────
	ledgerH := handler.NewLedgerHandler(ledger, reports, cfg.MaxReceiptBytes, cfg.Location())

	engine := New(Deps{
		Production:     cfg.IsProduction(),
		AllowedOrigins: cfg.AllowedOrigins(),
		RateLimiter:    middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, stop),
		Ledger:         ledgerH,
		DB:             db,
		Redis:          rdb,
		Gatherer:       reg,
	})

	return &App{
		Engine:     engine,
		Ledger:     ledger,
		Reports:    reports,
		Exports:    exports,
		Dispatcher: dispatcher,
		Metrics:    m,
	}
}
