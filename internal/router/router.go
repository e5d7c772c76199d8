package router

import (
	"context"
	"database/sql"
	"time"

	"arqueo/internal/config"
	"arqueo/internal/handler"
	"arqueo/internal/infra"
	"arqueo/internal/middleware"
	"arqueo/internal/model"
	"arqueo/internal/repository"
	"arqueo/internal/service"
	"arqueo/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis.
// Background goroutines owned by the router stop when ctx is done.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb redis.UniversalClient) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go func() {
		<-ctx.Done()
		limiter.Stop()
	}()

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.Origins()...))
	r.Use(middleware.ErrorHandler())
	r.Use(limiter.Handler())

	// ── Infrastructure ───────────────────────────────────────────────────────
	refCache := infra.NewCache(rdb, "arqueo:ref", cfg.CacheTTL())

	var (
		ledger   service.LedgerExterno
		ledgerCB *infra.CircuitBreaker
		aviso    service.AvisoCierre
		dlq      handler.ColaMuerta
	)
	if cfg.LedgerURL != "" {
		client := infra.NewLedgerClient(cfg.LedgerURL, cfg.LedgerTimeout(), nil)
		ledgerCB = client.Breaker()
		ledger = service.NewLedgerCacheado(client, infra.NewCache(rdb, "arqueo:ledger", cfg.CacheTTL()))

		// Closed sessions enqueue a snapshot prefetch; workers warm the ledger cache.
		if cfg.WorkerPoolSize > 0 {
			aviso = worker.NewDispatcher(rdb)
			worker.StartWorkerPool(ctx, rdb, worker.QueueLedger, worker.NewLedgerPrefetchWorker(ledger), cfg.WorkerPoolSize)
			worker.StartRetryCron(ctx, worker.RetryCronConfig{RDB: rdb, Queue: worker.QueueLedger, CB: ledgerCB})
			dlq = worker.NewDeadLetters(rdb, worker.QueueLedger)
		}
	} else {
		log.Warn().Msg("LEDGER_URL not set: reconciliation will report the external ledger as unavailable")
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	cajaRepo := repository.NewCajaRepository(db)
	retiroRepo := repository.NewRetiroRepository(db)
	referenciaRepo := repository.NewReferenciaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	dir := service.NewDirectorio(referenciaRepo, refCache)
	cajaSvc := service.NewCajaService(cajaRepo, dir, aviso)
	retiroSvc := service.NewRetiroService(retiroRepo, cajaRepo, dir, cfg.RetiroMaxReintentos)
	conciliacionSvc := service.NewConciliacionService(cajaRepo, retiroRepo, ledger, nil)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(cajaSvc)
	retirosH := handler.NewRetiroHandler(retiroSvc)
	conciliacionH := handler.NewConciliacionHandler(conciliacionSvc)
	cacheH := handler.NewCacheHandler(dir)

	// ── Routes ───────────────────────────────────────────────────────────────

	var sqlDB *sql.DB
	if d, err := db.DB(); err == nil {
		sqlDB = d
	}
	r.GET("/health", handler.Health(sqlDB, rdb, ledgerCB, dlq))

	todos := middleware.RequireRole(model.RolCajero, model.RolSupervisor, model.RolAdministrador)
	verificadores := middleware.RequireRole(model.RolSupervisor, model.RolAdministrador)

	caja := r.Group("/v1/caja", middleware.JWTAuth(cfg.JWTSecret))
	{
		caja.POST("/sesiones", todos, cajaH.Abrir)
		caja.GET("/sesiones", todos, cajaH.Listar)
		caja.GET("/sesiones/:id", todos, cajaH.Obtener)
		caja.POST("/sesiones/:id/cierre", todos, cajaH.Cerrar)
		caja.POST("/sesiones/:id/verificacion", verificadores, cajaH.Verificar)

		caja.POST("/sesiones/:id/retiros", todos, retirosH.Crear)
		caja.GET("/sesiones/:id/retiros", todos, retirosH.Listar)
		caja.POST("/retiros/:id/verificacion", verificadores, retirosH.Verificar)

		caja.GET("/sesiones/:id/conciliacion", todos, conciliacionH.Obtener)

		caja.DELETE("/cache/empleados/:codigo", middleware.RequireRole(model.RolAdministrador), cacheH.InvalidarEmpleado)
	}

	// Swagger UI, outside production only
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
