// Package http exposes the ledger to the extension popup as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"costnest/internal/backup"
	"costnest/internal/budget"
	"costnest/internal/kv"
	"costnest/internal/ledger"
	"costnest/internal/log"
	"costnest/internal/messages"
	"costnest/internal/middleware/ratelimit"
	"costnest/internal/middleware/security"
	"costnest/internal/pin"
	"costnest/internal/pricealert"
	"costnest/internal/settings"
)

// Services are the components the handlers call into.
type Services struct {
	Store       kv.Store
	Ledger      *ledger.Ledger
	Budget      *budget.Engine
	Backup      *backup.Service
	Settings    *settings.Service
	PriceAlerts *pricealert.Service
	PIN         *pin.Manager
	Setup       *pin.Setup
	Session     *pin.Session
	Dispatcher  *messages.Dispatcher
}

// Options tune the server. Zero values fall back to defaults.
type Options struct {
	Addr                 string
	AllowOrigins         []string
	PINAttemptsPerMinute int
	Logger               *log.Logger
	Now                  func() time.Time
}

type Server struct {
	http.Server
	svc     Services
	limiter *ratelimit.Limiter
	logger  *log.Logger
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes, returning a ready-to-run server.
func NewServer(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PINAttemptsPerMinute <= 0 {
		opts.PINAttemptsPerMinute = 5
	}

	s := &Server{
		svc:     svc,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.PINAttemptsPerMinute, Now: opts.Now}),
		logger:  opts.Logger,
		now:     opts.Now,
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		log.Middleware(opts.Logger),
		cors.New(corsConfig(opts.AllowOrigins)),
		security.Headers(security.DefaultHeadersConfig()),
	)
	s.routes(engine)

	s.Addr = opts.Addr
	s.Handler = engine
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 30 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	s.MaxHeaderBytes = 1 << 16
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)
	r.GET("/readyz", s.handleReady)

	api := r.Group("/api")

	lock := api.Group("/pin")
	lock.GET("/status", s.handlePINStatus)
	lock.POST("/setup", s.handlePINSetup)
	lock.POST("/unlock", s.limiter.Middleware(), s.handlePINUnlock)
	lock.POST("/lock", s.handlePINLock)

	data := api.Group("", s.requireUnlocked())
	data.DELETE("/pin", s.handlePINDisable)

	data.GET("/expenses", s.handleListExpenses)
	data.POST("/expenses", s.handleCreateExpense)
	data.DELETE("/expenses", s.handleClearExpenses)
	data.GET("/expenses/:id", s.handleGetExpense)
	data.PATCH("/expenses/:id", s.handleUpdateExpense)
	data.DELETE("/expenses/:id", s.handleDeleteExpense)

	data.GET("/summary", s.handleSummary)
	data.GET("/budget", s.handleGetBudget)
	data.PUT("/budget", s.handleSetBudget)
	data.DELETE("/budget", s.handleClearBudget)
	data.GET("/budget/status", s.handleBudgetStatus)
	data.GET("/insights", s.handleInsights)

	data.GET("/categories", s.handleGetCategories)
	data.PUT("/categories", s.handleSaveCategories)
	data.GET("/settings", s.handleGetSettings)
	data.PUT("/settings", s.handleSaveSettings)

	data.GET("/price-alerts", s.handleListPriceAlerts)
	data.POST("/price-alerts", s.handleAddPriceAlert)
	data.DELETE("/price-alerts/:id", s.handleDeactivatePriceAlert)
	data.POST("/price-alerts/:id/price", s.handleRecordPrice)

	data.GET("/export", s.handleExportJSON)
	data.GET("/export/csv", s.handleExportCSV)
	data.GET("/export/xlsx", s.handleExportXLSX)
	data.POST("/import", s.handleImport)

	data.POST("/messages", s.handleMessage)
}

// corsConfig allows the extension origins. A single "*" opens the API to
// every origin.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:           []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:           []string{"Origin", "Content-Type", "Accept", log.RequestIDHeader},
		ExposeHeaders:          []string{"Content-Length", "Content-Disposition", log.RequestIDHeader},
		AllowWildcard:          true,
		AllowBrowserExtensions: true,
		MaxAge:                 12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		origins = []string{"chrome-extension://*"}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// requireUnlocked rejects requests while the session is locked and records
// activity on the ones it lets through.
func (s *Server) requireUnlocked() gin.HandlerFunc {
	return func(c *gin.Context) {
		locked, err := s.svc.Session.Locked(c.Request.Context())
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		if locked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(errLocked))
			return
		}
		s.svc.Session.Touch()
		c.Next()
	}
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		m := s.limiter.GetMetrics()
		s.logger.WithComponent(log.ComponentRateLimit).InfoContext(ctx, "Unlock limiter stopped",
			log.FieldOperation, log.OpShutdown, "rejected", m.Rejected, "clients", m.ClientCount)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
