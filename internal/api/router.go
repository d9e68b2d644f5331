package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/xiaobei/rulesconv/internal/events"
	"github.com/xiaobei/rulesconv/internal/fetcher"
	"github.com/xiaobei/rulesconv/internal/service"
	"github.com/xiaobei/rulesconv/internal/storage"
)

// Server represents the API server
type Server struct {
	store      storage.Store
	rulesets   *service.RulesetService
	convert    *service.ConvertService
	scheduler  *service.Scheduler
	bus        *events.Bus
	router     *gin.Engine
	version    string
	startedAt  time.Time
	httpServer *http.Server
}

// NewServer creates an API server
func NewServer(store storage.Store, version string) *Server {
	gin.SetMode(gin.ReleaseMode)

	bus := events.NewBus()
	convert := service.NewConvertService(store, fetcher.FromSettings(store, store.GetSettings()))

	s := &Server{
		store:     store,
		rulesets:  service.NewRulesetService(store, bus),
		convert:   convert,
		scheduler: service.NewScheduler(store, convert, bus),
		bus:       bus,
		router:    gin.New(),
		version:   version,
		startedAt: time.Now(),
	}
	s.router.Use(gin.Recovery())

	s.setupRoutes()
	return s
}

// StartScheduler starts the cache refresh scheduler
func (s *Server) StartScheduler() {
	s.scheduler.Start()
}

// StopScheduler stops the cache refresh scheduler
func (s *Server) StopScheduler() {
	s.scheduler.Stop()
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes sets up routes
func (s *Server) setupRoutes() {
	// CORS configuration
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Ruleset bodies referenced by generated Surge/Loon/QuantumultX configs
	s.router.GET("/getruleset", s.getRuleset)

	api := s.router.Group("/api")
	{
		// Ruleset management
		api.GET("/rulesets", s.getRulesets)
		api.POST("/rulesets", s.addRuleset)
		api.PUT("/rulesets", s.replaceRulesets)
		api.PUT("/rulesets/:id", s.updateRuleset)
		api.DELETE("/rulesets/:id", s.deleteRuleset)

		// Settings
		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.updateSettings)

		// Conversion
		api.POST("/convert", s.convertConfig)
		api.GET("/convert/:target", s.previewConfig)
		api.POST("/cache/refresh", s.refreshCache)

		// Monitoring
		api.GET("/status", s.getStatus)
		api.GET("/logs", s.getLogs)
		api.GET("/logs/recent", s.getRecentLogs)
		api.GET("/events", s.streamEvents)
	}
}

// Run starts the server
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops the scheduler and the listener.
func (s *Server) Close() error {
	s.scheduler.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRuleset),
		errors.Is(err, service.ErrUnknownTarget),
		errors.Is(err, service.ErrBadRulesetKind),
		errors.Is(err, service.ErrBadParameter):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
