// api/routes/router.go
package routes

import (
	"fmt"
	"net/http"
	"time"

	"attendly/internal/admission"
	"attendly/internal/attendance"
	"attendly/internal/events"
	"attendly/internal/notifications"
	"attendly/internal/shared/config"
	"attendly/internal/shared/database"
	"attendly/pkg/cache"
	"attendly/pkg/lock"
	"attendly/pkg/logger"
	"attendly/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config     *config.Config
	db         *database.DB
	log        *logger.Logger
	dispatcher notifications.Dispatcher
	metrics    *metrics.Admission

	eventService     events.Service
	admissionService admission.Service
	jobs             *admission.JobProcessor
	closers          []func()
}

// NewRouter creates a new router instance and wires the admission stack.
func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger, dispatcher notifications.Dispatcher, m *metrics.Admission) (*Router, error) {
	r := &Router{
		config:     cfg,
		db:         db,
		log:        log,
		dispatcher: dispatcher,
		metrics:    m,
	}
	if err := r.wireServices(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) wireServices() error {
	var (
		eventRepo events.Repository
		store     attendance.Store
	)
	if r.config.UsesPostgres() {
		if r.db.PostgreSQL == nil {
			return fmt.Errorf("store driver %q requires PostgreSQL", r.config.Admission.StoreDriver)
		}
		eventRepo = events.NewRepository(r.db.PostgreSQL)
		store = attendance.NewGormStore(r.db.PostgreSQL, r.config.Admission.BoundaryTimeout)
	} else {
		memoryEvents := events.NewMemoryRepository()
		eventRepo = memoryEvents
		store = attendance.NewMemoryStore(memoryEvents, r.config.Admission.BoundaryTimeout)
	}

	locker, err := r.newLocker()
	if err != nil {
		return err
	}

	var cacheService cache.Service
	if r.db.Redis != nil {
		cacheService = cache.NewService(r.db.Redis, r.log)
	} else {
		var stop func()
		cacheService, stop = cache.NewMemoryService(r.log)
		r.closers = append(r.closers, stop)
	}

	serviceConfig := admission.DefaultServiceConfig()
	serviceConfig.NotificationTimeout = r.config.Admission.NotificationTimeout
	serviceConfig.SnapshotCacheTTL = r.config.Admission.SnapshotCacheTTL

	r.admissionService = admission.NewService(store, eventRepo, locker, r.dispatcher, cacheService, r.metrics, r.log, serviceConfig)
	r.eventService = events.NewService(eventRepo, r.log)
	r.eventService.SetCapacityListener(r.admissionService)

	r.jobs = admission.NewJobProcessor(r.admissionService, &admission.JobConfig{
		AuditInterval: r.config.Admission.AuditInterval,
		BatchSize:     admission.DefaultJobConfig().BatchSize,
	}, r.log)
	return nil
}

func (r *Router) newLocker() (lock.Locker, error) {
	switch r.config.Admission.LockDriver {
	case "redis":
		if r.db.Redis == nil {
			return nil, fmt.Errorf("lock driver redis requires Redis to be enabled")
		}
		lockConfig := lock.DefaultRedisConfig()
		lockConfig.TTL = r.config.Admission.LockTTL
		lockConfig.Wait = r.config.Admission.BoundaryTimeout
		lockConfig.RetryInterval = r.config.Admission.LockRetryInterval
		lockConfig.Log = r.log
		return lock.NewRedis(r.db.Redis, lockConfig), nil
	case "local":
		return lock.NewLocal(r.config.Admission.BoundaryTimeout), nil
	case "none", "":
		return lock.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown lock driver %q", r.config.Admission.LockDriver)
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupEventRoutes(api)
		r.setupAdmissionRoutes(api)
	}
}

// Jobs returns the admission background job processor
func (r *Router) Jobs() *admission.JobProcessor {
	return r.jobs
}

// EventService exposes the event service for the seeder.
func (r *Router) EventService() events.Service {
	return r.eventService
}

// AdmissionService exposes the admission service for the seeder.
func (r *Router) AdmissionService() admission.Service {
	return r.admissionService
}

// Close releases in-process resources created by the router.
func (r *Router) Close() {
	for _, closeFn := range r.closers {
		closeFn()
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "attendly",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "attendly",
			"store":     r.config.Admission.StoreDriver,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
			"jobs":        r.jobs.GetJobStatus(),
		})
	})

	if r.config.Metrics.Enabled && r.metrics != nil {
		engine.GET(r.config.Metrics.Path, gin.WrapH(r.metrics.Handler()))
	}
}

// setupEventRoutes configures event management routes
func (r *Router) setupEventRoutes(rg *gin.RouterGroup) {
	eventController := events.NewController(r.eventService)
	events.SetupEventRoutes(rg, r.config, eventController)
}

// setupAdmissionRoutes configures registration and waitlist routes
func (r *Router) setupAdmissionRoutes(rg *gin.RouterGroup) {
	admissionController := admission.NewController(r.admissionService, r.log)
	admission.SetupAdmissionRoutes(rg, r.config, admissionController)
}
