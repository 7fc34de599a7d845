package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/domain/models"
	"github.com/mamadbah2/kisaan/internal/server/handlers"
	"github.com/mamadbah2/kisaan/internal/server/middleware"
)

// Dependencies groups what the router needs to serve requests.
type Dependencies struct {
	Listings  *handlers.ListingHandler
	Health    *handlers.HealthHandler
	JWTSecret string
	Metrics   MetricsRecorder
	Logger    *zap.Logger
}

// MetricsRecorder records request metrics and exposes them for scraping.
type MetricsRecorder interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// New wires the Gin engine with required routes and middlewares.
func New(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.AccessLog(logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	health := deps.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, logger)
	}
	r.GET("/healthz", health.Check)

	authenticated := middleware.RequireAuth(deps.JWTSecret, logger)
	farmerOnly := middleware.RequireRole(models.RoleFarmer)

	grains := r.Group("/api/grains")
	{
		h := deps.Listings

		grains.GET("", h.List)
		grains.GET("/search", h.Search)
		grains.GET("/my/listings", authenticated, farmerOnly, h.MyListings)
		grains.POST("", authenticated, farmerOnly, h.Create)

		grains.GET("/:id", h.Get)
		grains.PUT("/:id", authenticated, h.Update)
		grains.DELETE("/:id", authenticated, h.Delete)
		grains.POST("/:id/like", authenticated, h.ToggleLike)
		grains.PUT("/:id/status", authenticated, h.UpdateStatus)
		grains.POST("/:id/images", authenticated, h.UploadImages)
		grains.GET("/:id/images/:imageId", h.Image)
		grains.DELETE("/:id/images/:imageId", authenticated, h.DeleteImage)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})

	logger.Info("router initialized")
	return r
}
