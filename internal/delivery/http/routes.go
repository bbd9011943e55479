package http

import (
	"github.com/gin-gonic/gin"
	"github.com/nombiemugi/rastreador-de-precios/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Env().IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	// Scheduler-facing trigger
	cron := router.Group("/api/cron")
	{
		cron.GET("/check-prices", handler.CheckPricesInfo)
		cron.POST("/check-prices", BearerAuth(cfg.Cron.Secret), handler.CheckPrices)
	}

	// API v1 routes
	v1 := router.Group("/api/v1", BearerAuth(cfg.Server.APIToken))
	{
		users := v1.Group("/users/:userID")
		{
			users.PUT("", handler.SaveUser)
			users.POST("/products", handler.AddProduct)
			users.GET("/products", handler.ListProducts)
		}

		products := v1.Group("/products/:productID")
		{
			products.GET("/history", handler.PriceHistory)
			products.DELETE("", handler.DeleteProduct)
		}
	}

	return router
}
