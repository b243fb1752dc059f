package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glucobite/glucobite-api/internal/ai"
	"github.com/glucobite/glucobite-api/internal/config"
	"github.com/glucobite/glucobite-api/internal/foodfacts"
	"github.com/glucobite/glucobite-api/internal/handlers"
	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/middleware"
	"github.com/glucobite/glucobite-api/internal/repository"
	"github.com/glucobite/glucobite-api/internal/service"
	"github.com/glucobite/glucobite-api/internal/ws"
	"gorm.io/gorm"
)

// SetupRouter sets up the Gin router.
func SetupRouter(cfg *config.Config, database *gorm.DB) *gin.Engine {
	// Create default Gin router
	r := gin.Default()

	config := cors.DefaultConfig()
	config.AllowCredentials = true
	config.AllowOrigins = []string{
		"https://api.glucobite.app",
		"https://www.api.glucobite.app",
		"https://glucobite.app",
		"https://www.glucobite.app",
	}
	r.Use(cors.New(config))

	// Add request ID middleware for request correlation
	r.Use(logger.RequestIDMiddleware())

	// Ping route for testing
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// User-related routes setup
	userRepo := repository.NewUserRepository(database)
	userService := service.NewUserService(cfg, userRepo)
	userHandler := handlers.NewUserHandler(userService)

	// AI provider setup. The full Claude model handles vision and primary
	// text analysis; GPT covers text analysis when Claude is unavailable.
	visionProvider := ai.NewAnthropicProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	textProvider := ai.NewAnthropicLightProvider(cfg.EnvVars.AnthropicAPIKey, cfg.Prompts)
	textFallback := ai.NewOpenAIFoodProvider(cfg.EnvVars.OpenAIAPIKey, cfg.Prompts)

	// Food facts clients (Open Food Facts barcodes + USDA FDC search)
	foodsClient := foodfacts.NewClient(cfg.EnvVars.OFFUserAgent, cfg.EnvVars.FDCAPIKey)

	// Meal session routes setup
	savedFoodRepo := repository.NewSavedFoodRepository(database)
	mealLogRepo := repository.NewMealLogRepository(database)
	mealService := service.NewMealService(cfg, savedFoodRepo, mealLogRepo,
		visionProvider, textProvider, textFallback, foodsClient, foodsClient)

	// WebSocket hub (authenticated via query param token)
	hub := ws.NewHub()
	go hub.Run()
	mealHandler := handlers.NewMealHandler(mealService, hub)
	mealSocketHandler := ws.NewMealSocketHandler(hub, cfg.EnvVars.JwtSecretKey, mealService)

	// Group for API routes that don't require token verification
	apiPublic := r.Group("/v1")
	{
		// Create a new user
		apiPublic.POST("/users", middleware.RateLimitByIP(5, 10*time.Minute, time.Hour), userHandler.CreateUser)
		// Login a user
		apiPublic.POST("/auth/login", middleware.RateLimitByIP(10, 10*time.Minute, time.Hour), userHandler.LoginUser)
		// Refresh an access token
		apiPublic.POST("/auth/refresh", userHandler.RefreshToken)
	}

	// Group for API routes that require token verification
	apiProtected := r.Group("/v1")
	{
		apiProtected.Use(middleware.VerifyTokenMiddleware(cfg))
		apiProtected.Use(middleware.AttachUserToContext(userService))

		// User-related routes
		apiProtected.GET("/users/verify", userHandler.VerifyToken)
		apiProtected.GET("/users/me", userHandler.GetUser)
		apiProtected.PUT("/users/me/settings", userHandler.UpdateSettings)

		// Meal session lifecycle
		apiProtected.POST("/meal/sessions", mealHandler.StartSession)
		apiProtected.GET("/meal/sessions/:session_id", mealHandler.GetDraft)
		apiProtected.DELETE("/meal/sessions/:session_id", mealHandler.EndSession)

		// Search channels
		apiProtected.POST("/meal/sessions/:session_id/analyze/photo", mealHandler.AnalyzePhoto)
		apiProtected.POST("/meal/sessions/:session_id/analyze/text", mealHandler.AnalyzeText)
		apiProtected.POST("/meal/sessions/:session_id/barcode", mealHandler.ScanBarcode)
		apiProtected.POST("/meal/sessions/:session_id/search", mealHandler.SearchDatabase)
		apiProtected.POST("/meal/sessions/:session_id/saved", mealHandler.LoadSavedFoods)
		apiProtected.POST("/meal/sessions/:session_id/retry", mealHandler.RetrySearch)
		apiProtected.POST("/meal/sessions/:session_id/cancel", mealHandler.CancelSearch)

		// Draft item commands
		apiProtected.POST("/meal/sessions/:session_id/items", mealHandler.AddManualItem)
		apiProtected.PUT("/meal/sessions/:session_id/groups/:group_id/items/:item_id/portion", mealHandler.UpdatePortion)
		apiProtected.DELETE("/meal/sessions/:session_id/groups/:group_id/items/:item_id/portion", mealHandler.ResetPortion)
		apiProtected.DELETE("/meal/sessions/:session_id/groups/:group_id/items/:item_id", mealHandler.DeleteItem)
		apiProtected.POST("/meal/sessions/:session_id/groups/:group_id/items/:item_id/restore", mealHandler.RestoreItem)
		apiProtected.POST("/meal/sessions/:session_id/groups/:group_id/items/:item_id/favorite", mealHandler.ToggleFavorite)

		// Draft section commands
		apiProtected.DELETE("/meal/sessions/:session_id/groups/:group_id", mealHandler.DeleteSection)
		apiProtected.POST("/meal/sessions/:session_id/groups/:group_id/collapse", mealHandler.ToggleCollapsed)

		// Draft-wide commands
		apiProtected.POST("/meal/sessions/:session_id/clear", mealHandler.ClearDraft)
		apiProtected.POST("/meal/sessions/:session_id/undo", mealHandler.Undo)
		apiProtected.POST("/meal/sessions/:session_id/commit", mealHandler.CommitMeal)

		// Committed meal logs
		apiProtected.GET("/meals", mealHandler.ListMealLogs)
		apiProtected.GET("/meals/:log_id", mealHandler.GetMealLog)
	}

	// WebSocket route (authenticated via query param token)
	r.GET("/v1/ws/meal/:session_id", mealSocketHandler.HandleMealSession)

	return r
}
