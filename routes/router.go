package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/spotmap/spotmap/config"
	"github.com/spotmap/spotmap/controllers"
	"github.com/spotmap/spotmap/middleware"
	"github.com/spotmap/spotmap/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(svc *Services) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}
	r.MaxMultipartMemory = 32 << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Uploaded media is served straight from disk
	r.Static(cfg.UploadPublicPrefix, cfg.UploadDir)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(svc.Users, cfg.DefaultProfilePic)
	spotController := controllers.NewSpotController(svc.Users, svc.Spots, controllers.SpotPipeline{
		Store:       svc.Uploads,
		Converter:   svc.Converter,
		Transcriber: svc.Transcriber,
		Translator:  svc.Translator,
		Languages:   svc.Languages,
		Titles:      svc.Titles,
		Streaks:     svc.Streaks,
	})
	geoController := controllers.NewGeoController(svc.Spots, svc.Geocoder, cfg.NearbyRadiusMeters, cfg.SearchRadiusKm)
	socialController := controllers.NewSocialController(svc.Social)
	profileController := controllers.NewProfileController(svc.Users, svc.Spots, svc.Geocoder)
	journeyController := controllers.NewJourneyController(svc.Users, svc.Social, svc.Uploads)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/signup", authController.Signup)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Public reads
	api.GET("/translation", spotController.Translation)
	api.GET("/returnsummary", spotController.ReturnSummary)
	api.GET("/spotintro", spotController.SpotIntro)
	api.GET("/fullspot", spotController.FullSpot)
	api.GET("/nearby", geoController.Nearby)
	api.POST("/search-spots", middleware.RateLimitMiddleware(), geoController.SearchSpots)
	api.POST("/area-leaderboard", middleware.RateLimitMiddleware(), profileController.AreaLeaderboard)
	api.GET("/users/:username/spots", spotController.ListUserSpots)
	api.GET("/users/:username/follows", socialController.Follows)
	api.GET("/users/:username/profile", profileController.Profile)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/spots", spotController.CreateSpot)
	protected.DELETE("/spots/:id", spotController.DeleteSpot)
	protected.POST("/audiotitle", spotController.AudioTitle)
	protected.POST("/follow", socialController.Follow)
	protected.POST("/unfollow", socialController.Unfollow)
	protected.POST("/set-home", profileController.SetHome)
	protected.GET("/streak", profileController.Streak)

	journey := protected.Group("/journey")
	journey.GET("/status", journeyController.Status)
	journey.POST("/start", journeyController.Start)
	journey.POST("/upload", journeyController.Upload)
	journey.GET("/pins", journeyController.Pins)
	journey.POST("/end", journeyController.End)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	})

	return r
}
