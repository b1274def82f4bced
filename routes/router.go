package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/murmur/config"
	"github.com/cppla/murmur/controllers"
	"github.com/cppla/murmur/middleware"
	"github.com/cppla/murmur/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
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
	r.Use(middleware.RequestID())

	// Replace default console logger with file-based zap access logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db)
	userController := controllers.NewUserController(db)
	commentController := controllers.NewCommentController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/github/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/github/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Public reads that personalize output when a viewer is known
	optional := api.Group("")
	optional.Use(middleware.AuthOptional())
	optional.GET("/posts", postController.ListPosts)
	optional.GET("/posts/:id", postController.GetPost)
	optional.GET("/users/:id/posts", userController.ListUserPosts)

	api.GET("/users/:id", userController.GetUser)
	api.GET("/comments/post/:postId", commentController.ListByPost)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	protected.POST("/me/posts", postController.CreatePost)
	protected.DELETE("/me/posts/:id", postController.DeletePost)
	protected.GET("/me/timeline", postController.Timeline)
	protected.POST("/posts/:id/like", postController.LikePost)
	protected.DELETE("/posts/:id/like", postController.UnlikePost)
	protected.POST("/users/:id/follow", userController.FollowUser)
	protected.DELETE("/users/:id/follow", userController.UnfollowUser)
	protected.GET("/users/:id/is-following", userController.IsFollowing)
	protected.POST("/comments", commentController.CreateComment)
	protected.POST("/comments/:id/reactions", commentController.AddReaction)
	protected.DELETE("/comments/:id/reactions", commentController.RemoveReaction)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40499, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		// everything else falls back to the SPA entry
		ctx.Status(http.StatusOK)
		ctx.File("./static/index.html")
	})

	return r
}
