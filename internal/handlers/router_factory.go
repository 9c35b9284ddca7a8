package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"wordgames/internal/config"
	"wordgames/internal/middleware"
	"wordgames/internal/observability"
	"wordgames/internal/services"
	"wordgames/internal/version"
)

// ServiceName identifies the backend in traces and route listings
const ServiceName = "wordgames-backend"

// requestLogger logs every request through the observability logger,
// at warn level for 4xx and error level for 5xx.
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.route":       c.FullPath(),
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= http.StatusInternalServerError:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= http.StatusBadRequest:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}

// NewRouter creates the gin engine with all middleware and routes
func NewRouter(
	cfg *config.Config,
	gameService services.GameServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// Health check is served before tracing and sessions
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})

	router.Use(observability.GinMiddleware(ServiceName))
	router.Use(observability.ErrorSpanMiddleware())

	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowOriginFunc = func(string) bool { return false }
	}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	if cfg.Server.Debug || cfg.IsTest {
		secureConfig.IsDevelopment = true
	}
	router.Use(secure.New(secureConfig))

	gameHandler := NewGameHandler(gameService, logger)
	routeListing := NewRouteListingHandler(ServiceName)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Get(ServiceName))
		})
		v1.GET("/routes", routeListing.GetRouteListingJSON)

		games := v1.Group("/games/:kind", middleware.RequireAuth())
		{
			games.GET("/play", gameHandler.PlayGame)
			games.GET("/play/passages/:id", gameHandler.PlayPassage)
			games.POST("/finish", middleware.ValidateJSONBody(middleware.FinishGameSchema, logger), gameHandler.FinishGame)
		}

		v1.GET("/mastery", middleware.RequireAuth(), gameHandler.ListMasteries)
	}

	routeListing.CollectRoutes(router)

	return router
}
