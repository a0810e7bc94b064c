package handler

import (
	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	urlService service.URLService,
	recorder service.ClickRecorder,
	analytics service.AnalyticsService,
	resolver service.GeoResolver,
	rateLimiter *middleware.RateLimiter,
	auth *middleware.Auth,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.Default()

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	// Rate limiting для всех запросов
	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware())
	}

	urlHandler := NewURLHandler(urlService, recorder, analytics, resolver, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)

		// Сокращение доступно и без ключа: аноним получает временную ссылку
		v1.POST("/urls", auth.Optional(), urlHandler.CreateURL)

		// Операции над своими ссылками требуют API ключ
		owned := v1.Group("")
		owned.Use(auth.Required())
		{
			owned.GET("/urls", urlHandler.ListURLs)
			owned.GET("/urls/:shortId/analytics", urlHandler.GetAnalytics)
			owned.DELETE("/urls/:shortId", urlHandler.DeleteURL)
		}
	}

	// Редирект (корневой путь) - без проверки ключа
	router.GET("/:shortId", urlHandler.Redirect)

	// Swagger документация (без аутентификации)
	AddSwaggerRoutes(router)

	return router
}
