package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AddSwaggerRoutes mounts the static Swagger assets for the shortlink API.
// The files under ./docs are generated by swag and are not served when absent.
func AddSwaggerRoutes(router *gin.Engine) {
	router.StaticFile("/docs", "./docs/swagger-ui.html")
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")

	// Старый путь оставлен для совместимости
	router.GET("/swagger.json", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/docs/swagger.json")
	})
}
