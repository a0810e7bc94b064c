package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userIDKey ключ контекста, под которым хранится ID владельца
const userIDKey = "user_id"

// AuthConfig конфигурация аутентификации по API ключу
type AuthConfig struct {
	// Keys карта валидных API ключей к ID их владельцев
	Keys map[string]string
	// HeaderName имя заголовка для API ключа (по умолчанию: X-API-Key)
	HeaderName string
}

// Auth middleware аутентификации по API ключу. Ключ однозначно определяет
// владельца ссылок: все операции над своими ссылками выполняются от его имени.
type Auth struct {
	config AuthConfig
}

// NewAuth создаёт middleware аутентификации
func NewAuth(config AuthConfig) *Auth {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	if config.Keys == nil {
		config.Keys = make(map[string]string)
	}
	return &Auth{config: config}
}

// Required возвращает handler, требующий валидный API ключ
func (a *Auth) Required() gin.HandlerFunc {
	return a.middleware(false)
}

// Optional возвращает handler, пропускающий запросы и без ключа:
// такие запросы обрабатываются как анонимные
func (a *Auth) Optional() gin.HandlerFunc {
	return a.middleware(true)
}

func (a *Auth) middleware(optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := a.extractKey(c)

		if apiKey == "" {
			if optional {
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ. Передайте его через заголовок X-API-Key, query параметр api_key или Authorization: Bearer",
			})
			c.Abort()
			return
		}

		// Валидация API ключа с использованием constant-time comparison
		var userID string
		valid := false
		for validKey, owner := range a.config.Keys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				valid = true
				userID = owner
				break
			}
		}

		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// extractKey достаёт API ключ из заголовка, query параметра или Bearer схемы
func (a *Auth) extractKey(c *gin.Context) string {
	if key := c.GetHeader(a.config.HeaderName); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// GetUserIDFromContext извлекает ID владельца из контекста запроса
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}
