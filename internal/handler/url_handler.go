package handler

import (
	"net/http"
	"time"

	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type URLHandler struct {
	urlService service.URLService
	recorder   service.ClickRecorder
	analytics  service.AnalyticsService
	resolver   service.GeoResolver
	logger     *zap.Logger
}

func NewURLHandler(
	urlService service.URLService,
	recorder service.ClickRecorder,
	analytics service.AnalyticsService,
	resolver service.GeoResolver,
	logger *zap.Logger,
) *URLHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLHandler{
		urlService: urlService,
		recorder:   recorder,
		analytics:  analytics,
		resolver:   resolver,
		logger:     logger,
	}
}

type CreateURLRequest struct {
	URL      string `json:"originalUrl" binding:"required"`
	CustomID string `json:"customId,omitempty"`
	Title    string `json:"title,omitempty"`
}

type CreateURLResponse struct {
	ShortID     string    `json:"shortId"`
	ShortURL    string    `json:"shortUrl"`
	OriginalURL string    `json:"originalUrl"`
	Title       string    `json:"title"`
	IsTemporary bool      `json:"isTemporary"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateURL godoc
// @Summary Create a short URL
// @Description Create a new shortened URL. Authenticated callers get a persistent URL, anonymous callers get a temporary in-memory one.
// @Tags urls
// @Accept json
// @Produce json
// @Param request body CreateURLRequest true "URL creation request"
// @Success 201 {object} CreateURLResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/urls [post]
func (h *URLHandler) CreateURL(c *gin.Context) {
	var req CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Невалидное тело запроса", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	input := &models.CreateURLInput{
		OriginalURL: req.URL,
		Title:       req.Title,
	}
	if req.CustomID != "" {
		input.CustomID = &req.CustomID
	}
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		input.UserID = &userID
	}

	url, err := h.urlService.CreateURL(c.Request.Context(), input)
	if err != nil {
		switch {
		case err == service.ErrInvalidURL:
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_url",
				Message: "Invalid URL format",
			})
		case err == service.ErrInvalidID:
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_custom_id",
				Message: "Custom ID must be 4-12 alphanumeric characters",
			})
		case err == service.ErrIDTaken:
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "custom_id_taken",
				Message: "Custom ID already in use",
			})
		default:
			h.logger.Error("Не удалось создать ссылку", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create URL",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, CreateURLResponse{
		ShortID:     url.ShortID,
		ShortURL:    "http://localhost:8080/" + url.ShortID,
		OriginalURL: url.OriginalURL,
		Title:       url.Title,
		IsTemporary: url.IsTemporary,
		ExpiresAt:   url.ExpiresAt,
		CreatedAt:   url.CreatedAt,
	})
}

// Redirect godoc
// @Summary Redirect to original URL
// @Description Redirect to the original URL by short id, recording the click with geolocation
// @Tags urls
// @Param shortId path string true "Short id"
// @Success 307 {object} nil
// @Failure 302 {object} nil "Redirect to not-found page"
// @Router /{shortId} [get]
func (h *URLHandler) Redirect(c *gin.Context) {
	shortID := c.Param("shortId")

	url, err := h.urlService.GetURL(c.Request.Context(), shortID)
	if err != nil {
		// Посетитель никогда не видит сырую ошибку
		h.logger.Warn("Ссылка не найдена", zap.String("short_id", shortID), zap.Error(err))
		c.Redirect(http.StatusFound, "/?error=not-found")
		return
	}

	ip := c.ClientIP()
	event := &models.ClickEvent{
		ShortID:   shortID,
		Geo:       h.resolver.Resolve(c.Request.Context(), ip),
		IP:        ip,
		UserAgent: c.Request.UserAgent(),
	}
	if err := h.recorder.Record(c.Request.Context(), event); err != nil {
		h.logger.Debug("Не удалось записать клик", zap.String("short_id", shortID), zap.Error(err))
	}

	c.Redirect(http.StatusTemporaryRedirect, url.OriginalURL)
}

// GetAnalytics godoc
// @Summary Get analytics for a short URL
// @Description Get aggregated click analytics: country stats, 30-day daily series and map points. Owner only.
// @Tags urls
// @Produce json
// @Param shortId path string true "Short id"
// @Success 200 {object} models.AnalyticsView
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/urls/{shortId}/analytics [get]
func (h *URLHandler) GetAnalytics(c *gin.Context) {
	shortID := c.Param("shortId")
	userID, _ := middleware.GetUserIDFromContext(c)

	view, err := h.analytics.GetAnalytics(c.Request.Context(), shortID, userID)
	if err != nil {
		// Чужая и несуществующая ссылки намеренно неразличимы
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "URL not found or you do not have permission to view analytics",
		})
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListURLs godoc
// @Summary List caller's URLs
// @Description List the authenticated user's persistent URLs, newest first
// @Tags urls
// @Produce json
// @Success 200 {array} models.ShortURL
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/urls [get]
func (h *URLHandler) ListURLs(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	urls, err := h.urlService.ListUserURLs(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Не удалось получить список ссылок", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list URLs",
		})
		return
	}

	if urls == nil {
		urls = []*models.ShortURL{}
	}
	c.JSON(http.StatusOK, urls)
}

// DeleteURL godoc
// @Summary Delete a short URL
// @Description Delete a persistent URL by short id. Owner only.
// @Tags urls
// @Produce json
// @Param shortId path string true "Short id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/urls/{shortId} [delete]
func (h *URLHandler) DeleteURL(c *gin.Context) {
	shortID := c.Param("shortId")
	userID, _ := middleware.GetUserIDFromContext(c)

	if err := h.urlService.DeleteURL(c.Request.Context(), shortID, userID); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "URL not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "URL deleted successfully"})
}

// HealthCheck godoc
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "shortlink",
	})
}
