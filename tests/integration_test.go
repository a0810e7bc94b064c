package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/SergeiKhy/shortlink/internal/config"
	"github.com/SergeiKhy/shortlink/internal/geo"
	"github.com/SergeiKhy/shortlink/internal/handler"
	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testAPIKey = "integration-test-key"

// TestMain настраивает тестовые контейнеры
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEnv хранит окружение для интеграционных тестов
type TestEnv struct {
	router         *gin.Engine
	urlService     service.URLService
	recorder       service.ClickRecorder
	geoServer      *httptest.Server
	dbContainer    testcontainers.Container
	redisContainer testcontainers.Container
	db             *repository.PostgresDB
	redis          *repository.RedisDB
}

// setupTestEnv создаёт тестовое окружение с PostgreSQL и Redis контейнерами.
// Внешние геосервисы заменяются локальной заглушкой.
func setupTestEnv(t *testing.T) *TestEnv {
	ctx := t.Context()

	// Запускаем контейнер PostgreSQL
	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("shortlink"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	// Запускаем контейнер Redis
	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err)

	// Получаем данные для подключения
	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	// Создаём подключение к БД и прогоняем миграции
	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "shortlink",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	// Создаём подключение к Redis
	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	// Заглушка геолокации в формате ipinfo.io
	geoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"country":"US","region":"California","city":"Mountain View","loc":"37.4056,-122.0775"}`)
	}))

	resolver := geo.NewResolver(
		[]geo.Provider{geo.NewIPInfoProvider(geoServer.URL, nil)},
		geo.NewCache(100),
		time.Second,
		nil,
	)

	// Инициализируем репозитории и сервисы
	urlRepo := repository.NewURLRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	ephemeral := repository.NewEphemeralStore()

	urlService := service.NewURLService(urlRepo, cacheRepo, ephemeral, nil, 0, 0)
	analytics := service.NewAnalyticsService(urlRepo, resolver, nil)

	recorder := service.NewClickRecorder(urlRepo, ephemeral, resolver, nil)
	recorder.Start()

	// Настраиваем роутер с middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 100, // Высокий лимит для тестов
		BurstSize:         200,
		CleanupInterval:   time.Minute,
	})
	auth := middleware.NewAuth(middleware.AuthConfig{
		Keys: map[string]string{testAPIKey: "user-1"},
	})

	router := handler.NewRouter(urlService, recorder, analytics, resolver, rateLimiter, auth, nil)

	return &TestEnv{
		router:         router,
		urlService:     urlService,
		recorder:       recorder,
		geoServer:      geoServer,
		dbContainer:    dbContainer,
		redisContainer: redisContainer,
		db:             db,
		redis:          redisClient,
	}
}

// teardown очищает ресурсы после теста
func (env *TestEnv) teardown(t *testing.T) {
	env.recorder.Stop()
	env.geoServer.Close()
	env.db.Close()
	env.redis.Close()

	ctx := t.Context()
	if env.dbContainer != nil {
		env.dbContainer.Terminate(ctx)
	}
	if env.redisContainer != nil {
		env.redisContainer.Terminate(ctx)
	}
}

// createURL создаёт ссылку через API и возвращает ответ
func (env *TestEnv) createURL(t *testing.T, req handler.CreateURLRequest, apiKey string) handler.CreateURLResponse {
	body, _ := json.Marshal(req)
	w := httptest.NewRecorder()
	httpReq, _ := http.NewRequest("POST", "/api/v1/urls", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("X-API-Key", apiKey)
	}
	env.router.ServeHTTP(w, httpReq)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp handler.CreateURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestIntegration_CreateURL тестирует создание ссылок через API
func TestIntegration_CreateURL(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	tests := []struct {
		name           string
		request        handler.CreateURLRequest
		apiKey         string
		expectedStatus int
		wantTemporary  bool
	}{
		{
			name:           "анонимный запрос создаёт временную ссылку",
			request:        handler.CreateURLRequest{URL: "https://example.com/anon"},
			expectedStatus: http.StatusCreated,
			wantTemporary:  true,
		},
		{
			name:           "запрос с API ключом создаёт постоянную ссылку",
			request:        handler.CreateURLRequest{URL: "https://example.com/owned", Title: "Owned"},
			apiKey:         testAPIKey,
			expectedStatus: http.StatusCreated,
			wantTemporary:  false,
		},
		{
			name:           "постоянная ссылка с кастомным ID",
			request:        handler.CreateURLRequest{URL: "https://example.com/custom", CustomID: "my-custom"},
			apiKey:         testAPIKey,
			expectedStatus: http.StatusCreated,
			wantTemporary:  false,
		},
		{
			name:           "невалидный URL",
			request:        handler.CreateURLRequest{URL: "not-a-url"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "занятый кастомный ID",
			request:        handler.CreateURLRequest{URL: "https://example.com/dup", CustomID: "my-custom"},
			apiKey:         testAPIKey,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.request)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/api/v1/urls", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}

			env.router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			if tt.expectedStatus == http.StatusCreated {
				var resp handler.CreateURLResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.ShortID)
				assert.Equal(t, tt.request.URL, resp.OriginalURL)
				assert.Equal(t, tt.wantTemporary, resp.IsTemporary)
			} else {
				var errResp handler.ErrorResponse
				json.Unmarshal(w.Body.Bytes(), &errResp)
				assert.NotEmpty(t, errResp.Error)
			}
		})
	}
}

// TestIntegration_Redirect тестирует редирект и запись кликов
func TestIntegration_Redirect(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	durable := env.createURL(t, handler.CreateURLRequest{URL: "https://example.com/durable"}, testAPIKey)
	ephemeral := env.createURL(t, handler.CreateURLRequest{URL: "https://example.com/ephemeral"}, "")

	t.Run("редирект постоянной ссылки", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+durable.ShortID, nil)
		req.RemoteAddr = "203.0.113.7:1234"
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "https://example.com/durable", w.Header().Get("Location"))
	})

	t.Run("редирект временной ссылки", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+ephemeral.ShortID, nil)
		req.RemoteAddr = "203.0.113.8:1234"
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "https://example.com/ephemeral", w.Header().Get("Location"))
	})

	t.Run("несуществующая ссылка уводит на главную", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/nonexist", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/?error=not-found", w.Header().Get("Location"))
	})
}

// TestIntegration_Analytics тестирует агрегированную аналитику кликов
func TestIntegration_Analytics(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	created := env.createURL(t, handler.CreateURLRequest{URL: "https://example.com/analytics"}, testAPIKey)

	// Симулируем несколько кликов (вызовом редиректа)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+created.ShortID, nil)
		req.RemoteAddr = fmt.Sprintf("203.0.113.%d:1234", 10+i)
		env.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	}

	// Постоянные клики пишутся асинхронно — ждём воркеры
	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/urls/"+created.ShortID+"/analytics", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		env.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			return false
		}
		var view struct {
			TotalClicks int `json:"totalClicks"`
		}
		json.Unmarshal(w.Body.Bytes(), &view)
		return view.TotalClicks == 3
	}, 5*time.Second, 100*time.Millisecond)

	t.Run("агрегаты по странам и дням", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/urls/"+created.ShortID+"/analytics", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var view struct {
			CountryStats     map[string]int    `json:"countryStats"`
			CountryCodeStats map[string]string `json:"countryCodeStats"`
			DailyClicks      []struct {
				Date   string `json:"date"`
				Clicks int    `json:"clicks"`
			} `json:"dailyClicks"`
			LocationData []struct {
				Coordinates [2]float64 `json:"coordinates"`
			} `json:"locationData"`
			TotalClicks int `json:"totalClicks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))

		assert.Equal(t, 3, view.TotalClicks)
		assert.Equal(t, 3, view.CountryStats["United States"])
		assert.Equal(t, "US", view.CountryCodeStats["United States"])
		assert.Len(t, view.DailyClicks, 30)
		assert.Equal(t, 3, view.DailyClicks[len(view.DailyClicks)-1].Clicks)
		require.Len(t, view.LocationData, 3)
		// Координаты в формате [lng, lat]
		assert.InDelta(t, -122.0775, view.LocationData[0].Coordinates[0], 0.001)
		assert.InDelta(t, 37.4056, view.LocationData[0].Coordinates[1], 0.001)
	})

	t.Run("аналитика чужой ссылки неотличима от несуществующей", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/urls/"+created.ShortID+"/analytics", nil)
		req.Header.Set("X-API-Key", "wrong-key")
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("GET", "/api/v1/urls/does-not-exist/analytics", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestIntegration_ListAndDelete тестирует список и удаление ссылок
func TestIntegration_ListAndDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	created := env.createURL(t, handler.CreateURLRequest{URL: "https://example.com/delete-test"}, testAPIKey)

	t.Run("список содержит созданную ссылку", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/urls", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		env.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var urls []struct {
			ShortID string `json:"shortId"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &urls))
		require.Len(t, urls, 1)
		assert.Equal(t, created.ShortID, urls[0].ShortID)
	})

	t.Run("удаление существующей ссылки", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/v1/urls/"+created.ShortID, nil)
		req.Header.Set("X-API-Key", testAPIKey)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("повторное удаление возвращает 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/v1/urls/"+created.ShortID, nil)
		req.Header.Set("X-API-Key", testAPIKey)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestIntegration_HealthCheck тестирует endpoint проверки здоровья
func TestIntegration_HealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "shortlink", resp["service"])
}
