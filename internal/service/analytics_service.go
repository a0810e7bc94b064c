package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"go.uber.org/zap"
)

// dailyWindow длина дневной серии: ровно 30 записей независимо от данных
const dailyWindow = 30

// AnalyticsService строит агрегированную статистику по ссылке для её
// владельца. Чужая и несуществующая ссылки дают один и тот же ErrURLNotFound,
// чтобы не раскрывать существование чужих ссылок.
type AnalyticsService interface {
	GetAnalytics(ctx context.Context, shortID, userID string) (*models.AnalyticsView, error)
}

type analyticsService struct {
	urlRepo  repository.URLRepository
	resolver GeoResolver
	logger   *zap.Logger

	// nowFunc подменяется в тестах для стабильной дневной серии
	nowFunc func() time.Time
}

// NewAnalyticsService создаёт сервис аналитики
func NewAnalyticsService(urlRepo repository.URLRepository, resolver GeoResolver, logger *zap.Logger) AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &analyticsService{
		urlRepo:  urlRepo,
		resolver: resolver,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// GetAnalytics читает историю кликов ссылки и собирает представление для
// дашборда: распределение по странам, коды стран для карты, дневная серия за
// 30 дней и геокодированные точки. Операция только читает: дозаполненные
// координаты в хранилище не сохраняются.
func (s *analyticsService) GetAnalytics(ctx context.Context, shortID, userID string) (*models.AnalyticsView, error) {
	url, err := s.urlRepo.GetByShortIDAndUser(ctx, shortID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	countryStats := make(map[string]int)
	countryCodeStats := make(map[string]string)
	for i := range url.Clicks {
		click := &url.Clicks[i]
		country := click.Country
		if country == "" {
			country = "Unknown"
		}
		countryStats[country]++

		// Последний встреченный код для страны побеждает
		if click.CountryCode != "" {
			countryCodeStats[country] = click.CountryCode
		}
	}

	return &models.AnalyticsView{
		CountryStats:     countryStats,
		CountryCodeStats: countryCodeStats,
		DailyClicks:      s.dailyClicks(url.Clicks),
		LocationData:     s.locationData(ctx, url.Clicks),
		TotalClicks:      url.ClickCount,
	}, nil
}

// dailyClicks строит серию из ровно 30 дней, заканчивающуюся сегодняшним.
// Дни без кликов присутствуют с нулём.
func (s *analyticsService) dailyClicks(clicks []models.Click) []models.DailyClicks {
	now := s.nowFunc()
	start := now.Add(-dailyWindow * 24 * time.Hour)

	daily := make([]models.DailyClicks, 0, dailyWindow)
	for i := 0; i < dailyWindow; i++ {
		dayStart := start.Add(time.Duration(i) * 24 * time.Hour)
		dayEnd := dayStart.Add(24 * time.Hour)

		count := 0
		for j := range clicks {
			ts := clicks[j].Timestamp
			if !ts.Before(dayStart) && ts.Before(dayEnd) {
				count++
			}
		}

		daily = append(daily, models.DailyClicks{
			Date:   dayStart.UTC().Format("2006-01-02"),
			Clicks: count,
		})
	}

	return daily
}

// locationData собирает точки для карты. Клики без координат, но с известным
// IP, дозаполняются резолвером конкурентно — только на время ответа, уже
// разрешённые координаты не перезаписываются. Клик, который дозаполнить не
// удалось, молча пропускается.
func (s *analyticsService) locationData(ctx context.Context, clicks []models.Click) []models.LocationPoint {
	// Работаем на копиях: история кликов не мутируется
	enriched := make([]models.Click, len(clicks))
	copy(enriched, clicks)

	var wg sync.WaitGroup
	for i := range enriched {
		click := &enriched[i]
		if click.HasCoordinates() {
			continue
		}
		if click.IP == "" || click.IP == "Unknown" {
			continue
		}

		wg.Add(1)
		go func(c *models.Click) {
			defer wg.Done()
			s.backfill(ctx, c)
		}(click)
	}
	wg.Wait()

	points := []models.LocationPoint{}
	for i := range enriched {
		click := &enriched[i]
		if !click.HasCoordinates() {
			continue
		}
		points = append(points, models.LocationPoint{
			Country:     click.Country,
			CountryCode: click.CountryCode,
			City:        click.City,
			Region:      click.Region,
			Coordinates: [2]float64{*click.Longitude, *click.Latitude},
			Timestamp:   click.Timestamp,
		})
	}

	return points
}

// backfill заполняет недостающие геополя клика по его IP.
// Уже заполненные поля не трогаются.
func (s *analyticsService) backfill(ctx context.Context, click *models.Click) {
	geo := s.resolver.Resolve(ctx, click.IP)
	if !geo.HasCoordinates() {
		return
	}

	lat, lng := geo.Latitude, geo.Longitude
	click.Latitude = &lat
	click.Longitude = &lng
	if click.Country == "" || click.Country == "Unknown" {
		click.Country = geo.Country
	}
	if click.CountryCode == "" {
		click.CountryCode = geo.CountryCode
	}
	if click.Region == "" {
		click.Region = geo.Region
	}
	if click.City == "" {
		click.City = geo.City
	}
}
