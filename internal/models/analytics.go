package models

import (
	"time"
)

// AnalyticsView агрегированная статистика по ссылке для дашборда владельца.
// Имена JSON-полей — контракт с фронтендом (см. world-map и analytics-dashboard),
// менять нельзя.
type AnalyticsView struct {
	CountryStats     map[string]int    `json:"countryStats"`
	CountryCodeStats map[string]string `json:"countryCodeStats"`
	DailyClicks      []DailyClicks     `json:"dailyClicks"`
	LocationData     []LocationPoint   `json:"locationData"`
	TotalClicks      int               `json:"totalClicks"`
}

// DailyClicks количество кликов за один календарный день
type DailyClicks struct {
	Date   string `json:"date"`
	Clicks int    `json:"clicks"`
}

// LocationPoint геокодированная точка для карты.
// Coordinates в порядке [долгота, широта] — так ожидает картографический слой.
type LocationPoint struct {
	Country     string     `json:"country"`
	CountryCode string     `json:"countryCode"`
	City        string     `json:"city"`
	Region      string     `json:"region"`
	Coordinates [2]float64 `json:"coordinates"`
	Timestamp   time.Time  `json:"timestamp"`
}
