package models

import (
	"math"
)

// GeoLocation результат геолокации IP-адреса. Значение временное: рекордер
// копирует его поля в Click, самостоятельно оно не хранится.
type GeoLocation struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// IsValid проверяет, пригоден ли ответ провайдера: страна и код страны
// непустые, координаты — числа
func (g *GeoLocation) IsValid() bool {
	if g.Country == "" || g.CountryCode == "" {
		return false
	}
	return !math.IsNaN(g.Latitude) && !math.IsNaN(g.Longitude)
}

// HasCoordinates сообщает, несёт ли значение реальные координаты
// (пара (0, 0) — маркер неизвестной локации)
func (g *GeoLocation) HasCoordinates() bool {
	if math.IsNaN(g.Latitude) || math.IsNaN(g.Longitude) {
		return false
	}
	return g.Latitude != 0 || g.Longitude != 0
}

// DevelopmentFallback фиксированная локация для локальных и приватных адресов
func DevelopmentFallback() *GeoLocation {
	return &GeoLocation{
		Country:     "United States",
		CountryCode: "US",
		Region:      "California",
		City:        "San Francisco",
		Latitude:    37.7749,
		Longitude:   -122.4194,
	}
}

// UnknownLocation локация-заглушка, когда ни один провайдер не ответил
func UnknownLocation() *GeoLocation {
	return &GeoLocation{
		Country:     "Unknown",
		CountryCode: "XX",
		Region:      "",
		City:        "",
		Latitude:    0,
		Longitude:   0,
	}
}
