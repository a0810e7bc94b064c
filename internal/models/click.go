package models

import (
	"math"
	"time"
)

// Click одно посещение короткой ссылки. Принадлежит своей ShortURL и нигде
// больше не используется. Координаты — указатели: nil означает, что геолокация
// не была определена (в отличие от реального значения).
type Click struct {
	Timestamp   time.Time `json:"timestamp"`
	Country     string    `json:"country"`
	CountryCode string    `json:"countryCode"`
	City        string    `json:"city"`
	Region      string    `json:"region"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"userAgent"`
}

// HasCoordinates сообщает, есть ли у клика пригодные для карты координаты.
// Пара (0, 0) считается неразрешённой: так записываются клики с неизвестной
// геолокацией.
func (c *Click) HasCoordinates() bool {
	return validCoordinates(c.Latitude, c.Longitude)
}

// ClickEvent событие клика, передаваемое в рекордер из обработчика редиректа
type ClickEvent struct {
	ShortID   string
	Geo       *GeoLocation
	IP        string
	UserAgent string
}

func validCoordinates(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	if math.IsNaN(*lat) || math.IsNaN(*lng) {
		return false
	}
	return *lat != 0 || *lng != 0
}
