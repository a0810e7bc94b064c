package geo

import (
	"context"
	"net"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"go.uber.org/zap"
)

// Resolver резолвит IP-адрес в геолокацию: цепочка провайдеров с фолбэком,
// общий для процесса кэш и жёсткий таймаут на каждый внешний вызов.
// Resolve никогда не возвращает ошибку наружу.
type Resolver struct {
	providers []Provider
	cache     *Cache
	timeout   time.Duration
	logger    *zap.Logger
}

// NewResolver создаёт резолвер. Провайдеры опрашиваются по порядку,
// первый валидный ответ кэшируется и возвращается.
func NewResolver(providers []Provider, cache *Cache, timeout time.Duration, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		providers: providers,
		cache:     cache,
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve определяет локацию по IP.
//
// Порядок: приватные и loopback адреса сразу получают фиксированную локацию
// для разработки (никаких сетевых вызовов и записей в кэш); затем кэш; затем
// провайдеры по цепочке. Если все провайдеры недоступны, возвращается
// UnknownLocation — и не кэшируется, чтобы следующий вызов повторил попытку
// (отказ провайдера может быть временным).
func (r *Resolver) Resolve(ctx context.Context, ip string) *models.GeoLocation {
	if isPrivateIP(ip) {
		r.logger.Debug("Локальный/приватный IP, используем фолбэк разработки",
			zap.String("ip", ip),
		)
		return models.DevelopmentFallback()
	}

	if geo, ok := r.cache.Get(ip); ok {
		return geo
	}

	for _, provider := range r.providers {
		geo, err := r.lookup(ctx, provider, ip)
		if err != nil {
			r.logger.Warn("Провайдер геолокации недоступен",
				zap.String("provider", provider.Name()),
				zap.String("ip", ip),
				zap.Error(err),
			)
			continue
		}

		r.cache.Set(ip, geo)
		return geo
	}

	return models.UnknownLocation()
}

// lookup один вызов провайдера, ограниченный таймаутом резолвера
func (r *Resolver) lookup(ctx context.Context, provider Provider, ip string) (*models.GeoLocation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return provider.Lookup(ctx, ip)
}

// isPrivateIP сообщает, является ли адрес локальным или приватным:
// пустая строка, localhost, loopback, 10.x, 172.16–172.31.x, 192.168.x
func isPrivateIP(ip string) bool {
	if ip == "" || ip == "localhost" {
		return true
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}

	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified()
}
