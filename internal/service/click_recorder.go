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

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxRetries           = 3    // Максимальное количество попыток записи
)

// GeoResolver определяет локацию по IP. Реализуется internal/geo.Resolver,
// в тестах подменяется фейком.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) *models.GeoLocation
}

// ClickRecorder записывает клики. Клик по временной ссылке применяется
// синхронно к общему объекту в памяти; клик по постоянной ссылке уходит в
// worker pool и персистится без ожидания со стороны редиректа
// (fire-and-forget: ошибки логируются и отбрасываются).
type ClickRecorder interface {
	Start()
	Stop()
	Record(ctx context.Context, event *models.ClickEvent) error
}

type clickRecorder struct {
	urlRepo      repository.URLRepository
	ephemeral    *repository.EphemeralStore
	resolver     GeoResolver
	logger       *zap.Logger
	clickChannel chan *models.ClickEvent
	workerCount  int
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewClickRecorder создаёт рекордер кликов с worker pool для постоянных ссылок
func NewClickRecorder(
	urlRepo repository.URLRepository,
	ephemeral *repository.EphemeralStore,
	resolver GeoResolver,
	logger *zap.Logger,
) ClickRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &clickRecorder{
		urlRepo:      urlRepo,
		ephemeral:    ephemeral,
		resolver:     resolver,
		logger:       logger,
		clickChannel: make(chan *models.ClickEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
	}
}

// Start запускает worker pool
func (r *clickRecorder) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.logger.Info("Запуск воркеров рекордера кликов", zap.Int("count", r.workerCount))

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop корректно останавливает worker pool
func (r *clickRecorder) Stop() {
	r.logger.Info("Остановка рекордера кликов...")
	r.cancel()
	r.wg.Wait()
	r.logger.Info("Рекордер кликов остановлен")
}

// Record регистрирует клик. Для временной ссылки — синхронная запись в память
// (после возврата клик виден любому читателю процесса); для остальных событие
// отправляется в канал без блокировки запроса. Неизвестный shortId по
// синхронному пути даёт ErrURLNotFound без побочных эффектов.
func (r *clickRecorder) Record(ctx context.Context, event *models.ClickEvent) error {
	if _, ok := r.ephemeral.Get(event.ShortID); ok {
		click := r.buildClick(ctx, event)
		if !r.ephemeral.AppendClick(event.ShortID, click) {
			return ErrURLNotFound
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.clickChannel <- event:
		return nil
	default:
		// Канал заполнен: теряем статистику, но не тормозим редирект
		r.logger.Warn("Буфер канала кликов заполнен, событие потеряно",
			zap.String("short_id", event.ShortID),
		)
		return nil
	}
}

// worker обрабатывает события кликов из канала
func (r *clickRecorder) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("Воркер кликов запущен", zap.Int("id", id))

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("Воркер кликов остановлен", zap.Int("id", id))
			return

		case event, ok := <-r.clickChannel:
			if !ok {
				return
			}
			r.processClick(event)
		}
	}
}

// processClick записывает один клик по постоянной ссылке с retry-логикой
func (r *clickRecorder) processClick(event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()

	click := r.buildClick(ctx, event)

	var err error
	for i := 0; i < maxRetries; i++ {
		err = r.urlRepo.AppendClick(ctx, event.ShortID, &click)
		if err == nil {
			return
		}
		if errors.Is(err, repository.ErrURLNotFound) {
			// Ссылку успели удалить — ретраи бессмысленны
			r.logger.Warn("Клик по несуществующей ссылке отброшен",
				zap.String("short_id", event.ShortID),
			)
			return
		}
		if i < maxRetries-1 {
			r.logger.Debug("Повторная попытка записи клика",
				zap.String("short_id", event.ShortID),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	r.logger.Error("Не удалось записать клик после всех попыток",
		zap.String("short_id", event.ShortID),
		zap.Error(err),
	)
}

// buildClick собирает Click из события: геоданные вызывающего дополняются
// резолвером, но никогда им не перезаписываются
func (r *clickRecorder) buildClick(ctx context.Context, event *models.ClickEvent) models.Click {
	geo := event.Geo
	if (geo == nil || !geo.HasCoordinates()) && event.IP != "" {
		geo = mergeGeo(geo, r.resolver.Resolve(ctx, event.IP))
	}
	if geo == nil {
		geo = models.UnknownLocation()
	}

	ip := event.IP
	if ip == "" {
		ip = "Unknown"
	}
	userAgent := event.UserAgent
	if userAgent == "" {
		userAgent = "Unknown"
	}
	country := geo.Country
	if country == "" {
		country = "Unknown"
	}

	lat, lng := geo.Latitude, geo.Longitude
	return models.Click{
		Timestamp:   time.Now(),
		Country:     country,
		CountryCode: geo.CountryCode,
		City:        geo.City,
		Region:      geo.Region,
		Latitude:    &lat,
		Longitude:   &lng,
		IP:          ip,
		UserAgent:   userAgent,
	}
}

// mergeGeo накладывает результат резолвера на частичные данные вызывающего:
// заполняются только пустые поля
func mergeGeo(partial, resolved *models.GeoLocation) *models.GeoLocation {
	if partial == nil {
		return resolved
	}
	if resolved == nil {
		return partial
	}

	merged := *partial
	if merged.Country == "" {
		merged.Country = resolved.Country
	}
	if merged.CountryCode == "" {
		merged.CountryCode = resolved.CountryCode
	}
	if merged.Region == "" {
		merged.Region = resolved.Region
	}
	if merged.City == "" {
		merged.City = resolved.City
	}
	if !merged.HasCoordinates() {
		merged.Latitude = resolved.Latitude
		merged.Longitude = resolved.Longitude
	}
	return &merged
}
