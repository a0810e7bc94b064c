package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL  = errors.New("невалидный URL")
	ErrInvalidID   = errors.New("невалидный кастомный идентификатор")
	ErrIDTaken     = errors.New("кастомный идентификатор уже занят")
	ErrURLNotFound = errors.New("ссылка не найдена")
)

// Константы сервиса
const (
	shortIDLength = 7
	charset       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var customIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,12}$`)

// URLService сервис коротких ссылок. Анонимные запросы получают временную
// ссылку в памяти процесса, запросы с владельцем — постоянную в Postgres.
// Временные ссылки перекрывают постоянные с тем же shortId: их идентификаторы
// генерируются независимо, и при коллизии запись пользователя не должна
// загрязняться чужими кликами.
type URLService interface {
	CreateURL(ctx context.Context, input *models.CreateURLInput) (*models.ShortURL, error)
	GetURL(ctx context.Context, shortID string) (*models.ShortURL, error)
	ListUserURLs(ctx context.Context, userID string) ([]*models.ShortURL, error)
	DeleteURL(ctx context.Context, shortID, userID string) error
}

type urlService struct {
	urlRepo      repository.URLRepository
	cacheRepo    repository.CacheRepository
	ephemeral    *repository.EphemeralStore
	logger       *zap.Logger
	ephemeralTTL time.Duration
	durableTTL   time.Duration
}

// NewURLService создаёт сервис ссылок
func NewURLService(
	urlRepo repository.URLRepository,
	cacheRepo repository.CacheRepository,
	ephemeral *repository.EphemeralStore,
	logger *zap.Logger,
	ephemeralTTL, durableTTL time.Duration,
) URLService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ephemeralTTL <= 0 {
		ephemeralTTL = models.EphemeralTTL
	}
	if durableTTL <= 0 {
		durableTTL = models.DurableTTL
	}
	return &urlService{
		urlRepo:      urlRepo,
		cacheRepo:    cacheRepo,
		ephemeral:    ephemeral,
		logger:       logger,
		ephemeralTTL: ephemeralTTL,
		durableTTL:   durableTTL,
	}
}

// CreateURL создаёт короткую ссылку. UserID == nil означает анонимную
// (временную) ссылку: она живёт только в памяти процесса.
func (s *urlService) CreateURL(ctx context.Context, input *models.CreateURLInput) (*models.ShortURL, error) {
	if err := validateURL(input.OriginalURL); err != nil {
		return nil, err
	}

	customID := input.CustomID != nil && *input.CustomID != ""
	if customID && !customIDPattern.MatchString(*input.CustomID) {
		return nil, ErrInvalidID
	}

	title := input.Title
	if title == "" {
		title = truncate(input.OriginalURL, models.TitleMaxLen)
	}

	now := time.Now()
	shortURL := &models.ShortURL{
		OriginalURL: input.OriginalURL,
		UserID:      input.UserID,
		Title:       title,
		IsTemporary: input.UserID == nil,
		Clicks:      []models.Click{},
		CreatedAt:   now,
	}

	if customID {
		shortURL.ShortID = *input.CustomID
	}

	if shortURL.IsTemporary {
		shortURL.ExpiresAt = now.Add(s.ephemeralTTL)
		return s.createEphemeral(shortURL, customID)
	}

	shortURL.ExpiresAt = now.Add(s.durableTTL)
	return s.createDurable(ctx, shortURL, customID)
}

// createEphemeral сохраняет анонимную ссылку в памяти процесса
func (s *urlService) createEphemeral(shortURL *models.ShortURL, customID bool) (*models.ShortURL, error) {
	if customID {
		if _, exists := s.ephemeral.Get(shortURL.ShortID); exists {
			return nil, ErrIDTaken
		}
		s.ephemeral.Set(shortURL)
		return shortURL, nil
	}

	for {
		id, err := generateShortID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate short id: %w", err)
		}
		if _, exists := s.ephemeral.Get(id); exists {
			continue
		}
		shortURL.ShortID = id
		s.ephemeral.Set(shortURL)
		return shortURL, nil
	}
}

// createDurable сохраняет ссылку владельца в Postgres и прогревает кэш
func (s *urlService) createDurable(ctx context.Context, shortURL *models.ShortURL, customID bool) (*models.ShortURL, error) {
	for {
		if !customID {
			id, err := generateShortID()
			if err != nil {
				return nil, fmt.Errorf("failed to generate short id: %w", err)
			}
			shortURL.ShortID = id
		}

		err := s.urlRepo.Create(ctx, shortURL)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrIDExists) {
			if customID {
				return nil, ErrIDTaken
			}
			// Коллизия сгенерированного id, пробуем ещё раз
			continue
		}
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, shortURL.ShortID, shortURL, time.Until(shortURL.ExpiresAt)); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.String("short_id", shortURL.ShortID), zap.Error(err))
	}

	return shortURL, nil
}

// GetURL ищет ссылку по shortId в обоих хранилищах: сначала временные в
// памяти (они перекрывают постоянные), затем кэш, затем Postgres.
func (s *urlService) GetURL(ctx context.Context, shortID string) (*models.ShortURL, error) {
	if url, ok := s.ephemeral.Get(shortID); ok {
		return url, nil
	}

	if url, err := s.cacheRepo.Get(ctx, shortID); err == nil {
		return url, nil
	}

	url, err := s.urlRepo.GetByShortID(ctx, shortID)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, shortID, url, time.Until(url.ExpiresAt)); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.String("short_id", shortID), zap.Error(err))
	}

	return url, nil
}

// ListUserURLs возвращает постоянные ссылки пользователя, новые первыми
func (s *urlService) ListUserURLs(ctx context.Context, userID string) ([]*models.ShortURL, error) {
	return s.urlRepo.ListByUser(ctx, userID)
}

// DeleteURL удаляет постоянную ссылку владельца и её кэш
func (s *urlService) DeleteURL(ctx context.Context, shortID, userID string) error {
	if err := s.cacheRepo.Delete(ctx, shortID); err != nil {
		s.logger.Warn("Не удалось удалить ссылку из кэша", zap.String("short_id", shortID), zap.Error(err))
	}

	err := s.urlRepo.Delete(ctx, shortID, userID)
	if errors.Is(err, repository.ErrURLNotFound) {
		return ErrURLNotFound
	}
	return err
}

// generateShortID генерирует случайный идентификатор длиной 7 символов
func generateShortID() (string, error) {
	result := make([]byte, shortIDLength)
	for i := 0; i < shortIDLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}

// validateURL проверяет, что строка — абсолютный http(s) URL
func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
