package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
)

// MockURLRepository implements repository.URLRepository for testing
type MockURLRepository struct {
	mu   sync.RWMutex
	urls map[string]*models.ShortURL
}

func NewMockURLRepository() *MockURLRepository {
	return &MockURLRepository{
		urls: make(map[string]*models.ShortURL),
	}
}

func (m *MockURLRepository) Create(ctx context.Context, url *models.ShortURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.urls[url.ShortID]; exists {
		return repository.ErrIDExists
	}

	stored := *url
	stored.Clicks = append([]models.Click{}, url.Clicks...)
	m.urls[url.ShortID] = &stored
	return nil
}

func (m *MockURLRepository) GetByShortID(ctx context.Context, shortID string) (*models.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, exists := m.urls[shortID]
	if !exists {
		return nil, repository.ErrURLNotFound
	}
	return m.snapshot(url), nil
}

func (m *MockURLRepository) GetByShortIDAndUser(ctx context.Context, shortID, userID string) (*models.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, exists := m.urls[shortID]
	if !exists || url.UserID == nil || *url.UserID != userID {
		return nil, repository.ErrURLNotFound
	}
	return m.snapshot(url), nil
}

func (m *MockURLRepository) ListByUser(ctx context.Context, userID string) ([]*models.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var urls []*models.ShortURL
	for _, url := range m.urls {
		if url.UserID != nil && *url.UserID == userID {
			urls = append(urls, m.snapshot(url))
		}
	}
	sort.Slice(urls, func(i, j int) bool {
		return urls[i].CreatedAt.After(urls[j].CreatedAt)
	})
	return urls, nil
}

func (m *MockURLRepository) Delete(ctx context.Context, shortID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	url, exists := m.urls[shortID]
	if !exists || url.UserID == nil || *url.UserID != userID {
		return repository.ErrURLNotFound
	}
	delete(m.urls, shortID)
	return nil
}

func (m *MockURLRepository) AppendClick(ctx context.Context, shortID string, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	url, exists := m.urls[shortID]
	if !exists {
		return repository.ErrURLNotFound
	}
	url.AppendClick(*click)
	return nil
}

func (m *MockURLRepository) GetClicks(ctx context.Context, shortID string) ([]models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, exists := m.urls[shortID]
	if !exists {
		return nil, repository.ErrURLNotFound
	}
	return append([]models.Click{}, url.Clicks...), nil
}

func (m *MockURLRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = make(map[string]*models.ShortURL)
}

// snapshot возвращает копию записи, как это сделал бы настоящий репозиторий
func (m *MockURLRepository) snapshot(url *models.ShortURL) *models.ShortURL {
	copied := *url
	copied.Clicks = append([]models.Click{}, url.Clicks...)
	return &copied
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.ShortURL
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.ShortURL),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, shortID string) (*models.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, exists := m.cache[shortID]
	if !exists {
		return nil, repository.ErrURLNotFound
	}
	return url, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, shortID string, url *models.ShortURL, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[shortID] = url
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, shortID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, shortID)
	return nil
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.ShortURL)
}
