package repository

import (
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
)

// EphemeralStore хранилище анонимных ссылок, живущее только в памяти процесса.
// Создаётся один раз при старте и передаётся обработчикам явно, никакого
// глобального состояния. Записи не попадают в Postgres и исчезают при
// рестарте; дополнительный предел — expiresAt, проверяемый при чтении.
type EphemeralStore struct {
	mu   sync.RWMutex
	urls map[string]*models.ShortURL

	// nowFunc подменяется в тестах
	nowFunc func() time.Time
}

// NewEphemeralStore создаёт пустое хранилище анонимных ссылок
func NewEphemeralStore() *EphemeralStore {
	return &EphemeralStore{
		urls:    make(map[string]*models.ShortURL),
		nowFunc: time.Now,
	}
}

// Set сохраняет анонимную ссылку
func (s *EphemeralStore) Set(url *models.ShortURL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls[url.ShortID] = url
}

// Get возвращает ссылку по shortId. Запись с истёкшим expiresAt считается
// отсутствующей (и удаляется попутно).
func (s *EphemeralStore) Get(shortID string) (*models.ShortURL, bool) {
	s.mu.RLock()
	url, ok := s.urls[shortID]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if url.IsExpired(s.nowFunc()) {
		s.mu.Lock()
		delete(s.urls, shortID)
		s.mu.Unlock()
		return nil, false
	}

	return url, true
}

// AppendClick добавляет клик к анонимной ссылке. Append и пересчёт счётчика
// выполняются под мьютексом хранилища: параллельные редиректы по одной
// популярной ссылке не должны ломать инвариант clickCount == len(clicks).
func (s *EphemeralStore) AppendClick(shortID string, click models.Click) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	url, ok := s.urls[shortID]
	if !ok || url.IsExpired(s.nowFunc()) {
		return false
	}

	url.AppendClick(click)
	return true
}

// Len текущее количество записей (для диагностики)
func (s *EphemeralStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}
