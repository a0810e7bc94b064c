package models

import (
	"time"
)

// Сроки жизни ссылок по умолчанию
const (
	// EphemeralTTL время жизни анонимной ссылки (живёт только в памяти процесса)
	EphemeralTTL = 24 * time.Hour
	// DurableTTL время жизни постоянной ссылки в хранилище
	DurableTTL = 365 * 24 * time.Hour
	// TitleMaxLen максимальная длина автоматически сгенерированного заголовка
	TitleMaxLen = 50
)

// ShortURL короткая ссылка. Анонимные (ephemeral) ссылки живут только в памяти
// процесса, ссылки с владельцем персистятся в Postgres.
// Имена JSON-полей — контракт с существующим фронтендом, не менять.
type ShortURL struct {
	ShortID     string    `json:"shortId"`
	OriginalURL string    `json:"originalUrl"`
	UserID      *string   `json:"userId"`
	Title       string    `json:"title"`
	IsTemporary bool      `json:"isTemporary"`
	Clicks      []Click   `json:"clicks"`
	ClickCount  int       `json:"clickCount"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// IsExpired проверяет, истёк ли срок жизни ссылки
func (u *ShortURL) IsExpired(now time.Time) bool {
	return now.After(u.ExpiresAt)
}

// AppendClick добавляет клик и синхронно обновляет счётчик.
// Инвариант: ClickCount всегда равен len(Clicks).
func (u *ShortURL) AppendClick(click Click) {
	u.Clicks = append(u.Clicks, click)
	u.ClickCount = len(u.Clicks)
}

// CreateURLInput входные данные для создания короткой ссылки
type CreateURLInput struct {
	OriginalURL string  `json:"originalUrl" binding:"required"`
	CustomID    *string `json:"customId,omitempty"`
	Title       string  `json:"title,omitempty"`
	UserID      *string `json:"-"`
}
