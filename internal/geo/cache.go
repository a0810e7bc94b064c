package geo

import (
	"container/list"
	"sync"

	"github.com/SergeiKhy/shortlink/internal/models"
)

// DefaultCacheSize ёмкость кэша геолокаций по умолчанию
const DefaultCacheSize = 10000

// cacheEntry запись кэша: IP и результат геолокации
type cacheEntry struct {
	ip  string
	geo models.GeoLocation
}

// Cache потокобезопасный LRU-кэш IP -> GeoLocation. Записи не устаревают по
// времени (локация IP считается квазистатичной), но общее количество ограничено,
// чтобы долгоживущий процесс не рос бесконечно.
type Cache struct {
	mu       sync.Mutex
	capacity int

	// Голова списка — самые свежие записи, хвост вытесняется первым
	lru   *list.List
	items map[string]*list.Element
}

// NewCache создаёт LRU-кэш заданной ёмкости
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		lru:      list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get возвращает закэшированную локацию для IP
func (c *Cache) Get(ip string) (*models.GeoLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[ip]
	if !ok {
		return nil, false
	}

	c.lru.MoveToFront(elem)
	geo := elem.Value.(*cacheEntry).geo
	return &geo, true
}

// Set сохраняет локацию для IP. Гонка конкурентных писателей по одному ключу
// безобидна: значения для одного IP идемпотентны, побеждает последняя запись.
func (c *Cache) Set(ip string, geo *models.GeoLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[ip]; ok {
		elem.Value.(*cacheEntry).geo = *geo
		c.lru.MoveToFront(elem)
		return
	}

	c.items[ip] = c.lru.PushFront(&cacheEntry{ip: ip, geo: *geo})

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).ip)
		}
	}
}

// Len текущее количество записей
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
