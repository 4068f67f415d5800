package cache

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize - сколько ключей каталога держим в памяти.
const DefaultSize = 1024

// Cache - LRU-кэш с общим TTL и инвалидацией по префиксу.
type Cache struct {
	lru *expirable.LRU[string, any]
}

// New создаёт кэш на size ключей. size <= 0 снимает ограничение.
func New(size int, ttl time.Duration) *Cache {
	if size < 0 {
		size = 0
	}
	return &Cache{lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

func (c *Cache) Get(key string) (any, bool) {
	return c.lru.Get(key)
}

func (c *Cache) Set(key string, value any) {
	c.lru.Add(key, value)
}

func (c *Cache) Delete(key string) {
	c.lru.Remove(key)
}

func (c *Cache) InvalidateByPrefix(prefix string) {
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// GetOrSet возвращает значение из кэша или вычисляет и сохраняет его.
// Ошибки не кэшируются.
func (c *Cache) GetOrSet(key string, fn func() (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		return nil, err
	}
	c.Set(key, value)
	return value, nil
}

const catalogPrefix = "catalog:"

// Ключи каталога услуг.
func CatalogPrefix() string {
	return catalogPrefix
}

func ServiceKey(id uuid.UUID) string {
	return catalogPrefix + "service:" + id.String()
}

func ServiceListKey(tenantID *uuid.UUID, category string) string {
	tenant := "all"
	if tenantID != nil {
		tenant = tenantID.String()
	}
	return catalogPrefix + "list:" + tenant + ":" + category
}
