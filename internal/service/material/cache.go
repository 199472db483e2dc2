package material

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

const (
	// DefaultCacheTTL время жизни записи кэша названий.
	DefaultCacheTTL = 24 * time.Hour
	// DefaultLookupTimeout ограничивает общий запрос к справочнику.
	DefaultLookupTimeout = 15 * time.Second
)

type cacheEntry struct {
	name      string
	fetchedAt time.Time
}

// Cache кэширует названия позиций справочника материалов по ключу (kind, id).
// Ошибки источника не кэшируются. Одновременные промахи по одному ключу
// объединяются в один запрос; при гонке записей побеждает последняя.
// Общий запрос не зависит от отмены контекста отдельного вызывающего.
type Cache struct {
	lookup        domain.MaterialLookup
	ttl           time.Duration
	lookupTimeout time.Duration
	now           func() time.Time
	logger        *log.Entry
	metrics       *metrics.OrderMetrics

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[domain.MaterialKey]cacheEntry
}

// CacheOption настраивает Cache.
type CacheOption func(*Cache)

// WithTTL задаёт время жизни записи.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLookupTimeout задаёт предельное время общего запроса к источнику.
func WithLookupTimeout(timeout time.Duration) CacheOption {
	return func(c *Cache) {
		if timeout > 0 {
			c.lookupTimeout = timeout
		}
	}
}

// WithClock задаёт источник времени.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger задаёт логгер.
func WithCacheLogger(logger *log.Entry) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheMetrics подключает метрики обращений.
func WithCacheMetrics(m *metrics.OrderMetrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache создаёт кэш поверх источника названий.
func NewCache(lookup domain.MaterialLookup, opts ...CacheOption) *Cache {
	c := &Cache{
		lookup:        lookup,
		ttl:           DefaultCacheTTL,
		lookupTimeout: DefaultLookupTimeout,
		now:           time.Now,
		logger:        log.New().WithField("component", "material-cache"),
		entries:       make(map[domain.MaterialKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL возвращает время жизни записи.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// DisplayName возвращает название из кэша или запрашивает его у источника.
func (c *Cache) DisplayName(ctx context.Context, kind domain.MaterialKind, id int) (string, error) {
	key := domain.MaterialKey{Kind: kind, ID: id}
	if name, ok := c.get(key); ok {
		c.metrics.RecordCacheLookup(string(kind), "hit")
		return name, nil
	}

	results := c.group.DoChan(key.String(), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()
		name, err := c.lookup.LookupName(lookupCtx, kind, id)
		if err != nil {
			return "", err
		}
		c.put(key, name)
		return name, nil
	})

	select {
	case res := <-results:
		if res.Err != nil {
			c.lookupFailed(key, res.Err)
			return "", res.Err
		}
		c.metrics.RecordCacheLookup(string(kind), "miss")
		return res.Val.(string), nil
	case <-ctx.Done():
		c.lookupFailed(key, ctx.Err())
		return "", ctx.Err()
	}
}

func (c *Cache) lookupFailed(key domain.MaterialKey, err error) {
	c.metrics.RecordCacheLookup(string(key.Kind), "error")
	c.logger.WithFields(log.Fields{
		"kind": key.Kind,
		"id":   key.ID,
	}).WithError(err).Debug("material name lookup failed")
}

// RunJanitor периодически удаляет просроченные записи, пока не отменён ctx.
// Непозитивный interval заменяется на TTL.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.PurgeExpired(); removed > 0 {
				c.logger.WithField("removed", removed).Debug("expired material names purged")
			}
		}
	}
}

// PurgeExpired удаляет просроченные записи и возвращает их число.
func (c *Cache) PurgeExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) get(key domain.MaterialKey) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return "", false
	}
	return e.name, true
}

func (c *Cache) put(key domain.MaterialKey, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{name: name, fetchedAt: c.now()}
}
