package contact

import (
	"context"
	"sync"
	"time"
)

// Cache 联系人缓存
type Cache interface {
	Get(ctx context.Context, id string) (*Contact, bool)
	Set(ctx context.Context, id string, c *Contact)
	Invalidate(ctx context.Context, id string)
	Clear(ctx context.Context)
}

// MemoryCache 进程内 TTL 缓存
type MemoryCache struct {
	cache *sync.Map
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	contact   Contact
	expiresAt time.Time
}

// NewMemoryCache 创建进程内缓存
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: &sync.Map{},
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get 获取缓存
func (c *MemoryCache) Get(ctx context.Context, id string) (*Contact, bool) {
	val, found := c.cache.Load(id)
	if !found {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		// 已过期，删除
		c.cache.Delete(id)
		return nil, false
	}

	contact := entry.contact
	return &contact, true
}

// Set 设置缓存
func (c *MemoryCache) Set(ctx context.Context, id string, contact *Contact) {
	c.cache.Store(id, &cacheEntry{
		contact:   *contact,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Invalidate 删除单个联系人缓存
func (c *MemoryCache) Invalidate(ctx context.Context, id string) {
	c.cache.Delete(id)
}

// Clear 清空缓存
func (c *MemoryCache) Clear(ctx context.Context) {
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		return true
	})
}

// CachedDirectory 带缓存的联系人目录
// 未找到的联系人不缓存
type CachedDirectory struct {
	directory Directory
	cache     Cache
}

// NewCachedDirectory 创建带缓存的联系人目录
func NewCachedDirectory(directory Directory, cache Cache) *CachedDirectory {
	return &CachedDirectory{
		directory: directory,
		cache:     cache,
	}
}

// Resolve 查询联系人（带缓存）
func (d *CachedDirectory) Resolve(ctx context.Context, id string) (*Contact, error) {
	if c, found := d.cache.Get(ctx, id); found {
		return c, nil
	}

	c, err := d.directory.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	// 按请求的 ID 缓存,上游返回规范化 ID 时仍能命中
	d.cache.Set(ctx, id, c)
	return c, nil
}

// Invalidate 使单个联系人缓存失效
func (d *CachedDirectory) Invalidate(ctx context.Context, id string) {
	d.cache.Invalidate(ctx, id)
}

// Clear 清空缓存
func (d *CachedDirectory) Clear(ctx context.Context) {
	d.cache.Clear(ctx)
}
