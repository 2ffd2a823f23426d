package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDirectory 记录调用次数的目录
type countingDirectory struct {
	inner Directory
	calls int32
}

func (d *countingDirectory) Resolve(ctx context.Context, id string) (*Contact, error) {
	atomic.AddInt32(&d.calls, 1)
	return d.inner.Resolve(ctx, id)
}

func testContacts() []Contact {
	return []Contact{
		{ID: "contact-001", DisplayName: "张工", Phone: "13800000001"},
		{ID: "contact-002", DisplayName: "李工", Email: "li@example.com"},
		{ID: "", DisplayName: "无效"},
	}
}

// TestStaticDirectory_Resolve 测试静态目录
func TestStaticDirectory_Resolve(t *testing.T) {
	d := NewStaticDirectory(testContacts())

	c, err := d.Resolve(context.Background(), "contact-001")
	require.NoError(t, err)
	assert.Equal(t, "张工", c.DisplayName)

	_, err = d.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestHTTPDirectory_Resolve 测试 HTTP 目录
func TestHTTPDirectory_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contacts/contact-001":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(Contact{ID: "contact-001", DisplayName: "张工", Phone: "13800000001"})
		case "/contacts/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	d := NewHTTPDirectory(server.URL+"/", time.Second)

	c, err := d.Resolve(context.Background(), "contact-001")
	require.NoError(t, err)
	assert.Equal(t, "张工", c.DisplayName)
	assert.Equal(t, "13800000001", c.Phone)

	_, err = d.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Resolve(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

// TestHTTPDirectory_ContextCanceled 测试请求取消
func TestHTTPDirectory_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPDirectory(server.URL, time.Second).Resolve(ctx, "contact-001")
	assert.Error(t, err)
}

// TestMemoryCache_Expiry 测试缓存过期
func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(time.Minute)
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set(ctx, "contact-001", &Contact{ID: "contact-001", DisplayName: "张工"})

	c, found := cache.Get(ctx, "contact-001")
	require.True(t, found)
	assert.Equal(t, "张工", c.DisplayName)

	now = now.Add(2 * time.Minute)
	_, found = cache.Get(ctx, "contact-001")
	assert.False(t, found)
}

// TestMemoryCache_InvalidateAndClear 测试缓存失效
func TestMemoryCache_InvalidateAndClear(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(time.Minute)
	cache.Set(ctx, "contact-001", &Contact{ID: "contact-001"})
	cache.Set(ctx, "contact-002", &Contact{ID: "contact-002"})

	cache.Invalidate(ctx, "contact-001")
	_, found := cache.Get(ctx, "contact-001")
	assert.False(t, found)
	_, found = cache.Get(ctx, "contact-002")
	assert.True(t, found)

	cache.Clear(ctx)
	_, found = cache.Get(ctx, "contact-002")
	assert.False(t, found)
}

// TestCachedDirectory_Resolve 测试带缓存的目录
func TestCachedDirectory_Resolve(t *testing.T) {
	ctx := context.Background()
	inner := &countingDirectory{inner: NewStaticDirectory(testContacts())}
	d := NewCachedDirectory(inner, NewMemoryCache(time.Minute))

	for i := 0; i < 3; i++ {
		c, err := d.Resolve(ctx, "contact-001")
		require.NoError(t, err)
		assert.Equal(t, "张工", c.DisplayName)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	// 未找到的联系人不缓存
	_, err := d.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))

	d.Invalidate(ctx, "contact-001")
	_, err = d.Resolve(ctx, "contact-001")
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&inner.calls))

	d.Clear(ctx)
	_, err = d.Resolve(ctx, "contact-001")
	require.NoError(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&inner.calls))
}

// canonicalDirectory 返回规范化(大写)ID 的目录
type canonicalDirectory struct {
	calls int32
}

func (d *canonicalDirectory) Resolve(ctx context.Context, id string) (*Contact, error) {
	atomic.AddInt32(&d.calls, 1)
	return &Contact{ID: strings.ToUpper(id), DisplayName: "张工"}, nil
}

// TestCachedDirectory_KeysByRequestedID 测试上游返回不同 ID 时仍按请求 ID 命中缓存
func TestCachedDirectory_KeysByRequestedID(t *testing.T) {
	ctx := context.Background()
	inner := &canonicalDirectory{}
	cache := NewMemoryCache(time.Minute)
	d := NewCachedDirectory(inner, cache)

	for i := 0; i < 3; i++ {
		c, err := d.Resolve(ctx, "contact-001")
		require.NoError(t, err)
		assert.Equal(t, "CONTACT-001", c.ID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	_, found := cache.Get(ctx, "contact-001")
	assert.True(t, found)
	_, found = cache.Get(ctx, "CONTACT-001")
	assert.False(t, found)
}

// TestRedisCache_Unavailable 测试 Redis 不可用时退化为未命中
func TestRedisCache_Unavailable(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	inner := &countingDirectory{inner: NewStaticDirectory(testContacts())}
	d := NewCachedDirectory(inner, NewRedisCache(rdb, time.Minute, nil))

	c, err := d.Resolve(ctx, "contact-002")
	require.NoError(t, err)
	assert.Equal(t, "李工", c.DisplayName)

	_, err = d.Resolve(ctx, "contact-002")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))

	d.Invalidate(ctx, "contact-002")
	d.Clear(ctx)
}
