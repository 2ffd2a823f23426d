package metrics

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

// StatusCounter 统计各状态的记录数
type StatusCounter func(ctx context.Context) (map[string]int, error)

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	counter  StatusCounter
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  sync.Once
	running  bool
	mu       sync.Mutex
}

// NewCollector 创建指标收集器
// counter 为 nil 时只收集数据库连接指标
func NewCollector(db *gorm.DB, counter StatusCounter, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		counter:  counter,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	c.started.Do(func() {
		c.mu.Lock()
		c.running = true
		c.mu.Unlock()
		go c.collect()
	})
}

// Stop 停止指标收集器,未启动时直接返回
func (c *Collector) Stop() {
	c.cancel()
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		<-c.done
	}
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collectOnce()
		}
	}
}

func (c *Collector) collectOnce() {
	_ = UpdateDatabaseConnections(c.db)
	if c.counter == nil {
		return
	}
	counts, err := c.counter(c.ctx)
	if err != nil {
		return
	}
	UpdateRecordsByStatus(counts)
}
