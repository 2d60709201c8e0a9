package store

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// BloomChecker 是基于 core.Store 与 bits-and-blooms/bloom 的布隆过滤器，
// 记录用户较长周期的浏览历史（按天一个过滤器）。
// 它同时实现 filter.BloomFilterChecker 与 filter.BloomFilterWriter。
//
//	checker := store.NewBloomChecker(s, 100000, 0.01)
//	adapter := filter.NewStoreAdapterWithBloomFilter(s, checker)
type BloomChecker struct {
	store core.Store

	// capacity 是预期容量（元素数量）
	capacity uint
	// falsePositiveRate 是期望的误判率（例如 0.01 表示 1%）
	falsePositiveRate float64
	// TTL 是过滤器的过期时间（秒），0 表示不过期
	TTL int

	// 本地缓存，避免频繁从存储读取和反序列化
	mu    sync.RWMutex
	cache map[string]*bloom.BloomFilter
}

// NewBloomChecker 创建布隆过滤器。capacity 为 0 或误判率不在 (0,1) 时使用 10000 / 0.01。
func NewBloomChecker(s core.Store, capacity uint, falsePositiveRate float64) *BloomChecker {
	if capacity == 0 {
		capacity = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	return &BloomChecker{
		store:             s,
		capacity:          capacity,
		falsePositiveRate: falsePositiveRate,
		cache:             make(map[string]*bloom.BloomFilter),
	}
}

// CheckInBloomFilter 检查 itemID 是否在指定 key 的布隆过滤器中。
// 返回 true 表示可能在（存在误判可能），false 表示一定不在；过滤器不存在时返回 false。
func (b *BloomChecker) CheckInBloomFilter(ctx context.Context, key string, itemID string) (bool, error) {
	b.mu.RLock()
	if cached, ok := b.cache[key]; ok {
		hit := cached.TestString(itemID)
		b.mu.RUnlock()
		return hit, nil
	}
	b.mu.RUnlock()

	bf, err := b.load(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return false, nil
		}
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.cache[key]; ok {
		bf = existing
	} else {
		b.cache[key] = bf
	}
	return bf.TestString(itemID), nil
}

// AddToBloomFilter 把 itemIDs 加入指定 key 的布隆过滤器并写回存储。
func (b *BloomChecker) AddToBloomFilter(ctx context.Context, key string, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bf, ok := b.cache[key]
	if !ok {
		loaded, err := b.load(ctx, key)
		switch {
		case err == nil:
			bf = loaded
		case core.IsStoreNotFound(err):
			bf = bloom.NewWithEstimates(b.capacity, b.falsePositiveRate)
		default:
			return err
		}
	}

	for _, id := range itemIDs {
		bf.AddString(id)
	}

	var buf bytes.Buffer
	if _, err := bf.WriteTo(&buf); err != nil {
		return fmt.Errorf("serialize bloom filter %s: %w", key, err)
	}
	var ttl []int
	if b.TTL > 0 {
		ttl = []int{b.TTL}
	}
	if err := b.store.Set(ctx, key, buf.Bytes(), ttl...); err != nil {
		return fmt.Errorf("save bloom filter %s: %w", key, err)
	}
	b.cache[key] = bf
	return nil
}

func (b *BloomChecker) load(ctx context.Context, key string) (*bloom.BloomFilter, error) {
	data, err := b.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	bf := bloom.NewWithEstimates(b.capacity, b.falsePositiveRate)
	if _, err := bf.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("deserialize bloom filter %s: %w", key, err)
	}
	return bf, nil
}

// ClearCache 清除本地缓存，强制下次从存储重新加载。
func (b *BloomChecker) ClearCache() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = make(map[string]*bloom.BloomFilter)
}
