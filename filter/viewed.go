package filter

import (
	"context"
	"time"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// DefaultViewedKeyPrefix 是浏览历史的默认 key 前缀。
const DefaultViewedKeyPrefix = "user:viewed"

// ViewedFilter 过滤掉用户近期已经划过的内容。
// 支持两种数据源：
// 1. IDs 列表（近期数据）- 通过 GetViewedItems 获取
// 2. 布隆过滤器（较长周期数据，按天维度实现时间窗口）- 通过 CheckViewedInBloomFilter 检查
type ViewedFilter struct {
	// Store 用于从存储中读取浏览历史
	Store ViewedStore

	// KeyPrefix 是 Store 中的 key 前缀
	// 对于 IDs 列表：实际 key 为 {KeyPrefix}:{UserID}
	// 对于布隆过滤器：实际 key 为 {KeyPrefix}:bloom:{UserID}:{date}
	KeyPrefix string

	// TimeWindow 是 IDs 列表的时间窗口，0 表示不按时间截断
	TimeWindow time.Duration

	// BloomFilterDayWindow 是布隆过滤器的时间窗口（天数），0 表示不使用布隆过滤器
	BloomFilterDayWindow int
}

// ViewedStore 是浏览历史存储接口。
type ViewedStore interface {
	// GetViewedItems 获取用户在时间窗口内浏览过的 id 列表
	GetViewedItems(ctx context.Context, userID, keyPrefix string, window time.Duration) ([]string, error)

	// CheckViewedInBloomFilter 检查最近 dayWindow 天的布隆过滤器。
	// 返回 true 表示可能浏览过（存在误判可能），false 表示一定没有
	CheckViewedInBloomFilter(ctx context.Context, userID, itemID, keyPrefix string, dayWindow int) (bool, error)
}

// NewViewedFilter 创建浏览历史过滤器。
func NewViewedFilter(storeAdapter *StoreAdapter, keyPrefix string, window time.Duration, bloomFilterDayWindow int) *ViewedFilter {
	var store ViewedStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &ViewedFilter{
		Store:                store,
		KeyPrefix:            keyPrefix,
		TimeWindow:           window,
		BloomFilterDayWindow: bloomFilterDayWindow,
	}
}

func (f *ViewedFilter) Name() string {
	return "filter.viewed"
}

func (f *ViewedFilter) keyPrefix() string {
	if f.KeyPrefix == "" {
		return DefaultViewedKeyPrefix
	}
	return f.KeyPrefix
}

func (f *ViewedFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	e core.Entity,
) (bool, error) {
	if e == nil || rctx == nil || rctx.UserID == "" || f.Store == nil {
		return false, nil
	}
	id := e.Base().ID
	prefix := f.keyPrefix()

	// 1. 近期 IDs 列表
	viewed, err := f.Store.GetViewedItems(ctx, rctx.UserID, prefix, f.TimeWindow)
	if err == nil {
		for _, vid := range viewed {
			if vid == id {
				return true, nil
			}
		}
	}
	// 列表读取失败或未命中时继续检查布隆过滤器

	// 2. 按天的布隆过滤器
	if f.BloomFilterDayWindow > 0 {
		exists, err := f.Store.CheckViewedInBloomFilter(ctx, rctx.UserID, id, prefix, f.BloomFilterDayWindow)
		if err == nil && exists {
			return true, nil
		}
	}
	return false, nil
}
