package filter

import (
	"context"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉运营下架或用户屏蔽的内容。
type BlacklistFilter struct {
	// IDs 是内存中的黑名单
	IDs map[string]struct{}

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key（可选）
	Key string
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	// GetBlacklist 获取黑名单 id 列表
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// NewBlacklistFilter 创建一个黑名单过滤器。storeAdapter 为 nil 时只使用内存列表。
func NewBlacklistFilter(ids []string, storeAdapter *StoreAdapter, key string) *BlacklistFilter {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	var store BlacklistStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &BlacklistFilter{IDs: set, Store: store, Key: key}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	e core.Entity,
) (bool, error) {
	if e == nil {
		return true, nil
	}
	id := e.Base().ID

	if _, ok := f.IDs[id]; ok {
		return true, nil
	}

	if f.Store == nil || f.Key == "" {
		return false, nil
	}
	blacklist, err := f.Store.GetBlacklist(ctx, f.Key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return false, nil
		}
		return false, err
	}
	for _, bid := range blacklist {
		if bid == id {
			return true, nil
		}
	}
	return false, nil
}
