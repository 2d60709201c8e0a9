package filter

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// BloomFilterChecker 是布隆过滤器检查器接口。
type BloomFilterChecker interface {
	// CheckInBloomFilter 检查 itemID 是否在指定 key 的布隆过滤器中
	// key 格式为 {keyPrefix}:bloom:{userID}:{date}
	// 返回 true 表示可能在布隆过滤器中（存在误判可能），false 表示一定不在
	CheckInBloomFilter(ctx context.Context, key string, itemID string) (bool, error)
}

// BloomFilterWriter 由可写的布隆过滤器实现（store.BloomChecker）。
type BloomFilterWriter interface {
	AddToBloomFilter(ctx context.Context, key string, itemIDs ...string) error
}

// viewedEntry 是浏览历史列表中的单条记录。
type viewedEntry struct {
	ItemID    string `json:"item_id"`
	Timestamp int64  `json:"timestamp"`
}

// StoreAdapter 将 core.Store 适配为过滤器所需的存储接口。
type StoreAdapter struct {
	store core.Store

	// BloomFilterChecker 是可选的布隆过滤器检查器。
	// 为 nil 时 CheckViewedInBloomFilter 恒返回 false。
	// 同时实现 BloomFilterWriter 时，MarkViewed 会写入当天的布隆过滤器。
	BloomFilterChecker BloomFilterChecker

	// MaxRecent 是近期列表保留的最大条数，0 表示 200
	MaxRecent int

	now func() time.Time

	// 按 key 分片的锁，串行化本进程内对同一近期列表的读-改-写
	locks [viewedLockShards]sync.Mutex
}

const viewedLockShards = 32

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s, now: time.Now}
}

// NewStoreAdapterWithBloomFilter 创建一个带布隆过滤器检查器的 core.Store 适配器。
func NewStoreAdapterWithBloomFilter(s core.Store, checker BloomFilterChecker) *StoreAdapter {
	a := NewStoreAdapter(s)
	a.BloomFilterChecker = checker
	return a
}

func (a *StoreAdapter) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

// GetBlacklist 从 Store 读取黑名单（JSON 字符串数组）。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]string, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode blacklist %s: %w", key, err)
	}
	return ids, nil
}

// GetViewedItems 从 Store 读取浏览历史。
// 兼容两种编码：纯 id 数组，以及带时间戳的记录数组（按 window 截断）。
func (a *StoreAdapter) GetViewedItems(ctx context.Context, userID, keyPrefix string, window time.Duration) ([]string, error) {
	entries, err := a.loadViewed(ctx, viewedKey(keyPrefix, userID))
	if err != nil {
		return nil, err
	}

	cutoff := int64(0)
	if window > 0 {
		cutoff = a.clock().Add(-window).Unix()
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Timestamp > 0 && e.Timestamp < cutoff {
			continue
		}
		ids = append(ids, e.ItemID)
	}
	return ids, nil
}

func (a *StoreAdapter) loadViewed(ctx context.Context, key string) ([]viewedEntry, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var entries []viewedEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode viewed list %s: %w", key, err)
	}
	entries = make([]viewedEntry, len(ids))
	for i, id := range ids {
		entries[i] = viewedEntry{ItemID: id}
	}
	return entries, nil
}

// MarkViewed 把用户划过的 id 追加到近期列表，并写入当天的布隆过滤器（若可写）。
// 近期列表超过 MaxRecent 时丢弃最旧的记录。
// 同一 StoreAdapter 上的并发调用不会丢失记录；多个进程共享同一存储时不做跨进程串行化，
// 并发写同一用户时近期列表可能丢失部分 id（布隆过滤器同理）。
func (a *StoreAdapter) MarkViewed(ctx context.Context, userID, keyPrefix string, itemIDs ...string) error {
	if userID == "" || len(itemIDs) == 0 {
		return nil
	}
	if keyPrefix == "" {
		keyPrefix = DefaultViewedKeyPrefix
	}
	key := viewedKey(keyPrefix, userID)

	mu := a.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	entries, err := a.loadViewed(ctx, key)
	if err != nil && !core.IsStoreNotFound(err) {
		return err
	}
	now := a.clock()
	for _, id := range itemIDs {
		entries = append(entries, viewedEntry{ItemID: id, Timestamp: now.Unix()})
	}
	limit := a.MaxRecent
	if limit <= 0 {
		limit = 200
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode viewed list: %w", err)
	}
	if err := a.store.Set(ctx, key, data); err != nil {
		return err
	}

	if w, ok := a.BloomFilterChecker.(BloomFilterWriter); ok {
		return w.AddToBloomFilter(ctx, BloomKey(keyPrefix, userID, now), itemIDs...)
	}
	return nil
}

func (a *StoreAdapter) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &a.locks[h.Sum32()%viewedLockShards]
}

// CheckViewedInBloomFilter 检查最近 dayWindow 天内的布隆过滤器。
// 返回 true 表示可能在布隆过滤器中（存在误判可能），false 表示一定不在。
func (a *StoreAdapter) CheckViewedInBloomFilter(ctx context.Context, userID, itemID, keyPrefix string, dayWindow int) (bool, error) {
	if a.BloomFilterChecker == nil || dayWindow <= 0 {
		return false, nil
	}

	now := a.clock()
	for i := 0; i < dayWindow; i++ {
		key := BloomKey(keyPrefix, userID, now.AddDate(0, 0, -i))
		exists, err := a.BloomFilterChecker.CheckInBloomFilter(ctx, key, itemID)
		if err != nil {
			// 某一天检查失败时继续检查其他日期
			continue
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

func viewedKey(keyPrefix, userID string) string {
	return keyPrefix + ":" + userID
}

// BloomKey 返回某天的布隆过滤器 key：{keyPrefix}:bloom:{userID}:{YYYYMMDD}。
func BloomKey(keyPrefix, userID string, day time.Time) string {
	return fmt.Sprintf("%s:bloom:%s:%s", keyPrefix, userID, day.Format("20060102"))
}
