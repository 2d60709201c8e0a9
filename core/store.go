package core

import "context"

// Store 是存储的领域接口，定义在 core，由 store 包实现（依赖倒置，避免循环依赖）。
//
// 使用场景：
//   - 内容库：按类别存放实体列表（recall.StoreSource）
//   - 偏好：按用户存放 PreferencesRecord（recall.StorePreferenceSource）
//   - 浏览历史：近期 id 列表 + 按天的布隆过滤器（filter.StoreAdapter / store.BloomChecker）
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取，不存在的 key 不出现在结果中
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// ErrStoreNotFound 表示 key 不存在
var ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}

// EntitySource 是外部内容库的边界接口，必须在 Pipeline 调用前同步完成读取。
type EntitySource interface {
	GetByCategory(ctx context.Context, category string) ([]Entity, error)
	// GetByID 不存在时返回 ErrEntityNotFound
	GetByID(ctx context.Context, id string) (Entity, error)
}

// PreferenceSource 是外部偏好存储的边界接口。
// 返回 (nil, nil) 表示该用户没有偏好记录，等价于“不过滤”。
type PreferenceSource interface {
	GetByUserID(ctx context.Context, userID string) (*PreferencesRecord, error)
}
