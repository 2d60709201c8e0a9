package recall

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pkg/logging"
)

// StoreSource 是基于 core.Store 的内容源。
//
// key 布局：
//   - 类别下的 id 列表：{KeyPrefix}:{category}，JSON 字符串数组，保持展示前的原始顺序
//   - 单个实体：{KeyPrefix}:item:{id}，core.MarshalEntity 的输出
type StoreSource struct {
	store     core.Store
	KeyPrefix string
}

// NewStoreSource 创建内容源，keyPrefix 为空时使用 "content"。
func NewStoreSource(s core.Store, keyPrefix string) *StoreSource {
	if keyPrefix == "" {
		keyPrefix = "content"
	}
	return &StoreSource{store: s, KeyPrefix: keyPrefix}
}

func (s *StoreSource) categoryKey(category string) string {
	return s.KeyPrefix + ":" + category
}

func (s *StoreSource) itemKey(id string) string {
	return s.KeyPrefix + ":item:" + id
}

// GetByCategory 按 id 列表顺序读取类别下的实体。类别不存在时返回空列表；
// 列表中缺失或无法解码的实体被跳过并记录日志。
func (s *StoreSource) GetByCategory(ctx context.Context, category string) ([]core.Entity, error) {
	data, err := s.store.Get(ctx, s.categoryKey(category))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []core.Entity{}, nil
		}
		return nil, fmt.Errorf("recall: read category %s: %w", category, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("recall: decode category %s: %w", category, err)
	}
	if len(ids) == 0 {
		return []core.Entity{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.itemKey(id)
	}
	raw, err := s.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("recall: read entities of %s: %w", category, err)
	}

	out := make([]core.Entity, 0, len(ids))
	for i, key := range keys {
		blob, ok := raw[key]
		if !ok {
			logging.Ctx(ctx).Debug().Str("category", category).Str("id", ids[i]).Msg("entity listed but missing")
			continue
		}
		e, err := core.UnmarshalEntity(blob)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("category", category).Str("id", ids[i]).Msg("skip undecodable entity")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// GetByID 读取单个实体，不存在时返回 core.ErrEntityNotFound。
func (s *StoreSource) GetByID(ctx context.Context, id string) (core.Entity, error) {
	data, err := s.store.Get(ctx, s.itemKey(id))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, fmt.Errorf("recall: entity %s: %w", id, core.ErrEntityNotFound)
		}
		return nil, err
	}
	return core.UnmarshalEntity(data)
}

// Put 写入实体并把它们追加到各自类别的 id 列表（已存在的 id 不重复追加）。
// 实体的 Category 为空时归入 category 参数指定的类别。
func (s *StoreSource) Put(ctx context.Context, category string, entities ...core.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	kvs := make(map[string][]byte, len(entities))
	byCategory := make(map[string][]string)
	var order []string
	for _, e := range entities {
		if e == nil {
			continue
		}
		c := e.Base().Category
		if c == "" {
			c = category
		}
		data, err := core.MarshalEntity(e)
		if err != nil {
			return err
		}
		kvs[s.itemKey(e.Base().ID)] = data
		if _, ok := byCategory[c]; !ok {
			order = append(order, c)
		}
		byCategory[c] = append(byCategory[c], e.Base().ID)
	}

	for _, c := range order {
		existing, err := s.categoryIDs(ctx, c)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			seen[id] = struct{}{}
		}
		for _, id := range byCategory[c] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			existing = append(existing, id)
		}
		list, err := json.Marshal(existing)
		if err != nil {
			return err
		}
		kvs[s.categoryKey(c)] = list
	}
	return s.store.BatchSet(ctx, kvs)
}

func (s *StoreSource) categoryIDs(ctx context.Context, category string) ([]string, error) {
	data, err := s.store.Get(ctx, s.categoryKey(category))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("recall: decode category %s: %w", category, err)
	}
	return ids, nil
}

var _ core.EntitySource = (*StoreSource)(nil)
