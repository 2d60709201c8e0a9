package recall

import (
	"context"
	"fmt"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// Static 是只读的内存内容源，按实体的 Category 分组，保留传入顺序。
// 用于测试与嵌入式场景。
type Static struct {
	byCategory map[string][]core.Entity
	byID       map[string]core.Entity
}

func NewStatic(entities ...core.Entity) *Static {
	s := &Static{
		byCategory: make(map[string][]core.Entity),
		byID:       make(map[string]core.Entity, len(entities)),
	}
	for _, e := range entities {
		if e == nil {
			continue
		}
		c := e.Base()
		s.byCategory[c.Category] = append(s.byCategory[c.Category], e)
		if _, ok := s.byID[c.ID]; !ok {
			s.byID[c.ID] = e
		}
	}
	return s
}

func (s *Static) GetByCategory(_ context.Context, category string) ([]core.Entity, error) {
	src := s.byCategory[category]
	out := make([]core.Entity, len(src))
	copy(out, src)
	return out, nil
}

func (s *Static) GetByID(_ context.Context, id string) (core.Entity, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("recall: entity %s: %w", id, core.ErrEntityNotFound)
	}
	return e, nil
}

var _ core.EntitySource = (*Static)(nil)
