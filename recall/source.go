// Package recall 负责在推荐链路开始前同步读取候选内容与用户偏好。
package recall

import (
	"context"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// Source 表示一个可复用的召回源，可被 Fanout 并发执行。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]core.Entity, error)
}

// CategorySource 把 core.EntitySource 的某个类别适配为 Source。
type CategorySource struct {
	Entities core.EntitySource
	Category string
}

func (s *CategorySource) Name() string { return "recall.category:" + s.Category }

func (s *CategorySource) Recall(ctx context.Context, _ *core.RecommendContext) ([]core.Entity, error) {
	return s.Entities.GetByCategory(ctx, s.Category)
}
