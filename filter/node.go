package filter

import (
	"context"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
	"github.com/draker2nich/SwipeTime-sub001/pkg/logging"
	"github.com/draker2nich/SwipeTime-sub001/pkg/metrics"
	"github.com/draker2nich/SwipeTime-sub001/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该条目就会被过滤掉。
//
// 条目对应的实体从 rctx.Entities 查找；找不到时以条目字段构造未知类型实体，
// 只有不依赖类型能力的过滤器（黑名单、已看过）会对它生效。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []core.Item,
) ([]core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]core.Item, 0, len(items))
	dropped := make(map[string]int, len(n.Filters))

	for _, it := range items {
		e := resolveEntity(rctx, it)

		reason := ""
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, e)
			if err != nil {
				// 过滤器错误时记录但不中断流程
				logging.Ctx(ctx).Warn().Err(err).Str("filter", f.Name()).Str("item_id", it.ID).Msg("filter failed, skipped")
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}

		if reason != "" {
			dropped[reason]++
			continue
		}
		out = append(out, it)
	}

	for name, cnt := range dropped {
		metrics.RecordFilterDropped(name, cnt)
		if rctx != nil {
			rctx.PutLabel("filtered", utils.Labelf(name, "%d", cnt))
		}
	}
	return out, nil
}

func resolveEntity(rctx *core.RecommendContext, it core.Item) core.Entity {
	if rctx != nil {
		if e, ok := rctx.Entities[it.ID]; ok && e != nil {
			return e
		}
	}
	return &core.Other{Content: core.Content{
		ID:          it.ID,
		Title:       it.Title,
		Description: it.Description,
		ImageURL:    it.ImageURL,
		Category:    it.Category,
	}}
}
