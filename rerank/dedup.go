package rerank

import (
	"context"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
)

// DedupNode 按 id 去重，保留首次出现的条目。
// 多个类别合并召回（recall.Fanout）时同一内容可能重复出现。
type DedupNode struct{}

func (n *DedupNode) Name() string {
	return "rerank.dedup"
}

func (n *DedupNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *DedupNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []core.Item,
) ([]core.Item, error) {
	if len(items) < 2 {
		return items, nil
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]core.Item, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}
