package rerank

import (
	"context"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
)

// TopNNode 是 Top-N 截断节点，放在排序或洗牌之后，限制一次展示的卡片数量。
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &rank.RelevanceNode{},   // 排序
//	        &rerank.TopNNode{N: 20}, // 截取 Top 20
//	    },
//	}
type TopNNode struct {
	// N <= 0 时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []core.Item,
) ([]core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N:n.N], nil
}
