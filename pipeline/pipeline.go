package pipeline

import (
	"context"
	"fmt"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pkg/logging"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链：过滤 -> 排序或洗牌 -> 截断。
type Pipeline struct {
	Nodes []Node
}

// Run 依次执行 Node。任一阶段输出为空时立即返回空结果，不再调用后续 Node。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []core.Item,
) ([]core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if len(cur) == 0 {
			return []core.Item{}, nil
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name(), err)
		}
		logging.Ctx(ctx).Trace().
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Msg("node done")
		cur = next
	}
	if len(cur) == 0 {
		return []core.Item{}, nil
	}
	return cur, nil
}
