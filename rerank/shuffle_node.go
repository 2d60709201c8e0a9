package rerank

import (
	"context"
	"strconv"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
	"github.com/draker2nich/SwipeTime-sub001/pkg/utils"
)

// ShuffleNode 是展示洗牌 Node，类别取自 rctx.Category。
// 写入 label：shuffle_retried（true / false）
type ShuffleNode struct {
	Shuffler *Shuffler
}

func (n *ShuffleNode) Name() string        { return "rerank.shuffle" }
func (n *ShuffleNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *ShuffleNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []core.Item,
) ([]core.Item, error) {
	if n.Shuffler == nil || len(items) == 0 {
		return items, nil
	}
	category := ""
	if rctx != nil {
		category = rctx.Category
	}

	out, retried := n.Shuffler.shuffle(items, category)
	if rctx != nil {
		rctx.PutLabel("shuffle_retried", utils.Label{Value: strconv.FormatBool(retried), Source: n.Name()})
	}
	return out, nil
}
