package rank

import (
	"context"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
	"github.com/draker2nich/SwipeTime-sub001/pkg/utils"
)

// RelevanceNode 是相关性排序 Node：
//   - 实体与偏好取自 rctx.Entities / rctx.Preferences
//   - 分数写入 rctx.Scores
//   - 写入 label：rank_model
type RelevanceNode struct {
	Scorer *RelevanceScorer
}

func (n *RelevanceNode) Name() string        { return "rank.relevance" }
func (n *RelevanceNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *RelevanceNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []core.Item,
) ([]core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	scorer := n.Scorer
	if scorer == nil {
		scorer = NewRelevanceScorer()
	}

	var (
		entities map[string]core.Entity
		prefs    *core.Preferences
	)
	if rctx != nil {
		entities, prefs = rctx.Entities, rctx.Preferences
	}

	scores := scorer.Score(items, entities, prefs)
	if rctx != nil {
		rctx.Scores = scores
		rctx.PutLabel("rank_model", utils.Label{Value: "relevance", Source: "rank"})
	}
	return Sort(items, scores), nil
}
