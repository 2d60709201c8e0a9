package core

import "github.com/draker2nich/SwipeTime-sub001/pkg/utils"

// RecommendContext 承载一次推荐调用的用户/类别/偏好信息，贯穿整个 Pipeline 透传。
// 它只属于一次调用，不在调用之间共享。
type RecommendContext struct {
	UserID    string
	RequestID string
	Category  string

	// Preferences 是已解码的偏好快照；nil 表示不过滤
	Preferences *Preferences

	// Entities 是本次调用过滤后的实体索引，打分节点据此查找类型能力
	Entities map[string]Entity

	// Scores 由打分节点写入，供调用方解释排序结果
	Scores map[string]float64

	// Labels 是调用级标签，记录各阶段的决策（过滤数量、展示模式、是否重洗等）
	Labels map[string]utils.Label
}

// PutLabel 写入调用级 Label；同名 key 按默认 Merge 规则累积。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取调用级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
