// Package swipetime 是卡片式内容推荐的核心库。
//
// 设计要点：
// - Pipeline-first: 偏好过滤之后的逻辑通过 Node 串联（Filter → Rank 或 Shuffle → ReRank）
// - Labels-first: labels 在 RecommendContext 中透传，记录过滤数量、展示模式、是否重洗
// - 状态显式: 洗牌历史由 recommend.Service 持有，可重置，不依赖全局变量
package swipetime

import (
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
	"github.com/draker2nich/SwipeTime-sub001/recommend"
)

// 轻量 facade：便于直接 import 根包使用核心抽象。
type (
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
	Service  = recommend.Service
	Request  = recommend.Request
	Mode     = recommend.Mode
)

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess

	ModeRanked   = recommend.ModeRanked
	ModeShuffled = recommend.ModeShuffled
)

// New 创建推荐服务，见 recommend.New。
func New(opts ...recommend.Option) *Service {
	return recommend.New(opts...)
}
