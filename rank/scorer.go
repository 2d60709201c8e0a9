// Package rank 提供基于偏好的相关性打分与稳定排序。
package rank

import (
	"github.com/draker2nich/SwipeTime-sub001/core"
)

// DefaultReferenceYear 是新近度加分的参考年份。
const DefaultReferenceYear = 2025

// 新近度的起始年份，早于它的作品不得新近度加分。
const recencyEpoch = 1900

// Weights 是打分各项的权重。
type Weights struct {
	Base     float64 // 基础分
	Genre    float64 // 每个命中的偏好类型
	Country  float64 // 偏好国家非空且类型建模了制作国家
	Language float64 // 偏好语言非空
	Tags     float64 // 兴趣标签非空
	Recency  float64 // 乘以 clamp((year-1900)/(ref-1900), 0, 1)
	Rating   float64 // 乘以 rating/10
}

// DefaultWeights 返回默认权重。
func DefaultWeights() Weights {
	return Weights{
		Base:     1.0,
		Genre:    0.5,
		Country:  0.2,
		Language: 0.2,
		Tags:     0.2,
		Recency:  0.3,
		Rating:   0.5,
	}
}

// RelevanceScorer 计算条目相对用户偏好的相关性分数。
//
// 打分是 (条目, 实体, 偏好) 的纯函数：不做 I/O，不持有调用间状态，每次返回新的 map。
//
// 国家 / 语言 / 兴趣标签加分与具体实体是否匹配无关：实体不携带这些元数据，
// 只要偏好非空就统一加分（国家只对建模了制作国家的类型生效）。
type RelevanceScorer struct {
	Weights       Weights
	ReferenceYear int
}

// NewRelevanceScorer 创建使用默认权重与参考年份的打分器。
func NewRelevanceScorer() *RelevanceScorer {
	return &RelevanceScorer{Weights: DefaultWeights(), ReferenceYear: DefaultReferenceYear}
}

// Score 为每个条目打分。entityByID 中找不到的条目只得基础分。
// prefs 为 nil 时只计算与偏好无关的部分（基础、新近度、评分）。
func (s *RelevanceScorer) Score(items []core.Item, entityByID map[string]core.Entity, prefs *core.Preferences) map[string]float64 {
	scores := make(map[string]float64, len(items))
	for _, it := range items {
		e, ok := entityByID[it.ID]
		if !ok || e == nil {
			scores[it.ID] = s.Weights.Base
			continue
		}
		scores[it.ID] = s.ScoreEntity(e, prefs)
	}
	return scores
}

// ScoreEntity 计算单个实体的分数。
func (s *RelevanceScorer) ScoreEntity(e core.Entity, prefs *core.Preferences) float64 {
	w := s.Weights
	score := w.Base

	if prefs != nil {
		if prefs.PreferredCountries.Len() > 0 && e.Variant().ModelsProductionCountry() {
			score += w.Country
		}
		if prefs.PreferredLanguages.Len() > 0 {
			score += w.Language
		}
		if prefs.InterestTags.Len() > 0 {
			score += w.Tags
		}
	}

	// 未知类型只有上面与类型无关的部分
	a, ok := e.(core.Attributes)
	if !ok {
		return score
	}

	if prefs != nil && prefs.PreferredGenres.Len() > 0 {
		for _, g := range a.Genres() {
			if prefs.PreferredGenres.Has(g) {
				score += w.Genre
			}
		}
	}

	score += w.Recency * s.recencyFactor(a.RepresentativeYear())
	score += w.Rating * (a.RatingValue() / 10.0)
	return score
}

func (s *RelevanceScorer) recencyFactor(year int) float64 {
	if year <= 0 {
		return 0
	}
	ref := s.ReferenceYear
	if ref <= recencyEpoch {
		ref = DefaultReferenceYear
	}
	f := float64(year-recencyEpoch) / float64(ref-recencyEpoch)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
