// Package builders 在 init 中把内置 Node 注册到 config 的全局注册表。
//
// 依赖存储或共享状态的 Node（viewed、blacklist 的存储部分、rerank.shuffle 的历史）
// 通过 FilterBuilder / ShuffleBuilder 绑定具体实例后重新注册。
package builders

import (
	"fmt"
	"time"

	"github.com/draker2nich/SwipeTime-sub001/config"
	"github.com/draker2nich/SwipeTime-sub001/filter"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
	"github.com/draker2nich/SwipeTime-sub001/pkg/conv"
	"github.com/draker2nich/SwipeTime-sub001/rank"
	"github.com/draker2nich/SwipeTime-sub001/rerank"
)

func init() {
	config.Register("filter", BuildFilterNode)
	config.Register("rank.relevance", BuildRelevanceNode)
	config.Register("rerank.shuffle", BuildShuffleNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.dedup", BuildDedupNode)
}

// BuildFilterNode 构建不带存储的过滤 Node：viewed 过滤器无存储时不生效。
func BuildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	return FilterBuilder(nil)(cfg)
}

// FilterBuilder 返回绑定了 adapter 的过滤 Node 构建函数。
//
//	filters:
//	  - type: preference
//	  - type: blacklist
//	    item_ids: [a, b]
//	    key: blacklist:global
//	  - type: viewed
//	    key_prefix: user:viewed
//	    time_window: 168h
//	    bloom_filter_day_window: 7
//	  - type: rule
//	    expr: item.rating >= 6.0
func FilterBuilder(adapter *filter.StoreAdapter) pipeline.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		filtersConfig, ok := cfg["filters"].([]any)
		if !ok {
			return nil, fmt.Errorf("filters not found or invalid")
		}
		filters := make([]filter.Filter, 0, len(filtersConfig))
		for _, fc := range filtersConfig {
			filterMap, ok := fc.(map[string]any)
			if !ok {
				continue
			}
			filterType := conv.ConfigGet(filterMap, "type", "")
			switch filterType {
			case "preference":
				filters = append(filters, filter.NewPreferenceFilter())
			case "blacklist":
				ids := conv.SliceAnyToString(filterMap["item_ids"])
				if ids == nil {
					ids = []string{}
				}
				key := conv.ConfigGet(filterMap, "key", "")
				filters = append(filters, filter.NewBlacklistFilter(ids, adapter, key))
			case "viewed":
				keyPrefix := conv.ConfigGet(filterMap, "key_prefix", "")
				window, err := configDuration(filterMap, "time_window")
				if err != nil {
					return nil, err
				}
				days := conv.ConfigGetInt(filterMap, "bloom_filter_day_window", 0)
				filters = append(filters, filter.NewViewedFilter(adapter, keyPrefix, window, days))
			case "rule":
				f, err := filter.NewRuleFilter(conv.ConfigGet(filterMap, "expr", ""))
				if err != nil {
					return nil, err
				}
				filters = append(filters, f)
			default:
				return nil, fmt.Errorf("unknown filter type: %s", filterType)
			}
		}
		return &filter.FilterNode{Filters: filters}, nil
	}
}

// configDuration 读取时长：字符串按 time.ParseDuration 解析，数字按秒计。
func configDuration(m map[string]any, key string) (time.Duration, error) {
	switch v := m[key].(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	default:
		return time.Duration(conv.ConfigGetInt64(m, key, 0)) * time.Second, nil
	}
}

// BuildRelevanceNode 构建相关性排序 Node。
//
//	reference_year: 2025
//	weights: {genre: 0.5, rating: 0.5}
func BuildRelevanceNode(cfg map[string]any) (pipeline.Node, error) {
	scorer := rank.NewRelevanceScorer()
	scorer.ReferenceYear = conv.ConfigGetInt(cfg, "reference_year", scorer.ReferenceYear)
	if scorer.ReferenceYear <= 1900 {
		return nil, fmt.Errorf("reference_year must be after 1900, got %d", scorer.ReferenceYear)
	}
	if w, ok := cfg["weights"].(map[string]any); ok {
		d := scorer.Weights
		scorer.Weights = rank.Weights{
			Base:     conv.ConfigGetFloat64(w, "base", d.Base),
			Genre:    conv.ConfigGetFloat64(w, "genre", d.Genre),
			Country:  conv.ConfigGetFloat64(w, "country", d.Country),
			Language: conv.ConfigGetFloat64(w, "language", d.Language),
			Tags:     conv.ConfigGetFloat64(w, "tags", d.Tags),
			Recency:  conv.ConfigGetFloat64(w, "recency", d.Recency),
			Rating:   conv.ConfigGetFloat64(w, "rating", d.Rating),
		}
	}
	return &rank.RelevanceNode{Scorer: scorer}, nil
}

// BuildShuffleNode 构建带独立历史的洗牌 Node。需要与其他组件共享历史时使用 ShuffleBuilder。
func BuildShuffleNode(cfg map[string]any) (pipeline.Node, error) {
	return ShuffleBuilder(rerank.NewShuffler())(cfg)
}

// ShuffleBuilder 返回绑定到 s 的洗牌 Node 构建函数，同一个 Shuffler 的历史跨请求保留。
func ShuffleBuilder(s *rerank.Shuffler) pipeline.NodeBuilder {
	return func(map[string]any) (pipeline.Node, error) {
		if s == nil {
			return nil, fmt.Errorf("shuffler is nil")
		}
		return &rerank.ShuffleNode{Shuffler: s}, nil
	}
}

func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	n := conv.ConfigGetInt(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("n must be >= 0, got %d", n)
	}
	return &rerank.TopNNode{N: n}, nil
}

func BuildDedupNode(map[string]any) (pipeline.Node, error) {
	return &rerank.DedupNode{}, nil
}
