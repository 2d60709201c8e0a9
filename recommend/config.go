package recommend

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/draker2nich/SwipeTime-sub001/config"
	"github.com/draker2nich/SwipeTime-sub001/config/builders"
	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/filter"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
	"github.com/draker2nich/SwipeTime-sub001/pkg/logging"
	"github.com/draker2nich/SwipeTime-sub001/rank"
	"github.com/draker2nich/SwipeTime-sub001/recall"
	"github.com/draker2nich/SwipeTime-sub001/rerank"
	"github.com/draker2nich/SwipeTime-sub001/store"
)

// NewFromConfig 按应用配置组装 Service：初始化日志、创建存储、内容源与偏好源，
// 按需开启浏览历史、黑名单与规则过滤，并加载 pipeline 配置文件中的阶段。
// 返回的 Service 持有存储连接，使用完毕后需要调用 Close。
func NewFromConfig(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Init(cfg.Log)

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	mode, err := ParseMode(cfg.Recommend.Mode)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	scorer := rank.NewRelevanceScorer()
	scorer.ReferenceYear = cfg.Recommend.ReferenceYear
	shuffler := rerank.NewShuffler()

	base := []Option{
		WithEntitySource(recall.NewStoreSource(st, cfg.Keys.Content)),
		WithPreferenceSource(recall.NewStorePreferenceSource(st, cfg.Keys.Preferences)),
		WithScorer(scorer),
		WithShuffler(shuffler),
		WithDefaultMode(mode),
		WithDefaultLimit(cfg.Recommend.Limit),
		WithDedup(cfg.Recommend.Dedup),
		withCloser(st.Close),
	}

	adapter := filter.NewStoreAdapter(st)
	if cfg.Viewed.Enabled {
		checker := store.NewBloomChecker(st, cfg.Viewed.BloomCapacity, cfg.Viewed.BloomFalsePositiveRate)
		checker.TTL = int(cfg.Viewed.BloomTTL.Seconds())
		adapter = filter.NewStoreAdapterWithBloomFilter(st, checker)
		adapter.MaxRecent = cfg.Viewed.MaxRecent
		base = append(base, WithViewedHistory(adapter, ViewedOptions{
			KeyPrefix: cfg.Viewed.KeyPrefix,
			Window:    cfg.Viewed.Window,
			DayWindow: cfg.Viewed.BloomDayWindow,
		}))
	}

	if cfg.Keys.Blacklist != "" {
		base = append(base, WithFilters(filter.NewBlacklistFilter(nil, adapter, cfg.Keys.Blacklist)))
	}
	if cfg.Recommend.Rule != "" {
		rule, err := filter.NewRuleFilter(cfg.Recommend.Rule)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("recommend: rule: %w", err)
		}
		base = append(base, WithFilters(rule))
	}

	if cfg.PipelineFile != "" {
		stages, err := loadStages(cfg.PipelineFile, adapter, shuffler)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		base = append(base, WithStages(stages...))
	}

	svc := New(append(base, opts...)...)
	logging.Info().
		Str("store", st.Name()).
		Str("mode", mode.String()).
		Int("limit", cfg.Recommend.Limit).
		Bool("viewed", cfg.Viewed.Enabled).
		Int("stages", len(svc.stages)).
		Msg("recommend service ready")
	return svc, nil
}

// loadStages 从 YAML / JSON 文件构建额外的 Node。
// filter 与 rerank.shuffle 绑定到本 Service 的存储适配器与 Shuffler。
func loadStages(path string, adapter *filter.StoreAdapter, shuffler *rerank.Shuffler) ([]pipeline.Node, error) {
	var (
		pcfg *pipeline.Config
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		pcfg, err = pipeline.LoadFromJSON(path)
	default:
		pcfg, err = pipeline.LoadFromYAML(path)
	}
	if err != nil {
		return nil, fmt.Errorf("recommend: load pipeline %s: %w", path, err)
	}

	factory := config.DefaultFactory()
	factory.Register("filter", builders.FilterBuilder(adapter))
	factory.Register("rerank.shuffle", builders.ShuffleBuilder(shuffler))
	if err := config.ValidatePipelineConfig(pcfg, factory); err != nil {
		return nil, err
	}
	p, err := pcfg.BuildPipeline(factory)
	if err != nil {
		return nil, fmt.Errorf("recommend: build pipeline %s: %w: %v", path, core.ErrInvalidArgument, err)
	}
	return p.Nodes, nil
}
