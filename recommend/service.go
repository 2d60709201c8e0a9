// Package recommend 组装完整的推荐链路：
//
//	偏好过滤 -> 投影为 Item -> [附加过滤] -> [配置的阶段] -> 排序 或 洗牌 -> [去重] -> [截断]
//
// Service 持有洗牌历史，历史的生命周期与 Service 一致，可随时重置。
//
//	svc := recommend.New(recommend.WithEntitySource(src))
//	items, err := svc.Recommend(ctx, "movies", entities, prefs, recommend.ModeRanked)
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/filter"
	"github.com/draker2nich/SwipeTime-sub001/pipeline"
	"github.com/draker2nich/SwipeTime-sub001/pkg/logging"
	"github.com/draker2nich/SwipeTime-sub001/pkg/metrics"
	"github.com/draker2nich/SwipeTime-sub001/pkg/utils"
	"github.com/draker2nich/SwipeTime-sub001/rank"
	"github.com/draker2nich/SwipeTime-sub001/rerank"
)

// Request 是一次面向用户的推荐请求。
type Request struct {
	UserID   string
	Category string
	// Mode 为空时使用 Service 的默认模式
	Mode Mode
	// Limit <= 0 时使用 Service 的默认条数，默认条数也为 0 时不截断
	Limit int
	// ExcludeViewed 剔除用户在该类别已看过的内容，需要配置 WithViewedHistory
	ExcludeViewed bool
	// Preferences 不为 nil 时直接使用，不再读取偏好源
	Preferences *core.Preferences
}

// ViewedOptions 是浏览历史去重的参数。
type ViewedOptions struct {
	KeyPrefix string
	Window    time.Duration
	DayWindow int
}

// Service 是推荐链路的编排器，并发安全。
type Service struct {
	shuffler   *rerank.Shuffler
	scorer     *rank.RelevanceScorer
	prefFilter *filter.PreferenceFilter

	entities    core.EntitySource
	preferences core.PreferenceSource

	viewed     *filter.StoreAdapter
	viewedOpts ViewedOptions

	filters []filter.Filter
	stages  []pipeline.Node

	defaultMode  Mode
	defaultLimit int
	dedup        bool

	closers   []func() error
	closeOnce sync.Once
	logger    zerolog.Logger
}

// Option 配置 Service。
type Option func(*Service)

// WithShuffler 使用外部的 Shuffler（例如与其他 Service 共享历史）。
func WithShuffler(s *rerank.Shuffler) Option {
	return func(svc *Service) {
		if s != nil {
			svc.shuffler = s
		}
	}
}

func WithScorer(s *rank.RelevanceScorer) Option {
	return func(svc *Service) {
		if s != nil {
			svc.scorer = s
		}
	}
}

func WithEntitySource(src core.EntitySource) Option {
	return func(svc *Service) { svc.entities = src }
}

func WithPreferenceSource(src core.PreferenceSource) Option {
	return func(svc *Service) { svc.preferences = src }
}

// WithViewedHistory 开启浏览历史去重。key 按类别区分：{KeyPrefix}:{category}。
func WithViewedHistory(adapter *filter.StoreAdapter, opts ViewedOptions) Option {
	return func(svc *Service) {
		svc.viewed = adapter
		if opts.KeyPrefix == "" {
			opts.KeyPrefix = filter.DefaultViewedKeyPrefix
		}
		svc.viewedOpts = opts
	}
}

// WithFilters 追加在偏好过滤之后执行的过滤器（黑名单、规则等）。
func WithFilters(filters ...filter.Filter) Option {
	return func(svc *Service) { svc.filters = append(svc.filters, filters...) }
}

// WithStages 追加在排序/洗牌之前执行的 Node，通常来自 pipeline 配置文件。
func WithStages(nodes ...pipeline.Node) Option {
	return func(svc *Service) { svc.stages = append(svc.stages, nodes...) }
}

func WithDefaultMode(m Mode) Option {
	return func(svc *Service) { svc.defaultMode = m }
}

func WithDefaultLimit(n int) Option {
	return func(svc *Service) { svc.defaultLimit = n }
}

// WithDedup 按 id 去重，保留第一次出现的条目。
func WithDedup(enabled bool) Option {
	return func(svc *Service) { svc.dedup = enabled }
}

func WithLogger(l zerolog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// withCloser 注册 Close 时需要释放的资源。
func withCloser(fn func() error) Option {
	return func(svc *Service) { svc.closers = append(svc.closers, fn) }
}

// New 创建 Service。未指定的组件使用默认实现。
func New(opts ...Option) *Service {
	svc := &Service{
		shuffler:    rerank.NewShuffler(),
		scorer:      rank.NewRelevanceScorer(),
		prefFilter:  filter.NewPreferenceFilter(),
		defaultMode: ModeRanked,
		logger:      logging.WithComponent("recommend"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Shuffler 返回 Service 持有的 Shuffler。
func (s *Service) Shuffler() *rerank.Shuffler { return s.shuffler }

// ResetHistory 清空所有类别的洗牌历史。
func (s *Service) ResetHistory() { s.shuffler.ResetHistory() }

// ResetCategory 清空单个类别的洗牌历史。
func (s *Service) ResetCategory(category string) { s.shuffler.ResetCategory(category) }

// Close 释放 Service 持有的资源（例如存储连接），可重复调用。
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		for _, fn := range s.closers {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// Recommend 对调用方已经取得的实体执行推荐链路。
//
// prefs 为 nil 表示不过滤。数据问题（缺失实体、未知类型、空输入）不会产生错误；
// 只有 mode 非法或某个 Node 返回错误时 err 非空。
func (s *Service) Recommend(
	ctx context.Context,
	category string,
	entities []core.Entity,
	prefs *core.Preferences,
	mode Mode,
) ([]core.Item, error) {
	return s.run(ctx, Request{Category: category, Mode: mode, Preferences: prefs}, entities)
}

// RecommendForUser 从内容源读取类别下的实体、从偏好源读取用户偏好，然后执行推荐链路。
// 偏好记录损坏时记录日志并按不过滤处理；内容源或偏好源的 I/O 错误会返回给调用方。
func (s *Service) RecommendForUser(ctx context.Context, req Request) ([]core.Item, error) {
	if req.Category == "" {
		return nil, fmt.Errorf("recommend: empty category: %w", core.ErrInvalidArgument)
	}
	if s.entities == nil {
		return nil, fmt.Errorf("recommend: no entity source configured: %w", core.ErrInvalidArgument)
	}

	entities, err := s.entities.GetByCategory(ctx, req.Category)
	if err != nil {
		return nil, fmt.Errorf("recommend: load %s: %w", req.Category, err)
	}
	if req.Preferences == nil {
		prefs, err := s.loadPreferences(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		req.Preferences = prefs
	}
	return s.run(ctx, req, entities)
}

// RecommendBatch 对多个类别并发执行 RecommendForUser，base 中的 Category 被忽略。
// 任一类别失败时返回第一个错误。
func (s *Service) RecommendBatch(ctx context.Context, base Request, categories ...string) (map[string][]core.Item, error) {
	if base.Preferences == nil {
		prefs, err := s.loadPreferences(ctx, base.UserID)
		if err != nil {
			return nil, err
		}
		base.Preferences = prefs
	}

	results := make([][]core.Item, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			req := base
			req.Category = category
			items, err := s.RecommendForUser(gctx, req)
			if err != nil {
				logging.Ctx(gctx).Error().Err(err).Str("category", category).Msg("batch recommend failed")
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]core.Item, len(categories))
	for i, category := range categories {
		out[category] = results[i]
	}
	return out, nil
}

// MarkViewed 记录用户在某个类别看过的内容，之后 ExcludeViewed 的请求会剔除它们。
func (s *Service) MarkViewed(ctx context.Context, userID, category string, ids ...string) error {
	if s.viewed == nil {
		return fmt.Errorf("recommend: viewed history not configured: %w", core.ErrInvalidArgument)
	}
	if userID == "" || category == "" {
		return fmt.Errorf("recommend: mark viewed needs user and category: %w", core.ErrInvalidArgument)
	}
	return s.viewed.MarkViewed(ctx, userID, s.viewedPrefix(category), ids...)
}

func (s *Service) viewedPrefix(category string) string {
	return s.viewedOpts.KeyPrefix + ":" + category
}

// loadPreferences 读取并解码用户偏好。没有记录或记录损坏都返回 nil（不过滤）。
func (s *Service) loadPreferences(ctx context.Context, userID string) (*core.Preferences, error) {
	if s.preferences == nil || userID == "" {
		return nil, nil
	}
	rec, err := s.preferences.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrPreferencesMalformed) {
			s.malformed(ctx, userID, err)
			return nil, nil
		}
		return nil, fmt.Errorf("recommend: load preferences of %s: %w", userID, err)
	}
	prefs, err := rec.Decode()
	if err != nil {
		s.malformed(ctx, userID, err)
		return nil, nil
	}
	return prefs, nil
}

func (s *Service) malformed(ctx context.Context, userID string, err error) {
	metrics.RecordPreferencesMalformed()
	logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("preferences malformed, recommending without filters")
}

func (s *Service) run(ctx context.Context, req Request, entities []core.Entity) (items []core.Item, err error) {
	start := time.Now()

	mode := req.Mode
	if mode == "" {
		mode = s.defaultMode
	}
	if mode, err = ParseMode(string(mode)); err != nil {
		return nil, err
	}

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = logging.NewRequestID()
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}
	defer func() {
		metrics.RecordRecommend(req.Category, mode.String(), len(items), time.Since(start), err)
	}()

	filtered := s.prefFilter.Apply(ctx, entities, req.Preferences)
	if len(filtered) == 0 {
		return []core.Item{}, nil
	}

	rctx := &core.RecommendContext{
		UserID:      req.UserID,
		RequestID:   requestID,
		Category:    req.Category,
		Preferences: req.Preferences,
		Entities:    core.IndexByID(filtered),
	}
	rctx.PutLabel("mode", utils.Label{Value: mode.String(), Source: "recommend"})

	p := s.buildPipeline(req, mode)
	items, err = p.Run(ctx, rctx, core.ProjectAll(filtered))
	if err != nil {
		return nil, fmt.Errorf("recommend: %s: %w", req.Category, err)
	}

	s.logger.Debug().
		Str("request_id", requestID).
		Str("category", req.Category).
		Str("mode", mode.String()).
		Int("input", len(entities)).
		Int("after_preferences", len(filtered)).
		Int("output", len(items)).
		Msg("recommend done")
	return items, nil
}

// buildPipeline 为一次请求组装 Item 阶段的 Node 链。
func (s *Service) buildPipeline(req Request, mode Mode) *pipeline.Pipeline {
	nodes := make([]pipeline.Node, 0, len(s.stages)+4)

	filters := s.filters
	if req.ExcludeViewed && s.viewed != nil && req.UserID != "" {
		filters = append(filters[:len(filters):len(filters)], filter.NewViewedFilter(
			s.viewed, s.viewedPrefix(req.Category), s.viewedOpts.Window, s.viewedOpts.DayWindow))
	}
	if len(filters) > 0 {
		nodes = append(nodes, &filter.FilterNode{Filters: filters})
	}
	nodes = append(nodes, s.stages...)

	// 洗牌模式先去重，洗牌历史与返回顺序一致；截断只取历史顺序的前缀。
	switch mode {
	case ModeShuffled:
		if s.dedup {
			nodes = append(nodes, &rerank.DedupNode{})
		}
		nodes = append(nodes, &rerank.ShuffleNode{Shuffler: s.shuffler})
	default:
		nodes = append(nodes, &rank.RelevanceNode{Scorer: s.scorer})
		if s.dedup {
			nodes = append(nodes, &rerank.DedupNode{})
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > 0 {
		nodes = append(nodes, &rerank.TopNNode{N: limit})
	}
	return &pipeline.Pipeline{Nodes: nodes}
}
