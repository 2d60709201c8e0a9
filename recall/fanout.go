package recall

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pkg/logging"
)

// Fanout 并发执行多个召回源并合并结果。
//
// 合并按 Sources 的顺序拼接（与完成顺序无关，结果可复现）；Dedup 为 true 时相同 id 保留先出现的。
// 单个召回源出错或超时不会中断其他召回源，只记录日志；全部失败时返回第一个错误。
type Fanout struct {
	Sources       []Source
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
}

func (n *Fanout) Name() string { return "recall.fanout" }

func (n *Fanout) Recall(ctx context.Context, rctx *core.RecommendContext) ([]core.Entity, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	results := make([][]core.Entity, len(n.Sources))
	errs := make([]error, len(n.Sources))

	var eg errgroup.Group
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}
	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			entities, err := src.Recall(recallCtx, rctx)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("source", src.Name()).Msg("recall source failed")
				errs[i] = err
				return nil
			}
			results[i] = entities
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	var firstErr error
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(n.Sources) {
		return nil, firstErr
	}

	return n.merge(results), nil
}

func (n *Fanout) merge(results [][]core.Entity) []core.Entity {
	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]core.Entity, 0, total)
	seen := make(map[string]struct{}, total)
	for _, r := range results {
		for _, e := range r {
			if e == nil {
				continue
			}
			if n.Dedup {
				id := e.Base().ID
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
			}
			out = append(out, e)
		}
	}
	return out
}

// NewCategoryFanout 为多个类别创建去重的 Fanout。
func NewCategoryFanout(src core.EntitySource, categories ...string) *Fanout {
	sources := make([]Source, 0, len(categories))
	for _, c := range categories {
		sources = append(sources, &CategorySource{Entities: src, Category: c})
	}
	return &Fanout{Sources: sources, Dedup: true}
}
