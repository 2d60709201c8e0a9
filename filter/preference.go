package filter

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pkg/logging"
	"github.com/draker2nich/SwipeTime-sub001/pkg/metrics"
)

// AdultRatingMarkers 是视为成人内容的分级标记（大小写不敏感）。
var AdultRatingMarkers = []string{"M", "AO", "18+", "NC-17", "R18+"}

// IsAdultRated 判断分级标记是否属于成人内容。
func IsAdultRated(rating string) bool {
	rating = strings.TrimSpace(rating)
	if rating == "" {
		return false
	}
	for _, m := range AdultRatingMarkers {
		if strings.EqualFold(rating, m) {
			return true
		}
	}
	return false
}

// Predicate 是单条偏好约束，返回 true 表示实体满足约束。
// 实体不具备谓词所需的能力（例如未知类型没有年份）时视为满足。
type Predicate struct {
	Name string
	Keep func(e core.Entity, p *core.Preferences) bool
}

// GenrePredicate：偏好类型非空时，实体的类型标签必须与之有交集；没有标签的实体不通过。
var GenrePredicate = Predicate{
	Name: "genre",
	Keep: func(e core.Entity, p *core.Preferences) bool {
		if p.PreferredGenres.Len() == 0 {
			return true
		}
		a, ok := e.(core.Attributes)
		if !ok {
			return true
		}
		for _, g := range a.Genres() {
			if p.PreferredGenres.Has(g) {
				return true
			}
		}
		return false
	},
}

// YearPredicate：代表年份必须落在 [MinYear, MaxYear]。年份未知（0）按原值比较，下限大于 0 时被排除。
var YearPredicate = Predicate{
	Name: "year",
	Keep: func(e core.Entity, p *core.Preferences) bool {
		a, ok := e.(core.Attributes)
		if !ok {
			return true
		}
		year := a.RepresentativeYear()
		lo, hi := p.YearBounds()
		return year >= lo && year <= hi
	},
}

// DurationPredicate：只作用于带时长的实体，时长必须落在 [MinDuration, MaxDuration]。
var DurationPredicate = Predicate{
	Name: "duration",
	Keep: func(e core.Entity, p *core.Preferences) bool {
		t, ok := e.(core.Timed)
		if !ok {
			return true
		}
		d := t.DurationMinutes()
		lo, hi := p.DurationBounds()
		return d >= lo && d <= hi
	},
}

// AdultPredicate：未开启成人内容时，排除带成人分级标记的实体。
var AdultPredicate = Predicate{
	Name: "adult",
	Keep: func(e core.Entity, p *core.Preferences) bool {
		if p.AdultContentEnabled {
			return true
		}
		r, ok := e.(core.AgeRated)
		if !ok {
			return true
		}
		return !IsAdultRated(r.AgeRating())
	},
}

// DefaultPredicates 是 PreferenceFilter 默认评估的约束。
// 国家 / 语言 / 兴趣标签在偏好模型中存在，但实体不携带对应元数据，目前不参与过滤。
func DefaultPredicates() []Predicate {
	return []Predicate{GenrePredicate, YearPredicate, DurationPredicate, AdultPredicate}
}

// PreferenceFilter 按用户偏好的硬约束过滤内容实体。
//
// 保证：
//   - 不改变保留实体的相对顺序
//   - 幂等：Apply(Apply(X, P), P) == Apply(X, P)
//   - 偏好为 nil 或没有任何生效约束时原样返回输入（不分配新切片）
type PreferenceFilter struct {
	Predicates []Predicate
	logger     zerolog.Logger
}

// NewPreferenceFilter 创建使用默认约束的偏好过滤器。
func NewPreferenceFilter() *PreferenceFilter {
	return &PreferenceFilter{
		Predicates: DefaultPredicates(),
		logger:     logging.WithComponent("filter.preference"),
	}
}

func (f *PreferenceFilter) Name() string {
	return "filter.preference"
}

func (f *PreferenceFilter) predicates() []Predicate {
	if f.Predicates == nil {
		return DefaultPredicates()
	}
	return f.Predicates
}

// Apply 过滤实体列表。
func (f *PreferenceFilter) Apply(ctx context.Context, entities []core.Entity, prefs *core.Preferences) []core.Entity {
	if len(entities) == 0 || prefs.IsUnrestricted() {
		return entities
	}

	preds := f.predicates()
	out := make([]core.Entity, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		if keep(e, prefs, preds) {
			out = append(out, e)
		}
	}

	dropped := len(entities) - len(out)
	metrics.RecordFilterDropped(f.Name(), dropped)
	logging.Ctx(ctx).Debug().
		Str("component", f.Name()).
		Int("input", len(entities)).
		Int("kept", len(out)).
		Int("active_filters", prefs.ActiveFilterCount()).
		Msg("preference filter applied")
	return out
}

// ApplyRecord 解码存储形态的偏好后过滤。
// 偏好记录损坏时记录日志并原样返回输入，错误不会传播给调用方。
func (f *PreferenceFilter) ApplyRecord(ctx context.Context, entities []core.Entity, rec *core.PreferencesRecord) []core.Entity {
	prefs, err := rec.Decode()
	if err != nil {
		metrics.RecordPreferencesMalformed()
		logging.Ctx(ctx).Warn().Err(err).
			Str("component", f.Name()).
			Str("user_id", rec.UserID).
			Msg("preferences malformed, skip filtering")
		return entities
	}
	return f.Apply(ctx, entities, prefs)
}

// ShouldFilter 使 PreferenceFilter 可作为 FilterNode 中的单个过滤器使用，偏好取自 rctx。
func (f *PreferenceFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, e core.Entity) (bool, error) {
	if e == nil {
		return true, nil
	}
	if rctx == nil || rctx.Preferences.IsUnrestricted() {
		return false, nil
	}
	return !keep(e, rctx.Preferences, f.predicates()), nil
}

func keep(e core.Entity, p *core.Preferences, preds []Predicate) bool {
	for _, pred := range preds {
		if !pred.Keep(e, p) {
			return false
		}
	}
	return true
}
