package filter

import (
	"context"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pkg/dsl"
)

// RuleFilter 按 CEL 表达式过滤：表达式为 true 的实体被保留，false 被过滤。
//
//	&RuleFilter{Expr: `item.rating >= 5.0 && !("horror" in item.genres)`}
type RuleFilter struct {
	Expr string
}

// NewRuleFilter 创建规则过滤器并预编译表达式，语法错误在构建时返回。
func NewRuleFilter(expr string) (*RuleFilter, error) {
	if expr != "" {
		if _, err := dsl.Compile(expr); err != nil {
			return nil, err
		}
	}
	return &RuleFilter{Expr: expr}, nil
}

func (f *RuleFilter) Name() string {
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, e core.Entity) (bool, error) {
	if e == nil {
		return true, nil
	}
	ok, err := dsl.Evaluate(f.Expr, e, rctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
