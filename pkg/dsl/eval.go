// Package dsl 是基于 CEL (Common Expression Language) 的内容规则解释器，
// 用于配置驱动的业务过滤规则（filter.RuleFilter）。
//
// 表达式可访问两个变量：
//
//	item: id / title / category / variant / rating / year / duration / age_rating / genres
//	rctx: user_id / request_id / category
//
// 示例：
//
//	item.rating >= 6.5
//	item.variant == "game" && item.age_rating != "AO"
//	"horror" in item.genres
//	item.year == 0 || item.year >= 1980
package dsl

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// programs 缓存已编译的表达式：expr -> cel.Program
	programs sync.Map
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("rctx", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return celEnv, celEnvErr
}

// Compile 编译表达式并缓存，可用于加载配置时提前发现语法错误。
func Compile(expr string) (cel.Program, error) {
	if prg, ok := programs.Load(expr); ok {
		return prg.(cel.Program), nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}

	actual, _ := programs.LoadOrStore(expr, prg)
	return actual.(cel.Program), nil
}

// Evaluate 对实体求值表达式。空表达式恒为 true。
func Evaluate(expr string, e core.Entity, rctx *core.RecommendContext) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	if e == nil {
		return false, fmt.Errorf("evaluate %q: %w", expr, core.ErrInvalidArgument)
	}

	prg, err := Compile(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"item": EntityInput(e),
		"rctx": contextInput(rctx),
	})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", expr, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", expr, out.Value())
	}
	return result, nil
}

// EntityInput 把实体展开为 CEL 输入。类型不支持的字段取零值，
// 保证表达式在任意类型上都能访问同一组 key。
func EntityInput(e core.Entity) map[string]any {
	c := e.Base()
	in := map[string]any{
		"id":         c.ID,
		"title":      c.Title,
		"category":   c.Category,
		"variant":    string(e.Variant()),
		"rating":     c.Rating,
		"year":       0,
		"duration":   0,
		"age_rating": "",
		"genres":     []string{},
	}
	if a, ok := e.(core.Attributes); ok {
		in["year"] = a.RepresentativeYear()
		in["rating"] = a.RatingValue()
		if g := a.Genres(); g != nil {
			genres := make([]string, len(g))
			for i, tag := range g {
				genres[i] = strings.ToLower(tag)
			}
			in["genres"] = genres
		}
	}
	if t, ok := e.(core.Timed); ok {
		in["duration"] = t.DurationMinutes()
	}
	if r, ok := e.(core.AgeRated); ok {
		in["age_rating"] = r.AgeRating()
	}
	return in
}

func contextInput(rctx *core.RecommendContext) map[string]any {
	if rctx == nil {
		return map[string]any{"user_id": "", "request_id": "", "category": ""}
	}
	return map[string]any{
		"user_id":    rctx.UserID,
		"request_id": rctx.RequestID,
		"category":   rctx.Category,
	}
}
