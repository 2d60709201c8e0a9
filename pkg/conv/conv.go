// Package conv 提供节点配置（YAML/JSON 解析得到的 map[string]any）的取值与类型转换工具。
package conv

import "fmt"

// ToFloat64 将 any 转为 float64，支持常见的整型与浮点类型。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int，浮点数向零截断。
func ToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case uint64:
		return int(val), true
	case float64:
		return int(val), true
	case float32:
		return int(val), true
	default:
		return 0, false
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// SliceAnyToString 将 []any 转为 []string。
// 元素为 string 直接保留，为数字时格式化为 "%.0f"（配置里的数字 id）。
func SliceAnyToString(v any) []string {
	switch raw := v.(type) {
	case []string:
		return raw
	case []any:
		return ConvertSlice(raw, func(e any) (string, bool) {
			if s, ok := e.(string); ok {
				return s, true
			}
			if f, ok := ToFloat64(e); ok {
				return fmt.Sprintf("%.0f", f), true
			}
			return "", false
		})
	default:
		return nil
	}
}

// ConfigGet 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt 取整数。YAML 解析常得到 int，JSON 解析得到 float64，两者都兼容。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if n, ok := ToInt(v); ok {
		return n
	}
	return defaultVal
}

// ConfigGetInt64 同 ConfigGetInt，返回 int64。
func ConfigGetInt64(m map[string]any, key string, defaultVal int64) int64 {
	return int64(ConfigGetInt(m, key, int(defaultVal)))
}

// ConfigGetFloat64 取浮点数，整数字面量（如 YAML 中的 2025）同样接受。
func ConfigGetFloat64(m map[string]any, key string, defaultVal float64) float64 {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if f, ok := ToFloat64(v); ok {
		return f
	}
	return defaultVal
}
