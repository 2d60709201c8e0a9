package utils

import "fmt"

// Label 记录推荐链路某一阶段的决策，便于解释“为什么是这个顺序”。
// Value 为决策内容，Source 为产生它的节点（filter / rank / rerank ...）。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Labelf 以格式化字符串构造 Label。
func Labelf(source, format string, args ...any) Label {
	return Label{Value: fmt.Sprintf(format, args...), Source: source}
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 以 ',' 累积，空值不参与拼接。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := Label{Value: existing.Value + "|" + incoming.Value}
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "", incoming.Source == existing.Source:
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
