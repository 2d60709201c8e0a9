package rank

import (
	"sort"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// Sort 按分数降序稳定排序，返回新切片，不修改输入。
// scores 中没有的条目按 0 分处理；同分条目保持输入顺序。
func Sort(items []core.Item, scores map[string]float64) []core.Item {
	out := make([]core.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i].ID] > scores[out[j].ID]
	})
	return out
}
