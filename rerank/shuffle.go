package rerank

import (
	"math/rand/v2"
	"sync"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pkg/metrics"
)

// similarityPrefix 是相似度比较的最大前缀长度。
const similarityPrefix = 10

// IsSimilarOrder 判断两次展示顺序是否“相似”。
//
// 这是一个按位置、偏重前缀的启发式判断，不是集合相似度：
//   - 长度不同的顺序不可比较，视为不相似
//   - threshold = min(10, floor(0.7*n))
//   - 逐位比较前 threshold 个位置，统计同一位置 id 相同的个数 matches
//   - matches >= threshold/2（整数除法）即相似
//
// n 很小时 threshold/2 为 0，任意两个顺序都判为相似（n=1、2 时恒成立）。
func IsSimilarOrder(prev, next []string) bool {
	n := len(next)
	if len(prev) != n {
		return false
	}
	threshold := min(similarityPrefix, n*7/10)
	matches := 0
	for i := 0; i < threshold; i++ {
		if prev[i] == next[i] {
			matches++
		}
	}
	return matches >= threshold/2
}

// ShuffleHistory 记录每个类别最近一次返回的展示顺序（id 列表）。
// 并发安全：读取旧顺序、比较与写入新顺序在同一把锁内完成。
type ShuffleHistory struct {
	mu     sync.Mutex
	orders map[string][]string
}

func NewShuffleHistory() *ShuffleHistory {
	return &ShuffleHistory{orders: make(map[string][]string)}
}

// Get 返回类别的上一次顺序（拷贝），不存在时返回 nil, false。
func (h *ShuffleHistory) Get(category string) ([]string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, ok := h.orders[category]
	if !ok {
		return nil, false
	}
	return append([]string(nil), prev...), true
}

// Update 在锁内用 fn 计算并写入新顺序。prev 为 nil 表示该类别还没有历史。
func (h *ShuffleHistory) Update(category string, fn func(prev []string) []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.orders == nil {
		h.orders = make(map[string][]string)
	}
	h.orders[category] = fn(h.orders[category])
	metrics.SetShuffleHistoryCategories(len(h.orders))
}

// Reset 清空所有类别的历史。
func (h *ShuffleHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orders = make(map[string][]string)
	metrics.SetShuffleHistoryCategories(0)
}

// ResetCategory 清空单个类别的历史。
func (h *ShuffleHistory) ResetCategory(category string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.orders, category)
	metrics.SetShuffleHistoryCategories(len(h.orders))
}

// Len 返回有历史的类别数。
func (h *ShuffleHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.orders)
}

// RandSource 是均匀随机排列的来源。默认使用 math/rand/v2 的全局源；
// 测试中可注入带种子的 *rand.Rand 得到可复现的结果。
type RandSource interface {
	Perm(n int) []int
}

type globalRand struct{}

func (globalRand) Perm(n int) []int { return rand.Perm(n) }

// Shuffler 打乱展示顺序，并避免与同类别上一次的顺序过于相似。
//
// 状态机（按类别）：
//   - 无历史：做一次均匀随机排列，记录并返回
//   - 有历史：做一次排列；与上次顺序相似时再做一次独立排列，并直接采用（至多重试一次）
//
// 历史总是被覆盖为最终返回的顺序，不会记录被丢弃的候选。
type Shuffler struct {
	history *ShuffleHistory

	rngMu sync.Mutex
	rng   RandSource
}

// ShufflerOption 配置 Shuffler。
type ShufflerOption func(*Shuffler)

// WithRandSource 注入随机源。
func WithRandSource(src RandSource) ShufflerOption {
	return func(s *Shuffler) {
		if src != nil {
			s.rng = src
		}
	}
}

// WithHistory 共享外部的历史记录。
func WithHistory(h *ShuffleHistory) ShufflerOption {
	return func(s *Shuffler) {
		if h != nil {
			s.history = h
		}
	}
}

func NewShuffler(opts ...ShufflerOption) *Shuffler {
	s := &Shuffler{history: NewShuffleHistory(), rng: globalRand{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History 返回 Shuffler 持有的历史记录。
func (s *Shuffler) History() *ShuffleHistory { return s.history }

// ResetHistory 清空所有类别的历史。
func (s *Shuffler) ResetHistory() { s.history.Reset() }

// ResetCategory 清空单个类别的历史。
func (s *Shuffler) ResetCategory(category string) { s.history.ResetCategory(category) }

func (s *Shuffler) perm(n int) []int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Perm(n)
}

// Shuffle 返回 items 的一个随机排列（新切片，不修改输入）。空输入原样返回且不触碰历史。
func (s *Shuffler) Shuffle(items []core.Item, category string) []core.Item {
	out, _ := s.shuffle(items, category)
	return out
}

// shuffle 额外返回是否触发了重洗。
func (s *Shuffler) shuffle(items []core.Item, category string) ([]core.Item, bool) {
	if len(items) == 0 {
		return items, false
	}

	var (
		out     []core.Item
		retried bool
	)
	s.history.Update(category, func(prev []string) []string {
		out = permute(items, s.perm(len(items)))
		if prev != nil && IsSimilarOrder(prev, core.ItemIDs(out)) {
			out = permute(items, s.perm(len(items)))
			retried = true
		}
		return core.ItemIDs(out)
	})

	metrics.RecordShuffle(category, retried)
	return out, retried
}

func permute(items []core.Item, p []int) []core.Item {
	out := make([]core.Item, len(items))
	for i, j := range p {
		out[i] = items[j]
	}
	return out
}
