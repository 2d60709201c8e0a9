package recommend

import (
	"fmt"
	"strings"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

// Mode 是结果的展示策略。排序与洗牌是二选一的，不会组合。
type Mode string

const (
	// ModeRanked 按相关性分数降序排列。
	ModeRanked Mode = "ranked"
	// ModeShuffled 随机打乱并避免与上一次顺序相似，不打分。
	ModeShuffled Mode = "shuffled"
)

// ParseMode 解析展示模式（大小写不敏感）。空串返回 ModeRanked。
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRanked:
		return ModeRanked, nil
	case ModeShuffled:
		return ModeShuffled, nil
	default:
		return "", fmt.Errorf("recommend: unknown mode %q: %w", s, core.ErrInvalidArgument)
	}
}

func (m Mode) String() string { return string(m) }
