package core

import (
	"fmt"
	"math"
	"strings"

	json "github.com/goccy/go-json"
)

// 偏好的“不限制”边界值。
const (
	NoMinYear     = 1900
	NoMaxYear     = 2100
	NoMinDuration = 0
	NoMaxDuration = math.MaxInt32
)

// StringSet 是大小写不敏感的字符串集合，元素统一存为小写。
type StringSet map[string]struct{}

// NewStringSet 创建集合，元素 trim 后转小写，空串被丢弃。
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s StringSet) Add(v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return
	}
	s[v] = struct{}{}
}

func (s StringSet) Has(v string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

func (s StringSet) Len() int { return len(s) }

// Preferences 是解码后的用户偏好快照，过滤与打分只读取它。
//
// 零值可直接使用：MaxYear / MaxDuration <= 0 视为无上限，等价于“不过滤”。
type Preferences struct {
	PreferredGenres     StringSet
	PreferredCountries  StringSet
	PreferredLanguages  StringSet
	InterestTags        StringSet
	MinDuration         int
	MaxDuration         int
	MinYear             int
	MaxYear             int
	AdultContentEnabled bool
}

// DefaultPreferences 返回所有字段都处于“不限制”状态的偏好。
func DefaultPreferences() *Preferences {
	return &Preferences{
		PreferredGenres:    NewStringSet(),
		PreferredCountries: NewStringSet(),
		PreferredLanguages: NewStringSet(),
		InterestTags:       NewStringSet(),
		MinDuration:        NoMinDuration,
		MaxDuration:        NoMaxDuration,
		MinYear:            NoMinYear,
		MaxYear:            NoMaxYear,
	}
}

// YearBounds 返回闭区间 [lo, hi]。
func (p *Preferences) YearBounds() (lo, hi int) {
	lo, hi = p.MinYear, p.MaxYear
	if hi <= 0 {
		hi = math.MaxInt
	}
	return lo, hi
}

// DurationBounds 返回闭区间 [lo, hi]（分钟）。
func (p *Preferences) DurationBounds() (lo, hi int) {
	lo, hi = p.MinDuration, p.MaxDuration
	if hi <= 0 {
		hi = math.MaxInt
	}
	return lo, hi
}

func (p *Preferences) yearWindowActive() bool {
	lo, hi := p.YearBounds()
	return lo > NoMinYear || hi < NoMaxYear
}

func (p *Preferences) durationWindowActive() bool {
	lo, hi := p.DurationBounds()
	return lo > NoMinDuration || hi < NoMaxDuration
}

// IsUnrestricted 判断偏好是否没有任何生效的约束。
// 成人内容开关不参与判断：全部默认值时不做任何过滤。
func (p *Preferences) IsUnrestricted() bool {
	if p == nil {
		return true
	}
	return p.PreferredGenres.Len() == 0 &&
		p.PreferredCountries.Len() == 0 &&
		p.PreferredLanguages.Len() == 0 &&
		p.InterestTags.Len() == 0 &&
		!p.yearWindowActive() &&
		!p.durationWindowActive()
}

// ActiveFilterCount 统计生效的筛选条件数量（用于展示“已启用 N 个筛选”）。
// 列表类偏好按元素计数，区间的每个边界各算一个。
func (p *Preferences) ActiveFilterCount() int {
	if p == nil {
		return 0
	}
	n := p.PreferredGenres.Len() + p.PreferredCountries.Len() +
		p.PreferredLanguages.Len() + p.InterestTags.Len()
	lo, hi := p.YearBounds()
	if lo > NoMinYear {
		n++
	}
	if hi < NoMaxYear {
		n++
	}
	lo, hi = p.DurationBounds()
	if lo > NoMinDuration {
		n++
	}
	if hi < NoMaxDuration {
		n++
	}
	if p.AdultContentEnabled {
		n++
	}
	return n
}

// PreferencesRecord 是偏好在存储中的原始形态：列表字段为 JSON 数组字符串。
type PreferencesRecord struct {
	UserID              string `json:"user_id"`
	PreferredGenres     string `json:"preferred_genres"`
	PreferredCountries  string `json:"preferred_countries"`
	PreferredLanguages  string `json:"preferred_languages"`
	InterestsTags       string `json:"interests_tags"`
	MinDuration         int    `json:"min_duration"`
	MaxDuration         int    `json:"max_duration"`
	MinYear             int    `json:"min_year"`
	MaxYear             int    `json:"max_year"`
	AdultContentEnabled bool   `json:"adult_content_enabled"`
}

// Decode 把存储形态一次性解码为 Preferences。
// 任一列表字段不是合法的 JSON 字符串数组时返回 ErrPreferencesMalformed。
func (r *PreferencesRecord) Decode() (*Preferences, error) {
	if r == nil {
		return nil, nil
	}
	genres, err := decodeList("preferred_genres", r.PreferredGenres)
	if err != nil {
		return nil, err
	}
	countries, err := decodeList("preferred_countries", r.PreferredCountries)
	if err != nil {
		return nil, err
	}
	languages, err := decodeList("preferred_languages", r.PreferredLanguages)
	if err != nil {
		return nil, err
	}
	tags, err := decodeList("interests_tags", r.InterestsTags)
	if err != nil {
		return nil, err
	}
	return &Preferences{
		PreferredGenres:     genres,
		PreferredCountries:  countries,
		PreferredLanguages:  languages,
		InterestTags:        tags,
		MinDuration:         r.MinDuration,
		MaxDuration:         r.MaxDuration,
		MinYear:             r.MinYear,
		MaxYear:             r.MaxYear,
		AdultContentEnabled: r.AdultContentEnabled,
	}, nil
}

func decodeList(field, raw string) (StringSet, error) {
	if strings.TrimSpace(raw) == "" {
		return NewStringSet(), nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", field, ErrPreferencesMalformed, err)
	}
	return NewStringSet(values...), nil
}

// EncodeList 把集合编码为存储用的 JSON 数组字符串。
func EncodeList(values ...string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}
