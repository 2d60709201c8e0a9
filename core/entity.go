package core

import "strings"

// Variant 标识内容实体的具体类型（电影 / 剧集 / 游戏 / 书籍 / 动画）。
type Variant string

const (
	VariantMovie  Variant = "movie"
	VariantTVShow Variant = "tv_show"
	VariantGame   Variant = "game"
	VariantBook   Variant = "book"
	VariantAnime  Variant = "anime"
)

// ModelsProductionCountry 返回该类型是否建模了制作国家（目前只有电影）。
// 打分阶段的国家加分只对这些类型生效。
func (v Variant) ModelsProductionCountry() bool {
	return v == VariantMovie
}

// Content 是所有内容实体共享的字段。
type Content struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
	Category    string  `json:"category"`
	Rating      float64 `json:"rating"` // 0-10
}

// Base 返回共享字段，嵌入 Content 的类型自动获得该方法。
func (c *Content) Base() *Content { return c }

// Entity 是内容实体的统一抽象，由外部内容库持有，Pipeline 只在一次调用内只读访问。
//
// 已知类型（Movie/TVShow/Game/Book/Anime）额外实现 Attributes；
// 未知类型只实现 Entity：过滤阶段不受类型相关谓词影响，打分阶段只得基础分。
type Entity interface {
	Base() *Content
	Variant() Variant
}

// Attributes 是过滤与打分唯一依赖的能力集合。
type Attributes interface {
	// Genres 返回去重后的类型标签（逗号分隔字符串拆分 + trim）
	Genres() []string
	// RepresentativeYear 返回代表年份（发行年 / 剧集开播年），0 表示未知
	RepresentativeYear() int
	// RatingValue 返回存储的评分（0-10），缺失为 0
	RatingValue() float64
}

// Timed 由带时长的实体实现（目前为电影），单位分钟，0 表示未知。
type Timed interface {
	DurationMinutes() int
}

// AgeRated 由带分级标记的实体实现（游戏 ESRB、电影 MPAA 等）。
type AgeRated interface {
	AgeRating() string
}

// Movie 电影。
type Movie struct {
	Content
	Director      string `json:"director"`
	ReleaseYear   int    `json:"release_year"`
	Duration      int    `json:"duration"` // 分钟
	GenreTags     string `json:"genres"`
	Certification string `json:"certification"`
}

func (m *Movie) Variant() Variant        { return VariantMovie }
func (m *Movie) Genres() []string        { return SplitTags(m.GenreTags) }
func (m *Movie) RepresentativeYear() int { return m.ReleaseYear }
func (m *Movie) RatingValue() float64    { return m.Rating }
func (m *Movie) DurationMinutes() int    { return m.Duration }
func (m *Movie) AgeRating() string       { return m.Certification }

// TVShow 剧集，代表年份取开播年。
type TVShow struct {
	Content
	Creator   string `json:"creator"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`
	Seasons   int    `json:"seasons"`
	Episodes  int    `json:"episodes"`
	GenreTags string `json:"genres"`
	Status    string `json:"status"` // ongoing / finished / cancelled
}

func (s *TVShow) Variant() Variant        { return VariantTVShow }
func (s *TVShow) Genres() []string        { return SplitTags(s.GenreTags) }
func (s *TVShow) RepresentativeYear() int { return s.StartYear }
func (s *TVShow) RatingValue() float64    { return s.Rating }

// Game 游戏。
type Game struct {
	Content
	Developer   string `json:"developer"`
	Publisher   string `json:"publisher"`
	ReleaseYear int    `json:"release_year"`
	Platforms   string `json:"platforms"`
	GenreTags   string `json:"genres"`
	ESRBRating  string `json:"esrb_rating"`
}

func (g *Game) Variant() Variant        { return VariantGame }
func (g *Game) Genres() []string        { return SplitTags(g.GenreTags) }
func (g *Game) RepresentativeYear() int { return g.ReleaseYear }
func (g *Game) RatingValue() float64    { return g.Rating }
func (g *Game) AgeRating() string       { return g.ESRBRating }

// Book 书籍。
type Book struct {
	Content
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	PublishYear int    `json:"publish_year"`
	PageCount   int    `json:"page_count"`
	GenreTags   string `json:"genres"`
	ISBN        string `json:"isbn"`
}

func (b *Book) Variant() Variant        { return VariantBook }
func (b *Book) Genres() []string        { return SplitTags(b.GenreTags) }
func (b *Book) RepresentativeYear() int { return b.PublishYear }
func (b *Book) RatingValue() float64    { return b.Rating }

// Anime 动画。
type Anime struct {
	Content
	Studio      string `json:"studio"`
	ReleaseYear int    `json:"release_year"`
	Episodes    int    `json:"episodes"`
	GenreTags   string `json:"genres"`
	Status      string `json:"status"`
	Format      string `json:"format"` // TV / Movie / OVA
}

func (a *Anime) Variant() Variant        { return VariantAnime }
func (a *Anime) Genres() []string        { return SplitTags(a.GenreTags) }
func (a *Anime) RepresentativeYear() int { return a.ReleaseYear }
func (a *Anime) RatingValue() float64    { return a.Rating }

// Other 承载未识别的内容类型（例如新接入的数据源）。
// 它只实现 Entity，不参与任何类型相关的过滤与加分。
type Other struct {
	Content
	Kind string `json:"kind"`
}

func (o *Other) Variant() Variant { return Variant(o.Kind) }

// SplitTags 将逗号分隔的标签串拆分为去重后的标签列表（保留首次出现的顺序）。
// 去重按大小写不敏感比较。
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

var (
	_ Attributes = (*Movie)(nil)
	_ Attributes = (*TVShow)(nil)
	_ Attributes = (*Game)(nil)
	_ Attributes = (*Book)(nil)
	_ Attributes = (*Anime)(nil)
	_ Timed      = (*Movie)(nil)
	_ AgeRated   = (*Movie)(nil)
	_ AgeRated   = (*Game)(nil)
	_ Entity     = (*Other)(nil)
)
