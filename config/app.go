package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/pkg/logging"
	"github.com/draker2nich/SwipeTime-sub001/store"
)

// EnvPrefix 是环境变量前缀。
const EnvPrefix = "SWIPETIME_"

// PathEnvVar 可覆盖配置文件路径。
const PathEnvVar = EnvPrefix + "CONFIG"

// DefaultPaths 按优先级列出配置文件的查找路径，使用第一个存在的文件。
var DefaultPaths = []string{
	"swipetime.yaml",
	"swipetime.yml",
	"/etc/swipetime/config.yaml",
}

// AppConfig 是服务的完整配置。
type AppConfig struct {
	Log       logging.Config  `koanf:"log"`
	Store     store.Config    `koanf:"store"`
	Recommend RecommendConfig `koanf:"recommend"`
	Viewed    ViewedConfig    `koanf:"viewed"`
	Keys      KeysConfig      `koanf:"keys"`

	// PipelineFile 指向 pipeline 的 YAML 描述，为空时使用内置链路
	PipelineFile string `koanf:"pipeline_file"`
}

// RecommendConfig 是推荐链路的默认参数，单次请求可以覆盖 Mode 与 Limit。
type RecommendConfig struct {
	// Mode: ranked / shuffled
	Mode          string   `koanf:"mode" validate:"oneof=ranked shuffled"`
	Limit         int      `koanf:"limit" validate:"gte=0"`
	ReferenceYear int      `koanf:"reference_year" validate:"gte=1901,lte=2100"`
	Dedup         bool     `koanf:"dedup"`
	Categories    []string `koanf:"categories" validate:"dive,required"`
	// Rule 是可选的 CEL 过滤表达式，结果为 false 的内容被剔除
	Rule string `koanf:"rule"`
}

// ViewedConfig 是浏览历史去重的配置。
type ViewedConfig struct {
	Enabled                bool          `koanf:"enabled"`
	KeyPrefix              string        `koanf:"key_prefix" validate:"required"`
	Window                 time.Duration `koanf:"window" validate:"gte=0"`
	MaxRecent              int           `koanf:"max_recent" validate:"gte=1"`
	BloomCapacity          uint          `koanf:"bloom_capacity" validate:"gte=1"`
	BloomFalsePositiveRate float64       `koanf:"bloom_false_positive_rate" validate:"gt=0,lt=1"`
	BloomDayWindow         int           `koanf:"bloom_day_window" validate:"gte=0,lte=90"`
	BloomTTL               time.Duration `koanf:"bloom_ttl" validate:"gte=0"`
}

// KeysConfig 是存储中各类数据的 key 前缀。
type KeysConfig struct {
	Content     string `koanf:"content" validate:"required"`
	Preferences string `koanf:"preferences" validate:"required"`
	Blacklist   string `koanf:"blacklist"`
}

// Default 返回所有字段都有合理默认值的配置。
func Default() *AppConfig {
	return &AppConfig{
		Log:   logging.DefaultConfig(),
		Store: store.Config{Backend: "memory"},
		Recommend: RecommendConfig{
			Mode:          "ranked",
			Limit:         50,
			ReferenceYear: 2025,
			Dedup:         true,
			Categories:    []string{"movies", "tv_shows", "games", "books", "anime"},
		},
		Viewed: ViewedConfig{
			Enabled:                false,
			KeyPrefix:              "user:viewed",
			Window:                 7 * 24 * time.Hour,
			MaxRecent:              200,
			BloomCapacity:          10000,
			BloomFalsePositiveRate: 0.01,
			BloomDayWindow:         7,
			BloomTTL:               30 * 24 * time.Hour,
		},
		Keys: KeysConfig{
			Content:     "content",
			Preferences: "prefs",
		},
	}
}

// sliceConfigPaths 中的字段在环境变量里以逗号分隔。
var sliceConfigPaths = []string{
	"recommend.categories",
}

var envMappings = map[string]string{
	"swipetime_log_level":                        "log.level",
	"swipetime_log_format":                       "log.format",
	"swipetime_log_caller":                       "log.caller",
	"swipetime_store_backend":                    "store.backend",
	"swipetime_redis_addr":                       "store.redis.addr",
	"swipetime_redis_password":                   "store.redis.password",
	"swipetime_redis_db":                         "store.redis.db",
	"swipetime_recommend_mode":                   "recommend.mode",
	"swipetime_recommend_limit":                  "recommend.limit",
	"swipetime_reference_year":                   "recommend.reference_year",
	"swipetime_recommend_dedup":                  "recommend.dedup",
	"swipetime_categories":                       "recommend.categories",
	"swipetime_rule":                             "recommend.rule",
	"swipetime_viewed_enabled":                   "viewed.enabled",
	"swipetime_viewed_key_prefix":                "viewed.key_prefix",
	"swipetime_viewed_window":                    "viewed.window",
	"swipetime_viewed_max_recent":                "viewed.max_recent",
	"swipetime_viewed_bloom_day_window":          "viewed.bloom_day_window",
	"swipetime_viewed_bloom_false_positive_rate": "viewed.bloom_false_positive_rate",
	"swipetime_pipeline_file":                    "pipeline_file",
}

// envTransform 把环境变量名映射为配置路径，未登记的变量被忽略。
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load 按 默认值 -> 配置文件 -> 环境变量 的顺序分层加载配置并校验。
// path 为空时依次尝试 SWIPETIME_CONFIG 与 DefaultPaths，都不存在则只用默认值与环境变量。
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Log.Output = os.Stderr

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("config: set %s: %w", path, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验字段约束以及跨字段规则。
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q (value %v): %w", fe.Namespace(), fe.Tag(), fe.Value(), core.ErrInvalidArgument)
		}
		return fmt.Errorf("config: %w: %v", core.ErrInvalidArgument, err)
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("config: store.redis.addr is required for the redis backend: %w", core.ErrInvalidArgument)
	}
	return nil
}
