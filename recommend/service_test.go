package recommend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/draker2nich/SwipeTime-sub001/config"
	"github.com/draker2nich/SwipeTime-sub001/core"
	"github.com/draker2nich/SwipeTime-sub001/filter"
	"github.com/draker2nich/SwipeTime-sub001/recall"
	"github.com/draker2nich/SwipeTime-sub001/rerank"
	"github.com/draker2nich/SwipeTime-sub001/store"
)

func movie(id string, year int, rating float64, genres string) *core.Movie {
	return &core.Movie{
		Content:     core.Content{ID: id, Title: id, Category: "movies", Rating: rating},
		ReleaseYear: year,
		Duration:    120,
		GenreTags:   genres,
	}
}

// scenarioMovies 是年份为 1990/2000/2010/2020/2023 的 5 部电影，评分相同。
func scenarioMovies() []core.Entity {
	out := make([]core.Entity, 0, 5)
	for _, y := range []int{1990, 2000, 2010, 2020, 2023} {
		out = append(out, movie(fmt.Sprintf("m%d", y), y, 7, "Drama"))
	}
	return out
}

func windowPrefs() *core.Preferences {
	return &core.Preferences{MinYear: 2000, MaxYear: 2025}
}

func TestRecommendRankedScenario(t *testing.T) {
	svc := New()
	items, err := svc.Recommend(context.Background(), "movies", scenarioMovies(), windowPrefs(), ModeRanked)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m2023", "m2020", "m2010", "m2000"}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, want) {
		t.Errorf("Recommend() = %v, want %v", got, want)
	}
	if items[0].Title != "m2023" || items[0].Category != "movies" {
		t.Errorf("projection = %+v", items[0])
	}
}

func TestRecommendShuffled(t *testing.T) {
	svc := New(WithShuffler(rerank.NewShuffler(rerank.WithRandSource(
		&fixedPerm{perm: []int{3, 2, 1, 0}}))))
	ctx := context.Background()

	items, err := svc.Recommend(ctx, "movies", scenarioMovies(), windowPrefs(), ModeShuffled)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m2023", "m2020", "m2010", "m2000"}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, want) {
		t.Errorf("shuffled = %v, want %v", got, want)
	}

	hist, ok := svc.Shuffler().History().Get("movies")
	if !ok || !reflect.DeepEqual(hist, want) {
		t.Errorf("history = %v", hist)
	}
	svc.ResetCategory("movies")
	if _, ok := svc.Shuffler().History().Get("movies"); ok {
		t.Error("ResetCategory should clear movies")
	}
}

func TestRecommendShuffledIsPermutation(t *testing.T) {
	svc := New()
	entities := make([]core.Entity, 20)
	for i := range entities {
		entities[i] = movie(fmt.Sprintf("id-%02d", i), 2000+i, 5, "")
	}

	var prev []string
	for round := 0; round < 20; round++ {
		items, err := svc.Recommend(context.Background(), "movies", entities, nil, ModeShuffled)
		if err != nil {
			t.Fatal(err)
		}
		got := core.ItemIDs(items)
		sorted := slices.Clone(got)
		sort.Strings(sorted)
		if !reflect.DeepEqual(sorted, core.ItemIDs(core.ProjectAll(entities))) {
			t.Fatalf("round %d: not a permutation: %v", round, got)
		}
		if prev != nil && reflect.DeepEqual(prev, got) {
			t.Logf("round %d: identical order (residual chance after retry)", round)
		}
		prev = got
	}
	svc.ResetHistory()
	if svc.Shuffler().History().Len() != 0 {
		t.Error("ResetHistory should clear every category")
	}
}

func TestRecommendEmptyShortCircuit(t *testing.T) {
	svc := New()
	prefs := &core.Preferences{MinYear: 2030}

	for _, mode := range []Mode{ModeRanked, ModeShuffled} {
		items, err := svc.Recommend(context.Background(), "movies", scenarioMovies(), prefs, mode)
		if err != nil {
			t.Fatal(err)
		}
		if items == nil || len(items) != 0 {
			t.Errorf("%s: Recommend() = %#v, want empty non-nil", mode, items)
		}
	}
	if svc.Shuffler().History().Len() != 0 {
		t.Error("shuffler must not run when nothing survives filtering")
	}

	items, err := svc.Recommend(context.Background(), "movies", nil, nil, ModeShuffled)
	if err != nil || len(items) != 0 {
		t.Errorf("nil input = %v, %v", items, err)
	}
}

func TestRecommendUnknownVariantAndNilPrefs(t *testing.T) {
	entities := append(scenarioMovies(), &core.Other{Content: core.Content{ID: "pod", Category: "movies"}, Kind: "podcast"})
	items, err := New().Recommend(context.Background(), "movies", entities, windowPrefs(), ModeRanked)
	if err != nil {
		t.Fatal(err)
	}
	ids := core.ItemIDs(items)
	if len(ids) != 5 || ids[len(ids)-1] != "pod" {
		t.Errorf("unknown variant should pass filters and rank last on base score: %v", ids)
	}

	items, _ = New().Recommend(context.Background(), "movies", scenarioMovies(), nil, ModeRanked)
	if len(items) != 5 {
		t.Errorf("nil preferences should not filter, got %d", len(items))
	}
}

func TestRecommendInvalidMode(t *testing.T) {
	_, err := New().Recommend(context.Background(), "movies", scenarioMovies(), nil, Mode("random"))
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("err = %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeRanked, false},
		{"Ranked", ModeRanked, false},
		{" shuffled ", ModeShuffled, false},
		{"swipe", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func newStoreService(t *testing.T, opts ...Option) (*Service, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	content := recall.NewStoreSource(s, "")
	if err := content.Put(context.Background(), "movies", scenarioMovies()...); err != nil {
		t.Fatal(err)
	}
	base := []Option{
		WithEntitySource(content),
		WithPreferenceSource(recall.NewStorePreferenceSource(s, "")),
	}
	return New(append(base, opts...)...), s
}

func savePrefs(t *testing.T, s core.Store, rec *core.PreferencesRecord) {
	t.Helper()
	if err := recall.NewStorePreferenceSource(s, "").Save(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
}

func TestRecommendForUser(t *testing.T) {
	svc, s := newStoreService(t)
	ctx := context.Background()

	savePrefs(t, s, &core.PreferencesRecord{UserID: "u1", MinYear: 2000, MaxYear: 2025, PreferredGenres: core.EncodeList("drama")})
	items, err := svc.RecommendForUser(ctx, Request{UserID: "u1", Category: "movies"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 4 || items[0].ID != "m2023" {
		t.Errorf("u1 = %v", core.ItemIDs(items))
	}

	// 没有偏好记录的用户不过滤
	items, err = svc.RecommendForUser(ctx, Request{UserID: "nobody", Category: "movies"})
	if err != nil || len(items) != 5 {
		t.Errorf("nobody = %v, %v", core.ItemIDs(items), err)
	}

	// 显式偏好优先于偏好源
	items, _ = svc.RecommendForUser(ctx, Request{UserID: "u1", Category: "movies", Preferences: &core.Preferences{MinYear: 2020}})
	if len(items) != 2 {
		t.Errorf("override = %v", core.ItemIDs(items))
	}

	items, _ = svc.RecommendForUser(ctx, Request{Category: "games"})
	if items == nil || len(items) != 0 {
		t.Errorf("unknown category = %#v", items)
	}
}

func TestRecommendForUserMalformedPreferences(t *testing.T) {
	svc, s := newStoreService(t)
	ctx := context.Background()

	savePrefs(t, s, &core.PreferencesRecord{UserID: "u2", MinYear: 2000, MaxYear: 2025, PreferredGenres: `["Drama"`})
	items, err := svc.RecommendForUser(ctx, Request{UserID: "u2", Category: "movies"})
	if err != nil {
		t.Fatalf("malformed preferences must not fail: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("malformed preferences should disable filtering, got %v", core.ItemIDs(items))
	}

	_ = s.Set(ctx, "prefs:u3", []byte("{not json"))
	items, err = svc.RecommendForUser(ctx, Request{UserID: "u3", Category: "movies"})
	if err != nil || len(items) != 5 {
		t.Errorf("corrupt record = %v, %v", core.ItemIDs(items), err)
	}
}

type failingEntities struct{ err error }

func (f failingEntities) GetByCategory(context.Context, string) ([]core.Entity, error) {
	return nil, f.err
}
func (f failingEntities) GetByID(context.Context, string) (core.Entity, error) { return nil, f.err }

func TestRecommendForUserErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := New().RecommendForUser(ctx, Request{Category: "movies"}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("no source err = %v", err)
	}
	if _, err := New(WithEntitySource(recall.NewStatic())).RecommendForUser(ctx, Request{}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("empty category err = %v", err)
	}

	down := errors.New("content store down")
	svc := New(WithEntitySource(failingEntities{err: down}))
	if _, err := svc.RecommendForUser(ctx, Request{Category: "movies"}); !errors.Is(err, down) {
		t.Errorf("source err = %v", err)
	}
}

func TestLimitAndDedup(t *testing.T) {
	entities := append(scenarioMovies(), movie("m2023", 2023, 7, "Drama"))
	svc := New(WithEntitySource(recall.NewStatic(entities...)), WithDedup(true), WithDefaultLimit(3))
	ctx := context.Background()

	items, err := svc.RecommendForUser(ctx, Request{Category: "movies"})
	if err != nil {
		t.Fatal(err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"m2023", "m2020", "m2010"}) {
		t.Errorf("default limit = %v", got)
	}

	items, _ = svc.RecommendForUser(ctx, Request{Category: "movies", Limit: 1})
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"m2023"}) {
		t.Errorf("request limit = %v", got)
	}

	items, _ = New(WithEntitySource(recall.NewStatic(entities...))).RecommendForUser(ctx, Request{Category: "movies"})
	if len(items) != 6 {
		t.Errorf("without dedup = %v", core.ItemIDs(items))
	}
}

func TestShuffledHistoryMatchesReturnedOrder(t *testing.T) {
	entities := append(scenarioMovies(), movie("m2023", 2023, 7, "Drama"))
	svc := New(
		WithEntitySource(recall.NewStatic(entities...)),
		WithShuffler(rerank.NewShuffler(rerank.WithRandSource(&fixedPerm{perm: []int{3, 2, 1, 0}}))),
		WithDedup(true),
	)
	ctx := context.Background()
	req := Request{Category: "movies", Mode: ModeShuffled, Preferences: windowPrefs()}

	items, err := svc.RecommendForUser(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m2023", "m2020", "m2010", "m2000"}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, want) {
		t.Errorf("shuffled = %v, want %v", got, want)
	}
	if hist, _ := svc.Shuffler().History().Get("movies"); !reflect.DeepEqual(hist, want) {
		t.Errorf("history = %v, want returned order %v", hist, want)
	}

	// 截断后返回的是历史顺序的前缀
	req.Limit = 2
	items, err = svc.RecommendForUser(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	hist, _ := svc.Shuffler().History().Get("movies")
	if got := core.ItemIDs(items); len(hist) != 4 || !reflect.DeepEqual(got, hist[:2]) {
		t.Errorf("limited = %v, history = %v", got, hist)
	}
}

func TestExcludeViewed(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	adapter := filter.NewStoreAdapterWithBloomFilter(s, store.NewBloomChecker(s, 1000, 0.01))
	svc, _ := newStoreService(t, WithViewedHistory(adapter, ViewedOptions{Window: time.Hour, DayWindow: 3}))
	ctx := context.Background()

	if err := svc.MarkViewed(ctx, "u1", "movies", "m2020", "m1990"); err != nil {
		t.Fatal(err)
	}

	items, err := svc.RecommendForUser(ctx, Request{UserID: "u1", Category: "movies", ExcludeViewed: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"m2023", "m2010", "m2000"}) {
		t.Errorf("exclude viewed = %v", got)
	}

	items, _ = svc.RecommendForUser(ctx, Request{UserID: "u1", Category: "movies"})
	if len(items) != 5 {
		t.Errorf("viewed items should stay without ExcludeViewed: %v", core.ItemIDs(items))
	}

	// 历史按用户隔离
	items, _ = svc.RecommendForUser(ctx, Request{UserID: "u2", Category: "movies", ExcludeViewed: true})
	if len(items) != 5 {
		t.Errorf("other user = %v", core.ItemIDs(items))
	}

	if err := New().MarkViewed(ctx, "u1", "movies", "x"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("MarkViewed without history err = %v", err)
	}
	if err := svc.MarkViewed(ctx, "", "movies", "x"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("MarkViewed without user err = %v", err)
	}
}

func TestRecommendBatch(t *testing.T) {
	book := &core.Book{Content: core.Content{ID: "b1", Category: "books", Rating: 9}, PublishYear: 2015}
	src := recall.NewStatic(append(scenarioMovies(), book)...)
	svc := New(WithEntitySource(src), WithDefaultMode(ModeShuffled))

	out, err := svc.RecommendBatch(context.Background(), Request{Preferences: windowPrefs()}, "movies", "books", "anime")
	if err != nil {
		t.Fatal(err)
	}
	if len(out["movies"]) != 4 || len(out["books"]) != 1 || len(out["anime"]) != 0 {
		t.Errorf("batch = %v", out)
	}
	if svc.Shuffler().History().Len() != 2 {
		t.Errorf("history categories = %d, want 2", svc.Shuffler().History().Len())
	}

	down := errors.New("down")
	if _, err := New(WithEntitySource(failingEntities{err: down})).RecommendBatch(context.Background(), Request{}, "movies"); !errors.Is(err, down) {
		t.Errorf("batch err = %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	pipelineFile := filepath.Join(dir, "stages.yaml")
	if err := os.WriteFile(pipelineFile, []byte(`
pipeline:
  name: stages
  nodes:
    - type: filter
      config:
        filters:
          - type: blacklist
            item_ids: [m2010]
`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Log.Output = os.Stderr
	cfg.Viewed.Enabled = true
	cfg.Recommend.Rule = `item.year != 2000`
	cfg.Recommend.Limit = 10
	cfg.PipelineFile = pipelineFile

	svc, err := NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	items, err := svc.Recommend(context.Background(), "movies", scenarioMovies(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"m2023", "m2020", "m1990"}) {
		t.Errorf("Recommend() = %v", got)
	}
	if err := svc.MarkViewed(context.Background(), "u1", "movies", "m2023"); err != nil {
		t.Errorf("MarkViewed() = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestNewFromConfigErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Recommend.Rule = "item.rating >"
	if _, err := NewFromConfig(context.Background(), cfg); err == nil {
		t.Error("invalid rule should fail")
	}

	cfg = config.Default()
	cfg.PipelineFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewFromConfig(context.Background(), cfg); err == nil {
		t.Error("missing pipeline file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	_ = os.WriteFile(path, []byte(`{"pipeline":{"nodes":[{"type":"rank.deepfm"}]}}`), 0o600)
	cfg = config.Default()
	cfg.PipelineFile = path
	if _, err := NewFromConfig(context.Background(), cfg); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("unknown node err = %v", err)
	}

	cfg = config.Default()
	cfg.Store.Backend = "redis"
	if _, err := NewFromConfig(context.Background(), cfg); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("redis without addr err = %v", err)
	}
}

// fixedPerm 总是返回同一个排列。
type fixedPerm struct{ perm []int }

func (f *fixedPerm) Perm(n int) []int {
	if len(f.perm) != n {
		panic(fmt.Sprintf("fixed perm has length %d, want %d", len(f.perm), n))
	}
	return slices.Clone(f.perm)
}
