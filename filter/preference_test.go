package filter

import (
	"context"
	"reflect"
	"slices"
	"testing"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

func movie(id string, year int, genres string) *core.Movie {
	return &core.Movie{
		Content:     core.Content{ID: id, Title: "Movie " + id, Category: "movies"},
		ReleaseYear: year,
		GenreTags:   genres,
		Duration:    100,
	}
}

func ids(entities []core.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Base().ID
	}
	return out
}

func mixedCatalog() []core.Entity {
	return []core.Entity{
		movie("m1", 1990, "Action,Drama"),
		&core.TVShow{Content: core.Content{ID: "s1"}, StartYear: 2015, EndYear: 2019, GenreTags: "Comedy"},
		&core.Game{Content: core.Content{ID: "g1"}, ReleaseYear: 2021, GenreTags: "Action, RPG", ESRBRating: "AO"},
		&core.Book{Content: core.Content{ID: "b1"}, PublishYear: 2005, GenreTags: "Drama"},
		&core.Anime{Content: core.Content{ID: "a1"}, ReleaseYear: 2012, GenreTags: " action ,Fantasy"},
		&core.Other{Content: core.Content{ID: "x1"}, Kind: "podcast"},
		movie("m2", 2022, ""),
	}
}

func TestPreferenceFilterNoFilterIdentity(t *testing.T) {
	f := NewPreferenceFilter()
	in := mixedCatalog()

	tests := []struct {
		name  string
		prefs *core.Preferences
	}{
		{"nil preferences", nil},
		{"defaults", core.DefaultPreferences()},
		{"zero value", &core.Preferences{}},
		{"defaults with adult disabled", func() *core.Preferences {
			p := core.DefaultPreferences()
			p.AdultContentEnabled = false
			return p
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Apply(context.Background(), in, tt.prefs)
			if !reflect.DeepEqual(ids(out), ids(in)) {
				t.Errorf("Apply() = %v, want %v", ids(out), ids(in))
			}
			if len(out) > 0 && &out[0] != &in[0] {
				t.Error("unrestricted preferences should return the input slice unchanged")
			}
		})
	}

	if out := f.Apply(context.Background(), nil, &core.Preferences{MinYear: 2000}); out != nil {
		t.Errorf("Apply(nil) = %v, want nil", out)
	}
}

func TestPreferenceFilterYearWindowScenario(t *testing.T) {
	f := NewPreferenceFilter()
	in := []core.Entity{
		movie("y1990", 1990, "Drama"),
		movie("y2000", 2000, "Drama"),
		movie("y2010", 2010, "Drama"),
		movie("y2020", 2020, "Drama"),
		movie("y2023", 2023, "Drama"),
	}
	prefs := core.DefaultPreferences()
	prefs.MinYear = 2000
	prefs.MaxYear = 2025

	out := f.Apply(context.Background(), in, prefs)
	want := []string{"y2000", "y2010", "y2020", "y2023"}
	if got := ids(out); !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestPreferenceFilterPredicates(t *testing.T) {
	f := NewPreferenceFilter()
	in := mixedCatalog()

	tests := []struct {
		name  string
		extra []core.Entity
		prefs func(p *core.Preferences)
		want  []string
	}{
		{
			name:  "genre intersection is case insensitive and trims tags",
			prefs: func(p *core.Preferences) { p.PreferredGenres = core.NewStringSet("ACTION") },
			// g1 has Action but is AO rated, m2 has no genres, x1 is unknown and passes
			want: []string{"m1", "a1", "x1"},
		},
		{
			name:  "genre with adult enabled",
			prefs: func(p *core.Preferences) { p.PreferredGenres = core.NewStringSet("action"); p.AdultContentEnabled = true },
			want:  []string{"m1", "g1", "a1", "x1"},
		},
		{
			name:  "tv show uses start year",
			prefs: func(p *core.Preferences) { p.MinYear = 2014; p.MaxYear = 2016; p.AdultContentEnabled = true },
			want:  []string{"s1", "x1"},
		},
		{
			name:  "duration only applies to movies",
			prefs: func(p *core.Preferences) { p.MinDuration = 120; p.AdultContentEnabled = true },
			want:  []string{"s1", "g1", "b1", "a1", "x1"},
		},
		{
			name:  "unknown year is outside an active year window",
			extra: []core.Entity{movie("m0", 0, "Drama")},
			prefs: func(p *core.Preferences) { p.MinYear = 2000; p.AdultContentEnabled = true },
			want:  []string{"s1", "g1", "b1", "a1", "x1", "m2"},
		},
		{
			name:  "unknown duration is outside an active duration window",
			extra: []core.Entity{&core.Movie{Content: core.Content{ID: "d0"}, ReleaseYear: 2010}},
			prefs: func(p *core.Preferences) { p.MinDuration = 90; p.AdultContentEnabled = true },
			want:  []string{"m1", "s1", "g1", "b1", "a1", "x1", "m2"},
		},
		{
			name: "unknown year and duration under both windows",
			extra: []core.Entity{
				&core.Movie{Content: core.Content{ID: "noyear"}, Duration: 100},
				&core.Movie{Content: core.Content{ID: "nodur"}, ReleaseYear: 2010},
			},
			prefs: func(p *core.Preferences) {
				p.MinYear, p.MaxYear = 2000, 2025
				p.MinDuration, p.MaxDuration = 90, 180
				p.AdultContentEnabled = true
			},
			want: []string{"s1", "g1", "b1", "a1", "x1", "m2"},
		},
		{
			name:  "zero max year means no upper bound",
			prefs: func(p *core.Preferences) { p.MinYear = 2010; p.MaxYear = 0; p.AdultContentEnabled = true },
			want:  []string{"s1", "g1", "a1", "x1", "m2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := core.DefaultPreferences()
			tt.prefs(p)
			out := f.Apply(context.Background(), append(slices.Clone(in), tt.extra...), p)
			if got := ids(out); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreferenceFilterAdultExclusion(t *testing.T) {
	f := NewPreferenceFilter()
	in := []core.Entity{
		&core.Game{Content: core.Content{ID: "ao"}, ReleaseYear: 2020, ESRBRating: "AO"},
		&core.Game{Content: core.Content{ID: "e"}, ReleaseYear: 2020, ESRBRating: "E"},
		&core.Movie{Content: core.Content{ID: "nc17"}, ReleaseYear: 2020, Certification: "nc-17"},
	}

	// 成人开关不单独构成约束，这里借助一个恒通过的年份下限使过滤生效
	prefs := core.DefaultPreferences()
	prefs.MinYear = 1950

	prefs.AdultContentEnabled = false
	if got := ids(f.Apply(context.Background(), in, prefs)); !reflect.DeepEqual(got, []string{"e"}) {
		t.Errorf("adult disabled: got %v, want [e]", got)
	}

	prefs.AdultContentEnabled = true
	if got := ids(f.Apply(context.Background(), in, prefs)); !reflect.DeepEqual(got, []string{"ao", "e", "nc17"}) {
		t.Errorf("adult enabled: got %v, want all", got)
	}
}

func TestPreferenceFilterIdempotent(t *testing.T) {
	f := NewPreferenceFilter()
	in := mixedCatalog()

	prefSets := []func(p *core.Preferences){
		func(p *core.Preferences) { p.PreferredGenres = core.NewStringSet("drama", "comedy") },
		func(p *core.Preferences) { p.MinYear = 2000; p.MaxYear = 2020 },
		func(p *core.Preferences) { p.MinDuration = 90; p.MaxDuration = 110 },
		func(p *core.Preferences) { p.PreferredCountries = core.NewStringSet("jp") },
	}
	for i, apply := range prefSets {
		p := core.DefaultPreferences()
		apply(p)
		once := f.Apply(context.Background(), in, p)
		twice := f.Apply(context.Background(), once, p)
		if !reflect.DeepEqual(ids(once), ids(twice)) {
			t.Errorf("case %d: filter not idempotent: %v vs %v", i, ids(once), ids(twice))
		}
	}
}

func TestPreferenceFilterCountryDoesNotReject(t *testing.T) {
	f := NewPreferenceFilter()
	in := mixedCatalog()
	p := core.DefaultPreferences()
	p.PreferredCountries = core.NewStringSet("fr")
	p.PreferredLanguages = core.NewStringSet("fr")
	p.InterestTags = core.NewStringSet("space")
	p.AdultContentEnabled = true

	if got := ids(f.Apply(context.Background(), in, p)); !reflect.DeepEqual(got, ids(in)) {
		t.Errorf("country/language/tag preferences should not reject: got %v", got)
	}
}

func TestPreferenceFilterApplyRecord(t *testing.T) {
	f := NewPreferenceFilter()
	in := mixedCatalog()

	t.Run("malformed record falls back to input", func(t *testing.T) {
		rec := &core.PreferencesRecord{UserID: "u1", PreferredGenres: `["Action",`, MinYear: 2020}
		out := f.ApplyRecord(context.Background(), in, rec)
		if !reflect.DeepEqual(ids(out), ids(in)) {
			t.Errorf("ApplyRecord() = %v, want unfiltered input", ids(out))
		}
	})

	t.Run("valid record filters", func(t *testing.T) {
		rec := &core.PreferencesRecord{
			UserID:          "u1",
			PreferredGenres: core.EncodeList("Drama"),
			MinYear:         1900,
			MaxYear:         2100,
			MaxDuration:     core.NoMaxDuration,
		}
		out := f.ApplyRecord(context.Background(), in, rec)
		want := []string{"m1", "b1", "x1"}
		if got := ids(out); !reflect.DeepEqual(got, want) {
			t.Errorf("ApplyRecord() = %v, want %v", got, want)
		}
	})

	t.Run("nil record", func(t *testing.T) {
		out := f.ApplyRecord(context.Background(), in, nil)
		if len(out) != len(in) {
			t.Errorf("ApplyRecord(nil) dropped items: %v", ids(out))
		}
	})
}

func TestIsAdultRated(t *testing.T) {
	for _, r := range []string{"M", "ao", " 18+ ", "NC-17", "r18+"} {
		if !IsAdultRated(r) {
			t.Errorf("IsAdultRated(%q) = false", r)
		}
	}
	for _, r := range []string{"", "E", "T", "PG-13", "R"} {
		if IsAdultRated(r) {
			t.Errorf("IsAdultRated(%q) = true", r)
		}
	}
}
