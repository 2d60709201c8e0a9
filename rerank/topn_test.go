package rerank

import (
	"context"
	"reflect"
	"testing"

	"github.com/draker2nich/SwipeTime-sub001/core"
)

func TestTopNNode(t *testing.T) {
	items := makeItems(5)
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"zero keeps all", 0, 5},
		{"negative keeps all", -1, 5},
		{"larger than input", 10, 5},
		{"truncates", 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TopNNode{N: tt.n}).Process(context.Background(), nil, items)
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != tt.want {
				t.Errorf("len = %d, want %d", len(out), tt.want)
			}
		})
	}

	out, _ := (&TopNNode{N: 2}).Process(context.Background(), nil, items)
	_ = append(out, core.Item{ID: "extra"})
	if items[2].ID != "id-02" {
		t.Error("appending to a truncated result must not overwrite the input")
	}
}

func TestDedupNode(t *testing.T) {
	items := []core.Item{{ID: "a"}, {ID: "b"}, {ID: "a", Title: "dup"}, {ID: "c"}, {ID: "b"}}
	out, err := (&DedupNode{}).Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	if got := core.ItemIDs(out); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Process() = %v", got)
	}
	if out[0].Title == "dup" {
		t.Error("first occurrence should be kept")
	}
}
