package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/shoprec/core"
)

func candWithCategory(id, categoryID int64) *core.Candidate {
	return core.NewCandidate(&core.Product{ID: id, CategoryID: categoryID})
}

func TestTopN(t *testing.T) {
	candidates := []*core.Candidate{
		candWithCategory(1, 10),
		candWithCategory(2, 10),
		candWithCategory(3, 10),
	}
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"truncates", 2, 2},
		{"no limit", 0, 3},
		{"larger than input", 10, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &TopNNode{N: tt.n}
			out, err := node.Process(context.Background(), nil, candidates)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if len(out) != tt.want {
				t.Errorf("len = %d, want %d", len(out), tt.want)
			}
		})
	}
}

func TestDiversityCapsPerCategory(t *testing.T) {
	candidates := []*core.Candidate{
		candWithCategory(1, 10),
		candWithCategory(2, 10),
		candWithCategory(3, 10),
		candWithCategory(4, 20),
		candWithCategory(5, 0), // 无类目不限流
	}
	node := &Diversity{MaxPerCategory: 2}
	out, err := node.Process(context.Background(), nil, candidates)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	ids := make([]int64, len(out))
	for i, c := range out {
		ids[i] = c.ID
	}
	want := []int64{1, 2, 4, 5}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}
