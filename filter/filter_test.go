package filter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/store"
)

func candidateOf(id int64, available bool) *core.Candidate {
	return core.NewCandidate(&core.Product{ID: id, Name: "p", Price: 100, Available: available})
}

func TestAvailabilityFilter(t *testing.T) {
	f := &AvailabilityFilter{}
	anchor := &core.Product{ID: 1, Available: true}
	cart := map[int64]*core.Product{5: {ID: 5, Available: true}}
	rctx := &core.RankContext{Anchor: anchor, CartProducts: cart}

	tests := []struct {
		name string
		cand *core.Candidate
		want bool
	}{
		{"available product passes", candidateOf(2, true), false},
		{"unavailable product filtered", candidateOf(3, false), true},
		{"anchor filtered", candidateOf(1, true), true},
		{"cart product filtered", candidateOf(5, true), true},
		{"nil product filtered", &core.Candidate{ID: 9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ShouldFilter(context.Background(), rctx, tt.cand)
			if err != nil {
				t.Fatalf("ShouldFilter() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlacklistFilter(t *testing.T) {
	kv := store.NewMemoryStore()
	data, _ := json.Marshal([]int64{30, 31})
	if err := kv.Set(context.Background(), "blacklist:global", data); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	f := NewBlacklistFilter([]int64{10}, NewStoreAdapter(kv), "blacklist:global")

	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{"in-memory blacklist", 10, true},
		{"store blacklist", 30, true},
		{"clean product", 99, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ShouldFilter(context.Background(), &core.RankContext{}, candidateOf(tt.id, true))
			if err != nil {
				t.Fatalf("ShouldFilter() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldFilter(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestUserBlockFilter(t *testing.T) {
	kv := store.NewMemoryStore()
	data, _ := json.Marshal([]int64{7})
	if err := kv.Set(context.Background(), "user:block:u1", data); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	f := NewUserBlockFilter(NewStoreAdapter(kv), "user:block")
	rctx := &core.RankContext{Params: map[string]any{"user_id": "u1"}}

	if got, _ := f.ShouldFilter(context.Background(), rctx, candidateOf(7, true)); !got {
		t.Error("blocked product should be filtered")
	}
	if got, _ := f.ShouldFilter(context.Background(), rctx, candidateOf(8, true)); got {
		t.Error("unblocked product should pass")
	}
	// No user in the request context disables the filter.
	if got, _ := f.ShouldFilter(context.Background(), &core.RankContext{}, candidateOf(7, true)); got {
		t.Error("anonymous request should not be filtered")
	}
}

func TestExposedFilter(t *testing.T) {
	kv := store.NewMemoryStore()
	data, _ := json.Marshal([]int64{42})
	if err := kv.Set(context.Background(), "user:exposed:u1", data); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	f := NewExposedFilter(NewStoreAdapter(kv), "user:exposed", 3600, 0)
	rctx := &core.RankContext{Params: map[string]any{"user_id": "u1"}}

	if got, _ := f.ShouldFilter(context.Background(), rctx, candidateOf(42, true)); !got {
		t.Error("exposed product should be filtered")
	}
	if got, _ := f.ShouldFilter(context.Background(), rctx, candidateOf(43, true)); got {
		t.Error("fresh product should pass")
	}
}

func TestRuleFilter(t *testing.T) {
	f := NewRuleFilter([]string{`candidate.price > 1000.0`})

	cheap := core.NewCandidate(&core.Product{ID: 1, Price: 100, Available: true})
	pricey := core.NewCandidate(&core.Product{ID: 2, Price: 5000, Available: true})

	if got, _ := f.ShouldFilter(context.Background(), &core.RankContext{}, pricey); !got {
		t.Error("rule should filter expensive product")
	}
	if got, _ := f.ShouldFilter(context.Background(), &core.RankContext{}, cheap); got {
		t.Error("rule should keep cheap product")
	}

	// A broken expression never drops candidates.
	broken := NewRuleFilter([]string{`candidate.nonexistent_field > 1`})
	if got, _ := broken.ShouldFilter(context.Background(), &core.RankContext{}, cheap); got {
		t.Error("broken rule must not filter")
	}
}

func TestFilterNodeCombines(t *testing.T) {
	node := &FilterNode{Filters: []Filter{
		&AvailabilityFilter{},
		NewBlacklistFilter([]int64{2}, nil, ""),
	}}

	in := []*core.Candidate{
		candidateOf(1, true),
		candidateOf(2, true),  // blacklisted
		candidateOf(3, false), // unavailable
		candidateOf(4, true),
	}
	out, err := node.Process(context.Background(), &core.RankContext{}, in)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 2 || out[0].ID != 1 || out[1].ID != 4 {
		t.Fatalf("Process() = %v, want candidates 1 and 4", out)
	}
	if lbl, ok := in[1].Labels["filtered"]; !ok || lbl.Source != "filter.blacklist" {
		t.Errorf("filtered label = %v", in[1].Labels["filtered"])
	}
}
