package feast

import (
	"context"
	"errors"
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
)

type fakeClient struct {
	stats map[int64][3]int64 // view, cart, order
	err   error
	calls int
}

func (f *fakeClient) OnlineFeatures(_ context.Context, req *OnlineFeaturesRequest) (*OnlineFeaturesResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp := &OnlineFeaturesResponse{}
	for _, row := range req.Entities {
		id, _ := row["product_id"].(int64)
		values := map[string]interface{}{}
		if s, ok := f.stats[id]; ok {
			values[defaultViewFeature] = s[0]
			values[defaultCartFeature] = float64(s[1])
			values[defaultOrderFeature] = s[2]
		}
		resp.Vectors = append(resp.Vectors, FeatureVector{Values: values, Entity: row})
	}
	return resp, nil
}

func (f *fakeClient) Close() error { return nil }

func TestProviderFetch(t *testing.T) {
	client := &fakeClient{stats: map[int64][3]int64{
		1: {100, 10, 3},
		2: {0, 0, 0},
	}}
	p := NewProvider(client, "shop")

	got, err := p.Fetch(context.Background(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := core.Popularity{ViewCount: 100, CartAddCount: 10, OrderCount: 3}
	if got[1] != want {
		t.Errorf("Fetch()[1] = %+v, want %+v", got[1], want)
	}
	if _, ok := got[2]; ok {
		t.Error("all-zero counters should be absent")
	}
	if _, ok := got[3]; ok {
		t.Error("unknown product should be absent")
	}
}

func TestProviderEnrichKeepsExistingCounts(t *testing.T) {
	client := &fakeClient{stats: map[int64][3]int64{1: {5, 1, 0}, 2: {9, 9, 9}}}
	p := NewProvider(client, "shop")

	products := []*core.Product{
		{ID: 1},
		{ID: 2, Popularity: core.Popularity{ViewCount: 42}},
	}
	p.Enrich(context.Background(), products)

	if products[0].Popularity.ViewCount != 5 {
		t.Errorf("product 1 popularity = %+v, want enriched", products[0].Popularity)
	}
	if products[1].Popularity.ViewCount != 42 {
		t.Errorf("product 2 popularity = %+v, catalog counts must win", products[1].Popularity)
	}
}

func TestProviderEnrichAbsorbsErrors(t *testing.T) {
	p := NewProvider(&fakeClient{err: errors.New("connection refused")}, "shop")

	products := []*core.Product{{ID: 1}}
	p.Enrich(context.Background(), products)

	if products[0].Popularity != (core.Popularity{}) {
		t.Errorf("popularity = %+v, want untouched on error", products[0].Popularity)
	}
}

func TestCatalogDecoratorEnrichesReads(t *testing.T) {
	inner := catalog.NewMemoryCatalog()
	inner.AddProduct(&core.Product{ID: 1, Name: "底漆", CategoryID: 10, Price: 100, Available: true})

	client := &fakeClient{stats: map[int64][3]int64{1: {7, 2, 1}}}
	cat := NewCatalog(inner, NewProvider(client, "shop"))

	p, err := cat.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.Popularity.ViewCount != 7 || p.Popularity.OrderCount != 1 {
		t.Errorf("popularity = %+v, want enriched from feature store", p.Popularity)
	}
	if client.calls != 1 {
		t.Errorf("feature store calls = %d, want 1", client.calls)
	}

	if _, err := cat.GetProduct(context.Background(), 999); !core.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND passthrough, got %v", err)
	}
}

func TestSDKValueConversion(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{"string", "roller", "roller"},
		{"int", 7, int64(7)},
		{"int64", int64(7), int64(7)},
		{"float64", 2.5, 2.5},
		{"bool", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fromSDKValue(toSDKValue(tt.in)); got != tt.want {
				t.Errorf("round trip = %v (%T), want %v", got, got, tt.want)
			}
		})
	}

	if fromSDKValue(nil) != nil {
		t.Error("nil value should convert to nil")
	}
	if got := fromSDKValue(feastsdk.FloatVal(1.5)); got != 1.5 {
		t.Errorf("float32 feature = %v, want widened to float64", got)
	}
}
