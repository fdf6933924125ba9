package model

import (
	"math"
	"testing"

	"github.com/rushteam/shoprec/core"
)

// 两个 query 组，特征 0 完全区分正负样本，特征 1 为常数噪声。
func separableRankingData() ([][]float64, []float64, []int64) {
	X := [][]float64{
		{1.0, 0.5},
		{0.9, 0.5},
		{0.1, 0.5},
		{0.0, 0.5},
		{0.8, 0.5},
		{0.2, 0.5},
	}
	y := []float64{1, 1, 0, 0, 1, 0}
	groups := []int64{101, 101, 101, 101, 202, 202}
	return X, y, groups
}

func TestTrainGBRTOrdersPositivesFirst(t *testing.T) {
	X, y, groups := separableRankingData()
	m, err := TrainGBRT(X, y, groups, []string{"cosine", "noise"}, GBRTParams{Iterations: 50, MaxDepth: 3, MinSamplesLeaf: 1})
	if err != nil {
		t.Fatalf("TrainGBRT: %v", err)
	}
	for i := range X {
		for j := range X {
			if y[i] > y[j] && groups[i] == groups[j] {
				si, sj := m.PredictVector(X[i]), m.PredictVector(X[j])
				if si <= sj {
					t.Errorf("sample %d (label 1) scored %.4f, not above sample %d (label 0) %.4f", i, si, j, sj)
				}
			}
		}
	}
}

func TestGBRTPredictByFeatureMap(t *testing.T) {
	X, y, groups := separableRankingData()
	m, err := TrainGBRT(X, y, groups, []string{"cosine", "noise"}, GBRTParams{Iterations: 20, MinSamplesLeaf: 1})
	if err != nil {
		t.Fatalf("TrainGBRT: %v", err)
	}
	hi, err := m.Predict(map[string]float64{"cosine": 1.0, "noise": 0.5})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	lo, err := m.Predict(map[string]float64{"cosine": 0.0, "noise": 0.5})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if hi <= lo {
		t.Errorf("score for cosine=1.0 (%.4f) should exceed cosine=0.0 (%.4f)", hi, lo)
	}
}

func TestGBRTFeatureImportances(t *testing.T) {
	X, y, groups := separableRankingData()
	m, err := TrainGBRT(X, y, groups, []string{"cosine", "noise"}, GBRTParams{Iterations: 30, MinSamplesLeaf: 1})
	if err != nil {
		t.Fatalf("TrainGBRT: %v", err)
	}
	imp := m.FeatureImportances()
	if math.Abs(imp["cosine"]+imp["noise"]-100) > 1e-6 {
		t.Errorf("importances should sum to 100, got %.4f", imp["cosine"]+imp["noise"])
	}
	if imp["cosine"] <= imp["noise"] {
		t.Errorf("informative feature should dominate: cosine=%.2f noise=%.2f", imp["cosine"], imp["noise"])
	}
	// 常数特征没有可用分裂点
	if imp["noise"] != 0 {
		t.Errorf("constant feature importance = %.4f, want 0", imp["noise"])
	}
}

func TestGBRTRoundTrip(t *testing.T) {
	X, y, groups := separableRankingData()
	m, err := TrainGBRT(X, y, groups, []string{"cosine", "noise"}, GBRTParams{Iterations: 10, MinSamplesLeaf: 1})
	if err != nil {
		t.Fatalf("TrainGBRT: %v", err)
	}
	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	m2, err := LoadGBRT(data)
	if err != nil {
		t.Fatalf("LoadGBRT: %v", err)
	}
	for _, x := range X {
		if got, want := m2.PredictVector(x), m.PredictVector(x); got != want {
			t.Errorf("restored model predicts %.6f, want %.6f", got, want)
		}
	}
}

func TestTrainGBRTInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		X      [][]float64
		y      []float64
		groups []int64
		names  []string
	}{
		{"empty", nil, nil, nil, nil},
		{"label mismatch", [][]float64{{1}}, []float64{1, 0}, []int64{1}, []string{"f"}},
		{"group mismatch", [][]float64{{1}}, []float64{1}, []int64{1, 2}, []string{"f"}},
		{"name mismatch", [][]float64{{1, 2}}, []float64{1}, []int64{1}, []string{"f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TrainGBRT(tt.X, tt.y, tt.groups, tt.names, GBRTParams{})
			if !core.IsInvalidInput(err) {
				t.Errorf("want INVALID_INPUT, got %v", err)
			}
		})
	}
}
