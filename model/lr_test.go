package model

import (
	"testing"

	"github.com/rushteam/shoprec/core"
)

func TestTrainLogRegSeparable(t *testing.T) {
	X := [][]float64{{0}, {0.5}, {1}, {2.5}, {3}, {3.5}}
	y := []float64{0, 0, 0, 1, 1, 1}
	m, err := TrainLogReg(X, y, []string{"x"}, LogRegParams{})
	if err != nil {
		t.Fatalf("TrainLogReg: %v", err)
	}
	if p := m.PredictVector([]float64{3.5}); p <= 0.5 {
		t.Errorf("P(x=3.5) = %.4f, want > 0.5", p)
	}
	if p := m.PredictVector([]float64{0}); p >= 0.5 {
		t.Errorf("P(x=0) = %.4f, want < 0.5", p)
	}
}

// 类别失衡时 balanced 加权仍应学到决策边界，而不是总预测多数类。
func TestTrainLogRegImbalanced(t *testing.T) {
	X := [][]float64{{0}, {0.2}, {0.4}, {0.6}, {0.8}, {1.0}, {1.2}, {5}}
	y := []float64{0, 0, 0, 0, 0, 0, 0, 1}
	m, err := TrainLogReg(X, y, nil, LogRegParams{})
	if err != nil {
		t.Fatalf("TrainLogReg: %v", err)
	}
	if p := m.PredictVector([]float64{5}); p <= 0.5 {
		t.Errorf("minority positive P = %.4f, want > 0.5", p)
	}
}

func TestTrainLogRegSingleClass(t *testing.T) {
	X := [][]float64{{1}, {2}}
	y := []float64{1, 1}
	_, err := TrainLogReg(X, y, nil, LogRegParams{})
	if !core.IsInsufficientData(err) {
		t.Errorf("want INSUFFICIENT_DATA, got %v", err)
	}
}

func TestLogRegPredictByFeatureMap(t *testing.T) {
	X := [][]float64{{0, 1}, {1, 1}, {2, 1}, {3, 1}}
	y := []float64{0, 0, 1, 1}
	m, err := TrainLogReg(X, y, []string{"score", "bias_term"}, LogRegParams{})
	if err != nil {
		t.Fatalf("TrainLogReg: %v", err)
	}
	hi, err := m.Predict(map[string]float64{"score": 3, "bias_term": 1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	lo, err := m.Predict(map[string]float64{"score": 0, "bias_term": 1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if hi <= lo {
		t.Errorf("P(score=3)=%.4f should exceed P(score=0)=%.4f", hi, lo)
	}
}

func TestLogRegPredictWithoutNames(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}}
	y := []float64{0, 0, 1, 1}
	m, err := TrainLogReg(X, y, nil, LogRegParams{})
	if err != nil {
		t.Fatalf("TrainLogReg: %v", err)
	}
	if _, err := m.Predict(map[string]float64{"x": 1}); err == nil {
		t.Error("Predict without feature names should fail")
	}
}

func TestLogRegRoundTrip(t *testing.T) {
	X := [][]float64{{0, 2}, {1, 2}, {2, 2}, {3, 2}}
	y := []float64{0, 0, 1, 1}
	m, err := TrainLogReg(X, y, []string{"a", "b"}, LogRegParams{Iterations: 50})
	if err != nil {
		t.Fatalf("TrainLogReg: %v", err)
	}
	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	m2, err := LoadLogReg(data)
	if err != nil {
		t.Fatalf("LoadLogReg: %v", err)
	}
	for _, x := range X {
		if got, want := m2.PredictVector(x), m.PredictVector(x); got != want {
			t.Errorf("restored model predicts %.6f, want %.6f", got, want)
		}
	}
}
