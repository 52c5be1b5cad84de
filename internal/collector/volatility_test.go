package collector

import (
	"testing"

	"MarketScout/internal/model"
)

func TestClassifyVolatility(t *testing.T) {
	tests := []struct {
		v      float64
		regime model.VolRegime
		label  string
	}{
		{9.5, model.VolLow, "Complacency"},
		{14.99, model.VolLow, "Complacency"},
		{15, model.VolNormal, "Balanced"},
		{19.99, model.VolNormal, "Balanced"},
		{20, model.VolElevated, "Elevated Risk"},
		{29.99, model.VolElevated, "Elevated Risk"},
		{30, model.VolHigh, "High Fear"},
		{82.7, model.VolHigh, "High Fear"},
	}
	for _, tt := range tests {
		regime, label := ClassifyVolatility(tt.v)
		if regime != tt.regime || label != tt.label {
			t.Errorf("ClassifyVolatility(%v) = %s/%s, want %s/%s", tt.v, regime, label, tt.regime, tt.label)
		}
	}
}

func TestNewVolIndexReading(t *testing.T) {
	if NewVolIndexReading(nil) != nil {
		t.Error("nil quote should give no reading")
	}
	if NewVolIndexReading(&model.Quote{Ticker: "VIX"}) != nil {
		t.Error("quote without a value should give no reading")
	}

	r := NewVolIndexReading(&model.Quote{Ticker: "VIX", Price: 13.004, Source: "finnhub"})
	if r == nil {
		t.Fatal("expected reading")
	}
	if r.Value != 13 || r.Change != 0 || r.ChangePercent != 0 {
		t.Errorf("missing change values should default to 0: %+v", r)
	}
	if r.Regime != model.VolLow || r.Source != "finnhub" {
		t.Errorf("unexpected reading %+v", r)
	}
}

func TestRound2(t *testing.T) {
	tests := map[float64]float64{
		1.005:  1.01,
		-2.345: -2.35,
		18.456: 18.46,
		7:      7,
	}
	for in, want := range tests {
		if got := round2(in); got != want {
			t.Errorf("round2(%v) = %v, want %v", in, got, want)
		}
	}
}
