package indicators

import (
	"math"
	"testing"

	"FxPipe/internal/domain/models"
)

func bar(h, l, c float64) models.Bar { return models.Bar{Open: c, High: h, Low: l, Close: c} }

func TestEMASingleValue(t *testing.T) {
	got := EMA([]float64{5}, 10)
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("EMA([5],10) = %v, want [5]", got)
	}
}

func TestEMARecurrence(t *testing.T) {
	got := EMA([]float64{1, 2, 3}, 3) // k = 0.5
	want := []float64{1, 1.5, 2.25}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("EMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEMADeterministic(t *testing.T) {
	in := []float64{1.1, 1.2, 1.15, 1.3, 1.25}
	a, b := EMA(in, 3), EMA(in, 3)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("EMA not deterministic at %d", i)
		}
	}
}

func TestATRWilder(t *testing.T) {
	bars := []models.Bar{bar(12, 10, 11), bar(13, 11, 12), bar(15, 12, 14)}
	got := ATR(bars, 2)
	// TR: 2, max(2, |13-11|, |11-11|)=2, max(3, |15-12|, 0)=3
	want := []float64{2, 2, 2.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("ATR[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if again := ATR(bars, 2); again[2] != got[2] {
		t.Fatalf("ATR not deterministic")
	}
}

func TestATRUsesPreviousClose(t *testing.T) {
	bars := []models.Bar{bar(10, 9, 9), bar(12, 11.5, 12)}
	got := ATR(bars, 1)
	if got[1] != 3 { // |12 - 9|
		t.Fatalf("ATR[1] = %v, want 3", got[1])
	}
}

func TestTrueRange(t *testing.T) {
	b := bar(1.301, 1.299, 1.3)
	if got := TrueRange(b, 1.1); math.Abs(got-0.201) > 1e-12 {
		t.Fatalf("gap up true range = %v, want 0.201", got)
	}
	if got := TrueRange(b, 1.3); math.Abs(got-0.002) > 1e-12 {
		t.Fatalf("inside true range = %v, want 0.002", got)
	}
}

func TestSwings(t *testing.T) {
	lows := []float64{5, 4, 3, 4, 5, 4, 2, 4, 5}
	bars := make([]models.Bar, len(lows))
	for i, l := range lows {
		bars[i] = bar(l+1, l, l+0.5)
	}
	got := SwingLows(bars, 2, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Fatalf("SwingLows = %v, want [2 6]", got)
	}

	highs := SwingHighs(bars, 2, 2)
	for _, i := range highs {
		if i < 2 || i > len(bars)-3 {
			t.Fatalf("swing index %d outside window bounds", i)
		}
	}
}

func TestSwingsShortSeries(t *testing.T) {
	bars := []models.Bar{bar(2, 1, 1.5), bar(3, 2, 2.5)}
	if got := SwingHighs(bars, 2, 2); len(got) != 0 {
		t.Fatalf("expected no swings, got %v", got)
	}
}
