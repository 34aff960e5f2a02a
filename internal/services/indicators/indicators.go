package indicators

import (
	"math"

	"FxPipe/internal/domain/models"
)

// Closes extracts close prices.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// EMA seeds with the first value and applies k = 2/(period+1).
// It returns one output per input; an empty input yields nil.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// TrueRange is the largest of the bar's range and its distance from prevClose.
func TrueRange(b models.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

// ATR uses Wilder smoothing. The first value is the first bar's true range,
// measured against its own close.
func ATR(bars []models.Bar, period int) []float64 {
	if len(bars) == 0 {
		return nil
	}
	out := make([]float64, len(bars))
	prevClose := bars[0].Close
	for i, b := range bars {
		tr := TrueRange(b, prevClose)
		if i == 0 {
			out[i] = tr
		} else {
			out[i] = (out[i-1]*float64(period-1) + tr) / float64(period)
		}
		prevClose = b.Close
	}
	return out
}

// SwingLows returns indices whose low is the minimum of [i-left, i+right].
func SwingLows(bars []models.Bar, left, right int) []int {
	return swings(bars, left, right, func(b models.Bar) float64 { return b.Low }, func(a, m float64) bool { return a < m })
}

// SwingHighs returns indices whose high is the maximum of [i-left, i+right].
func SwingHighs(bars []models.Bar, left, right int) []int {
	return swings(bars, left, right, func(b models.Bar) float64 { return b.High }, func(a, m float64) bool { return a > m })
}

func swings(bars []models.Bar, left, right int, val func(models.Bar) float64, better func(a, m float64) bool) []int {
	var out []int
	for i := left; i < len(bars)-right; i++ {
		extreme := val(bars[i-left])
		for j := i - left + 1; j <= i+right; j++ {
			if v := val(bars[j]); better(v, extreme) {
				extreme = v
			}
		}
		if val(bars[i]) == extreme {
			out = append(out, i)
		}
	}
	return out
}
