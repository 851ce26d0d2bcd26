package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RollingMeanStd returns the mean and sample standard deviation of each
// trailing window of the given size, the window ending at (and including)
// index t. The first window-1 entries are NaN, as is any window holding a
// NaN.
func RollingMeanStd(x []float64, window int) (mean, std []float64) {
	n := len(x)
	mean = make([]float64, n)
	std = make([]float64, n)
	for t := 0; t < n; t++ {
		mean[t], std[t] = math.NaN(), math.NaN()
		if window <= 0 || t < window-1 {
			continue
		}
		w := x[t-window+1 : t+1]
		if hasNaN(w) {
			continue
		}
		mean[t], std[t] = stat.MeanStdDev(w, nil)
	}
	return mean, std
}

// ZScores standardizes spread against its rolling mean and sample
// standard deviation. A zero deviation yields NaN rather than ±Inf.
func ZScores(spread []float64, lookback int) []float64 {
	mean, std := RollingMeanStd(spread, lookback)
	z := make([]float64, len(spread))
	for t := range z {
		if math.IsNaN(std[t]) || std[t] == 0 {
			z[t] = math.NaN()
			continue
		}
		z[t] = (spread[t] - mean[t]) / std[t]
	}
	return z
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
