package pair

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// MinCADFObservations is the shortest series CADF accepts.
const MinCADFObservations = 20

// MacKinnon (2010) response-surface coefficients for the Engle-Granger
// test with a constant and two variables: crit = b0 + b1/T + b2/T^2.
var egCritCoefficients = map[string][3]float64{
	"1%":  {-3.89644, -10.9519, -22.527},
	"5%":  {-3.33613, -6.1101, -6.823},
	"10%": {-3.04445, -4.2412, -2.720},
}

// CADFResult is the outcome of an Engle-Granger cointegration test.
type CADFResult struct {
	Statistic  float64            `json:"statistic"`
	UsedLag    int                `json:"used_lag"`
	NObs       int                `json:"nobs"`
	Intercept  float64            `json:"intercept"`
	HedgeRatio float64            `json:"hedge_ratio"`
	Critical   map[string]float64 `json:"critical_values"`
}

// Cointegrated reports whether the statistic rejects the unit-root null at
// the given level ("1%", "5%" or "10%").
func (r CADFResult) Cointegrated(level string) bool {
	c, ok := r.Critical[level]
	return ok && r.Statistic < c
}

// CADF runs the cointegrated augmented Dickey-Fuller test of y on x: fit
// y = a + b*x by OLS, then test the residuals for a unit root with no
// deterministic term. The lag order is chosen by AIC up to
// int(ceil(12*(n/100)^(1/4))).
func CADF(y, x []float64) (CADFResult, error) {
	n := len(y)
	if len(x) != n {
		return CADFResult{}, fmt.Errorf("%w: cadf series have lengths %d and %d", models.ErrInvalidValue, n, len(x))
	}
	if n < MinCADFObservations {
		return CADFResult{}, fmt.Errorf("%w: cadf needs at least %d observations, got %d",
			models.ErrInvalidArgument, MinCADFObservations, n)
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	resid := make([]float64, n)
	for i := range y {
		resid[i] = y[i] - alpha - beta*x[i]
	}

	tstat, lag, nobs, err := adfNoConstant(resid)
	if err != nil {
		return CADFResult{}, err
	}

	res := CADFResult{
		Statistic:  tstat,
		UsedLag:    lag,
		NObs:       nobs,
		Intercept:  alpha,
		HedgeRatio: beta,
		Critical:   make(map[string]float64, len(egCritCoefficients)),
	}
	t := float64(n - 1)
	for level, c := range egCritCoefficients {
		res.Critical[level] = c[0] + c[1]/t + c[2]/(t*t)
	}
	return res, nil
}

// CADF tests the pair's closes, primary on secondary.
func (p *Pair) CADF() (CADFResult, error) {
	return CADF(p.p1, p.p2)
}

// adfNoConstant returns the ADF t-statistic of x with AIC lag selection.
func adfNoConstant(x []float64) (float64, int, int, error) {
	n := len(x)
	maxlag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	if limit := n/2 - 1; maxlag > limit {
		maxlag = limit
	}
	if maxlag < 0 {
		return 0, 0, 0, fmt.Errorf("%w: series too short for adf", models.ErrInvalidArgument)
	}

	dx := make([]float64, n-1)
	for i := 1; i < n; i++ {
		dx[i-1] = x[i] - x[i-1]
	}

	// Every candidate is fit on the sample left after maxlag lags so that
	// AIC values are comparable.
	bestLag, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxlag; lag++ {
		y, design := adfDesign(x, dx, maxlag, lag+1)
		fit, err := fitOLS(y, design)
		if err != nil {
			return 0, 0, 0, err
		}
		if a := fit.aic(); a < bestAIC {
			bestAIC, bestLag = a, lag
		}
	}

	y, design := adfDesign(x, dx, bestLag, bestLag+1)
	fit, err := fitOLS(y, design)
	if err != nil {
		return 0, 0, 0, err
	}
	return fit.tValue(0), bestLag, fit.nobs, nil
}

// adfDesign builds the regression of dx[t] on x[t-1] and cols-1 lagged
// differences, dropping the first trim differences.
func adfDesign(x, dx []float64, trim, cols int) ([]float64, *mat.Dense) {
	nobs := len(dx) - trim
	y := make([]float64, nobs)
	design := mat.NewDense(nobs, cols, nil)
	for r := 0; r < nobs; r++ {
		t := trim + r
		y[r] = dx[t]
		design.Set(r, 0, x[t])
		for j := 1; j < cols; j++ {
			design.Set(r, j, dx[t-j])
		}
	}
	return y, design
}
