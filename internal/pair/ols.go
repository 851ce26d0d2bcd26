package pair

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// olsResult is a multiple regression fit without implicit intercept.
type olsResult struct {
	beta   []float64
	stderr []float64
	ssr    float64
	nobs   int
	k      int
}

// tValue returns beta[i]/stderr[i].
func (r olsResult) tValue(i int) float64 {
	return r.beta[i] / r.stderr[i]
}

// aic is the Akaike criterion of a Gaussian linear model with k regressors.
func (r olsResult) aic() float64 {
	n := float64(r.nobs)
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(r.ssr/n) + 1)
	return -2*llf + 2*float64(r.k)
}

// fitOLS regresses y on the columns of x.
func fitOLS(y []float64, x *mat.Dense) (olsResult, error) {
	n, k := x.Dims()
	if n != len(y) {
		return olsResult{}, fmt.Errorf("%w: regression has %d rows and %d responses", models.ErrInvalidValue, n, len(y))
	}
	if n <= k {
		return olsResult{}, fmt.Errorf("%w: regression needs more than %d observations, got %d", models.ErrInvalidArgument, k, n)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return olsResult{}, fmt.Errorf("%w: singular design matrix: %v", models.ErrUndefinedResult, err)
	}

	yv := mat.NewVecDense(n, y)
	var xty mat.VecDense
	xty.MulVec(x.T(), yv)
	var b mat.VecDense
	b.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(x, &b)
	ssr := 0.0
	for i := 0; i < n; i++ {
		e := y[i] - fitted.AtVec(i)
		ssr += e * e
	}

	s2 := ssr / float64(n-k)
	res := olsResult{
		beta:   make([]float64, k),
		stderr: make([]float64, k),
		ssr:    ssr,
		nobs:   n,
		k:      k,
	}
	for i := 0; i < k; i++ {
		res.beta[i] = b.AtVec(i)
		res.stderr[i] = math.Sqrt(s2 * inv.At(i, i))
	}
	return res, nil
}

// residuals returns y - x*beta where beta is the least-squares solution of
// x*beta = y, column by column.
func residuals(y, x *mat.Dense) (*mat.Dense, error) {
	var beta mat.Dense
	if err := beta.Solve(x, y); err != nil {
		return nil, fmt.Errorf("%w: least squares: %v", models.ErrUndefinedResult, err)
	}
	var fit mat.Dense
	fit.Mul(x, &beta)
	var r mat.Dense
	r.Sub(y, &fit)
	return &r, nil
}

// demean subtracts each column's mean in place.
func demean(m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += m.At(i, j)
		}
		mu := sum / float64(r)
		for i := 0; i < r; i++ {
			m.Set(i, j, m.At(i, j)-mu)
		}
	}
}
