package pair

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// Osterwald-Lenum critical values at 90%, 95% and 99% for a constant in
// the cointegrating relation, indexed by the number of remaining
// non-stationary components (1 or 2).
var (
	johansenTraceCrit = map[int][3]float64{
		1: {2.7055, 3.8415, 6.6349},
		2: {13.4294, 15.4943, 19.9349},
	}
	johansenMaxEigCrit = map[int][3]float64{
		1: {2.7055, 3.8415, 6.6349},
		2: {12.2971, 14.2639, 18.5200},
	}
)

// JohansenResult holds the Johansen cointegration statistics for a pair,
// ordered by descending eigenvalue. Row i of the critical-value tables
// tests the null of rank <= i.
type JohansenResult struct {
	NObs         int          `json:"nobs"`
	Eigenvalues  []float64    `json:"eigenvalues"`
	Eigenvectors [][2]float64 `json:"eigenvectors"`
	TraceStat    []float64    `json:"trace_stat"`
	MaxEigStat   []float64    `json:"max_eig_stat"`
	TraceCrit    [][3]float64 `json:"trace_crit"`
	MaxEigCrit   [][3]float64 `json:"max_eig_crit"`
}

// Confidence levels indexing the critical-value columns.
const (
	Level90 = iota
	Level95
	Level99
)

// Rank returns how many trace-statistic nulls are rejected, in order, at
// the given confidence column.
func (r JohansenResult) Rank(level int) int {
	rank := 0
	for i := range r.TraceStat {
		if r.TraceStat[i] <= r.TraceCrit[i][level] {
			break
		}
		rank++
	}
	return rank
}

// Vector returns the cointegrating vector for the largest eigenvalue.
func (r JohansenResult) Vector() [2]float64 {
	return r.Eigenvectors[0]
}

// Johansen runs the Johansen test on two series with a constant removed
// by demeaning and one lagged difference. Eigenvectors are normalized so
// that v' Skk v = 1 and the first component is non-negative.
func Johansen(a, b []float64) (JohansenResult, error) {
	n := len(a)
	if len(b) != n {
		return JohansenResult{}, fmt.Errorf("%w: johansen series have lengths %d and %d", models.ErrInvalidValue, n, len(b))
	}
	if n < 10 {
		return JohansenResult{}, fmt.Errorf("%w: johansen needs at least 10 observations, got %d", models.ErrInvalidArgument, n)
	}
	const k = 2

	x := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, a[i])
		x.Set(i, 1, b[i])
	}
	demean(x)

	// dx[t] = x[t+1]-x[t]; the regression sample drops one row for the lag.
	m := n - 2
	dx := mat.NewDense(m, k, nil)
	z := mat.NewDense(m, k, nil)
	lx := mat.NewDense(m, k, nil)
	for t := 0; t < m; t++ {
		for j := 0; j < k; j++ {
			dx.Set(t, j, x.At(t+2, j)-x.At(t+1, j))
			z.Set(t, j, x.At(t+1, j)-x.At(t, j))
			lx.Set(t, j, x.At(t+1, j))
		}
	}
	demean(dx)
	demean(z)
	demean(lx)

	r0, err := residuals(dx, z)
	if err != nil {
		return JohansenResult{}, err
	}
	rk, err := residuals(lx, z)
	if err != nil {
		return JohansenResult{}, err
	}

	skk := crossProduct(rk, rk, m)
	sk0 := crossProduct(rk, r0, m)
	s00 := crossProduct(r0, r0, m)

	var s00inv mat.Dense
	if err := s00inv.Inverse(s00); err != nil {
		return JohansenResult{}, fmt.Errorf("%w: singular residual covariance: %v", models.ErrUndefinedResult, err)
	}
	var tmp, sig mat.Dense
	tmp.Mul(sk0, &s00inv)
	sig.Mul(&tmp, sk0.T())

	// Solve sig v = lambda skk v through the Cholesky factor skk = L L'.
	var chol mat.Cholesky
	if ok := chol.Factorize(symmetric(skk)); !ok {
		return JohansenResult{}, fmt.Errorf("%w: level residual covariance is not positive definite", models.ErrUndefinedResult)
	}
	var l, linv mat.TriDense
	chol.LTo(&l)
	if err := linv.InverseTri(&l); err != nil {
		return JohansenResult{}, fmt.Errorf("%w: %v", models.ErrUndefinedResult, err)
	}
	var left, reduced mat.Dense
	left.Mul(&linv, &sig)
	reduced.Mul(&left, linv.T())

	var eig mat.EigenSym
	if ok := eig.Factorize(symmetric(&reduced), true); !ok {
		return JohansenResult{}, fmt.Errorf("%w: eigen decomposition failed", models.ErrUndefinedResult)
	}
	values := eig.Values(nil)
	var w mat.Dense
	eig.VectorsTo(&w)
	var vecs mat.Dense
	vecs.Mul(linv.T(), &w)

	order := []int{0, 1}
	sort.Slice(order, func(i, j int) bool { return values[order[i]] > values[order[j]] })

	res := JohansenResult{NObs: m}
	for _, idx := range order {
		v := [2]float64{vecs.At(0, idx), vecs.At(1, idx)}
		if v[0] < 0 {
			v[0], v[1] = -v[0], -v[1]
		}
		res.Eigenvalues = append(res.Eigenvalues, values[idx])
		res.Eigenvectors = append(res.Eigenvectors, v)
	}

	t := float64(m)
	for i := 0; i < k; i++ {
		trace := 0.0
		for j := i; j < k; j++ {
			trace += math.Log(1 - res.Eigenvalues[j])
		}
		res.TraceStat = append(res.TraceStat, -t*trace)
		res.MaxEigStat = append(res.MaxEigStat, -t*math.Log(1-res.Eigenvalues[i]))
		res.TraceCrit = append(res.TraceCrit, johansenTraceCrit[k-i])
		res.MaxEigCrit = append(res.MaxEigCrit, johansenMaxEigCrit[k-i])
	}
	return res, nil
}

// Johansen tests the pair's closes, primary first.
func (p *Pair) Johansen() (JohansenResult, error) {
	return Johansen(p.p1, p.p2)
}

// CointegrationVector returns the static long-run hedge vector
// (ratio_primary, ratio_secondary) from the Johansen test.
func (p *Pair) CointegrationVector() ([2]float64, error) {
	res, err := p.Johansen()
	if err != nil {
		return [2]float64{}, err
	}
	return res.Vector(), nil
}

// crossProduct returns a'b/n.
func crossProduct(a, b *mat.Dense, n int) *mat.Dense {
	var out mat.Dense
	out.Mul(a.T(), b)
	out.Scale(1/float64(n), &out)
	return &out
}

// symmetric copies the average of m and m' into a SymDense.
func symmetric(m *mat.Dense) *mat.SymDense {
	r, _ := m.Dims()
	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}
