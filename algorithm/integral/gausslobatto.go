// Package integral - 自适应数值积分。
package integral

import (
	"fmt"
	"math"

	"github.com/wyfcoding/marketmodels/xerrors"
)

// Lobatto 节点与 Kronrod 扩展节点 (Gander & Gautschi, 2000)。
var (
	alpha = math.Sqrt(2.0 / 3.0)
	beta  = 1.0 / math.Sqrt(5.0)
)

const (
	x1 = 0.94288241569547971906
	x2 = 0.64185334234578130578
	x3 = 0.23638319966214988028

	// epsilon 为 float64 的机器精度。
	epsilon = 2.220446049250313e-16
)

// GaussLobatto 自适应 Gauss-Lobatto 积分器。
// 零值不可用，请使用 NewGaussLobatto 构造；构造后只读，可被多个 goroutine 共享。
type GaussLobatto struct {
	maxEvaluations         int
	absAccuracy            float64
	relAccuracy            float64 // <= 0 表示未设置
	useConvergenceEstimate bool
}

// Option 定义积分器选项。
type Option func(*GaussLobatto)

// WithRelativeAccuracy 设置相对精度，实际容差取绝对精度与相对精度的较小者。
func WithRelativeAccuracy(rel float64) Option {
	return func(g *GaussLobatto) {
		g.relAccuracy = rel
	}
}

// WithConvergenceEstimate 是否使用收敛速度估计修正容差，默认开启。
func WithConvergenceEstimate(enabled bool) Option {
	return func(g *GaussLobatto) {
		g.useConvergenceEstimate = enabled
	}
}

// NewGaussLobatto 创建积分器。maxEvaluations 为函数求值次数上限，absAccuracy 为绝对精度。
func NewGaussLobatto(maxEvaluations int, absAccuracy float64, opts ...Option) (*GaussLobatto, error) {
	if maxEvaluations <= 0 {
		return nil, fmt.Errorf("%w: max evaluations %d must be positive", xerrors.ErrInvalidInput, maxEvaluations)
	}
	if !(absAccuracy > 0) {
		return nil, fmt.Errorf("%w: absolute accuracy %g must be positive", xerrors.ErrInvalidInput, absAccuracy)
	}
	g := &GaussLobatto{
		maxEvaluations:         maxEvaluations,
		absAccuracy:            absAccuracy,
		useConvergenceEstimate: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// MaxEvaluations 返回求值次数上限。
func (g *GaussLobatto) MaxEvaluations() int { return g.maxEvaluations }

// AbsoluteAccuracy 返回绝对精度。
func (g *GaussLobatto) AbsoluteAccuracy() float64 { return g.absAccuracy }

// Result 是一次积分的结果。
type Result struct {
	Value       float64
	Evaluations int
}

// Integrate 计算 f 在 [a, b] 上的积分。a > b 时返回相反数。
// 超出求值上限返回 xerrors.ErrMaxEvaluations，此时 Value 不可用。
func (g *GaussLobatto) Integrate(f func(float64) float64, a, b float64) (Result, error) {
	if a == b {
		return Result{}, nil
	}
	if a > b {
		res, err := g.Integrate(f, b, a)
		res.Value = -res.Value
		return res, err
	}

	run := &lobattoRun{g: g, f: f}
	tol, err := run.absTolerance(a, b)
	if err != nil {
		return Result{Evaluations: run.evaluations}, err
	}
	fa, fb := f(a), f(b)
	run.evaluations += 2
	v, err := run.step(a, b, fa, fb, tol)
	return Result{Value: v, Evaluations: run.evaluations}, err
}

// lobattoRun 保存单次积分的求值计数，使 GaussLobatto 本身保持无状态。
type lobattoRun struct {
	g           *GaussLobatto
	f           func(float64) float64
	evaluations int
}

func (r *lobattoRun) absTolerance(a, b float64) (float64, error) {
	f := r.f
	relTol := math.Max(r.g.relAccuracy, epsilon)

	m := (a + b) / 2
	h := (b - a) / 2
	y1 := f(a)
	y3 := f(m - alpha*h)
	y5 := f(m - beta*h)
	y7 := f(m)
	y9 := f(m + beta*h)
	y11 := f(m + alpha*h)
	y13 := f(b)

	f1 := f(m - x1*h)
	f2 := f(m + x1*h)
	f3 := f(m - x2*h)
	f4 := f(m + x2*h)
	f5 := f(m - x3*h)
	f6 := f(m + x3*h)
	r.evaluations += 13

	acc := h * (0.0158271919734801831*(y1+y13) +
		0.0942738402188500455*(f1+f2) +
		0.1550719873365853963*(y3+y11) +
		0.1888215739601824544*(f3+f4) +
		0.1997734052268585268*(y5+y9) +
		0.2249264653333395270*(f5+f6) +
		0.2426110719014077338*y7)

	if acc == 0 && (f1 != 0 || f2 != 0 || f3 != 0 || f4 != 0 || f5 != 0 || f6 != 0) {
		return 0, fmt.Errorf("%w: cannot derive absolute accuracy from relative accuracy", xerrors.ErrMathConvergence)
	}

	ratio := 1.0
	if r.g.useConvergenceEstimate {
		integral2 := (h / 6) * (y1 + y13 + 5*(y5+y9))
		integral1 := (h / 1470) * (77*(y1+y13) + 432*(y3+y11) + 625*(y5+y9) + 672*y7)
		if d := math.Abs(integral2 - acc); d != 0 {
			ratio = math.Abs(integral1-acc) / d
		}
		if ratio == 0 || ratio > 1 {
			ratio = 1
		}
	}

	if r.g.relAccuracy > 0 {
		return math.Min(r.g.absAccuracy, acc*relTol) / (ratio * epsilon), nil
	}
	return r.g.absAccuracy / (ratio * epsilon), nil
}

// step 在 [a, b] 上比较 4 点 Lobatto 与 7 点 Kronrod 结果，不满足容差时六等分递归。
// acc 已被放大为 tolerance/eps，acc+(i1-i2)==acc 即误差低于容差。
func (r *lobattoRun) step(a, b, fa, fb, acc float64) (float64, error) {
	if r.evaluations >= r.g.maxEvaluations {
		return 0, fmt.Errorf("%w: %d evaluations on [%g, %g]", xerrors.ErrMaxEvaluations, r.evaluations, a, b)
	}

	h := (b - a) / 2
	m := (a + b) / 2

	mll := m - alpha*h
	ml := m - beta*h
	mr := m + beta*h
	mrr := m + alpha*h

	fmll := r.f(mll)
	fml := r.f(ml)
	fm := r.f(m)
	fmr := r.f(mr)
	fmrr := r.f(mrr)
	r.evaluations += 5

	integral2 := (h / 6) * (fa + fb + 5*(fml+fmr))
	integral1 := (h / 1470) * (77*(fa+fb) + 432*(fmll+fmrr) + 625*(fml+fmr) + 672*fm)

	dist := acc + (integral1 - integral2)
	if dist == acc || mll <= a || b <= mrr {
		if !(m > a && b > m) {
			return 0, fmt.Errorf("%w: interval [%g, %g] contains no more machine numbers", xerrors.ErrMathConvergence, a, b)
		}
		return integral1, nil
	}

	type segment struct{ a, b, fa, fb float64 }
	segments := [6]segment{
		{a, mll, fa, fmll},
		{mll, ml, fmll, fml},
		{ml, m, fml, fm},
		{m, mr, fm, fmr},
		{mr, mrr, fmr, fmrr},
		{mrr, b, fmrr, fb},
	}
	var sum float64
	for _, s := range segments {
		v, err := r.step(s.a, s.b, s.fa, s.fb, acc)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum, nil
}
