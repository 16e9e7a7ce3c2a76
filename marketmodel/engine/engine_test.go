package engine

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/marketmodels/algorithm/finance"
	"github.com/wyfcoding/marketmodels/logging"
	"github.com/wyfcoding/marketmodels/marketmodel/brownian"
	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
	"github.com/wyfcoding/marketmodels/marketmodel/evolver"
	"github.com/wyfcoding/marketmodels/marketmodel/pathwise"
	"github.com/wyfcoding/marketmodels/metrics"
	"github.com/wyfcoding/marketmodels/xerrors"
)

var (
	rateTimes    = []float64{0.5, 1.0, 1.5, 2.0, 2.5}
	accruals     = []float64{0.5, 0.5, 0.5, 0.5}
	paymentTimes = []float64{1.0, 1.5, 2.0, 2.5}
	forwards     = []float64{0.030, 0.035, 0.040, 0.045}
)

const strike = 0.035

func quietLogger() *logging.Logger {
	return logging.NewFromConfig(logging.Config{Service: "test", Module: "engine", Level: "error", Output: io.Discard})
}

func newModel(t *testing.T, vol float64) *evolver.Model {
	t.Helper()
	d, err := evolution.NewDescription(rateTimes, nil)
	require.NoError(t, err)
	vols := []float64{vol, vol, vol, vol}
	corr := [][]float64{
		{1.0, 0.9, 0.8, 0.7},
		{0.9, 1.0, 0.9, 0.8},
		{0.8, 0.9, 1.0, 0.9},
		{0.7, 0.8, 0.9, 1.0},
	}
	m, err := evolver.NewModel(d, forwards, vols, corr)
	require.NoError(t, err)
	return m
}

func run(t *testing.T, m *evolver.Model, p pathwise.MultiProduct, paths int, opts ...Option) *Result {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e, err := New(m, p, brownian.NewPseudoRandomFactory(20240601), opts...)
	require.NoError(t, err)
	res, err := e.Run(context.Background(), paths)
	require.NoError(t, err)
	return res
}

func TestZeroVolatilityIsDeterministic(t *testing.T) {
	m := newModel(t, 0)
	p, err := pathwise.NewMultiCaplet(rateTimes, accruals, paymentTimes, []float64{strike, strike, strike, strike})
	require.NoError(t, err)

	const p0 = 0.985
	res := run(t, m, p, 10, WithInitialNumeraireValue(p0), WithBatchSize(3))
	assert.Equal(t, 10, res.Paths)

	discount := p0
	for i, f := range forwards {
		discount /= 1 + accruals[i]*f
		want := discount * accruals[i] * math.Max(f-strike, 0)
		assert.InDelta(t, want, res.Values[i], 1e-14, "caplet %d", i)
		assert.InDelta(t, 0, res.StdErrors[i], 1e-14)
	}

	// 只有价内单元对自身的远期利率有敏感度。
	assert.Zero(t, res.Sensitivities[0][0])
	assert.InDelta(t, p0*accruals[3]/((1+accruals[0]*forwards[0])*(1+accruals[1]*forwards[1])*(1+accruals[2]*forwards[2])*(1+accruals[3]*forwards[3])),
		res.Sensitivities[3][3], 1e-14)
}

func TestPlainAndDeflatedCapletsAgree(t *testing.T) {
	m := newModel(t, 0.2)
	plain, err := pathwise.NewMultiCaplet(rateTimes, accruals, paymentTimes, []float64{strike, strike, strike, strike})
	require.NoError(t, err)
	deflated, err := pathwise.NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	require.NoError(t, err)

	a := run(t, m, plain, 2000, WithBatchSize(500))
	b := run(t, m, deflated, 2000, WithBatchSize(500))
	assert.InDeltaSlice(t, a.Values, b.Values, 1e-12)
	assert.InDeltaSlice(t, a.StdErrors, b.StdErrors, 1e-12)
}

func TestCapEqualsSumOfCaplets(t *testing.T) {
	m := newModel(t, 0.2)
	caplets, err := pathwise.NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	require.NoError(t, err)
	caps, err := pathwise.NewMultiDeflatedCap(rateTimes, accruals, paymentTimes, strike,
		[]pathwise.CapRange{{Start: 0, End: 4}, {Start: 1, End: 3}})
	require.NoError(t, err)

	single := run(t, m, caplets, 3000)
	agg := run(t, m, caps, 3000)

	assert.InDelta(t, single.Values[0]+single.Values[1]+single.Values[2]+single.Values[3], agg.Values[0], 1e-12)
	assert.InDelta(t, single.Values[1]+single.Values[2], agg.Values[1], 1e-12)
	assert.InDelta(t, single.Sensitivities[2][2], agg.Sensitivities[0][2], 1e-12)
}

func TestResultsIndependentOfWorkers(t *testing.T) {
	m := newModel(t, 0.2)
	p, err := pathwise.NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	require.NoError(t, err)

	one := run(t, m, p, 4000, WithWorkers(1), WithBatchSize(250))
	many := run(t, m, p, 4000, WithWorkers(8), WithBatchSize(250))
	assert.Equal(t, one, many)
}

func TestCapletsMatchBlack(t *testing.T) {
	const vol = 0.2
	m := newModel(t, vol)
	p, err := pathwise.NewMultiCaplet(rateTimes, accruals, paymentTimes, []float64{strike, strike, strike, strike})
	require.NoError(t, err)

	res := run(t, m, p, 40000, WithBatchSize(5000))

	discount := 1.0
	for i, f := range forwards {
		discount /= 1 + accruals[i]*f
		want, err := finance.BlackCaplet(f, strike, vol, rateTimes[i], accruals[i], discount)
		require.NoError(t, err)
		assert.InDelta(t, want, res.Values[i], 4*res.StdErrors[i]+1e-6, "caplet %d", i)
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	m := newModel(t, 0.1)
	p, err := pathwise.NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	require.NoError(t, err)

	reg := metrics.NewMetrics("engine-test")
	run(t, m, p, 250, WithMetrics(reg), WithName("caplets"), WithBatchSize(100))

	sim := reg.Simulation()
	assert.Equal(t, 250.0, testutil.ToFloat64(sim.PathsTotal.WithLabelValues("caplets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sim.RunsTotal.WithLabelValues("caplets", "ok")))
	assert.Positive(t, testutil.ToFloat64(sim.CashFlowsTotal.WithLabelValues("caplets")))
}

func TestRunHonoursCancellation(t *testing.T) {
	m := newModel(t, 0.2)
	p, err := pathwise.NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	require.NoError(t, err)
	e, err := New(m, p, brownian.NewPseudoRandomFactory(1), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, 1000)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, xerrors.ErrDeadlineExceeded, xerrors.TypeOf(err))
}

// failingFactory 创建生成器总是失败。
type failingFactory struct{ err error }

func (f failingFactory) Create(int, int) (brownian.Generator, error) { return nil, f.err }

func TestRunClassifiesFailures(t *testing.T) {
	m := newModel(t, 0.2)
	p, err := pathwise.NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	require.NoError(t, err)

	plain := errors.New("entropy source closed")
	e, err := New(m, p, failingFactory{err: plain}, WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = e.Run(context.Background(), 10)
	require.ErrorIs(t, err, plain)
	assert.Equal(t, xerrors.ErrInternal, xerrors.TypeOf(err))

	e, err = New(m, p, failingFactory{err: xerrors.ErrIncompatibleGenerator}, WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = e.Run(context.Background(), 10)
	require.ErrorIs(t, err, xerrors.ErrIncompatibleGenerator)
	assert.Equal(t, xerrors.ErrInvalidArg, xerrors.TypeOf(err))
}

func TestNewValidation(t *testing.T) {
	m := newModel(t, 0.2)
	factory := brownian.NewPseudoRandomFactory(1)

	other, err := pathwise.NewMultiCaplet([]float64{0.5, 1.0, 1.5}, []float64{0.5, 0.5}, []float64{1.0, 1.5}, []float64{0.03, 0.03})
	require.NoError(t, err)
	_, err = New(m, other, factory)
	assert.ErrorIs(t, err, xerrors.ErrScheduleMismatch)

	p, err := pathwise.NewMultiCaplet(rateTimes, accruals, []float64{0.25, 1.5, 2.0, 2.5}, []float64{0.03, 0.03, 0.03, 0.03})
	require.NoError(t, err)
	_, err = New(m, p, factory)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	p, err = pathwise.NewMultiCaplet(rateTimes, accruals, paymentTimes, []float64{0.03, 0.03, 0.03, 0.03})
	require.NoError(t, err)
	_, err = New(m, p, factory, WithInitialNumeraireValue(0))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	e, err := New(m, p, factory, WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = e.Run(context.Background(), 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestDiscounterInterpolation(t *testing.T) {
	d, err := evolution.NewDescription(rateTimes, nil)
	require.NoError(t, err)
	s := evolution.NewLMMCurveState(d)
	require.NoError(t, s.SetOnForwardRates(forwards, 0))

	at := newDiscounter(1.5, rateTimes)
	assert.Equal(t, 2, at.before)
	assert.InDelta(t, s.DiscountRatio(2, 0), at.numeraireBonds(s, 0), 1e-15)

	last := newDiscounter(2.5, rateTimes)
	assert.InDelta(t, s.DiscountRatio(4, 1), last.numeraireBonds(s, 1), 1e-15)

	mid := newDiscounter(1.25, rateTimes)
	assert.Equal(t, 1, mid.before)
	assert.InDelta(t, 0.5, mid.beforeWeight, 1e-15)
	assert.InDelta(t, math.Sqrt(s.DiscountRatio(1, 0)*s.DiscountRatio(2, 0)), mid.numeraireBonds(s, 0), 1e-15)
}

func TestSummary(t *testing.T) {
	r := &Result{Values: []float64{0.0012345678, 0.5}, StdErrors: []float64{0.0000123456, 0}}
	rows := r.Summary(6)
	require.Len(t, rows, 2)
	assert.Equal(t, "0.001235", rows[0].Value.String())
	assert.Equal(t, "0.000012", rows[0].StdError.String())
	assert.Equal(t, "0.5012345678", r.Total().String())
}

func TestGridStartingAtZeroCannotBePriced(t *testing.T) {
	grid := []float64{0, 0.5, 1.0}
	d, err := evolution.NewDescription(grid, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, d.FirstAliveRate())

	m, err := evolver.NewModel(d, []float64{0.05, 0.05}, []float64{0, 0}, nil)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = pathwise.NewMultiCaplet(grid, []float64{0.5, 0.5}, []float64{0.5, 1.0}, []float64{0.01, 0.01})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = pathwise.NewMultiDeflatedCapletWithStrike(grid, []float64{0.5, 0.5}, []float64{0.5, 1.0}, -0.01)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func constantBatches(nProducts, nRates int, paths ...[]float64) []*batchResult {
	out := make([]*batchResult, len(paths))
	for i, v := range paths {
		b := &batchResult{index: i, weights: make([]float64, len(v))}
		for j := range b.weights {
			b.weights[j] = 1
		}
		for range nProducts {
			b.values = append(b.values, v)
			b.sensSum = append(b.sensSum, make([]float64, nRates))
		}
		out[i] = b
	}
	return out
}

func TestAntitheticStdErrorUsesPairAverages(t *testing.T) {
	m := newModel(t, 0.2)
	p, err := pathwise.NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	require.NoError(t, err)

	batches := constantBatches(4, 4, []float64{1, 3, 2, 2}, []float64{4, 0})

	independent := &Engine{model: m, product: p, opts: defaultOptions()}
	res := independent.aggregate(batches, 6)
	assert.InDelta(t, 2.0, res.Values[0], 1e-15)
	assert.Greater(t, res.StdErrors[0], 0.1)

	paired := &Engine{model: m, product: p, opts: defaultOptions(), antithetic: true}
	res = paired.aggregate(batches, 6)
	assert.InDelta(t, 2.0, res.Values[0], 1e-15)
	assert.InDelta(t, 0.0, res.StdErrors[0], 1e-15)
}

func TestPairAveragesKeepTrailingPath(t *testing.T) {
	batches := constantBatches(1, 1, []float64{1, 3, 5}, []float64{4, 0})
	values, weights := pairAverages(batches, 0)
	assert.Equal(t, []float64{2, 5, 2}, values)
	assert.Equal(t, []float64{1, 1, 1}, weights)
}

func TestAntitheticFactoryIsDetected(t *testing.T) {
	m := newModel(t, 0.2)
	p, err := pathwise.NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	require.NoError(t, err)

	e, err := New(m, p, brownian.NewAntitheticFactory(brownian.NewPseudoRandomFactory(5)), WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.True(t, e.antithetic)

	res, err := e.Run(context.Background(), 1000)
	require.NoError(t, err)
	for k, se := range res.StdErrors {
		assert.Positive(t, se, "caplet %d", k)
	}
}
