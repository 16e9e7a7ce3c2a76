package process

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/marketmodels/xerrors"
)

var allSchemes = []Discretization{MidPoint, Trapezoidal, GaussLobatto}

func zero(float64) float64 { return 0 }

func TestOrnsteinUhlenbeckMoments(t *testing.T) {
	p, err := NewOrnsteinUhlenbeckProcess(0.5, 0.2, 1.0, 0.04)
	require.NoError(t, err)

	assert.InDelta(t, 0.04+(1.0-0.04)*math.Exp(-0.5), p.Expectation(0, 1.0, 1.0), 1e-15)
	assert.InDelta(t, 0.5*(0.04-1.0), p.Drift(0, 1.0), 1e-15)
	assert.Equal(t, 0.2, p.Diffusion(3, 7))

	v := 0.5 * 0.04 / 0.5 * (1 - math.Exp(-1.0))
	assert.InDelta(t, v, p.Variance(0, 1.0, 1.0), 1e-15)
	assert.InDelta(t, math.Sqrt(v), p.StdDeviation(0, 1.0, 1.0), 1e-15)

	flat, err := NewOrnsteinUhlenbeckProcess(0, 0.2, 1.0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.04*2.5, flat.Variance(0, 0, 2.5), 1e-15)
}

func TestConstructionRejectsNegativeParameters(t *testing.T) {
	_, err := NewExtendedOrnsteinUhlenbeckProcess(-0.1, 0.015, 0, zero, MidPoint, 0)
	require.ErrorIs(t, err, xerrors.ErrNegativeSpeed)
	assert.Equal(t, xerrors.ErrInvalidArg, xerrors.TypeOf(err))

	_, err = NewExtendedOrnsteinUhlenbeckProcess(0.03, -0.015, 0, zero, MidPoint, 0)
	require.ErrorIs(t, err, xerrors.ErrNegativeVolatility)

	_, err = NewExtendedOrnsteinUhlenbeckProcess(0.03, 0.015, 0, nil, MidPoint, 0)
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestZeroForcingReducesToPlainModel(t *testing.T) {
	ou, err := NewOrnsteinUhlenbeckProcess(0.03, 0.015, 0.05, 0)
	require.NoError(t, err)

	for _, scheme := range allSchemes {
		p, err := NewExtendedOrnsteinUhlenbeckProcess(0.03, 0.015, 0.05, zero, scheme, 1e-10)
		require.NoError(t, err)

		for _, dt := range []float64{0.01, 0.5, 2, 10} {
			got, err := p.Expectation(1.0, 0.05, dt)
			require.NoError(t, err, scheme.String())
			assert.InDelta(t, ou.Expectation(1.0, 0.05, dt), got, 1e-15, "%s dt=%g", scheme, dt)
		}
		assert.Equal(t, ou.Variance(0, 0.05, 1), p.Variance(0, 0.05, 1))
		assert.Equal(t, ou.StdDeviation(0, 0.05, 1), p.StdDeviation(0, 0.05, 1))
		assert.Equal(t, ou.Diffusion(0, 0.05), p.Diffusion(0, 0.05))
		assert.Equal(t, 0.05, p.X0())
	}
}

func TestSchemesAgreeForAffineForcing(t *testing.T) {
	b := func(t float64) float64 { return 0.02 + 0.05*t }

	results := make(map[Discretization]float64, len(allSchemes))
	for _, scheme := range allSchemes {
		p, err := NewExtendedOrnsteinUhlenbeckProcess(0.03, 0.015, 0.01, b, scheme, 1e-12)
		require.NoError(t, err)
		v, err := p.Expectation(2.0, 0.01, 0.1)
		require.NoError(t, err)
		results[scheme] = v
	}

	assert.InDelta(t, results[GaussLobatto], results[Trapezoidal], 1e-6)
	assert.InDelta(t, results[GaussLobatto], results[MidPoint], 1e-6)
}

func TestTrapezoidalExactForAffineForcing(t *testing.T) {
	const speed = 1.5
	b := func(t float64) float64 { return 0.3 - 0.8*t }

	trap, err := NewExtendedOrnsteinUhlenbeckProcess(speed, 0.2, 0.1, b, Trapezoidal, 0)
	require.NoError(t, err)
	exact, err := NewExtendedOrnsteinUhlenbeckProcess(speed, 0.2, 0.1, b, GaussLobatto, 1e-12)
	require.NoError(t, err)

	t0, dt := 0.5, 2.0
	got, err := trap.Expectation(t0, 0.1, dt)
	require.NoError(t, err)
	want, err := exact.Expectation(t0, 0.1, dt)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-9)

	// 闭式解: b(t) - e^{-kΔ} b(t0) - (d/k)(1 - e^{-kΔ}) 加上 OU 部分
	ex := math.Exp(-speed * dt)
	closed := 0.1*ex + b(t0+dt) - ex*b(t0) - (-0.8/speed)*(1-ex)
	assert.InDelta(t, closed, got, 1e-12)
}

func TestMidPointFirstOrderForNonlinearForcing(t *testing.T) {
	b := func(t float64) float64 { return math.Sin(t) }
	exact, err := NewExtendedOrnsteinUhlenbeckProcess(0.8, 0.1, 0, b, GaussLobatto, 1e-12)
	require.NoError(t, err)
	mid, err := NewExtendedOrnsteinUhlenbeckProcess(0.8, 0.1, 0, b, MidPoint, 0)
	require.NoError(t, err)

	errAt := func(dt float64) float64 {
		e, err := exact.Expectation(1, 0, dt)
		require.NoError(t, err)
		m, err := mid.Expectation(1, 0, dt)
		require.NoError(t, err)
		return math.Abs(e - m)
	}
	// 误差随步长缩小
	assert.Less(t, errAt(0.05), errAt(0.5))
}

func TestTrapezoidalZeroSpeed(t *testing.T) {
	p, err := NewExtendedOrnsteinUhlenbeckProcess(0, 0.01, 0.2, func(t float64) float64 { return t }, Trapezoidal, 0)
	require.NoError(t, err)

	v, err := p.Expectation(0, 0.2, 1)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v))
	assert.InDelta(t, 0.2, v, 1e-15)
}

func TestDriftIncludesForcing(t *testing.T) {
	p, err := NewExtendedOrnsteinUhlenbeckProcess(0.5, 0.1, 0, func(t float64) float64 { return 2 * t }, MidPoint, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*(2*3.0-1.0), p.Drift(3.0, 1.0), 1e-15)
}

func TestUnknownDiscretizationFailsAtUse(t *testing.T) {
	p, err := NewExtendedOrnsteinUhlenbeckProcess(0.03, 0.015, 0, zero, Discretization(7), 0)
	require.NoError(t, err)

	_, err = p.Expectation(0, 0, 1)
	require.ErrorIs(t, err, xerrors.ErrUnknownDiscretization)
	assert.Equal(t, xerrors.ErrUnimplemented, xerrors.TypeOf(err))
}

func TestParseDiscretization(t *testing.T) {
	for in, want := range map[string]Discretization{
		"midpoint":      MidPoint,
		" Trapezoidal ": Trapezoidal,
		"gauss_lobatto": GaussLobatto,
	} {
		got, err := ParseDiscretization(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseDiscretization("euler")
	assert.ErrorIs(t, err, xerrors.ErrUnknownDiscretization)
}
