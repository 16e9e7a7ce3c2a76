package brownian

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/marketmodels/xerrors"
)

func drawPath(t *testing.T, g Generator) [][]float64 {
	t.Helper()
	path := make([][]float64, g.NumberOfSteps())
	for s := range path {
		path[s] = make([]float64, g.NumberOfFactors())
		w, err := g.NextStep(path[s])
		require.NoError(t, err)
		require.Equal(t, 1.0, w)
	}
	return path
}

func TestPseudoRandomDimensions(t *testing.T) {
	f := NewPseudoRandomFactory(42)
	g, err := f.Create(3, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, g.NumberOfFactors())
	assert.Equal(t, 5, g.NumberOfSteps())
	assert.Equal(t, 1.0, g.NextPath())

	_, err = f.Create(0, 5)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestPseudoRandomProtocolViolations(t *testing.T) {
	g, err := NewPseudoRandomFactory(7).Create(2, 3)
	require.NoError(t, err)
	g.NextPath()

	_, err = g.NextStep(make([]float64, 3))
	require.ErrorIs(t, err, xerrors.ErrIncrementBufferSize)
	assert.Equal(t, xerrors.ErrFailedPrecondition, xerrors.TypeOf(err))

	drawPath(t, g)
	_, err = g.NextStep(make([]float64, 2))
	require.ErrorIs(t, err, xerrors.ErrStepOverrun)

	g.NextPath()
	drawPath(t, g)
}

func TestFactoriesAreReproducibleAndIndependent(t *testing.T) {
	a, err := NewPseudoRandomFactory(2024).Create(2, 4)
	require.NoError(t, err)
	b, err := NewPseudoRandomFactory(2024).Create(2, 4)
	require.NoError(t, err)

	a.NextPath()
	b.NextPath()
	assert.Equal(t, drawPath(t, a), drawPath(t, b))

	f := NewPseudoRandomFactory(2024)
	first, err := f.Create(2, 4)
	require.NoError(t, err)
	second, err := f.Create(2, 4)
	require.NoError(t, err)
	assert.NotEqual(t, drawPath(t, first), drawPath(t, second))
}

func TestPseudoRandomMoments(t *testing.T) {
	g, err := NewPseudoRandomFactory(1).Create(1, 1)
	require.NoError(t, err)

	const n = 20000
	xs := make([]float64, n)
	buf := make([]float64, 1)
	for i := range xs {
		g.NextPath()
		_, err := g.NextStep(buf)
		require.NoError(t, err)
		xs[i] = buf[0]
	}
	mean, std := stat.MeanStdDev(xs, nil)
	assert.InDelta(t, 0, mean, 4/math.Sqrt(n))
	assert.InDelta(t, 1, std, 0.03)
}

func TestAntitheticMirrorsCompletedPaths(t *testing.T) {
	g, err := NewAntitheticFactory(NewPseudoRandomFactory(99)).Create(2, 3)
	require.NoError(t, err)

	assert.Equal(t, 1.0, g.NextPath())
	original := drawPath(t, g)

	assert.Equal(t, 1.0, g.NextPath())
	mirrored := drawPath(t, g)
	for s := range original {
		for f := range original[s] {
			assert.Equal(t, -original[s][f], mirrored[s][f])
		}
	}

	g.NextPath()
	fresh := drawPath(t, g)
	assert.NotEqual(t, original, fresh)

	_, err = g.NextStep(make([]float64, 2))
	assert.ErrorIs(t, err, xerrors.ErrStepOverrun)
}

func TestAntitheticAbandonedPathIsNotMirrored(t *testing.T) {
	g, err := NewAntitheticFactory(NewPseudoRandomFactory(5)).Create(1, 3)
	require.NoError(t, err)

	g.NextPath()
	first := make([]float64, 1)
	_, err = g.NextStep(first)
	require.NoError(t, err)

	g.NextPath()
	second := make([]float64, 1)
	_, err = g.NextStep(second)
	require.NoError(t, err)
	assert.NotEqual(t, -first[0], second[0])
}
