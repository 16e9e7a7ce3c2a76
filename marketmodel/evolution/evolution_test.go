package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/marketmodels/xerrors"
)

func TestDescriptionDefaultsToResetTimes(t *testing.T) {
	d, err := NewDescription([]float64{0.5, 1.0, 1.5, 2.0}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, d.NumberOfRates())
	assert.Equal(t, 3, d.NumberOfSteps())
	assert.Equal(t, []float64{0.5, 1.0, 1.5}, d.EvolutionTimes())
	assert.Equal(t, []int{0, 1, 2}, d.FirstAliveRate())
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5}, d.RateTaus(), 1e-15)
	assert.Equal(t, []int{0, 1, 2}, d.MoneyMarketNumeraires())
}

func TestDescriptionFinerEvolution(t *testing.T) {
	d, err := NewDescription([]float64{1, 2, 3}, []float64{0.5, 1, 1.5, 2})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 1, 1}, d.FirstAliveRate())
	require.NoError(t, d.CheckNumeraires([]int{0, 1, 1, 2}))
	assert.ErrorIs(t, d.CheckNumeraires([]int{0, 0, 0, 1}), xerrors.ErrInvalidNumeraire)
	assert.ErrorIs(t, d.CheckNumeraires([]int{0, 1}), xerrors.ErrInvalidNumeraire)
}

func TestDescriptionValidation(t *testing.T) {
	_, err := NewDescription([]float64{1}, nil)
	assert.ErrorIs(t, err, xerrors.ErrEmptyData)

	_, err = NewDescription([]float64{1, 1, 2}, nil)
	assert.ErrorIs(t, err, xerrors.ErrNonIncreasingTimes)

	_, err = NewDescription([]float64{1, 2, 3}, []float64{1, 2.5})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = NewDescription([]float64{-1, 2, 3}, nil)
	assert.ErrorIs(t, err, xerrors.ErrNonIncreasingTimes)
}

func TestLMMCurveStateDiscountRatios(t *testing.T) {
	d, err := NewDescription([]float64{0.5, 1.0, 1.5, 2.0}, nil)
	require.NoError(t, err)
	s := NewLMMCurveState(d)

	rates := []float64{0.04, 0.05, 0.06}
	require.NoError(t, s.SetOnForwardRates(rates, 0))

	assert.InDelta(t, 1/(1+0.5*0.04), s.DiscountRatio(1, 0), 1e-15)
	assert.InDelta(t, 1+0.5*0.05, s.DiscountRatio(1, 2), 1e-15)
	assert.InDelta(t, 1/((1+0.5*0.04)*(1+0.5*0.05)*(1+0.5*0.06)), s.DiscountRatio(3, 0), 1e-15)
	assert.Equal(t, 0.05, s.ForwardRate(1))

	require.NoError(t, s.SetOnForwardRates([]float64{0, 0.07, 0.08}, 1))
	assert.Equal(t, 1, s.FirstAliveRate())
	assert.InDelta(t, 1/(1+0.5*0.07), s.DiscountRatio(2, 1), 1e-15)

	assert.ErrorIs(t, s.SetOnForwardRates([]float64{0.1}, 0), xerrors.ErrDimMismatch)
	assert.ErrorIs(t, s.SetOnForwardRates(rates, 3), xerrors.ErrInvalidInput)
}
