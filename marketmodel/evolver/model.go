// Package evolver 沿模拟时间网格演化远期利率，为路径产品提供每一步的曲线状态。
package evolver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
	"github.com/wyfcoding/marketmodels/xerrors"
)

// Model 常数波动率的对数正态远期利率模型。
// 第 i 个利率的因子载荷为 σ_i 乘以相关矩阵 Cholesky 因子的第 i 行；未给出相关矩阵时为单因子模型。
type Model struct {
	evolution    *evolution.Description
	initialRates []float64
	volatilities []float64
	pseudoRoot   [][]float64
	covariance   [][]float64
}

// NewModel 创建模型。correlation 为 nil 时所有利率完全相关。
func NewModel(d *evolution.Description, initialRates, volatilities []float64, correlation [][]float64) (*Model, error) {
	n := d.NumberOfRates()
	if len(initialRates) != n || len(volatilities) != n {
		return nil, fmt.Errorf("%w: %d rates, %d initial rates, %d volatilities",
			xerrors.ErrDimMismatch, n, len(initialRates), len(volatilities))
	}
	for i := range n {
		if !(initialRates[i] > 0) {
			return nil, fmt.Errorf("%w: initial rate %d is %g, log-normal rates must be positive",
				xerrors.ErrInvalidInput, i, initialRates[i])
		}
		if volatilities[i] < 0 || math.IsNaN(volatilities[i]) {
			return nil, fmt.Errorf("%w: volatility %d is %g", xerrors.ErrNegativeVolatility, i, volatilities[i])
		}
	}

	loadings, err := correlationRoot(n, correlation)
	if err != nil {
		return nil, err
	}
	m := &Model{
		evolution:    d,
		initialRates: append([]float64(nil), initialRates...),
		volatilities: append([]float64(nil), volatilities...),
		pseudoRoot:   make([][]float64, n),
		covariance:   make([][]float64, n),
	}
	for i := range n {
		m.pseudoRoot[i] = make([]float64, len(loadings[i]))
		for f, l := range loadings[i] {
			m.pseudoRoot[i][f] = volatilities[i] * l
		}
	}
	for i := range n {
		m.covariance[i] = make([]float64, n)
		for k := range n {
			var c float64
			for f := range m.pseudoRoot[i] {
				c += m.pseudoRoot[i][f] * m.pseudoRoot[k][f]
			}
			m.covariance[i][k] = c
		}
	}
	return m, nil
}

// correlationRoot 返回相关矩阵的下三角 Cholesky 因子。
func correlationRoot(n int, correlation [][]float64) ([][]float64, error) {
	if correlation == nil {
		root := make([][]float64, n)
		for i := range root {
			root[i] = []float64{1}
		}
		return root, nil
	}
	if len(correlation) != n {
		return nil, fmt.Errorf("%w: correlation has %d rows for %d rates", xerrors.ErrDimMismatch, len(correlation), n)
	}
	data := make([]float64, 0, n*n)
	for i, row := range correlation {
		if len(row) != n {
			return nil, fmt.Errorf("%w: correlation row %d has %d entries", xerrors.ErrDimMismatch, i, len(row))
		}
		for k, v := range row {
			if math.Abs(v-correlation[k][i]) > 1e-12 {
				return nil, fmt.Errorf("%w: correlation is not symmetric at (%d, %d)", xerrors.ErrInvalidInput, i, k)
			}
		}
		data = append(data, row...)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(n, data)); !ok {
		return nil, xerrors.ErrNotPositiveDefinite
	}
	var l mat.TriDense
	chol.LTo(&l)

	root := make([][]float64, n)
	for i := range root {
		root[i] = make([]float64, n)
		for f := 0; f <= i; f++ {
			root[i][f] = l.At(i, f)
		}
	}
	return root, nil
}

// Evolution 模型的演化描述。
func (m *Model) Evolution() *evolution.Description { return m.evolution }

// InitialRates 初始远期利率。
func (m *Model) InitialRates() []float64 { return m.initialRates }

// Volatilities 各利率的常数波动率。
func (m *Model) Volatilities() []float64 { return m.volatilities }

// NumberOfRates 利率个数。
func (m *Model) NumberOfRates() int { return len(m.initialRates) }

// NumberOfFactors 驱动因子个数。
func (m *Model) NumberOfFactors() int { return len(m.pseudoRoot[0]) }

// Covariance 单位时间内 ln F_i 与 ln F_k 的协方差。
func (m *Model) Covariance(i, k int) float64 { return m.covariance[i][k] }

// InitialDiscountRatio 由初始远期利率推出的 P(0,t_i)/P(0,t_j)。
func (m *Model) InitialDiscountRatio(i, j int) float64 {
	taus := m.evolution.RateTaus()
	ratio := 1.0
	for k := min(i, j); k < max(i, j); k++ {
		ratio *= 1.0 + taus[k]*m.initialRates[k]
	}
	if i > j {
		return 1.0 / ratio
	}
	return ratio
}
