// Package pathwise 实现按路径逐步产生现金流及其对各远期利率解析导数的市场模型产品。
//
// 产品是单路径状态机：调用方在每条路径开始前调用 Reset，随后每一步把模拟得到的曲线状态
// 交给 NextTimeStep 收集本步现金流。并行模拟时每个 worker 持有一个 Clone 出来的副本。
package pathwise

import (
	"fmt"

	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
	"github.com/wyfcoding/marketmodels/xerrors"
)

// CashFlow 一笔路径现金流。
// Amount[0] 为金额，Amount[1+i] 为金额对第 i 个远期利率的导数，长度为利率个数加一。
// 尚未确定的利率对应的导数分量保持为零。
type CashFlow struct {
	TimeIndex int
	Amount    []float64
}

// MultiProduct 同时定价一组产品的路径导数产品契约。
type MultiProduct interface {
	// Evolution 产品所基于的演化描述。
	Evolution() *evolution.Description
	// SuggestedNumeraires 每一步建议使用的计价单位利率索引。
	SuggestedNumeraires() []int
	// PossibleCashFlowTimes 可能产生现金流的所有支付时间，CashFlow.TimeIndex 指向此切片。
	PossibleCashFlowTimes() []float64
	NumberOfProducts() int
	MaxNumberOfCashFlowsPerProductPerStep() int
	// AlreadyDeflated 金额是否已按计价单位平减。
	AlreadyDeflated() bool
	// Reset 将路径位置倒回第一步。
	Reset()
	// NextTimeStep 处理当前步的曲线状态，写入每个产品本步的现金流个数与现金流，
	// 返回路径是否已结束。
	NextTimeStep(state evolution.CurveState, numberCashFlowsThisStep []int, cashFlowsGenerated [][]CashFlow) (bool, error)
	// Clone 返回路径状态独立的副本，不可变的计划数据共享。
	Clone() MultiProduct
}

// NewCashFlowBuffers 按产品的形状分配现金流缓冲区。
func NewCashFlowBuffers(p MultiProduct) ([]int, [][]CashFlow) {
	n := p.NumberOfProducts()
	m := p.MaxNumberOfCashFlowsPerProductPerStep()
	amountSize := p.Evolution().NumberOfRates() + 1

	counts := make([]int, n)
	flows := make([][]CashFlow, n)
	for i := range flows {
		flows[i] = make([]CashFlow, m)
		for j := range flows[i] {
			flows[i][j].Amount = make([]float64, amountSize)
		}
	}
	return counts, flows
}

func checkBuffers(p MultiProduct, counts []int, flows [][]CashFlow) error {
	n := p.NumberOfProducts()
	if len(counts) != n || len(flows) != n {
		return fmt.Errorf("%w: %d counts and %d flow slots for %d products",
			xerrors.ErrCashFlowBuffer, len(counts), len(flows), n)
	}
	m := p.MaxNumberOfCashFlowsPerProductPerStep()
	amountSize := p.Evolution().NumberOfRates() + 1
	for i, f := range flows {
		if len(f) < m {
			return fmt.Errorf("%w: product %d has room for %d flows, need %d", xerrors.ErrCashFlowBuffer, i, len(f), m)
		}
		for j := range m {
			if len(f[j].Amount) != amountSize {
				return fmt.Errorf("%w: product %d flow %d amount length %d, want %d",
					xerrors.ErrCashFlowBuffer, i, j, len(f[j].Amount), amountSize)
			}
		}
	}
	return nil
}

// schedule 单利率产品族共享的不可变计划数据。
type schedule struct {
	evolution    *evolution.Description
	accruals     []float64
	paymentTimes []float64
	strikes      []float64
}

func newSchedule(rateTimes, accruals, paymentTimes, strikes []float64) (*schedule, error) {
	d, err := evolution.NewDescription(rateTimes, nil)
	if err != nil {
		return nil, err
	}
	n := d.NumberOfRates()
	if len(accruals) != n || len(paymentTimes) != n || len(strikes) != n {
		return nil, fmt.Errorf("%w: %d rates, %d accruals, %d payment times, %d strikes",
			xerrors.ErrScheduleMismatch, n, len(accruals), len(paymentTimes), len(strikes))
	}
	// 第 i 个单元在第 i 步定盘，要求该步第一个存活利率恰为 i。
	for step, alive := range d.FirstAliveRate() {
		if alive != step {
			return nil, fmt.Errorf("%w: rate %d is already fixed at step %d (first rate time %g must be positive)",
				xerrors.ErrInvalidInput, step, step, rateTimes[0])
		}
	}
	for i := 1; i < n; i++ {
		if paymentTimes[i] < paymentTimes[i-1] {
			return nil, fmt.Errorf("%w: payment time %d (%g) before payment time %d (%g)",
				xerrors.ErrNonIncreasingTimes, i, paymentTimes[i], i-1, paymentTimes[i-1])
		}
	}
	return &schedule{
		evolution:    d,
		accruals:     append([]float64(nil), accruals...),
		paymentTimes: append([]float64(nil), paymentTimes...),
		strikes:      append([]float64(nil), strikes...),
	}, nil
}

func flatStrikes(n int, strike float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = strike
	}
	return s
}

func (s *schedule) numberOfRates() int { return s.evolution.NumberOfRates() }

// stepper 单条路径上的步进位置。
type stepper struct {
	currentIndex int
}

func (p *stepper) Reset() { p.currentIndex = 0 }

func (p *stepper) begin(steps int) error {
	if p.currentIndex >= steps {
		return fmt.Errorf("%w: all %d steps consumed", xerrors.ErrPathComplete, steps)
	}
	return nil
}

// finish 推进一步并报告路径是否结束。
func (p *stepper) finish(steps int) bool {
	p.currentIndex++
	return p.currentIndex == steps
}

func clearCounts(counts []int) {
	for i := range counts {
		counts[i] = 0
	}
}

func clearAmount(amount []float64) {
	for i := range amount {
		amount[i] = 0
	}
}
