package pathwise

import (
	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
)

// MultiCaplet 利率上限单元组合：第 i 个单元在第 i 步定盘，
// 于 paymentTimes[i] 支付 accruals[i]*max(F_i-K_i, 0)，金额未平减。
type MultiCaplet struct {
	*schedule
	stepper
}

// NewMultiCaplet 创建逐期行权价的上限单元组合。
func NewMultiCaplet(rateTimes, accruals, paymentTimes, strikes []float64) (*MultiCaplet, error) {
	s, err := newSchedule(rateTimes, accruals, paymentTimes, strikes)
	if err != nil {
		return nil, err
	}
	return &MultiCaplet{schedule: s}, nil
}

// Evolution 由利率时间构造的演化描述。
func (c *MultiCaplet) Evolution() *evolution.Description { return c.evolution }

// SuggestedNumeraires 货币市场计价单位。
func (c *MultiCaplet) SuggestedNumeraires() []int { return c.evolution.MoneyMarketNumeraires() }

// PossibleCashFlowTimes 各单元的支付时间。
func (c *MultiCaplet) PossibleCashFlowTimes() []float64 { return c.paymentTimes }

// NumberOfProducts 单元个数，等于利率个数。
func (c *MultiCaplet) NumberOfProducts() int { return c.numberOfRates() }

// MaxNumberOfCashFlowsPerProductPerStep 每步至多一笔。
func (c *MultiCaplet) MaxNumberOfCashFlowsPerProductPerStep() int { return 1 }

// AlreadyDeflated 金额未平减，由引擎按支付时间折算。
func (c *MultiCaplet) AlreadyDeflated() bool { return false }

// NextTimeStep 价内时产生一笔现金流，导数只落在当期远期利率上。
func (c *MultiCaplet) NextTimeStep(state evolution.CurveState, counts []int, flows [][]CashFlow) (bool, error) {
	steps := c.evolution.NumberOfSteps()
	if err := c.begin(steps); err != nil {
		return false, err
	}
	if err := checkBuffers(c, counts, flows); err != nil {
		return false, err
	}
	clearCounts(counts)

	i := c.currentIndex
	payoff := c.accruals[i] * (state.ForwardRate(i) - c.strikes[i])
	if payoff > 0 {
		cf := &flows[i][0]
		counts[i] = 1
		cf.TimeIndex = i
		clearAmount(cf.Amount)
		cf.Amount[0] = payoff
		cf.Amount[i+1] = c.accruals[i]
	}
	return c.finish(steps), nil
}

// Clone 复制路径位置，计划数据共享。
func (c *MultiCaplet) Clone() MultiProduct {
	cp := *c
	return &cp
}
