package pathwise

import (
	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
)

// MultiDeflatedCaplet 已平减的上限单元组合。
// 第 i 个单元的金额以 t_i 到期零息债为单位：accruals[i]*max(F_i-K_i, 0)/(1+τ_i F_i)，
// 即支付额乘以 DiscountRatio(i+1, i)。
type MultiDeflatedCaplet struct {
	*schedule
	stepper
}

// NewMultiDeflatedCaplet 创建逐期行权价的平减上限单元组合。
func NewMultiDeflatedCaplet(rateTimes, accruals, paymentTimes, strikes []float64) (*MultiDeflatedCaplet, error) {
	s, err := newSchedule(rateTimes, accruals, paymentTimes, strikes)
	if err != nil {
		return nil, err
	}
	return &MultiDeflatedCaplet{schedule: s}, nil
}

// NewMultiDeflatedCapletWithStrike 所有单元使用同一行权价。
func NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes []float64, strike float64) (*MultiDeflatedCaplet, error) {
	return NewMultiDeflatedCaplet(rateTimes, accruals, paymentTimes, flatStrikes(len(accruals), strike))
}

// Evolution 由利率时间构造的演化描述。
func (c *MultiDeflatedCaplet) Evolution() *evolution.Description { return c.evolution }

// SuggestedNumeraires 货币市场计价单位，与金额的平减方式一致。
func (c *MultiDeflatedCaplet) SuggestedNumeraires() []int { return c.evolution.MoneyMarketNumeraires() }

// PossibleCashFlowTimes 各单元的支付时间。
func (c *MultiDeflatedCaplet) PossibleCashFlowTimes() []float64 { return c.paymentTimes }

// NumberOfProducts 单元个数，等于利率个数。
func (c *MultiDeflatedCaplet) NumberOfProducts() int { return c.numberOfRates() }

// MaxNumberOfCashFlowsPerProductPerStep 每步至多一笔。
func (c *MultiDeflatedCaplet) MaxNumberOfCashFlowsPerProductPerStep() int { return 1 }

// AlreadyDeflated 金额已平减。
func (c *MultiDeflatedCaplet) AlreadyDeflated() bool { return true }

// NextTimeStep 价内时产生一笔平减现金流。
// 导数为 a(1+τK)/(1+τF)^2，包含平减因子对 F_i 的依赖。
func (c *MultiDeflatedCaplet) NextTimeStep(state evolution.CurveState, counts []int, flows [][]CashFlow) (bool, error) {
	steps := c.evolution.NumberOfSteps()
	if err := c.begin(steps); err != nil {
		return false, err
	}
	if err := checkBuffers(c, counts, flows); err != nil {
		return false, err
	}
	clearCounts(counts)

	i := c.currentIndex
	fwd := state.ForwardRate(i)
	if payoff := c.accruals[i] * (fwd - c.strikes[i]); payoff > 0 {
		tau := c.evolution.RateTaus()[i]
		growth := 1.0 + tau*fwd

		cf := &flows[i][0]
		counts[i] = 1
		cf.TimeIndex = i
		clearAmount(cf.Amount)
		cf.Amount[0] = payoff * state.DiscountRatio(i+1, i)
		cf.Amount[i+1] = c.accruals[i] * (1.0 + tau*c.strikes[i]) / (growth * growth)
	}
	return c.finish(steps), nil
}

// Clone 复制路径位置，计划数据共享。
func (c *MultiDeflatedCaplet) Clone() MultiProduct {
	cp := *c
	return &cp
}
