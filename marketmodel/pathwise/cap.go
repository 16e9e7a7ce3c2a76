package pathwise

import (
	"fmt"
	"slices"

	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
	"github.com/wyfcoding/marketmodels/xerrors"
)

// CapRange 一个利率上限覆盖的上限单元索引区间 [Start, End)。
type CapRange struct {
	Start int
	End   int
}

// MultiDeflatedCap 由平减上限单元组合聚合出的一组利率上限。
// 区间允许重叠，同一单元会计入每个覆盖它的上限。
type MultiDeflatedCap struct {
	caplets *MultiDeflatedCaplet
	ranges  []CapRange

	innerCounts []int
	innerFlows  [][]CashFlow
}

// NewMultiDeflatedCap 创建平减利率上限组合。
func NewMultiDeflatedCap(rateTimes, accruals, paymentTimes []float64, strike float64, ranges []CapRange) (*MultiDeflatedCap, error) {
	caplets, err := NewMultiDeflatedCapletWithStrike(rateTimes, accruals, paymentTimes, strike)
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: no cap ranges given", xerrors.ErrInvalidCapRange)
	}
	n := caplets.NumberOfProducts()
	for k, r := range ranges {
		if r.Start < 0 || r.Start >= r.End || r.End > n {
			return nil, fmt.Errorf("%w: range %d is [%d, %d) with %d rates", xerrors.ErrInvalidCapRange, k, r.Start, r.End, n)
		}
	}

	c := &MultiDeflatedCap{
		caplets: caplets,
		ranges:  slices.Clone(ranges),
	}
	c.innerCounts, c.innerFlows = NewCashFlowBuffers(caplets)
	return c, nil
}

// Evolution 内部上限单元组合的演化描述。
func (c *MultiDeflatedCap) Evolution() *evolution.Description { return c.caplets.Evolution() }

// SuggestedNumeraires 货币市场计价单位。
func (c *MultiDeflatedCap) SuggestedNumeraires() []int { return c.caplets.SuggestedNumeraires() }

// PossibleCashFlowTimes 各上限单元的支付时间。
func (c *MultiDeflatedCap) PossibleCashFlowTimes() []float64 { return c.caplets.PossibleCashFlowTimes() }

// NumberOfProducts 上限个数，即区间个数。
func (c *MultiDeflatedCap) NumberOfProducts() int { return len(c.ranges) }

// MaxNumberOfCashFlowsPerProductPerStep 每步至多一笔。
func (c *MultiDeflatedCap) MaxNumberOfCashFlowsPerProductPerStep() int { return 1 }

// AlreadyDeflated 金额已平减。
func (c *MultiDeflatedCap) AlreadyDeflated() bool { return true }

// Ranges 返回各上限区间的副本。
func (c *MultiDeflatedCap) Ranges() []CapRange { return slices.Clone(c.ranges) }

// Reset 重置内部上限单元组合。
func (c *MultiDeflatedCap) Reset() { c.caplets.Reset() }

// NextTimeStep 推进内部上限单元组合，把本步产生的单元现金流按区间累加。
func (c *MultiDeflatedCap) NextTimeStep(state evolution.CurveState, counts []int, flows [][]CashFlow) (bool, error) {
	if err := checkBuffers(c, counts, flows); err != nil {
		return false, err
	}
	done, err := c.caplets.NextTimeStep(state, c.innerCounts, c.innerFlows)
	if err != nil {
		return false, err
	}
	clearCounts(counts)

	for j, r := range c.ranges {
		for i := r.Start; i < r.End; i++ {
			if c.innerCounts[i] == 0 {
				continue
			}
			inner := &c.innerFlows[i][0]
			out := &flows[j][0]
			if counts[j] == 0 {
				counts[j] = 1
				out.TimeIndex = inner.TimeIndex
				clearAmount(out.Amount)
			}
			for k, v := range inner.Amount {
				out.Amount[k] += v
			}
		}
	}
	return done, nil
}

// Clone 复制路径位置与内部缓冲区。
func (c *MultiDeflatedCap) Clone() MultiProduct {
	caplets, _ := c.caplets.Clone().(*MultiDeflatedCaplet)
	cp := &MultiDeflatedCap{
		caplets: caplets,
		ranges:  c.ranges,
	}
	cp.innerCounts, cp.innerFlows = NewCashFlowBuffers(caplets)
	return cp
}
