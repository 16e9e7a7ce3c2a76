package evolution

import (
	"fmt"

	"github.com/wyfcoding/marketmodels/xerrors"
)

// CurveState 模拟某一步所到达的曲线状态。
// 索引 i 小于当前第一个存活利率时结果无意义，调用方负责只查询存活利率。
type CurveState interface {
	NumberOfRates() int
	RateTimes() []float64
	// ForwardRate 第 i 个远期利率。
	ForwardRate(i int) float64
	// DiscountRatio P(t_i)/P(t_j)。
	DiscountRatio(i, j int) float64
}

// LMMCurveState 以远期利率为状态变量的曲线状态。
type LMMCurveState struct {
	rateTimes    []float64
	rateTaus     []float64
	forwardRates []float64
	discRatios   []float64 // P(t_i)/P(t_first)
	first        int
}

// NewLMMCurveState 基于演化描述的利率时间创建曲线状态。
func NewLMMCurveState(d *Description) *LMMCurveState {
	n := d.NumberOfRates()
	return &LMMCurveState{
		rateTimes:    d.RateTimes(),
		rateTaus:     d.RateTaus(),
		forwardRates: make([]float64, n),
		discRatios:   make([]float64, n+1),
		first:        n,
	}
}

// SetOnForwardRates 从第 first 个利率开始设置远期利率，并重算贴现比。
func (s *LMMCurveState) SetOnForwardRates(rates []float64, first int) error {
	n := len(s.forwardRates)
	if len(rates) != n {
		return fmt.Errorf("%w: %d rates for %d-rate curve", xerrors.ErrDimMismatch, len(rates), n)
	}
	if first < 0 || first >= n {
		return fmt.Errorf("%w: first alive rate %d outside [0, %d)", xerrors.ErrInvalidInput, first, n)
	}
	s.first = first
	copy(s.forwardRates[first:], rates[first:])

	s.discRatios[first] = 1.0
	for i := first; i < n; i++ {
		s.discRatios[i+1] = s.discRatios[i] / (1.0 + s.rateTaus[i]*s.forwardRates[i])
	}
	return nil
}

// NumberOfRates 利率个数。
func (s *LMMCurveState) NumberOfRates() int { return len(s.forwardRates) }

// RateTimes 利率时间。
func (s *LMMCurveState) RateTimes() []float64 { return s.rateTimes }

// RateTaus 计息期长度。
func (s *LMMCurveState) RateTaus() []float64 { return s.rateTaus }

// FirstAliveRate 最近一次设置的第一个存活利率。
func (s *LMMCurveState) FirstAliveRate() int { return s.first }

// ForwardRate 第 i 个远期利率。
func (s *LMMCurveState) ForwardRate(i int) float64 { return s.forwardRates[i] }

// DiscountRatio P(t_i)/P(t_j)，i、j 均不早于第一个存活利率。
func (s *LMMCurveState) DiscountRatio(i, j int) float64 {
	return s.discRatios[i] / s.discRatios[j]
}

// ForwardRates 返回远期利率的只读视图。
func (s *LMMCurveState) ForwardRates() []float64 { return s.forwardRates }
