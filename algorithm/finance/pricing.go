// Package finance - 远期利率期权的 Black 定价公式。
package finance

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wyfcoding/marketmodels/xerrors"
)

// OptionType 期权方向。
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// BlackFormula 远期价格为 forward、总标准差为 stdDev 的期权未贴现价值乘以 discount。
// stdDev 为零时返回内在价值。
func BlackFormula(optionType OptionType, strike, forward, stdDev, discount float64) (float64, error) {
	if stdDev < 0 || discount < 0 || strike < 0 || forward <= 0 {
		return 0, fmt.Errorf("%w: strike=%g forward=%g stdDev=%g discount=%g",
			xerrors.ErrInvalidInput, strike, forward, stdDev, discount)
	}
	var sign float64
	switch optionType {
	case OptionTypeCall:
		sign = 1
	case OptionTypePut:
		sign = -1
	default:
		return 0, fmt.Errorf("%w: option type %q", xerrors.ErrInvalidInput, optionType)
	}

	if stdDev == 0 || strike == 0 {
		return discount * math.Max(sign*(forward-strike), 0), nil
	}
	d1 := math.Log(forward/strike)/stdDev + 0.5*stdDev
	d2 := d1 - stdDev
	n := distuv.UnitNormal
	return discount * sign * (forward*n.CDF(sign*d1) - strike*n.CDF(sign*d2)), nil
}

// CapletResult Black 上限单元价格及其对远期利率的 Delta。
type CapletResult struct {
	Price decimal.Decimal
	Delta decimal.Decimal
}

// BlackCaplet 在 expiry 定盘、按 accrual 计息、以 discount 贴现的上限单元价格。
func BlackCaplet(forward, strike, volatility, expiry, accrual, discount float64) (float64, error) {
	if volatility < 0 || expiry < 0 {
		return 0, fmt.Errorf("%w: volatility=%g expiry=%g", xerrors.ErrInvalidInput, volatility, expiry)
	}
	v, err := BlackFormula(OptionTypeCall, strike, forward, volatility*math.Sqrt(expiry), discount)
	if err != nil {
		return 0, err
	}
	return accrual * v, nil
}

// Caplet 同 BlackCaplet，附带解析 Delta，以 decimal 返回。
func Caplet(forward, strike, volatility, expiry, accrual, discount float64) (*CapletResult, error) {
	price, err := BlackCaplet(forward, strike, volatility, expiry, accrual, discount)
	if err != nil {
		return nil, err
	}

	var delta float64
	stdDev := volatility * math.Sqrt(expiry)
	switch {
	case stdDev == 0 || strike == 0:
		if forward > strike {
			delta = accrual * discount
		}
	default:
		d1 := math.Log(forward/strike)/stdDev + 0.5*stdDev
		delta = accrual * discount * distuv.UnitNormal.CDF(d1)
	}
	return &CapletResult{
		Price: decimal.NewFromFloat(price),
		Delta: decimal.NewFromFloat(delta),
	}, nil
}
