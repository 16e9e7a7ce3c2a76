package engine

import (
	"math"
	"sort"

	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
)

// discounter 将某个支付时间的现金流折算为计价单位债券的数量。
// 支付时间落在两个利率时间之间时，对两端贴现比做对数线性插值。
type discounter struct {
	before       int
	beforeWeight float64
}

func newDiscounter(paymentTime float64, rateTimes []float64) discounter {
	last := len(rateTimes) - 2
	before := sort.SearchFloat64s(rateTimes, paymentTime)
	if before == len(rateTimes) || rateTimes[before] > paymentTime {
		before--
	}
	before = max(0, min(before, last))
	weight := 1.0 - (paymentTime-rateTimes[before])/(rateTimes[before+1]-rateTimes[before])
	return discounter{before: before, beforeWeight: weight}
}

func (d discounter) numeraireBonds(state evolution.CurveState, numeraire int) float64 {
	pre := state.DiscountRatio(d.before, numeraire)
	if d.beforeWeight == 1.0 {
		return pre
	}
	post := state.DiscountRatio(d.before+1, numeraire)
	if d.beforeWeight == 0.0 {
		return post
	}
	return math.Pow(pre, d.beforeWeight) * math.Pow(post, 1.0-d.beforeWeight)
}
