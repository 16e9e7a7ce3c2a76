// Package evolution 描述市场模型的模拟时间网格与每一步的曲线状态。
package evolution

import (
	"fmt"
	"math"

	"github.com/wyfcoding/marketmodels/xerrors"
)

// Description 模拟时间网格：远期利率的重置时间与演化时间。
// 构造后只读，可在所有路径与 goroutine 之间共享。
type Description struct {
	rateTimes      []float64
	rateTaus       []float64
	evolutionTimes []float64
	firstAliveRate []int
}

// NewDescription 创建演化描述。evolutionTimes 为空时取 rateTimes 去掉最后一个元素，
// 即每个利率在其重置时刻对应一步。
func NewDescription(rateTimes, evolutionTimes []float64) (*Description, error) {
	if len(rateTimes) < 2 {
		return nil, fmt.Errorf("%w: at least two rate times required, got %d", xerrors.ErrEmptyData, len(rateTimes))
	}
	if err := CheckIncreasingTimes(rateTimes); err != nil {
		return nil, fmt.Errorf("rate times: %w", err)
	}
	n := len(rateTimes) - 1
	if len(evolutionTimes) == 0 {
		evolutionTimes = rateTimes[:n]
	}
	if err := CheckIncreasingTimes(evolutionTimes); err != nil {
		return nil, fmt.Errorf("evolution times: %w", err)
	}
	if last := evolutionTimes[len(evolutionTimes)-1]; last > rateTimes[n-1] {
		return nil, fmt.Errorf("%w: last evolution time %g after last rate reset %g",
			xerrors.ErrInvalidInput, last, rateTimes[n-1])
	}

	d := &Description{
		rateTimes:      append([]float64(nil), rateTimes...),
		rateTaus:       make([]float64, n),
		evolutionTimes: append([]float64(nil), evolutionTimes...),
		firstAliveRate: make([]int, len(evolutionTimes)),
	}
	for i := range n {
		d.rateTaus[i] = rateTimes[i+1] - rateTimes[i]
	}

	current, alive := 0.0, 0
	for j, t := range d.evolutionTimes {
		for d.rateTimes[alive] <= current {
			alive++
		}
		d.firstAliveRate[j] = alive
		current = t
	}
	return d, nil
}

// CheckIncreasingTimes 校验时间序列非负且严格递增。
func CheckIncreasingTimes(times []float64) error {
	if len(times) == 0 {
		return xerrors.ErrEmptyData
	}
	if times[0] < 0 || math.IsNaN(times[0]) {
		return fmt.Errorf("%w: first time %g is negative", xerrors.ErrNonIncreasingTimes, times[0])
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return fmt.Errorf("%w: times[%d]=%g <= times[%d]=%g",
				xerrors.ErrNonIncreasingTimes, i, times[i], i-1, times[i-1])
		}
	}
	return nil
}

// RateTimes 利率时间 t_0 < ... < t_n。
func (d *Description) RateTimes() []float64 { return d.rateTimes }

// RateTaus 计息期长度 t_{i+1}-t_i。
func (d *Description) RateTaus() []float64 { return d.rateTaus }

// EvolutionTimes 各步的演化时间。
func (d *Description) EvolutionTimes() []float64 { return d.evolutionTimes }

// FirstAliveRate 各步第一个尚未定盘的利率。
func (d *Description) FirstAliveRate() []int { return d.firstAliveRate }

// NumberOfRates 利率个数 n。
func (d *Description) NumberOfRates() int { return len(d.rateTaus) }

// NumberOfSteps 演化步数。
func (d *Description) NumberOfSteps() int { return len(d.evolutionTimes) }

// MoneyMarketNumeraires 离散复利货币市场账户对应的计价单位序列，即每步第一个存活利率。
func (d *Description) MoneyMarketNumeraires() []int {
	return append([]int(nil), d.firstAliveRate...)
}

// CheckNumeraires 校验计价单位索引：每步长度匹配，且不早于该步第一个存活利率。
func (d *Description) CheckNumeraires(numeraires []int) error {
	if len(numeraires) != d.NumberOfSteps() {
		return fmt.Errorf("%w: %d numeraires for %d steps", xerrors.ErrInvalidNumeraire, len(numeraires), d.NumberOfSteps())
	}
	for j, num := range numeraires {
		if num < d.firstAliveRate[j] || num > d.NumberOfRates() {
			return fmt.Errorf("%w: step %d numeraire %d outside [%d, %d]",
				xerrors.ErrInvalidNumeraire, j, num, d.firstAliveRate[j], d.NumberOfRates())
		}
	}
	return nil
}
