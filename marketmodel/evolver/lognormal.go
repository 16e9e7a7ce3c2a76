package evolver

import (
	"fmt"
	"math"

	"github.com/wyfcoding/marketmodels/marketmodel/brownian"
	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
	"github.com/wyfcoding/marketmodels/xerrors"
)

// LogNormalEuler 对 ln F 做 Euler 离散的远期利率演化器。
// 漂移项取决于每步的计价单位，保证以该计价单位平减的零息债价格为鞅。
// 实例持有生成器与路径状态，只能由一个 goroutine 使用。
type LogNormalEuler struct {
	model      *Model
	numeraires []int
	generator  brownian.Generator
	state      *evolution.LMMCurveState

	logForwards []float64
	forwards    []float64
	drifts      []float64
	increments  []float64
	currentStep int
}

// NewLogNormalEuler 创建演化器。生成器的因子数与步数必须与模型一致。
func NewLogNormalEuler(model *Model, numeraires []int, generator brownian.Generator) (*LogNormalEuler, error) {
	d := model.Evolution()
	if err := d.CheckNumeraires(numeraires); err != nil {
		return nil, err
	}
	if generator.NumberOfFactors() != model.NumberOfFactors() || generator.NumberOfSteps() != d.NumberOfSteps() {
		return nil, fmt.Errorf("%w: generator has %d factors and %d steps, model needs %d and %d",
			xerrors.ErrIncompatibleGenerator, generator.NumberOfFactors(), generator.NumberOfSteps(),
			model.NumberOfFactors(), d.NumberOfSteps())
	}
	n := model.NumberOfRates()
	return &LogNormalEuler{
		model:       model,
		numeraires:  append([]int(nil), numeraires...),
		generator:   generator,
		state:       evolution.NewLMMCurveState(d),
		logForwards: make([]float64, n),
		forwards:    make([]float64, n),
		drifts:      make([]float64, n),
		increments:  make([]float64, model.NumberOfFactors()),
	}, nil
}

// Numeraires 各步的计价单位。
func (e *LogNormalEuler) Numeraires() []int { return e.numeraires }

// CurrentStep 下一次 Advance 将要演化的步。
func (e *LogNormalEuler) CurrentStep() int { return e.currentStep }

// CurrentState 最近一次 Advance 到达的曲线状态。
func (e *LogNormalEuler) CurrentState() *evolution.LMMCurveState { return e.state }

// StartNewPath 回到初始远期利率，返回生成器给出的路径权重。
func (e *LogNormalEuler) StartNewPath() float64 {
	e.currentStep = 0
	for i, f := range e.model.InitialRates() {
		e.forwards[i] = f
		e.logForwards[i] = math.Log(f)
	}
	return e.generator.NextPath()
}

// Advance 演化到下一个演化时间并更新曲线状态，返回本步权重。
func (e *LogNormalEuler) Advance() (float64, error) {
	d := e.model.Evolution()
	step := e.currentStep
	if step >= d.NumberOfSteps() {
		return 0, fmt.Errorf("%w: evolver already at step %d", xerrors.ErrStepOverrun, step)
	}
	weight, err := e.generator.NextStep(e.increments)
	if err != nil {
		return 0, err
	}

	times := d.EvolutionTimes()
	dt := times[step]
	if step > 0 {
		dt -= times[step-1]
	}
	sqrtDt := math.Sqrt(dt)
	alive := d.FirstAliveRate()[step]
	e.computeDrifts(alive, e.numeraires[step])

	for i := alive; i < len(e.forwards); i++ {
		var diffusion float64
		for f, a := range e.model.pseudoRoot[i] {
			diffusion += a * e.increments[f]
		}
		e.logForwards[i] += (e.drifts[i]-0.5*e.model.covariance[i][i])*dt + sqrtDt*diffusion
		e.forwards[i] = math.Exp(e.logForwards[i])
	}
	if err := e.state.SetOnForwardRates(e.forwards, alive); err != nil {
		return 0, err
	}
	e.currentStep++
	return weight, nil
}

// computeDrifts 以步初的远期利率计算计价单位 num 下的漂移。
func (e *LogNormalEuler) computeDrifts(alive, num int) {
	taus := e.model.Evolution().RateTaus()
	term := func(i, k int) float64 {
		tf := taus[k] * e.forwards[k]
		return tf * e.model.covariance[i][k] / (1.0 + tf)
	}
	for i := alive; i < len(e.drifts); i++ {
		var mu float64
		if i >= num {
			for k := num; k <= i; k++ {
				mu += term(i, k)
			}
		} else {
			for k := i + 1; k < num; k++ {
				mu -= term(i, k)
			}
		}
		e.drifts[i] = mu
	}
}
