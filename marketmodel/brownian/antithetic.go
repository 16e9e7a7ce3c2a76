package brownian

import (
	"fmt"
)

// AntitheticFactory 对偶变量方差缩减：每条完整走完的原始路径之后，
// 紧跟一条重放其增量并取反的镜像路径。
type AntitheticFactory struct {
	inner GeneratorFactory
}

// NewAntitheticFactory 包装一个底层工厂。
func NewAntitheticFactory(inner GeneratorFactory) *AntitheticFactory {
	return &AntitheticFactory{inner: inner}
}

// Create 返回一个新的对偶生成器。
func (f *AntitheticFactory) Create(factors, steps int) (Generator, error) {
	inner, err := f.inner.Create(factors, steps)
	if err != nil {
		return nil, fmt.Errorf("antithetic: %w", err)
	}
	return &antitheticGenerator{
		stepCounter: stepCounter{factors: factors, steps: steps},
		inner:       inner,
		draws:       make([][]float64, steps),
		weight:      1.0,
	}, nil
}

type antitheticGenerator struct {
	stepCounter
	inner  Generator
	draws  [][]float64
	weight float64
	mirror bool // 当前路径是否为上一条原始路径的镜像
}

func (g *antitheticGenerator) NextStep(increments []float64) (float64, error) {
	if err := g.advance(increments); err != nil {
		return 0, err
	}
	step := g.lastStep - 1
	if g.mirror {
		for i, z := range g.draws[step] {
			increments[i] = -z
		}
		return 1.0, nil
	}

	w, err := g.inner.NextStep(increments)
	if err != nil {
		return 0, err
	}
	if g.draws[step] == nil {
		g.draws[step] = make([]float64, g.factors)
	}
	copy(g.draws[step], increments)
	g.weight *= w
	return w, nil
}

// NextPath 原始路径完整结束后切换到镜像路径，否则开始新的原始路径。
// 镜像路径的权重等于其原始路径的总权重。
func (g *antitheticGenerator) NextPath() float64 {
	completedOriginal := !g.mirror && g.lastStep == g.steps
	g.lastStep = 0
	if completedOriginal {
		g.mirror = true
		return g.weight
	}
	g.mirror = false
	g.weight = g.inner.NextPath()
	return g.weight
}
