// Package brownian 定义驱动市场模型模拟的高斯增量生成器契约及其伪随机实现。
package brownian

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/wyfcoding/marketmodels/xerrors"
)

// Generator 为一条路径逐步产生标准正态增量。
// 每条路径上 NextStep 必须恰好调用 NumberOfSteps 次，实例只能由一个 goroutine 使用。
type Generator interface {
	// NextStep 向长度为 NumberOfFactors 的缓冲区写入一步的增量，返回该步权重。
	NextStep(increments []float64) (float64, error)
	// NextPath 重置路径位置并返回路径权重。
	NextPath() float64
	NumberOfFactors() int
	NumberOfSteps() int
}

// GeneratorFactory 按固定 (因子数, 步数) 创建相互独立的生成器。
type GeneratorFactory interface {
	Create(factors, steps int) (Generator, error)
}

func checkDimensions(factors, steps int) error {
	if factors <= 0 || steps <= 0 {
		return fmt.Errorf("%w: factors=%d steps=%d must be positive", xerrors.ErrInvalidInput, factors, steps)
	}
	return nil
}

// stepCounter 记录路径位置并执行调用协议检查，供各生成器复用。
type stepCounter struct {
	factors  int
	steps    int
	lastStep int
}

func (c *stepCounter) advance(increments []float64) error {
	if len(increments) != c.factors {
		return fmt.Errorf("%w: got %d, want %d", xerrors.ErrIncrementBufferSize, len(increments), c.factors)
	}
	if c.lastStep >= c.steps {
		return fmt.Errorf("%w: %d steps already drawn", xerrors.ErrStepOverrun, c.steps)
	}
	c.lastStep++
	return nil
}

func (c *stepCounter) NumberOfFactors() int { return c.factors }
func (c *stepCounter) NumberOfSteps() int   { return c.steps }

// PseudoRandomFactory 基于 PCG 的伪随机生成器工厂。
// 第 k 个创建的生成器使用流 (seed, k)，按相同顺序创建即可复现。
type PseudoRandomFactory struct {
	seed   uint64
	stream atomic.Uint64
}

// NewPseudoRandomFactory 创建工厂。
func NewPseudoRandomFactory(seed uint64) *PseudoRandomFactory {
	return &PseudoRandomFactory{seed: seed}
}

// Create 返回一个新的独立生成器。
func (f *PseudoRandomFactory) Create(factors, steps int) (Generator, error) {
	if err := checkDimensions(factors, steps); err != nil {
		return nil, err
	}
	stream := f.stream.Add(1) - 1
	return &pseudoRandomGenerator{
		stepCounter: stepCounter{factors: factors, steps: steps},
		rng:         rand.New(rand.NewPCG(f.seed, stream)),
	}, nil
}

type pseudoRandomGenerator struct {
	stepCounter
	rng *rand.Rand
}

func (g *pseudoRandomGenerator) NextStep(increments []float64) (float64, error) {
	if err := g.advance(increments); err != nil {
		return 0, err
	}
	for i := range increments {
		increments[i] = g.rng.NormFloat64()
	}
	return 1.0, nil
}

func (g *pseudoRandomGenerator) NextPath() float64 {
	g.lastStep = 0
	return 1.0
}
