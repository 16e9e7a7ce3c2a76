// Package process 提供一维均值回复扩散过程：Ornstein-Uhlenbeck 过程
// 及带确定性强迫项的扩展 Ornstein-Uhlenbeck 过程。
package process

import (
	"fmt"
	"math"

	"github.com/wyfcoding/marketmodels/xerrors"
)

// sqrtEpsilon 以下的回复速度按零处理，避免方差公式中的 0/0。
var sqrtEpsilon = math.Sqrt(2.220446049250313e-16)

// OrnsteinUhlenbeckProcess dx = speed (level - x) dt + volatility dW。
// 构造后只读，可并发使用。
type OrnsteinUhlenbeckProcess struct {
	x0         float64
	speed      float64
	level      float64
	volatility float64
}

// NewOrnsteinUhlenbeckProcess 创建 OU 过程，speed 与 volatility 必须非负。
func NewOrnsteinUhlenbeckProcess(speed, volatility, x0, level float64) (*OrnsteinUhlenbeckProcess, error) {
	if speed < 0 || math.IsNaN(speed) {
		return nil, fmt.Errorf("%w: %g", xerrors.ErrNegativeSpeed, speed)
	}
	if volatility < 0 || math.IsNaN(volatility) {
		return nil, fmt.Errorf("%w: %g", xerrors.ErrNegativeVolatility, volatility)
	}
	return &OrnsteinUhlenbeckProcess{
		x0:         x0,
		speed:      speed,
		level:      level,
		volatility: volatility,
	}, nil
}

// X0 初始值。
func (p *OrnsteinUhlenbeckProcess) X0() float64 { return p.x0 }

// Speed 均值回复速度。
func (p *OrnsteinUhlenbeckProcess) Speed() float64 { return p.speed }

// Level 长期均值。
func (p *OrnsteinUhlenbeckProcess) Level() float64 { return p.level }

// Volatility 波动率。
func (p *OrnsteinUhlenbeckProcess) Volatility() float64 { return p.volatility }

// Drift 瞬时漂移。
func (p *OrnsteinUhlenbeckProcess) Drift(_, x float64) float64 {
	return p.speed * (p.level - x)
}

// Diffusion 瞬时扩散系数。
func (p *OrnsteinUhlenbeckProcess) Diffusion(_, _ float64) float64 {
	return p.volatility
}

// Expectation 给定 t0 时刻取值 x0，t0+dt 时刻的条件期望。
func (p *OrnsteinUhlenbeckProcess) Expectation(_, x0, dt float64) float64 {
	return p.level + (x0-p.level)*math.Exp(-p.speed*dt)
}

// StdDeviation 条件标准差。
func (p *OrnsteinUhlenbeckProcess) StdDeviation(t0, x0, dt float64) float64 {
	return math.Sqrt(p.Variance(t0, x0, dt))
}

// Variance 条件方差。
func (p *OrnsteinUhlenbeckProcess) Variance(_, _, dt float64) float64 {
	if p.speed < sqrtEpsilon {
		return p.volatility * p.volatility * dt
	}
	return 0.5 * p.volatility * p.volatility / p.speed * (1.0 - math.Exp(-2.0*p.speed*dt))
}
