package process

import (
	"fmt"
	"math"
	"strings"

	"github.com/wyfcoding/marketmodels/algorithm/integral"
	"github.com/wyfcoding/marketmodels/xerrors"
)

// Discretization 条件期望中强迫项修正的计算方案。
type Discretization int

const (
	// MidPoint 在区间中点取一次强迫函数值，一阶精度。
	MidPoint Discretization = iota
	// Trapezoidal 使用两端点取值的闭式组合，对仿射强迫函数精确。
	Trapezoidal
	// GaussLobatto 自适应数值积分，作为闭式方案的参照值。
	GaussLobatto
)

// MaxIntegrationEvaluations 自适应积分的函数求值上限。
const MaxIntegrationEvaluations = 100000

// DefaultIntegrationEps 未指定积分精度时使用的默认值。
const DefaultIntegrationEps = 1e-4

// String 返回配置文件中使用的方案名。
func (d Discretization) String() string {
	switch d {
	case MidPoint:
		return "midpoint"
	case Trapezoidal:
		return "trapezoidal"
	case GaussLobatto:
		return "gausslobatto"
	default:
		return fmt.Sprintf("Discretization(%d)", int(d))
	}
}

// ParseDiscretization 解析配置文件中的方案名称。
func ParseDiscretization(s string) (Discretization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "midpoint", "mid_point":
		return MidPoint, nil
	case "trapezoidal", "trapezodial":
		return Trapezoidal, nil
	case "gausslobatto", "gauss_lobatto":
		return GaussLobatto, nil
	default:
		return 0, fmt.Errorf("%w: %q", xerrors.ErrUnknownDiscretization, s)
	}
}

// ExtendedOrnsteinUhlenbeckProcess dx = speed (b(t) - x) dt + volatility dW。
// 强迫项 b 只影响均值，波动结构与底层 OU 过程一致。
type ExtendedOrnsteinUhlenbeckProcess struct {
	ou             *OrnsteinUhlenbeckProcess
	b              func(float64) float64
	integrator     *integral.GaussLobatto
	speed          float64
	volatility     float64
	intEps         float64
	discretization Discretization
}

// NewExtendedOrnsteinUhlenbeckProcess 创建扩展 OU 过程。
// intEps 为自适应积分的绝对精度，<= 0 时使用 DefaultIntegrationEps。
func NewExtendedOrnsteinUhlenbeckProcess(
	speed, volatility, x0 float64,
	b func(float64) float64,
	discretization Discretization,
	intEps float64,
) (*ExtendedOrnsteinUhlenbeckProcess, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: forcing function is nil", xerrors.ErrInvalidInput)
	}
	ou, err := NewOrnsteinUhlenbeckProcess(speed, volatility, x0, 0)
	if err != nil {
		return nil, err
	}
	if intEps <= 0 {
		intEps = DefaultIntegrationEps
	}
	integrator, err := integral.NewGaussLobatto(MaxIntegrationEvaluations, intEps)
	if err != nil {
		return nil, err
	}
	return &ExtendedOrnsteinUhlenbeckProcess{
		ou:             ou,
		b:              b,
		integrator:     integrator,
		speed:          speed,
		volatility:     volatility,
		intEps:         intEps,
		discretization: discretization,
	}, nil
}

// X0 初始值。
func (p *ExtendedOrnsteinUhlenbeckProcess) X0() float64 { return p.ou.X0() }

// Speed 均值回复速度。
func (p *ExtendedOrnsteinUhlenbeckProcess) Speed() float64 { return p.speed }

// Volatility 波动率。
func (p *ExtendedOrnsteinUhlenbeckProcess) Volatility() float64 { return p.volatility }

// Discretization 计算期望所用的离散化方案。
func (p *ExtendedOrnsteinUhlenbeckProcess) Discretization() Discretization { return p.discretization }

// Drift 底层 OU 漂移加上 speed·b(t)。
func (p *ExtendedOrnsteinUhlenbeckProcess) Drift(t, x float64) float64 {
	return p.ou.Drift(t, x) + p.speed*p.b(t)
}

// Diffusion 扩散项，与强迫函数无关。
func (p *ExtendedOrnsteinUhlenbeckProcess) Diffusion(t, x float64) float64 {
	return p.ou.Diffusion(t, x)
}

// StdDeviation 经过 dt 后的条件标准差。
func (p *ExtendedOrnsteinUhlenbeckProcess) StdDeviation(t0, x0, dt float64) float64 {
	return p.ou.StdDeviation(t0, x0, dt)
}

// Variance 经过 dt 后的条件方差。
func (p *ExtendedOrnsteinUhlenbeckProcess) Variance(t0, x0, dt float64) float64 {
	return p.ou.Variance(t0, x0, dt)
}

// Expectation 给定 t0 时刻取值 x0，t0+dt 时刻的条件期望。
// 未知方案返回 xerrors.ErrUnknownDiscretization；积分未收敛返回 xerrors.ErrMaxEvaluations。
func (p *ExtendedOrnsteinUhlenbeckProcess) Expectation(t0, x0, dt float64) (float64, error) {
	base := p.ou.Expectation(t0, x0, dt)

	switch p.discretization {
	case MidPoint:
		return base + p.b(t0+0.5*dt)*(1.0-math.Exp(-p.speed*dt)), nil

	case Trapezoidal:
		t := t0 + dt
		bt := p.b(t)
		bu := p.b(t0)
		ex := math.Exp(-p.speed * dt)
		correction := bt - ex*bu
		if kdt := p.speed * dt; kdt != 0 {
			correction -= (bt - bu) / kdt * (-math.Expm1(-kdt))
		} else {
			// speed·dt -> 0 时 (1-e^{-x})/x -> 1
			correction -= bt - bu
		}
		return base + correction, nil

	case GaussLobatto:
		speed := p.speed
		res, err := p.integrator.Integrate(func(x float64) float64 {
			return p.b(x) * math.Exp(speed*x)
		}, t0, t0+dt)
		if err != nil {
			return 0, fmt.Errorf("extended OU expectation at t0=%g dt=%g: %w", t0, dt, err)
		}
		return base + speed*math.Exp(-speed*(t0+dt))*res.Value, nil

	default:
		return 0, fmt.Errorf("%w: %s", xerrors.ErrUnknownDiscretization, p.discretization)
	}
}
