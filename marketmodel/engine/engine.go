// Package engine 驱动演化器与路径产品完成蒙特卡洛定价。
//
// 现金流按计价单位记账：本金以当前计价单位债券的数量持有，初始为一单位，
// 计价单位切换时按贴现比换仓。未平减的现金流先按支付时间折成计价单位债券，再除以本金。
package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"

	"github.com/wyfcoding/marketmodels/logging"
	"github.com/wyfcoding/marketmodels/marketmodel/brownian"
	"github.com/wyfcoding/marketmodels/marketmodel/evolver"
	"github.com/wyfcoding/marketmodels/marketmodel/pathwise"
	"github.com/wyfcoding/marketmodels/metrics"
	"github.com/wyfcoding/marketmodels/xerrors"
)

// Engine 蒙特卡洛记账引擎。
type Engine struct {
	model       *evolver.Model
	product     pathwise.MultiProduct
	factory     brownian.GeneratorFactory
	numeraires  []int
	discounters []discounter
	antithetic  bool // 生成器按 (原始, 镜像) 成对产生路径
	opts        options
	logger      *logging.Logger
	sim         *metrics.SimulationMetrics
}

// New 创建引擎。产品与模型必须基于相同的利率时间与演化时间。
func New(model *evolver.Model, product pathwise.MultiProduct, factory brownian.GeneratorFactory, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !(o.initialNumeraireValue > 0) {
		return nil, fmt.Errorf("%w: initial numeraire value %g must be positive", xerrors.ErrInvalidInput, o.initialNumeraireValue)
	}

	md, pd := model.Evolution(), product.Evolution()
	if !slices.Equal(md.RateTimes(), pd.RateTimes()) || !slices.Equal(md.EvolutionTimes(), pd.EvolutionTimes()) {
		return nil, fmt.Errorf("%w: product and model use different time grids", xerrors.ErrScheduleMismatch)
	}
	numeraires := product.SuggestedNumeraires()
	if err := md.CheckNumeraires(numeraires); err != nil {
		return nil, err
	}

	rateTimes := md.RateTimes()
	payments := product.PossibleCashFlowTimes()
	discounters := make([]discounter, len(payments))
	for i, t := range payments {
		if t < rateTimes[0] {
			return nil, fmt.Errorf("%w: payment time %g before first rate time %g", xerrors.ErrInvalidInput, t, rateTimes[0])
		}
		discounters[i] = newDiscounter(t, rateTimes)
	}

	e := &Engine{
		model:       model,
		product:     product,
		factory:     factory,
		numeraires:  numeraires,
		discounters: discounters,
		opts:        o,
		antithetic:  isAntithetic(factory),
		logger:      o.logger,
	}
	if e.logger == nil {
		e.logger = logging.Default().Named("engine")
	}
	if o.metrics != nil {
		e.sim = o.metrics.Simulation()
	}
	return e, nil
}

func isAntithetic(factory brownian.GeneratorFactory) bool {
	_, ok := factory.(*brownian.AntitheticFactory)
	return ok
}

// batchResult 一批路径的逐路径估计值与加权导数和。
type batchResult struct {
	index     int
	values    [][]float64 // [product][path]
	weights   []float64
	sensSum   [][]float64 // [product][rate]
	cashFlows int
}

// batch 一批路径独占的生成器、产品副本与演化器。
type batch struct {
	index   int
	paths   int
	evolver *evolver.LogNormalEuler
	product pathwise.MultiProduct
}

// Run 模拟 paths 条路径并返回各产品的估计值。
// 每批的生成器按批次顺序创建，结果与 worker 数无关。
// 失败时返回 *xerrors.Error：沿用错误链上已有的类型，取消为 ErrDeadlineExceeded，其余为 ErrInternal。
func (e *Engine) Run(ctx context.Context, paths int) (*Result, error) {
	if paths <= 0 {
		return nil, fmt.Errorf("%w: paths must be positive, got %d", xerrors.ErrInvalidInput, paths)
	}
	defer e.logger.LogDuration(ctx, "monte carlo run", "engine", e.opts.name, "paths", paths)()

	batches, err := e.prepareBatches(paths)
	if err != nil {
		e.recordRun("error")
		return nil, xerrors.WrapInternal(err, "prepare monte carlo batches failed")
	}

	p := pool.NewWithResults[*batchResult]().
		WithContext(ctx).
		WithMaxGoroutines(e.opts.workers).
		WithCancelOnError()
	for _, b := range batches {
		p.Go(func(ctx context.Context) (*batchResult, error) {
			return e.runBatch(ctx, b)
		})
	}
	results, err := p.Wait()
	if err != nil {
		e.recordRun("error")
		e.logger.ErrorContext(ctx, "monte carlo run failed", "engine", e.opts.name, "error", err)
		if ctx.Err() != nil {
			return nil, xerrors.Wrap(err, xerrors.ErrDeadlineExceeded, "monte carlo run interrupted")
		}
		return nil, xerrors.WrapInternal(err, "monte carlo run failed")
	}
	slices.SortFunc(results, func(a, b *batchResult) int { return cmp.Compare(a.index, b.index) })

	e.recordRun("ok")
	return e.aggregate(results, paths), nil
}

func (e *Engine) prepareBatches(paths int) ([]batch, error) {
	d := e.model.Evolution()
	size := e.opts.batchSize
	batches := make([]batch, 0, (paths+size-1)/size)
	for start, index := 0, 0; start < paths; start, index = start+size, index+1 {
		g, err := e.factory.Create(e.model.NumberOfFactors(), d.NumberOfSteps())
		if err != nil {
			return nil, fmt.Errorf("create generator for batch %d: %w", index, err)
		}
		ev, err := evolver.NewLogNormalEuler(e.model, e.numeraires, g)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch{
			index:   index,
			paths:   min(size, paths-start),
			evolver: ev,
			product: e.product.Clone(),
		})
	}
	return batches, nil
}

func (e *Engine) runBatch(ctx context.Context, b batch) (*batchResult, error) {
	start := time.Now()
	nProducts := b.product.NumberOfProducts()
	nRates := e.model.NumberOfRates()

	res := &batchResult{
		index:   b.index,
		values:  make([][]float64, nProducts),
		weights: make([]float64, b.paths),
		sensSum: make([][]float64, nProducts),
	}
	for k := range nProducts {
		res.values[k] = make([]float64, b.paths)
		res.sensSum[k] = make([]float64, nRates)
	}

	counts, flows := pathwise.NewCashFlowBuffers(b.product)
	values := make([]float64, nProducts)
	sens := make([][]float64, nProducts)
	for k := range sens {
		sens[k] = make([]float64, nRates)
	}

	for path := range b.paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch %d interrupted after %d paths: %w", b.index, path, err)
		}
		weight, n, err := e.singlePath(b, counts, flows, values, sens)
		if err != nil {
			return nil, fmt.Errorf("batch %d path %d: %w", b.index, path, err)
		}
		res.weights[path] = weight
		res.cashFlows += n
		for k := range nProducts {
			res.values[k][path] = values[k]
			floats.AddScaled(res.sensSum[k], weight, sens[k])
		}
	}

	if e.sim != nil {
		e.sim.PathsTotal.WithLabelValues(e.opts.name).Add(float64(b.paths))
		e.sim.CashFlowsTotal.WithLabelValues(e.opts.name).Add(float64(res.cashFlows))
		e.sim.BatchDuration.WithLabelValues(e.opts.name).Observe(time.Since(start).Seconds())
	}
	return res, nil
}

// singlePath 模拟一条路径，values 与 sens 写入以计价单位平减后的各产品现金流之和。
func (e *Engine) singlePath(b batch, counts []int, flows [][]pathwise.CashFlow, values []float64, sens [][]float64) (float64, int, error) {
	for k := range values {
		values[k] = 0
		clear(sens[k])
	}
	weight := b.evolver.StartNewPath()
	b.product.Reset()
	deflated := b.product.AlreadyDeflated()
	principal := 1.0
	emitted := 0

	for done := false; !done; {
		step := b.evolver.CurrentStep()
		w, err := b.evolver.Advance()
		if err != nil {
			return 0, 0, err
		}
		weight *= w

		state := b.evolver.CurrentState()
		done, err = b.product.NextTimeStep(state, counts, flows)
		if err != nil {
			return 0, 0, err
		}

		numeraire := e.numeraires[step]
		for k, n := range counts {
			for j := range n {
				cf := &flows[k][j]
				factor := 1.0 / principal
				if !deflated {
					factor *= e.discounters[cf.TimeIndex].numeraireBonds(state, numeraire)
				}
				values[k] += cf.Amount[0] * factor
				floats.AddScaled(sens[k], factor, cf.Amount[1:])
				emitted++
			}
		}

		if !done {
			if next := e.numeraires[step+1]; next != numeraire {
				principal *= state.DiscountRatio(numeraire, next)
			}
		}
	}
	return weight, emitted, nil
}

func (e *Engine) recordRun(status string) {
	if e.sim != nil {
		e.sim.RunsTotal.WithLabelValues(e.opts.name, status).Inc()
	}
}
