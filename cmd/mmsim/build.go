package main

import (
	"fmt"

	"github.com/wyfcoding/marketmodels/config"
	"github.com/wyfcoding/marketmodels/marketmodel/brownian"
	"github.com/wyfcoding/marketmodels/marketmodel/evolution"
	"github.com/wyfcoding/marketmodels/marketmodel/evolver"
	"github.com/wyfcoding/marketmodels/marketmodel/pathwise"
	"github.com/wyfcoding/marketmodels/process"
	"github.com/wyfcoding/marketmodels/xerrors"
)

// simulation 一次定价所需的全部组件。
type simulation struct {
	model   *evolver.Model
	product pathwise.MultiProduct
	factory brownian.GeneratorFactory
}

func buildSimulation(c *config.Config) (*simulation, error) {
	d, err := evolution.NewDescription(c.Model.RateTimes, nil)
	if err != nil {
		return nil, fmt.Errorf("evolution: %w", err)
	}
	model, err := evolver.NewModel(d, c.Model.InitialRates, c.Model.Volatilities, c.Model.Correlation)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	product, err := buildProduct(c.Product, d)
	if err != nil {
		return nil, fmt.Errorf("product: %w", err)
	}

	var factory brownian.GeneratorFactory = brownian.NewPseudoRandomFactory(c.Simulation.Seed)
	if c.Simulation.Antithetic {
		factory = brownian.NewAntitheticFactory(factory)
	}
	return &simulation{model: model, product: product, factory: factory}, nil
}

// buildProduct 计息比例默认取利率时间间隔，支付时间取每期期末。
func buildProduct(pc config.ProductConfig, d *evolution.Description) (pathwise.MultiProduct, error) {
	n := d.NumberOfRates()
	rateTimes := d.RateTimes()
	accruals := pc.Accruals
	if len(accruals) == 0 {
		accruals = d.RateTaus()
	}
	payments := rateTimes[1:]
	strikes := pc.Strikes
	if len(strikes) == 0 {
		strikes = make([]float64, n)
		for i := range strikes {
			strikes[i] = pc.Strike
		}
	}

	switch pc.Kind {
	case "caplet":
		return pathwise.NewMultiCaplet(rateTimes, accruals, payments, strikes)
	case "deflated_caplet":
		return pathwise.NewMultiDeflatedCaplet(rateTimes, accruals, payments, strikes)
	case "deflated_cap":
		ranges := make([]pathwise.CapRange, len(pc.Caps))
		for i, r := range pc.Caps {
			ranges[i] = pathwise.CapRange{Start: r.Start, End: r.End}
		}
		return pathwise.NewMultiDeflatedCap(rateTimes, accruals, payments, pc.Strike, ranges)
	default:
		return nil, fmt.Errorf("%w: %q", xerrors.ErrUnknownProduct, pc.Kind)
	}
}

func buildProcess(pc config.ProcessConfig, disc process.Discretization) (*process.ExtendedOrnsteinUhlenbeckProcess, error) {
	return process.NewExtendedOrnsteinUhlenbeckProcess(pc.Speed, pc.Volatility, pc.X0, pc.Forcing(), disc, pc.IntegrationEps)
}
