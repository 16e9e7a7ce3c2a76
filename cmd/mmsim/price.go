package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/marketmodels/algorithm/finance"
	"github.com/wyfcoding/marketmodels/config"
	"github.com/wyfcoding/marketmodels/marketmodel/engine"
	"github.com/wyfcoding/marketmodels/metrics"
)

func newPriceCmd() *cobra.Command {
	var (
		paths int
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price the configured product with the Monte-Carlo accounting engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if paths > 0 {
				cfg.Simulation.Paths = paths
			}
			if watch {
				watchLogLevel()
			}
			return runPrice(cmd, &cfg)
		},
	}
	cmd.Flags().IntVarP(&paths, "paths", "n", 0, "override simulation.paths")
	cmd.Flags().BoolVar(&watch, "watch", false, "apply log level changes from the config file while pricing")
	return cmd
}

// watchLogLevel 监听配置文件，运行中只同步日志级别，已开始的定价不受影响。
func watchLogLevel() {
	live := cfg
	config.RegisterReloadHook(func(c *config.Config) {
		logger.Info("log level reloaded", "level", c.Log.Level)
	})
	config.Watch(&live)
}

func runPrice(cmd *cobra.Command, c *config.Config) error {
	ctx := cmd.Context()
	sim, err := buildSimulation(c)
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithName(c.Product.Kind),
		engine.WithWorkers(c.Simulation.Workers),
		engine.WithBatchSize(c.Simulation.BatchSize),
		engine.WithInitialNumeraireValue(c.Model.InitialDiscount),
		engine.WithLogger(logger.Named("engine")),
	}
	if c.Metrics.Enabled {
		m := metrics.NewMetrics(serviceName)
		m.RegisterBuildInfo(serviceName, c.Version)
		stop := m.ExposeHttp(c.Metrics.Addr)
		defer stop()
		opts = append(opts, engine.WithMetrics(m))
	}

	e, err := engine.New(sim.model, sim.product, sim.factory, opts...)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "pricing started", "product", c.Product.Kind, "paths", c.Simulation.Paths,
		"antithetic", c.Simulation.Antithetic)

	res, err := e.Run(ctx, c.Simulation.Paths)
	if err != nil {
		return err
	}

	var reference []float64
	if c.Product.Kind == "caplet" || c.Product.Kind == "deflated_caplet" {
		if reference, err = blackReference(sim, c); err != nil {
			return err
		}
	}
	return printResult(cmd.OutOrStdout(), res, reference)
}

// blackReference 各上限单元的 Black 价格，与模拟结果使用同一初始曲线。
func blackReference(sim *simulation, c *config.Config) ([]float64, error) {
	d := sim.model.Evolution()
	rateTimes := d.RateTimes()
	accruals := c.Product.Accruals
	if len(accruals) == 0 {
		accruals = d.RateTaus()
	}

	out := make([]float64, d.NumberOfRates())
	for i := range out {
		strike := c.Product.Strike
		if len(c.Product.Strikes) > 0 {
			strike = c.Product.Strikes[i]
		}
		discount := c.Model.InitialDiscount * sim.model.InitialDiscountRatio(i+1, 0)
		v, err := finance.BlackCaplet(sim.model.InitialRates()[i], strike, sim.model.Volatilities()[i],
			rateTimes[i], accruals[i], discount)
		if err != nil {
			return nil, fmt.Errorf("black caplet %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func printResult(w io.Writer, res *engine.Result, reference []float64) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if reference != nil {
		fmt.Fprintln(tw, "product\tvalue\tstd_error\tblack")
	} else {
		fmt.Fprintln(tw, "product\tvalue\tstd_error")
	}
	for _, row := range res.Summary(8) {
		if reference != nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.8f\n", row.Product, row.Value, row.StdError, reference[row.Product])
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", row.Product, row.Value, row.StdError)
		}
	}
	fmt.Fprintf(tw, "total\t%s\t\n", res.Total().Round(8))
	fmt.Fprintf(tw, "paths\t%d\t\n", res.Paths)
	return tw.Flush()
}
