package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/marketmodels/config"
	"github.com/wyfcoding/marketmodels/process"
)

var schemes = []process.Discretization{process.MidPoint, process.Trapezoidal, process.GaussLobatto}

func newOUCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ou",
		Short: "Print extended Ornstein-Uhlenbeck expectations under every discretization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOU(cmd.OutOrStdout(), cfg.Process)
		},
	}
}

// runOU 输出从 (0, x0) 出发到网格各点的条件期望与标准差。
func runOU(w io.Writer, pc config.ProcessConfig) error {
	configured, err := process.ParseDiscretization(pc.Discretization)
	if err != nil {
		return err
	}
	procs := make([]*process.ExtendedOrnsteinUhlenbeckProcess, len(schemes))
	for i, s := range schemes {
		if procs[i], err = buildProcess(pc, s); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "t")
	for _, s := range schemes {
		name := s.String()
		if s == configured {
			name += "*"
		}
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw, "\tstd_dev")

	h := pc.Horizon / float64(pc.Steps)
	for k := 1; k <= pc.Steps; k++ {
		t := float64(k) * h
		fmt.Fprintf(tw, "%.4f", t)
		for _, p := range procs {
			e, err := p.Expectation(0, pc.X0, t)
			if err != nil {
				return fmt.Errorf("%s expectation at t=%g: %w", p.Discretization(), t, err)
			}
			fmt.Fprintf(tw, "\t%.10f", e)
		}
		fmt.Fprintf(tw, "\t%.10f\n", procs[0].StdDeviation(0, pc.X0, t))
	}
	return tw.Flush()
}
