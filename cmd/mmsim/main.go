// mmsim 从 TOML 配置运行市场模型蒙特卡洛定价，或输出扩展 OU 过程的期望。
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/marketmodels/config"
	"github.com/wyfcoding/marketmodels/logging"
	"github.com/wyfcoding/marketmodels/xerrors"
)

const serviceName = "mmsim"

var (
	configPath string
	cfg        config.Config
	logger     *logging.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Monte-Carlo simulation of LIBOR market model products",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg = config.Config{}
			if err := config.Load(configPath, &cfg); err != nil {
				return err
			}
			lc := cfg.Log.Logging(serviceName, cmd.Name())
			if lc.File == "" {
				lc.Output = cmd.ErrOrStderr()
			}
			logger = logging.NewFromConfig(lc)
			logger.Debug("configuration loaded", "path", configPath, "version", cfg.Version)
			if logging.Level() <= slog.LevelDebug {
				config.PrintWithMask(&cfg)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/mmsim.toml", "path to the TOML configuration file")
	root.AddCommand(newPriceCmd(), newOUCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		code := exitCode(err)
		logging.Error(ctx, "mmsim failed", "error", err, "type", xerrors.TypeOf(err).String(), "exit_code", code)
		stop()
		os.Exit(code)
	}
}

// exitCode 带类型的错误以其 gRPC 状态码退出，其他错误退出码为 1。
func exitCode(err error) int {
	e, ok := xerrors.FromError(err)
	if !ok {
		return 1
	}
	return int(e.ToGRPCStatus().Code())
}
