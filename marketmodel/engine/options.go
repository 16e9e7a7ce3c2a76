package engine

import (
	"runtime"

	"github.com/wyfcoding/marketmodels/logging"
	"github.com/wyfcoding/marketmodels/metrics"
)

const defaultBatchSize = 1000

type options struct {
	name                  string
	workers               int
	batchSize             int
	initialNumeraireValue float64
	logger                *logging.Logger
	metrics               *metrics.Metrics
}

// Option 引擎选项。
type Option func(*options)

// WithName 设置日志与指标中的引擎名。
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithWorkers 并发模拟的批次数上限，默认 GOMAXPROCS。
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBatchSize 每批路径数。批次划分决定生成器流的分配，因此影响结果；worker 数不影响。
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithInitialNumeraireValue 第一步计价单位在 0 时刻的价格，结果以此折回现值。
func WithInitialNumeraireValue(v float64) Option {
	return func(o *options) { o.initialNumeraireValue = v }
}

// WithLogger 设置日志记录器，默认使用全局 Logger 的 engine 子 Logger。
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics 设置指标采集器，为空时不记录指标。
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func defaultOptions() options {
	return options{
		name:                  "accounting",
		workers:               runtime.GOMAXPROCS(0),
		batchSize:             defaultBatchSize,
		initialNumeraireValue: 1.0,
	}
}
