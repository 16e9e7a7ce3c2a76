// Package metrics 封装 Prometheus 指标注册表及蒙特卡洛模拟的标准监控指标。
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装了独立的 Prometheus 注册中心。
type Metrics struct {
	registry *prometheus.Registry

	BuildInfo *prometheus.GaugeVec

	simOnce    sync.Once
	simulation *SimulationMetrics
}

// SimulationMetrics 是模拟引擎使用的预定义指标。
type SimulationMetrics struct {
	PathsTotal     *prometheus.CounterVec   // 已模拟路径数 (维度: engine)
	CashFlowsTotal *prometheus.CounterVec   // 已产生现金流数 (维度: engine)
	BatchDuration  *prometheus.HistogramVec // 单批路径耗时分布 (维度: engine)
	RunsTotal      *prometheus.CounterVec   // 运行次数 (维度: engine, status)
}

// NewMetrics 初始化并返回一个新的指标采集器。
// 它会自动注册 Go 运行时指标和进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	slog.Info("unified metrics registry initialized", "service", serviceName)
	return &Metrics{registry: reg}
}

// Simulation 返回模拟指标集合，首次调用时注册。
func (m *Metrics) Simulation() *SimulationMetrics {
	m.simOnce.Do(func() {
		m.simulation = &SimulationMetrics{
			PathsTotal: m.NewCounterVec(prometheus.CounterOpts{
				Name: "mc_paths_simulated_total",
				Help: "Total number of Monte-Carlo paths simulated",
			}, []string{"engine"}),
			CashFlowsTotal: m.NewCounterVec(prometheus.CounterOpts{
				Name: "mc_cash_flows_total",
				Help: "Total number of cash flows emitted by products",
			}, []string{"engine"}),
			BatchDuration: m.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "mc_batch_duration_seconds",
				Help:    "Wall time spent simulating one batch of paths",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			}, []string{"engine"}),
			RunsTotal: m.NewCounterVec(prometheus.CounterOpts{
				Name: "mc_runs_total",
				Help: "Total number of engine runs by outcome",
			}, []string{"engine", "status"}),
		}
	})
	return m.simulation
}

// Registry 返回底层注册中心。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ExposeHttp 在指定地址启动一个独立的 HTTP 服务器用于暴露指标数据。
// 返回一个清理函数用于优雅关闭该服务器。
func (m *Metrics) ExposeHttp(addr string) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown metrics server", "error", err)
		}
	}
}
