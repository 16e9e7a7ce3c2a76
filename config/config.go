// Package config 提供模拟任务的配置加载、校验与热更新能力.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/marketmodels/logging"
)

// Config 全局顶级配置结构.
type Config struct {
	Version    string           `mapstructure:"version"    toml:"version"`
	Log        LogConfig        `mapstructure:"log"        toml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    toml:"metrics"`
	Simulation SimulationConfig `mapstructure:"simulation" toml:"simulation"`
	Model      ModelConfig      `mapstructure:"model"      toml:"model"`
	Product    ProductConfig    `mapstructure:"product"    toml:"product"`
	Process    ProcessConfig    `mapstructure:"process"    toml:"process"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"oneof=debug info warn warning error"`
	File       string `mapstructure:"file"        toml:"file"`        // 日志文件路径，为空只输出到控制台。
	Console    bool   `mapstructure:"console"     toml:"console"`     // 写文件时是否同时输出到控制台。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"    validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"     validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"    toml:"compress"`
}

// Logging 转换为 logging 包的配置。
func (c LogConfig) Logging(service, module string) logging.Config {
	return logging.Config{
		Service:    service,
		Module:     module,
		Level:      c.Level,
		File:       c.File,
		Console:    c.Console,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Addr    string `mapstructure:"addr"    toml:"addr"    validate:"required_if=Enabled true"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// SimulationConfig 蒙特卡洛运行参数.
type SimulationConfig struct {
	Paths      int    `mapstructure:"paths"      toml:"paths"      validate:"required,min=1"`
	Workers    int    `mapstructure:"workers"    toml:"workers"    validate:"gte=0"` // 0 表示 GOMAXPROCS。
	BatchSize  int    `mapstructure:"batch_size" toml:"batch_size" validate:"gte=0"`
	Seed       uint64 `mapstructure:"seed"       toml:"seed"`
	Antithetic bool   `mapstructure:"antithetic" toml:"antithetic"`
}

// ModelConfig 对数正态远期利率模型.
type ModelConfig struct {
	RateTimes       []float64   `mapstructure:"rate_times"       toml:"rate_times"       validate:"required,min=2,dive,gte=0"` // 第一个元素必须为正。
	InitialRates    []float64   `mapstructure:"initial_rates"    toml:"initial_rates"    validate:"required,dive,gt=0"`
	Volatilities    []float64   `mapstructure:"volatilities"     toml:"volatilities"     validate:"required,dive,gte=0"`
	Correlation     [][]float64 `mapstructure:"correlation"      toml:"correlation"`
	InitialDiscount float64     `mapstructure:"initial_discount" toml:"initial_discount" validate:"gt=0"` // P(0, t_0)。
}

// ProductConfig 定价产品.
type ProductConfig struct {
	Kind     string           `mapstructure:"kind"     toml:"kind"     validate:"required,oneof=caplet deflated_caplet deflated_cap"`
	Accruals []float64        `mapstructure:"accruals" toml:"accruals" validate:"omitempty,dive,gt=0"` // 为空时取利率时间间隔。
	Strike   float64          `mapstructure:"strike"   toml:"strike"   validate:"gte=0"`
	Strikes  []float64        `mapstructure:"strikes"  toml:"strikes"  validate:"omitempty,dive,gte=0"` // 非空时覆盖 Strike。
	Caps     []CapRangeConfig `mapstructure:"caps"     toml:"caps"     validate:"required_if=Kind deflated_cap,dive"`
}

// CapRangeConfig 一个利率上限覆盖的单元区间 [start, end)。
type CapRangeConfig struct {
	Start int `mapstructure:"start" toml:"start" validate:"gte=0"`
	End   int `mapstructure:"end"   toml:"end"   validate:"gtfield=Start"`
}

// ProcessConfig 扩展 OU 过程及其期望的输出网格.
type ProcessConfig struct {
	Speed          float64 `mapstructure:"speed"           toml:"speed"           validate:"gte=0"`
	Volatility     float64 `mapstructure:"volatility"      toml:"volatility"      validate:"gte=0"`
	X0             float64 `mapstructure:"x0"              toml:"x0"`
	ForcingLevel   float64 `mapstructure:"forcing_level"   toml:"forcing_level"`
	ForcingSlope   float64 `mapstructure:"forcing_slope"   toml:"forcing_slope"`
	Discretization string  `mapstructure:"discretization"  toml:"discretization"  validate:"oneof=midpoint trapezoidal gausslobatto"`
	IntegrationEps float64 `mapstructure:"integration_eps" toml:"integration_eps" validate:"gt=0"`
	Horizon        float64 `mapstructure:"horizon"         toml:"horizon"         validate:"gt=0"`
	Steps          int     `mapstructure:"steps"           toml:"steps"           validate:"min=1"`
}

// Forcing 线性强迫函数 b(t) = level + slope·t。
func (c ProcessConfig) Forcing() func(float64) float64 {
	level, slope := c.ForcingLevel, c.ForcingSlope
	return func(t float64) float64 { return level + slope*t }
}

var (
	mu        sync.Mutex
	vInstance = viper.New()
	onReload  []func(*Config)
	validate  = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateModel, ModelConfig{})
	return v
}

// validateModel 校验第一个利率时间为正，且各序列长度与利率个数一致。
func validateModel(sl validator.StructLevel) {
	m, ok := sl.Current().Interface().(ModelConfig)
	if !ok || len(m.RateTimes) < 2 {
		return
	}
	n := len(m.RateTimes) - 1
	if !(m.RateTimes[0] > 0) {
		sl.ReportError(m.RateTimes, "RateTimes", "rate_times", "first_gt0", "")
	}
	if len(m.InitialRates) != n {
		sl.ReportError(m.InitialRates, "InitialRates", "initial_rates", "len_rates", fmt.Sprint(n))
	}
	if len(m.Volatilities) != n {
		sl.ReportError(m.Volatilities, "Volatilities", "volatilities", "len_rates", fmt.Sprint(n))
	}
	if m.Correlation != nil && len(m.Correlation) != n {
		sl.ReportError(m.Correlation, "Correlation", "correlation", "len_rates", fmt.Sprint(n))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("simulation.paths", 10000)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.batch_size", 1000)
	v.SetDefault("simulation.seed", 42)
	v.SetDefault("simulation.antithetic", false)
	v.SetDefault("model.initial_discount", 1.0)
	v.SetDefault("product.kind", "caplet")
	v.SetDefault("process.discretization", "gausslobatto")
	v.SetDefault("process.integration_eps", 1e-4)
	v.SetDefault("process.horizon", 5.0)
	v.SetDefault("process.steps", 10)
}

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	onReload = append(onReload, hook)
}

// Validate 校验任意配置结构体.
func Validate(conf any) error {
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Load 读取 TOML 配置文件，应用 APP_ 前缀的环境变量覆盖并校验.
func Load(path string, conf any) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}
	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := Validate(conf); err != nil {
		return err
	}

	mu.Lock()
	vInstance = v
	mu.Unlock()
	return nil
}

// Watch 监听最近一次 Load 的配置文件，变更后重新解析到 conf，
// 同步日志级别并调用已注册的回调。校验失败的变更被丢弃。
func Watch(conf any) {
	v := GetViper()
	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		fresh := reflect.New(reflect.TypeOf(conf).Elem()).Interface()
		if err := v.Unmarshal(fresh); err != nil {
			slog.Error("reload config unmarshal failed", "error", err)
			return
		}
		if err := Validate(fresh); err != nil {
			slog.Error("reload config validation failed", "error", err)
			return
		}
		reflect.ValueOf(conf).Elem().Set(reflect.ValueOf(fresh).Elem())

		if lvl, ok := logLevelOf(conf); ok {
			logging.SetLevel(lvl)
		}
		slog.Info("config hot-reloaded and validated successfully")

		if cfg, ok := conf.(*Config); ok {
			mu.Lock()
			hooks := append(([]func(*Config))(nil), onReload...)
			mu.Unlock()
			for _, hook := range hooks {
				hook(cfg)
			}
		}
	})
	v.WatchConfig()
}

// logLevelOf 取出配置中的 Log.Level。
func logLevelOf(conf any) (string, bool) {
	if c, ok := conf.(*Config); ok {
		return c.Log.Level, true
	}
	val := reflect.ValueOf(conf)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return "", false
	}
	logField := val.FieldByName("Log")
	if !logField.IsValid() || logField.Kind() != reflect.Struct {
		return "", false
	}
	levelField := logField.FieldByName("Level")
	if levelField.IsValid() && levelField.Kind() == reflect.String {
		return levelField.String(), true
	}
	return "", false
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		slog.Error("failed to unmarshal config for masking", "error", unmarshalErr)
		return
	}
	mask(configMap)

	maskedJSON, marshalErr := json.MarshalIndent(configMap, "  ", "  ")
	if marshalErr != nil {
		slog.Error("failed to marshal masked config", "error", marshalErr)
		return
	}
	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}
		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}

// GetViper 返回最近一次 Load 使用的 Viper 实例.
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return vInstance
}
