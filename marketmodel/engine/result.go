package engine

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Result 一次运行的估计结果，金额均已乘以初始计价单位价格。
type Result struct {
	Paths int
	// Values 各产品的现值估计。
	Values []float64
	// StdErrors 各产品估计值的标准误差。
	// 对偶抽样时按每对路径的平均值计算，批内落单的最后一条路径单独作为一个样本。
	StdErrors []float64
	// Sensitivities[k][i] 产品 k 的平减现金流对第 i 个远期利率在定盘时刻取值的平均导数。
	Sensitivities [][]float64
}

// SummaryRow 结果报表的一行。
type SummaryRow struct {
	Product  int
	Value    decimal.Decimal
	StdError decimal.Decimal
}

func (e *Engine) aggregate(batches []*batchResult, paths int) *Result {
	nProducts := e.product.NumberOfProducts()
	nRates := e.model.NumberOfRates()
	scale := e.opts.initialNumeraireValue

	weights := make([]float64, 0, paths)
	for _, b := range batches {
		weights = append(weights, b.weights...)
	}
	totalWeight := floats.Sum(weights)

	res := &Result{
		Paths:         paths,
		Values:        make([]float64, nProducts),
		StdErrors:     make([]float64, nProducts),
		Sensitivities: make([][]float64, nProducts),
	}
	samples := make([]float64, 0, paths)
	for k := range nProducts {
		samples = samples[:0]
		sens := make([]float64, nRates)
		for _, b := range batches {
			samples = append(samples, b.values[k]...)
			floats.Add(sens, b.sensSum[k])
		}

		mean, std := stat.MeanStdDev(samples, weights)
		n := paths
		if e.antithetic {
			pairs, pairWeights := pairAverages(batches, k)
			_, std = stat.MeanStdDev(pairs, pairWeights)
			n = len(pairs)
		}
		res.Values[k] = scale * mean
		if n > 1 {
			res.StdErrors[k] = scale * std / math.Sqrt(float64(n))
		}
		floats.Scale(scale/totalWeight, sens)
		res.Sensitivities[k] = sens
	}
	return res
}

// pairAverages 产品 k 在每个批次内相邻 (原始, 镜像) 路径的平均值及平均权重。
// 镜像路径与原始路径负相关，成对平均后各样本才相互独立。
func pairAverages(batches []*batchResult, k int) ([]float64, []float64) {
	var values, weights []float64
	for _, b := range batches {
		v := b.values[k]
		for j := 0; j < len(v); j += 2 {
			if j+1 == len(v) {
				values = append(values, v[j])
				weights = append(weights, b.weights[j])
				break
			}
			values = append(values, 0.5*(v[j]+v[j+1]))
			weights = append(weights, 0.5*(b.weights[j]+b.weights[j+1]))
		}
	}
	return values, weights
}

// Summary 按 places 位小数四舍五入的报表。
func (r *Result) Summary(places int32) []SummaryRow {
	rows := make([]SummaryRow, len(r.Values))
	for k := range rows {
		rows[k] = SummaryRow{
			Product:  k,
			Value:    decimal.NewFromFloat(r.Values[k]).Round(places),
			StdError: decimal.NewFromFloat(r.StdErrors[k]).Round(places),
		}
	}
	return rows
}

// Total 所有产品现值之和。
func (r *Result) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.Values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}
