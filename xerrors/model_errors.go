package xerrors

// 构造期契约违背。
var (
	// ErrEmptyData 输入数据为空。
	ErrEmptyData = New(ErrInvalidArg, 400001, "empty data", "input data must not be empty", nil)
	// ErrInvalidInput 输入参数错误。
	ErrInvalidInput = New(ErrInvalidArg, 400002, "invalid input", "check your input parameters", nil)
	// ErrDimMismatch 维度不匹配。
	ErrDimMismatch = New(ErrInvalidArg, 400007, "dimension mismatch", "vector lengths do not match", nil)
	// ErrNotPositiveDefinite 不是正定矩阵。
	ErrNotPositiveDefinite = New(ErrInvalidArg, 400009, "matrix is not positive definite", "correlation matrix must be positive definite", nil)
	// ErrNonIncreasingTimes 时间序列非严格递增。
	ErrNonIncreasingTimes = New(ErrInvalidArg, 400020, "times not strictly increasing", "rate and evolution times must be strictly increasing", nil)
	// ErrScheduleMismatch 计息、支付与行权价序列长度不一致。
	ErrScheduleMismatch = New(ErrInvalidArg, 400021, "schedule size mismatch", "accruals, payment times and strikes must have one entry per rate", nil)
	// ErrInvalidCapRange 上限区间非法。
	ErrInvalidCapRange = New(ErrInvalidArg, 400022, "invalid cap range", "each range must satisfy 0 <= start < end <= number of rates", nil)
	// ErrNegativeSpeed 均值回复速度为负。
	ErrNegativeSpeed = New(ErrInvalidArg, 400023, "negative speed given", "mean reversion speed must be non-negative", nil)
	// ErrNegativeVolatility 波动率为负。
	ErrNegativeVolatility = New(ErrInvalidArg, 400024, "negative volatility given", "volatility must be non-negative", nil)
	// ErrInvalidNumeraire 计价单位索引非法。
	ErrInvalidNumeraire = New(ErrInvalidArg, 400025, "invalid numeraire", "numeraire index must lie between the first alive rate and the number of rates", nil)
	// ErrIncompatibleGenerator 随机数生成器与演化维度不一致。
	ErrIncompatibleGenerator = New(ErrInvalidArg, 400026, "incompatible generator", "generator factors or steps do not match the model", nil)
)

// 配置错误。
var (
	// ErrUnknownDiscretization 未知的离散化方案。
	ErrUnknownDiscretization = New(ErrUnimplemented, 501001, "unknown discretization scheme", "supported schemes: midpoint, trapezoidal, gausslobatto", nil)
	// ErrUnknownProduct 未知的产品类型。
	ErrUnknownProduct = New(ErrUnimplemented, 501002, "unknown product kind", "supported kinds: caplet, deflated_caplet, deflated_cap", nil)
)

// 调用协议违背。
var (
	// ErrIncrementBufferSize 增量缓冲区长度与因子数不一致。
	ErrIncrementBufferSize = New(ErrFailedPrecondition, 412001, "wrong increment buffer size", "buffer length must equal the number of factors", nil)
	// ErrStepOverrun 单条路径上的步数超出上限。
	ErrStepOverrun = New(ErrFailedPrecondition, 412002, "step overrun", "nextStep called more than numberOfSteps times before nextPath", nil)
	// ErrCashFlowBuffer 现金流缓冲区形状错误。
	ErrCashFlowBuffer = New(ErrFailedPrecondition, 412003, "wrong cash flow buffer", "buffers must be sized by numberOfProducts and maxNumberOfCashFlowsPerProductPerStep", nil)
	// ErrPathComplete 路径已结束但未重置。
	ErrPathComplete = New(ErrFailedPrecondition, 412004, "path already complete", "call reset before starting a new path", nil)
)

// 数值失败。
var (
	// ErrMathConvergence 数学计算未收敛。
	ErrMathConvergence = New(ErrInternal, 500002, "math convergence failed", "algorithm failed to converge", nil)
	// ErrMaxEvaluations 积分超出函数求值次数上限。
	ErrMaxEvaluations = New(ErrLimitExceeded, 429001, "max number of evaluations reached", "integration did not meet tolerance within the evaluation budget", nil)
)
