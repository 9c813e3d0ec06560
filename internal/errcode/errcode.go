package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：调用方可感知的业务错误（不自动重试）
// - 5xxx：系统/外部依赖错误（渲染、存储、数据一致性）
const (
	OK                 = 0
	InvalidArgument    = 4000
	PermissionDenied   = 4003
	NotFound           = 4004
	Conflict           = 4009
	NotPublished       = 4010
	DepthLimitExceeded = 4022

	SystemError    = 5000
	ContentMissing = 5001
	RenderFailure  = 5020
	ExtractFailure = 5021
	StorageFailure = 5030
	RenderTimeout  = 5040
)
