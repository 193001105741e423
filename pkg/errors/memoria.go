package errors

import "google.golang.org/grpc/codes"

// 诊断修复服务代码: 21 (业务服务范围 20-79)

var (
	// 请求/前置条件错误 (类别 01)
	ErrNoSections   = Register(New(MakeCode(ServiceMemoria, CategoryRequest, 1), 400, codes.FailedPrecondition, "Project has no sections", "项目没有章节"))
	ErrNoDiagnostic = Register(New(MakeCode(ServiceMemoria, CategoryRequest, 2), 400, codes.FailedPrecondition, "No diagnostic found, generate diagnosis first", "没有诊断结果，请先生成诊断"))

	// 资源错误 (类别 04)
	ErrProjectNotFound = Register(New(MakeCode(ServiceMemoria, CategoryResource, 1), 404, codes.NotFound, "Project not found", "项目不存在"))
	ErrSectionNotFound = Register(New(MakeCode(ServiceMemoria, CategoryResource, 2), 404, codes.NotFound, "Section not found", "章节不存在"))

	// 冲突错误 (类别 05)
	ErrRunInProgress = Register(New(MakeCode(ServiceMemoria, CategoryConflict, 1), 409, codes.Aborted, "An improvement run is already in progress for this project", "该项目已有修复任务在运行"))

	// 配置错误 (类别 12)
	ErrMissingCredential = Register(New(MakeCode(ServiceMemoria, CategoryConfig, 1), 500, codes.FailedPrecondition, "Model API credential is not configured", "未配置模型 API 密钥"))

	// 上游模型错误 (类别 10 - Network)
	ErrModelCall     = Register(New(MakeCode(ServiceMemoria, CategoryNetwork, 1), 502, codes.Unavailable, "Model call failed", "模型调用失败"))
	ErrModelResponse = Register(New(MakeCode(ServiceMemoria, CategoryNetwork, 2), 502, codes.Unavailable, "Could not parse model response", "无法解析模型响应"))
)
