package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))
	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
)

var (
	// ErrUnauthorized indicates missing authentication.
	ErrUnauthorized = Register(New(MakeCode(ServiceCommon, CategoryAuth, 0), http.StatusUnauthorized, codes.Unauthenticated, "Unauthorized", "未授权"))
	// ErrInvalidToken indicates an invalid token.
	ErrInvalidToken = Register(New(MakeCode(ServiceCommon, CategoryAuth, 1), http.StatusUnauthorized, codes.Unauthenticated, "Invalid token", "令牌无效"))
	// ErrTokenExpired indicates an expired token.
	ErrTokenExpired = Register(New(MakeCode(ServiceCommon, CategoryAuth, 2), http.StatusUnauthorized, codes.Unauthenticated, "Token expired", "令牌已过期"))
)

var (
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))
	// ErrRouteNotFound indicates the route does not exist.
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 4), http.StatusNotFound, codes.NotFound, "Route not found", "路由不存在"))
)

var (
	// ErrConflict indicates a resource conflict.
	ErrConflict = Register(New(MakeCode(ServiceCommon, CategoryConflict, 0), http.StatusConflict, codes.AlreadyExists, "Resource conflict", "资源冲突"))
	// ErrTooManyRequests indicates rate limiting.
	ErrTooManyRequests = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 0), http.StatusTooManyRequests, codes.ResourceExhausted, "Too many requests", "请求过于频繁"))
)

var (
	// ErrInternal indicates an internal server error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	// ErrPanic indicates a recovered panic.
	ErrPanic = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Service panic", "服务异常"))
	// ErrDatabase indicates a database error.
	ErrDatabase = Register(New(MakeCode(ServiceCommon, CategoryDatabase, 0), http.StatusInternalServerError, codes.Internal, "Database error", "数据库错误"))
	// ErrCache indicates a cache error.
	ErrCache = Register(New(MakeCode(ServiceCommon, CategoryCache, 0), http.StatusInternalServerError, codes.Internal, "Cache error", "缓存错误"))
	// ErrConfig indicates a configuration error.
	ErrConfig = Register(New(MakeCode(ServiceCommon, CategoryConfig, 0), http.StatusInternalServerError, codes.FailedPrecondition, "Configuration error", "配置错误"))
)
