package errcode

import (
	"context"
	"errors"
	"net/http"

	"gapgiraffe/internal/analysis"
	"gapgiraffe/internal/docstore"
	"gapgiraffe/internal/messages"
	"gapgiraffe/internal/repository"
)

// 错误码约定：
// - 0：无错误
// - 4xxx：调用方可修正的错误（参数、资源缺失、冲突）
// - 5xxx：系统错误（存储不可用、迁移失败、外部分析失败）
const (
	OK               = 0
	ValidationFailed = 4000
	ResourceMissing  = 4004
	Conflict         = 4009
	UnknownMessage   = 4010
	SystemError      = 5000
	NotInitialized   = 5001
	StoreUnavailable = 5003
	MigrationFailed  = 5010
	AnalysisFailed   = 5020
	AnalysisTimeout  = 5024
)

// FromError 将领域错误映射为错误码。
func FromError(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, repository.ErrValidation):
		return ValidationFailed
	case errors.Is(err, messages.ErrUnknownType):
		return UnknownMessage
	case errors.Is(err, docstore.ErrNotFound):
		return ResourceMissing
	case errors.Is(err, docstore.ErrDuplicateKey):
		return Conflict
	case errors.Is(err, docstore.ErrNotInitialized):
		return NotInitialized
	case errors.Is(err, docstore.ErrStoreUnavailable):
		return StoreUnavailable
	case errors.Is(err, docstore.ErrMigrationFailed):
		return MigrationFailed
	case errors.Is(err, analysis.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return AnalysisTimeout
	case errors.Is(err, analysis.ErrAnalysisFailed):
		return AnalysisFailed
	default:
		return SystemError
	}
}

// HTTPStatus 返回错误码对应的 HTTP 状态码。
func HTTPStatus(code int) int {
	switch code {
	case OK:
		return http.StatusOK
	case ValidationFailed, UnknownMessage:
		return http.StatusBadRequest
	case ResourceMissing:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case NotInitialized, StoreUnavailable:
		return http.StatusServiceUnavailable
	case AnalysisFailed:
		return http.StatusBadGateway
	case AnalysisTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
