package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fyerfyer/doc-annotator/api/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 应用错误类型
const (
	ErrorTypeValidation = "VALIDATION_ERROR" // 输入验证错误
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"  // 资源不存在
	ErrorTypeConflict   = "CONFLICT_ERROR"   // 资源状态冲突
	ErrorTypeInternal   = "INTERNAL_ERROR"   // 内部服务器错误
	ErrorTypeBusiness   = "BUSINESS_ERROR"   // 业务逻辑错误
)

// AppError 应用错误
type AppError struct {
	Type    string // 错误类型
	Message string // 返回给客户端的消息
	Details string // 详细信息，只在日志和调试模式的响应中出现
	Code    int    // HTTP状态码
}

// Error 实现error接口
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewConflictError 创建资源状态冲突错误
func NewConflictError(message string) AppError {
	return AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Code:    http.StatusConflict,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// NewBusinessError 创建业务逻辑错误
func NewBusinessError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeBusiness,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusUnprocessableEntity,
	}
}

// ErrorMiddleware 统一错误处理中间件
// 处理器通过 HandleError 记录错误，这里把最后一个错误转换为统一的响应结构
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					FieldTraceID: TraceID(c),
					FieldPath:    c.Request.URL.Path,
					"error":      r,
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered in API request")

				resp := model.NewErrorResponse(http.StatusInternalServerError, "An unexpected error occurred")
				if gin.Mode() == gin.DebugMode {
					resp.Message = fmt.Sprintf("Panic: %v", r)
				}
				resp.TraceID = TraceID(c)
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := asAppError(c.Errors.Last().Err)
		entry := log.WithFields(logrus.Fields{
			FieldTraceID: TraceID(c),
			FieldPath:    c.Request.URL.Path,
			"error_type": appErr.Type,
			"details":    appErr.Details,
		})
		if appErr.Code >= http.StatusInternalServerError {
			entry.Error(appErr.Message)
		} else {
			entry.Warn(appErr.Message)
		}

		resp := model.NewErrorResponse(appErr.Code, appErr.Message)
		if gin.Mode() == gin.DebugMode && appErr.Details != "" {
			resp.Message = appErr.Message + ": " + appErr.Details
		}
		resp.TraceID = TraceID(c)
		c.AbortWithStatusJSON(appErr.Code, resp)
	}
}

// asAppError 非AppError的错误按内部错误处理
func asAppError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var ptr *AppError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr
	}
	return NewInternalError("Internal server error", err.Error())
}

// HandleError 在处理器中记录错误，由 ErrorMiddleware 统一响应
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
