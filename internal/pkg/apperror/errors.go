package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound                ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized            ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden               ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest              ErrorCode = "BAD_REQUEST"
	ErrCodeConflict                ErrorCode = "CONFLICT"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation              ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError           ErrorCode = "DATABASE_ERROR"
	ErrCodeBusinessLogic           ErrorCode = "BUSINESS_LOGIC_ERROR"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeInsufficientFunds       ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeLimitExceeded           ErrorCode = "LIMIT_EXCEEDED"
	ErrCodeServiceLimitExceeded    ErrorCode = "SERVICE_LIMIT_EXCEEDED"
	ErrCodeExternalService         ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeOrderProcessing         ErrorCode = "ORDER_PROCESSING_ERROR"
	ErrCodeReconciliationRequired  ErrorCode = "RECONCILIATION_REQUIRED"
	ErrCodeRateLimited             ErrorCode = "RATE_LIMITED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]any
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails возвращает копию ошибки с дополнительными структурированными деталями.
// Копия нужна, чтобы не портить общие sentinel-ошибки вроде ErrOrderNotFound.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	cp := *e
	cp.Details = merged
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeBusinessLogic, ErrCodeInvalidStatusTransition, ErrCodeServiceLimitExceeded:
		return http.StatusUnprocessableEntity
	case ErrCodeInsufficientFunds, ErrCodeLimitExceeded:
		return http.StatusPaymentRequired
	case ErrCodeExternalService, ErrCodeOrderProcessing:
		return http.StatusBadGateway
	case ErrCodeReconciliationRequired:
		return http.StatusAccepted
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Code возвращает код ошибки приложения или пустую строку.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsBusinessLogic истинна и для недопустимых переходов статуса.
func IsBusinessLogic(err error) bool {
	return hasCode(err, ErrCodeBusinessLogic) || hasCode(err, ErrCodeInvalidStatusTransition)
}

func IsInsufficientFunds(err error) bool {
	return hasCode(err, ErrCodeInsufficientFunds)
}

func IsLimitExceeded(err error) bool {
	return hasCode(err, ErrCodeLimitExceeded)
}

func IsServiceLimit(err error) bool {
	return hasCode(err, ErrCodeServiceLimitExceeded)
}

func IsExternalService(err error) bool {
	return hasCode(err, ErrCodeExternalService)
}

func IsOrderProcessing(err error) bool {
	return hasCode(err, ErrCodeOrderProcessing)
}

func IsReconciliationRequired(err error) bool {
	return hasCode(err, ErrCodeReconciliationRequired)
}

// Retryable сообщает, имеет ли смысл вызывающему повторить операцию позже.
func Retryable(err error) bool {
	return IsExternalService(err) || IsOrderProcessing(err)
}

var (
	ErrOrderNotFound    = New(ErrCodeNotFound, "заказ не найден")
	ErrWalletNotFound   = New(ErrCodeNotFound, "кошелёк не найден")
	ErrServiceNotFound  = New(ErrCodeNotFound, "услуга не найдена")
	ErrProviderNotFound = New(ErrCodeNotFound, "провайдер не найден")
	ErrUnauthorized     = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden        = New(ErrCodeForbidden, "недостаточно прав")
)
