// Package errors 提供统一的错误处理框架
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	// 通用错误码
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeTimeout      Code = "TIMEOUT"

	// 分类阶段（单条记录可恢复，不中断整体）
	CodeUnresolvedLocation Code = "UNRESOLVED_LOCATION" // 地址无法解析为分区
	CodeUnparsableTimeSlot Code = "UNPARSABLE_TIME_SLOT" // 优先时刻文本无法解析

	// 求解/排序阶段（仅能放宽配置后整体重解）
	CodeCapacityExhausted Code = "CAPACITY_EXHAUSTED" // 无护士有剩余容量
	CodePinConflict       Code = "PIN_CONFLICT"       // 固定时刻巡访互相冲突
	CodeSolverTimeout     Code = "SOLVER_TIMEOUT"     // 求解迭代超限

	// 校验阶段（候选排程作废）
	CodeUnscheduledVisit Code = "UNSCHEDULED_VISIT" // 巡访未被排定或被重复排定
	CodeContinuityBroken Code = "CONTINUITY_BROKEN" // 连续性组跨护士
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED" // 时段容量超限
	CodeDeadlineMissed   Code = "DEADLINE_MISSED"   // 截止时间未满足
	CodePinViolated      Code = "PIN_VIOLATED"      // 固定时刻偏差超出容差
	CodeLunchOverlap     Code = "LUNCH_OVERLAP"     // 午餐窗口被巡访占用

	// 数据相关
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// AppError 应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithField 添加字段
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 创建新错误
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// codeToHTTPStatus 错误码转HTTP状态码
func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail, CodeUnparsableTimeSlot:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout, CodeSolverTimeout:
		return http.StatusGatewayTimeout
	case CodeUnresolvedLocation, CodeCapacityExhausted, CodePinConflict,
		CodeUnscheduledVisit, CodeContinuityBroken, CodeCapacityExceeded,
		CodeDeadlineMissed, CodePinViolated, CodeLunchOverlap:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Is 检查错误是否为特定类型
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode 获取错误码
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetHTTPStatus 获取HTTP状态码
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// UnresolvedLocation 创建分区解析失败错误
func UnresolvedLocation(visitID, postalCode string) *AppError {
	return New(CodeUnresolvedLocation,
		fmt.Sprintf("巡访 %s 的邮编 %s 无法解析为分区", visitID, postalCode)).
		WithField("visit_id", visitID).
		WithField("postal_code", postalCode)
}

// UnparsableTimeSlot 创建时刻解析失败错误
func UnparsableTimeSlot(visitID, token string) *AppError {
	return New(CodeUnparsableTimeSlot,
		fmt.Sprintf("巡访 %s 的优先时刻 %q 无法解析", visitID, token)).
		WithField("visit_id", visitID).
		WithField("token", token)
}

// CapacityExhausted 创建容量耗尽错误
func CapacityExhausted(groupID string, visitIDs []string) *AppError {
	return New(CodeCapacityExhausted,
		fmt.Sprintf("连续性组 %s 无任何护士时段组合可容纳", groupID)).
		WithField("group_id", groupID).
		WithField("visit_ids", visitIDs)
}

// PinConflict 创建固定时刻冲突错误
func PinConflict(visitA, visitB string, details string) *AppError {
	return New(CodePinConflict,
		fmt.Sprintf("固定时刻巡访 %s 与 %s 冲突: %s", visitA, visitB, details)).
		WithField("visit_a", visitA).
		WithField("visit_b", visitB)
}

// SolverTimeout 创建求解超限错误
func SolverTimeout(iterations int) *AppError {
	return New(CodeSolverTimeout,
		fmt.Sprintf("求解迭代达到上限 %d 仍未收敛", iterations)).
		WithField("iterations", iterations)
}

// DeadlineMissed 创建截止超时错误
func DeadlineMissed(visitID string, deadline, actual string) *AppError {
	return New(CodeDeadlineMissed,
		fmt.Sprintf("巡访 %s 截止 %s，实际完成 %s", visitID, deadline, actual)).
		WithField("visit_id", visitID).
		WithField("deadline", deadline).
		WithField("actual", actual)
}
