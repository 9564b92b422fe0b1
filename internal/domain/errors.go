package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionFailure = errors.New("backing store connection failed")
	ErrStoreUnavailable  = errors.New("backing store temporarily unavailable")
	ErrRoutingAmbiguity  = errors.New("symbol matches no classification rule")
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrInvalidPayload    = errors.New("invalid payload")
)

// ConnectionError is returned by a failed connect attempt. It matches
// ErrConnectionFailure and unwraps to the driver's cause.
type ConnectionError struct {
	Attempt int
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (attempt %d)", ErrConnectionFailure, e.Attempt)
	}
	return fmt.Sprintf("%s (attempt %d): %v", ErrConnectionFailure, e.Attempt, e.Err)
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailure
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AppError 应用错误，包含错误码和消息
type AppError struct {
	Code    int    // HTTP 状态码
	Message string // 用户友好的错误消息
	Err     error  // 原始错误
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewUnavailableError(msg string) *AppError {
	return &AppError{Code: 503, Message: msg, Err: ErrStoreUnavailable}
}

func NewBadRequestError(msg string, err error) *AppError {
	return &AppError{Code: 400, Message: msg, Err: err}
}

func NewInternalError(msg string, err error) *AppError {
	return &AppError{Code: 500, Message: msg, Err: err}
}
