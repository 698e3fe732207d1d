package errors

import (
	stderrors "errors"
	"fmt"
	"novaflow/pkg/errors/ecode"
)

// Err 携带错误码的业务错误
type Err struct {
	Code    int
	Message string
	cause   error
}

func (e *Err) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.cause)
}

func (e *Err) Unwrap() error {
	return e.cause
}

// New 创建一个业务错误
func New(code int, msg string) error {
	return &Err{Code: code, Message: msg}
}

// Wrap 使用错误码包装原始错误
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &Err{Code: code, Message: msg, cause: err}
}

// DecodeErr 解析错误码和提示信息，nil 表示成功
func DecodeErr(err error) (int, string) {
	if err == nil {
		return ecode.Success, "success"
	}
	var e *Err
	if stderrors.As(err, &e) {
		return e.Code, e.Error()
	}
	return ecode.Unknown, err.Error()
}
