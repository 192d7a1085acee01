// Package xerrors ledger 的错误约定。
//
// 错误分两类：
//
//   - 故障：I/O、数据库、编程错误。用 Wrap/Wrapf 附加上下文后向上返回，
//     经过 txexec 时统一包装为 InvocationError。
//   - 业务拒绝：余额不足、账户不存在等预期内的结果。用 Domain 定义哨兵错误，
//     或用 WithCode 给已有错误附加错误码。txexec 原样返回，调用方用 Is 或 GetCode 判断。
package xerrors

import (
	"errors"
	"fmt"
)

// ErrInvalidInput 参数或配置无效
var ErrInvalidInput = errors.New("invalid input")

// Wrap 附加上下文，err 为 nil 时返回 nil
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 同 Wrap，上下文可格式化
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CodedError 带错误码的业务错误
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	return e.Cause.Error() + " (" + e.Code + ")"
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// Domain 定义业务哨兵错误
//
//	var ErrInsufficientFunds = xerrors.Domain("asset.insufficient_funds", "asset: insufficient funds")
func Domain(code, msg string) error {
	return &CodedError{Code: code, Cause: errors.New(msg)}
}

// WithCode 给 err 附加错误码，使其成为业务错误
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// GetCode 返回错误链中最外层的错误码，没有时返回空串
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// IsDomain 错误链中是否有业务错误
func IsDomain(err error) bool {
	return GetCode(err) != ""
}

// Collector 依次收集构造阶段的错误
//
//	var c xerrors.Collector
//	a, err := meter.Counter(...)
//	c.Collect(err)
//	b, err := meter.Histogram(...)
//	c.Collect(err)
//	if err := c.Err(); err != nil { ... }
type Collector struct {
	errs []error
}

func (c *Collector) Collect(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

// Err 没有错误时返回 nil，否则返回 Join 后的错误
func (c *Collector) Err() error {
	return errors.Join(c.errs...)
}

var (
	New  = errors.New
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)
