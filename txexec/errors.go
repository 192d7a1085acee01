package txexec

import (
	"fmt"

	"github.com/ceyewan/ledger/acctlock"
	"github.com/ceyewan/ledger/xerrors"
)

// CodeException 非预期故障统一使用的错误码
const CodeException = "error.Exception"

// InvocationError 用例执行中出现的非预期故障
//
// 业务错误与锁错误原样返回，其余错误（work 返回的基础设施错误、panic、
// Begin/Commit 失败）都包装为 InvocationError，调用方只需处理这一种类型。
type InvocationError struct {
	Op    string // "run" 或 "run_locked"
	Key   string // 加锁执行时的 key
	Code  string
	Cause error
}

func (e *InvocationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("txexec: %s[%s]: %s: %v", e.Op, e.Key, e.Code, e.Cause)
	}
	return fmt.Sprintf("txexec: %s: %s: %v", e.Op, e.Code, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// IsInvocation 判断 err 链中是否存在 InvocationError
func IsInvocation(err error) bool {
	var ie *InvocationError
	return xerrors.As(err, &ie)
}

// ErrorCode 返回 err 的错误码：业务错误码、InvocationError 的 Code，都没有时返回空串
func ErrorCode(err error) string {
	if code := xerrors.GetCode(err); code != "" {
		return code
	}
	var ie *InvocationError
	if xerrors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// lockErrors 锁相关错误，原样透传
var lockErrors = []error{
	acctlock.ErrLockTimeout,
	acctlock.ErrLockState,
	acctlock.ErrInvalidKey,
	acctlock.ErrInvalidMode,
}

// passThrough 判断错误是否原样返回给调用方
func (e *Executor) passThrough(err error) bool {
	if xerrors.IsDomain(err) || IsInvocation(err) {
		return true
	}
	for _, target := range lockErrors {
		if xerrors.Is(err, target) {
			return true
		}
	}
	for _, target := range e.domainErrs {
		if xerrors.Is(err, target) {
			return true
		}
	}
	return false
}

// panicError work 中发生的 panic
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
