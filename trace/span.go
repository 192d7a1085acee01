package trace

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Span 属性键
const (
	AttrAccount   = "ledger.account"
	AttrLockMode  = "ledger.lock.mode"
	AttrTxOutcome = "ledger.tx.outcome"
	AttrErrorCode = "ledger.error.code"
)

// SpanNameInvocation 返回执行器一次调用的 Span 名称
func SpanNameInvocation(op string) string {
	if op == "" {
		return "txexec.invoke"
	}
	return "txexec." + op
}

// Account 返回账户相关的 Span 属性，key 为空时只返回空切片
func Account(key, mode string) []attribute.KeyValue {
	if key == "" {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrAccount, key),
		attribute.String(AttrLockMode, mode),
	}
}

// Finish 记录调用结果并结束 Span
//
// code 非空时写入 ledger.error.code；业务拒绝与意外故障都会标记为 Error 状态。
func Finish(span oteltrace.Span, outcome, code string, err error) {
	span.SetAttributes(attribute.String(AttrTxOutcome, outcome))
	if err != nil {
		if code != "" {
			span.SetAttributes(attribute.String(AttrErrorCode, code))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
