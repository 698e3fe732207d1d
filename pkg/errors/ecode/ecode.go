package ecode

// 业务错误码，0 表示成功
const (
	Success        = 0
	Unknown        = 10000
	InvalidParams  = 10001
	RequireAuthErr = 10002
	TooManyRequest = 10003
	Unavailable    = 10004

	// 交易流程相关
	SignalInvalid         = 20001
	ExecutionUnconfirmed  = 20002
	ExchangeRejected      = 20003
	WorkflowSkipped       = 20004
	WorkflowInternalError = 20005
)
