package consts

// RequestId 请求id名称
const RequestId = "request_id"

// 流程结果状态，返回给信号源
const (
	StatusSuccess  = "success"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
	StatusError    = "error"
	StatusIgnored  = "ignored"
	// StatusPending 流程仍在进行，http 请求已等待超时
	StatusPending = "pending"
)
