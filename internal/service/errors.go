package service

import (
	"errors"
	"time"
)

// 同步路径的错误分类：
// - 准入错误（AdmissionError）：限频/时间窗/周期已用/并发抢占，等时间条件变化前重试无意义
// - 资源/权限错误：消息不存在、不是消息的接收者、未配对
// 后台路径的错误（润色失败、存储失败）不会传播给任何调用方
var (
	ErrNotFound      = errors.New("message not found")
	ErrForbidden     = errors.New("permission denied")
	ErrNotPaired     = errors.New("pairing not connected")
	ErrMessageLength = errors.New("message length out of range")
	ErrInvalidStatus = errors.New("message status does not allow this operation")
)

// 准入拒绝原因
const (
	AdmissionRateLimited   = "rate_limited"   // 窗口内发送次数已达上限
	AdmissionOutsideWindow = "outside_window" // 不在提交时间窗内
	AdmissionPeriodUsed    = "period_used"    // 本周期已提交过
	AdmissionBusy          = "busy"           // 同一发送者的并发请求正在处理
)

// AdmissionError 准入拒绝
// NextAvailableAt 为下次满足条件的时刻（能算出来时才带）
type AdmissionError struct {
	Reason          string
	Message         string
	NextAvailableAt *time.Time
}

func (e *AdmissionError) Error() string { return e.Message }

// AsAdmissionError 判断错误是否为准入拒绝
func AsAdmissionError(err error) (*AdmissionError, bool) {
	var ae *AdmissionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
