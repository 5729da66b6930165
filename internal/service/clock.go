package service

import "time"

// Clock 时钟抽象
// 时间窗/限频逻辑全部通过该接口读取当前时间，测试时可注入假时钟
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewSystemClock 创建系统时钟
func NewSystemClock() Clock { return systemClock{} }
