package model

import (
	"time"
)

// 消息状态机：pending -> ready -> delivered -> read
// pending: 已创建，等待后台润色
// ready:   润色完成（或回退原文），等待对方拉取
// delivered: 弹窗已展示给对方
// read:    对方已读（终态，消息永久保留）
const (
	RelayStatusPending   = "pending"
	RelayStatusReady     = "ready"
	RelayStatusDelivered = "delivered"
	RelayStatusRead      = "read"
)

// 消息变体
const (
	VariantPassAlong = "passalong" // 代为传话
	VariantFeedback  = "feedback"  // 每周心里话
)

// RelayMessage 传话消息
// 发送者写下原文，后台调用润色服务生成 RefinedText 后才对接收者可见
// PeriodKey 仅 feedback 变体使用（当周周六日期），与 Variant+SenderID 组成唯一约束，
// 在存储层挡住"同一周期重复提交"的并发竞争
// 时间戳单调不减：CreatedAt <= ProcessedAt <= DeliveredAt <= ReadAt

type RelayMessage struct {
	ID           uint       `gorm:"primaryKey"`
	Variant      string     `gorm:"type:varchar(32);not null;index;uniqueIndex:uk_sender_period;comment:消息变体"`
	PairingID    uint       `gorm:"not null;index;comment:配对ID"`
	SenderID     uint       `gorm:"not null;index;uniqueIndex:uk_sender_period;comment:发送者ID"`
	ReceiverID   uint       `gorm:"not null;index;comment:接收者ID"`
	OriginalText string     `gorm:"type:text;not null;comment:原文"`
	RefinedText  string     `gorm:"type:text;comment:润色后文本"`
	Status       string     `gorm:"type:varchar(32);not null;default:'pending';index;comment:消息状态"`
	IsRead       bool       `gorm:"not null;default:false;comment:是否已读"`
	PeriodKey    *string    `gorm:"type:varchar(10);uniqueIndex:uk_sender_period;comment:周期锚点(feedback变体当周周六日期)"`
	CreatedAt    time.Time  `gorm:"not null;index;comment:创建时间"`
	ProcessedAt  *time.Time `gorm:"comment:润色完成时间"`
	DeliveredAt  *time.Time `gorm:"comment:弹窗展示时间"`
	ReadAt       *time.Time `gorm:"comment:已读时间"`
}

func (RelayMessage) TableName() string { return "relay_message" }

// IsReady 是否处于可投递状态
func (m *RelayMessage) IsReady() bool {
	return m.Status == RelayStatusReady
}

// IsDelivered 是否已经展示给接收者（含已读）
func (m *RelayMessage) IsDelivered() bool {
	return m.Status == RelayStatusDelivered || m.Status == RelayStatusRead
}
