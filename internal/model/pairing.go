package model

import (
	"time"

	"gorm.io/gorm"
)

// Pairing 配对关系（恰好两个用户）
// Status: connected/disconnected

const (
	PairingConnected    = "connected"
	PairingDisconnected = "disconnected"
)

type Pairing struct {
	ID        uint           `gorm:"primaryKey"`
	User1ID   uint           `gorm:"not null;index;comment:用户1 ID"`
	User2ID   uint           `gorm:"not null;index;comment:用户2 ID"`
	Status    string         `gorm:"type:varchar(32);default:'connected';comment:配对状态"`
	CreatedAt time.Time      `gorm:"comment:创建时间"`
	UpdatedAt time.Time      `gorm:"comment:更新时间"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Pairing) TableName() string { return "pairing" }

// IsActive 配对是否处于有效状态
func (p *Pairing) IsActive() bool {
	return p.Status == PairingConnected
}

// PartnerOf 返回userID的另一半；userID不属于该配对时返回0
func (p *Pairing) PartnerOf(userID uint) uint {
	switch userID {
	case p.User1ID:
		return p.User2ID
	case p.User2ID:
		return p.User1ID
	default:
		return 0
	}
}

// Contains 判断用户是否属于该配对
func (p *Pairing) Contains(userID uint) bool {
	return userID == p.User1ID || userID == p.User2ID
}
