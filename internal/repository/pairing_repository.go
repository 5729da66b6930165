package repository

import (
	"errors"

	"relay-system/internal/model"

	"gorm.io/gorm"
)

// PairingRepository 配对关系仓储
type PairingRepository struct {
	orm *gorm.DB
}

// NewPairingRepository 创建PairingRepository实例
func NewPairingRepository(orm *gorm.DB) *PairingRepository {
	return &PairingRepository{orm: orm}
}

// Create 创建配对关系
func (r *PairingRepository) Create(pairing *model.Pairing) error {
	return r.orm.Create(pairing).Error
}

// GetByID 根据ID获取配对
func (r *PairingRepository) GetByID(id uint) (*model.Pairing, error) {
	var p model.Pairing
	if err := r.orm.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindActiveByUser 查找用户当前生效的配对
// 没有配对时返回 (nil, nil)，由服务层决定如何处理
func (r *PairingRepository) FindActiveByUser(userID uint) (*model.Pairing, error) {
	var p model.Pairing
	err := r.orm.Where("(user1_id = ? OR user2_id = ?) AND status = ?",
		userID, userID, model.PairingConnected).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Disconnect 解除配对
func (r *PairingRepository) Disconnect(pairingID uint) error {
	return r.orm.Model(&model.Pairing{}).
		Where("id = ?", pairingID).
		Update("status", model.PairingDisconnected).Error
}
