package repository

import (
	"errors"
	"time"

	"relay-system/internal/model"

	"gorm.io/gorm"
)

// RelayMessageRepository 传话消息仓储
// 所有写操作都是按主键的单行更新，状态流转的更新带状态前置条件，
// 返回受影响行数供服务层判断是否发生并发竞争
type RelayMessageRepository struct {
	orm *gorm.DB
}

// NewRelayMessageRepository 创建RelayMessageRepository实例
func NewRelayMessageRepository(orm *gorm.DB) *RelayMessageRepository {
	return &RelayMessageRepository{orm: orm}
}

// Create 创建消息
// (variant, sender_id, period_key) 唯一约束冲突时返回 gorm.ErrDuplicatedKey
func (r *RelayMessageRepository) Create(message *model.RelayMessage) error {
	return r.orm.Create(message).Error
}

// GetByID 根据ID获取消息
func (r *RelayMessageRepository) GetByID(id uint) (*model.RelayMessage, error) {
	var m model.RelayMessage
	if err := r.orm.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindReadyForReceiver 查找接收者最早一条可投递的消息（弹窗用）
// 即使排队多条，每次也只向客户端暴露最旧的一条；没有则返回 (nil, nil)
func (r *RelayMessageRepository) FindReadyForReceiver(variant string, receiverID uint) (*model.RelayMessage, error) {
	var m model.RelayMessage
	err := r.orm.Where("variant = ? AND receiver_id = ? AND status = ?",
		variant, receiverID, model.RelayStatusReady).
		Order("created_at ASC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// CountBySenderSince 统计发送者在某时刻之后创建的消息数（限频用）
func (r *RelayMessageRepository) CountBySenderSince(variant string, senderID uint, since time.Time) (int64, error) {
	var count int64
	err := r.orm.Model(&model.RelayMessage{}).
		Where("variant = ? AND sender_id = ? AND created_at >= ?", variant, senderID, since).
		Count(&count).Error
	return count, err
}

// FindLatestBySender 查找发送者最近一条消息（计算下次可发送时间用）
func (r *RelayMessageRepository) FindLatestBySender(variant string, senderID uint) (*model.RelayMessage, error) {
	var m model.RelayMessage
	err := r.orm.Where("variant = ? AND sender_id = ?", variant, senderID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// FindByPairing 查询配对的消息历史（最新在前，分页）
func (r *RelayMessageRepository) FindByPairing(variant string, pairingID uint, limit, offset int) ([]*model.RelayMessage, int64, error) {
	var total int64
	if err := r.orm.Model(&model.RelayMessage{}).
		Where("variant = ? AND pairing_id = ?", variant, pairingID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []*model.RelayMessage
	err := r.orm.Where("variant = ? AND pairing_id = ?", variant, pairingID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, total, err
}

// ExistsBySenderAndPeriod 判断发送者在某周期是否已提交过（周期唯一性检查用）
func (r *RelayMessageRepository) ExistsBySenderAndPeriod(variant string, senderID uint, periodKey string) (bool, error) {
	var count int64
	err := r.orm.Model(&model.RelayMessage{}).
		Where("variant = ? AND sender_id = ? AND period_key = ?", variant, senderID, periodKey).
		Count(&count).Error
	return count > 0, err
}

// FindUnreadForReceiver 查询接收者未读的已就绪/已投递消息（最新在前）
func (r *RelayMessageRepository) FindUnreadForReceiver(variant string, receiverID uint) ([]*model.RelayMessage, error) {
	var messages []*model.RelayMessage
	err := r.orm.Where("variant = ? AND receiver_id = ? AND is_read = ? AND status IN ?",
		variant, receiverID, false,
		[]string{model.RelayStatusReady, model.RelayStatusDelivered}).
		Order("created_at DESC").
		Find(&messages).Error
	return messages, err
}

// MarkProcessed 写入润色结果并把消息置为ready
// 仅当消息仍为pending时生效（防止重复调度时二次润色），返回是否真的发生了更新
func (r *RelayMessageRepository) MarkProcessed(id uint, refinedText string, at time.Time) (bool, error) {
	result := r.orm.Model(&model.RelayMessage{}).
		Where("id = ? AND status = ?", id, model.RelayStatusPending).
		Updates(map[string]interface{}{
			"refined_text": refinedText,
			"status":       model.RelayStatusReady,
			"processed_at": at,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkDelivered 把消息置为delivered（弹窗展示后客户端确认）
// 仅当消息为ready且属于该接收者时生效
func (r *RelayMessageRepository) MarkDelivered(id, receiverID uint, at time.Time) (bool, error) {
	result := r.orm.Model(&model.RelayMessage{}).
		Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, model.RelayStatusReady).
		Updates(map[string]interface{}{
			"status":       model.RelayStatusDelivered,
			"delivered_at": at,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkRead 把消息置为read
// 对已读消息重复调用不是错误，read_at会被重新盖时间戳
func (r *RelayMessageRepository) MarkRead(id, receiverID uint, at time.Time) (bool, error) {
	result := r.orm.Model(&model.RelayMessage{}).
		Where("id = ? AND receiver_id = ? AND status IN ?", id, receiverID,
			[]string{model.RelayStatusReady, model.RelayStatusDelivered, model.RelayStatusRead}).
		Updates(map[string]interface{}{
			"status":  model.RelayStatusRead,
			"is_read": true,
			"read_at": at,
		})
	return result.RowsAffected > 0, result.Error
}

// FindStalePending 查找卡在pending超过SLA的消息（补偿扫描用）
func (r *RelayMessageRepository) FindStalePending(before time.Time, limit int) ([]*model.RelayMessage, error) {
	var messages []*model.RelayMessage
	err := r.orm.Where("status = ? AND created_at < ?", model.RelayStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}
