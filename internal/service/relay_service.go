package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"relay-system/internal/model"
	"relay-system/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 发送者锁TTL（秒），覆盖"准入检查+插入"的执行时间即可
const senderLockTTLSeconds = 10

// RelayStore 传话消息存储
type RelayStore interface {
	Create(m *model.RelayMessage) error
	GetByID(id uint) (*model.RelayMessage, error)
	FindReadyForReceiver(variant string, receiverID uint) (*model.RelayMessage, error)
	CountBySenderSince(variant string, senderID uint, since time.Time) (int64, error)
	FindLatestBySender(variant string, senderID uint) (*model.RelayMessage, error)
	FindByPairing(variant string, pairingID uint, limit, offset int) ([]*model.RelayMessage, int64, error)
	ExistsBySenderAndPeriod(variant string, senderID uint, periodKey string) (bool, error)
	FindUnreadForReceiver(variant string, receiverID uint) ([]*model.RelayMessage, error)
	MarkProcessed(id uint, refinedText string, at time.Time) (bool, error)
	MarkDelivered(id, receiverID uint, at time.Time) (bool, error)
	MarkRead(id, receiverID uint, at time.Time) (bool, error)
	FindStalePending(before time.Time, limit int) ([]*model.RelayMessage, error)
}

// PairingDirectory 配对目录：由谁配对、配对是否有效
type PairingDirectory interface {
	FindActiveByUser(userID uint) (*model.Pairing, error)
}

// UserDirectory 用户目录（取昵称用）
type UserDirectory interface {
	GetByID(id uint) (*model.User, error)
}

// SenderLocker 发送者互斥锁，覆盖检查+插入
type SenderLocker interface {
	Acquire(variant string, senderID uint, ttlSeconds int) (bool, error)
	Release(variant string, senderID uint) error
}

// RefineDispatcher 润色任务调度入口
type RefineDispatcher interface {
	Dispatch(messageID uint) error
}

// UsageSummary 发送额度
type UsageSummary struct {
	Used            int64
	Max             int64
	CanSend         bool
	NextAvailableAt *time.Time
}

// Availability 提交窗口可用性
type Availability struct {
	CanWrite        bool
	Reason          string
	PeriodKey       string
	NextAvailableAt *time.Time
}

// RelayService 传话消息流水线
// 每个变体一个实例，规则不同、代码相同；后台润色由共享的RefineProcessor完成
type RelayService struct {
	rules      VariantRules
	admission  *AdmissionController
	store      RelayStore
	pairings   PairingDirectory
	users      UserDirectory
	locker     SenderLocker
	dispatcher RefineDispatcher
}

// NewRelayService 创建RelayService实例
func NewRelayService(rules VariantRules, store RelayStore, pairings PairingDirectory, users UserDirectory, locker SenderLocker, clock Clock) *RelayService {
	return &RelayService{
		rules:     rules,
		admission: NewAdmissionController(rules, store, clock),
		store:     store,
		pairings:  pairings,
		users:     users,
		locker:    locker,
	}
}

// SetDispatcher 绑定润色任务调度器（调度器需要先拿到处理函数，故后绑定）
func (s *RelayService) SetDispatcher(d RefineDispatcher) {
	s.dispatcher = d
}

// clock 取准入控制器的时钟，保证服务内时间来源一致
func (s *RelayService) clock() Clock {
	return s.admission.clock
}

// CreateMessage 创建传话消息
// 准入检查通过后以pending状态落库并调度后台润色，立即返回（润色不一定已执行）
func (s *RelayService) CreateMessage(senderID uint, text string) (*model.RelayMessage, error) {
	text = strings.TrimSpace(text)
	if err := s.checkLength(text); err != nil {
		return nil, err
	}

	// 解析接收者：必须存在生效的配对
	pairing, err := s.pairings.FindActiveByUser(senderID)
	if err != nil {
		return nil, err
	}
	if pairing == nil {
		return nil, ErrNotPaired
	}
	receiverID := pairing.PartnerOf(senderID)

	// 发送者锁：准入检查和插入不是原子操作，并发请求可能同时通过检查，
	// 锁住同一发送者串行执行；Redis不可用时退化为仅靠数据库唯一约束兜底
	if locked, lockErr := s.locker.Acquire(s.rules.Variant, senderID, senderLockTTLSeconds); lockErr != nil {
		logger.Warn("获取发送者锁失败，继续执行",
			zap.String("variant", s.rules.Variant),
			zap.Uint("sender_id", senderID),
			zap.Error(lockErr),
		)
	} else if !locked {
		return nil, &AdmissionError{Reason: AdmissionBusy, Message: "请求正在处理中，请稍后再试"}
	} else {
		defer func() { _ = s.locker.Release(s.rules.Variant, senderID) }()
	}

	now := s.clock().Now()

	// 准入检查（全部只读，可安全重入）
	if err := s.admission.CheckSubmissionWindow(now); err != nil {
		return nil, err
	}
	var periodKey *string
	if s.rules.PeriodUnique && s.rules.Window != nil {
		key := s.rules.Window.PeriodKeyFor(now)
		if err := s.admission.CheckPeriodUniqueness(senderID, key); err != nil {
			return nil, err
		}
		periodKey = &key
	}
	if err := s.admission.CheckRateLimit(senderID); err != nil {
		return nil, err
	}

	message := &model.RelayMessage{
		Variant:      s.rules.Variant,
		PairingID:    pairing.ID,
		SenderID:     senderID,
		ReceiverID:   receiverID,
		OriginalText: text,
		RefinedText:  "",
		Status:       model.RelayStatusPending,
		PeriodKey:    periodKey,
		CreatedAt:    now,
	}
	if err := s.store.Create(message); err != nil {
		// 唯一约束是周期唯一性的最后防线，冲突说明并发请求抢先提交
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &AdmissionError{Reason: AdmissionPeriodUsed, Message: "这个周期已经提交过了"}
		}
		return nil, err
	}

	// 调度后台润色；入队失败只记日志，补偿扫描会重新入队
	if err := s.dispatcher.Dispatch(message.ID); err != nil {
		logger.Warn("润色任务入队失败，等待补偿扫描",
			zap.Uint("message_id", message.ID),
			zap.Error(err),
		)
	}

	logger.Info("新传话消息创建",
		zap.String("variant", s.rules.Variant),
		zap.Uint("message_id", message.ID),
		zap.Uint("sender_id", senderID),
		zap.Uint("receiver_id", receiverID),
	)
	return message, nil
}

// checkLength 校验文本长度（按字符数而非字节数）
func (s *RelayService) checkLength(text string) error {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return fmt.Errorf("%w: 消息内容不能为空", ErrMessageLength)
	}
	if s.rules.MinLength > 0 && n < s.rules.MinLength {
		return fmt.Errorf("%w: 消息至少需要%d个字", ErrMessageLength, s.rules.MinLength)
	}
	if s.rules.MaxLength > 0 && n > s.rules.MaxLength {
		return fmt.Errorf("%w: 消息不能超过%d个字", ErrMessageLength, s.rules.MaxLength)
	}
	return nil
}

// PeekForReceiver 查询接收者当前待展示的消息（弹窗用）
// 最多返回一条（排队时取最旧的），不改变任何状态；没有则返回 (nil, nil, nil)
func (s *RelayService) PeekForReceiver(receiverID uint) (*model.RelayMessage, *model.User, error) {
	message, err := s.store.FindReadyForReceiver(s.rules.Variant, receiverID)
	if err != nil || message == nil {
		return nil, nil, err
	}

	// 发送者昵称拿不到不影响弹窗
	sender, err := s.users.GetByID(message.SenderID)
	if err != nil {
		sender = nil
	}
	return message, sender, nil
}

// AcknowledgeDelivered 客户端确认弹窗已展示
// 要求消息属于该接收者且处于ready状态
func (s *RelayService) AcknowledgeDelivered(messageID, receiverID uint) error {
	message, err := s.getOwn(messageID, receiverID)
	if err != nil {
		return err
	}
	if !message.IsReady() {
		return fmt.Errorf("%w: 当前状态为%s，无法确认投递", ErrInvalidStatus, message.Status)
	}

	ok, err := s.store.MarkDelivered(messageID, receiverID, s.clock().Now())
	if err != nil {
		return err
	}
	if !ok {
		// 状态在检查后被并发修改
		return ErrNotFound
	}

	logger.Info("消息投递确认",
		zap.String("variant", s.rules.Variant),
		zap.Uint("message_id", messageID),
		zap.Uint("receiver_id", receiverID),
	)
	return nil
}

// AcknowledgeRead 接收者确认已读
// 对已读消息重复调用不报错（read_at重新盖时间戳）
func (s *RelayService) AcknowledgeRead(messageID, receiverID uint) error {
	message, err := s.getOwn(messageID, receiverID)
	if err != nil {
		return err
	}
	if message.Status == model.RelayStatusPending {
		return fmt.Errorf("%w: 消息还在处理中", ErrInvalidStatus)
	}

	if _, err := s.store.MarkRead(messageID, receiverID, s.clock().Now()); err != nil {
		return err
	}

	logger.Info("消息已读",
		zap.String("variant", s.rules.Variant),
		zap.Uint("message_id", messageID),
		zap.Uint("receiver_id", receiverID),
	)
	return nil
}

// getOwn 加载消息并校验接收者身份
func (s *RelayService) getOwn(messageID, receiverID uint) (*model.RelayMessage, error) {
	message, err := s.store.GetByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if message.Variant != s.rules.Variant {
		return nil, ErrNotFound
	}
	if message.ReceiverID != receiverID {
		return nil, ErrForbidden
	}
	return message, nil
}

// Usage 查询发送额度（客户端提示"还要等多久"用）
func (s *RelayService) Usage(senderID uint) (*UsageSummary, error) {
	now := s.clock().Now()

	// 周期唯一型变体：额度以周期为准
	if s.rules.PeriodUnique && s.rules.Window != nil {
		key := s.rules.Window.PeriodKeyFor(now)
		exists, err := s.store.ExistsBySenderAndPeriod(s.rules.Variant, senderID, key)
		if err != nil {
			return nil, err
		}

		summary := &UsageSummary{Max: 1}
		if exists {
			summary.Used = 1
		}
		summary.CanSend = s.rules.Window.Contains(now) && !exists
		if !summary.CanSend {
			var next time.Time
			if exists {
				next = s.rules.Window.NextPeriodStart(key, now.Location())
			} else {
				next = s.rules.Window.NextStart(now)
			}
			if !next.IsZero() {
				summary.NextAvailableAt = &next
			}
		}
		return summary, nil
	}

	// 滑动窗口限频型变体
	if s.rules.RateLimitWindow > 0 && s.rules.RateLimitMax > 0 {
		used, err := s.store.CountBySenderSince(s.rules.Variant, senderID, now.Add(-s.rules.RateLimitWindow))
		if err != nil {
			return nil, err
		}

		summary := &UsageSummary{
			Used:    used,
			Max:     s.rules.RateLimitMax,
			CanSend: used < s.rules.RateLimitMax,
		}
		if !summary.CanSend {
			next, err := s.admission.nextRateLimitReset(senderID, now)
			if err != nil {
				return nil, err
			}
			summary.NextAvailableAt = next
		}
		return summary, nil
	}

	return &UsageSummary{CanSend: true}, nil
}

// Availability 查询当前是否可提交（feedback变体的预检接口）
func (s *RelayService) Availability(senderID uint) (*Availability, error) {
	if s.rules.Window == nil {
		return &Availability{CanWrite: true}, nil
	}

	now := s.clock().Now()
	if !s.rules.Window.Contains(now) {
		next := s.rules.Window.NextStart(now)
		return &Availability{
			CanWrite:        false,
			Reason:          AdmissionOutsideWindow,
			NextAvailableAt: &next,
		}, nil
	}

	key := s.rules.Window.PeriodKeyFor(now)
	if s.rules.PeriodUnique {
		exists, err := s.store.ExistsBySenderAndPeriod(s.rules.Variant, senderID, key)
		if err != nil {
			return nil, err
		}
		if exists {
			next := s.rules.Window.NextPeriodStart(key, now.Location())
			return &Availability{
				CanWrite:        false,
				Reason:          AdmissionPeriodUsed,
				PeriodKey:       key,
				NextAvailableAt: &next,
			}, nil
		}
	}

	return &Availability{CanWrite: true, PeriodKey: key}, nil
}

// History 查询配对的消息历史（最新在前，分页，双方可见全部状态）
func (s *RelayService) History(userID uint, page, pageSize int) ([]*model.RelayMessage, int64, error) {
	pairing, err := s.pairings.FindActiveByUser(userID)
	if err != nil {
		return nil, 0, err
	}
	if pairing == nil {
		return nil, 0, ErrNotPaired
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.store.FindByPairing(s.rules.Variant, pairing.ID, pageSize, (page-1)*pageSize)
}

// UnreadForReceiver 查询接收者未读的消息列表
func (s *RelayService) UnreadForReceiver(receiverID uint) ([]*model.RelayMessage, error) {
	return s.store.FindUnreadForReceiver(s.rules.Variant, receiverID)
}
