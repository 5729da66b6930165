package service

import (
	"context"
	"time"

	"relay-system/internal/model"
	"relay-system/pkg/logger"

	"go.uber.org/zap"
)

// Refiner 文案润色器
type Refiner interface {
	Refine(ctx context.Context, original, senderName, receiverName, variant string) (string, error)
}

// ReadyNotifier 消息就绪通知（尽力而为，接收者不在线就丢弃）
type ReadyNotifier interface {
	NotifyRelayReady(receiverID uint, variant string, messageID uint)
}

// RefineProcessor 后台润色处理器
// 与变体无关：变体信息从消息行里读出，所有变体共享一个实例。
// 润色的任何失败都以原文兜底，消息不会因为润色失败而卡死
type RefineProcessor struct {
	store    RelayStore
	users    UserDirectory
	refiner  Refiner
	notifier ReadyNotifier
	clock    Clock
	timeout  time.Duration
}

// NewRefineProcessor 创建RefineProcessor实例
func NewRefineProcessor(store RelayStore, users UserDirectory, refiner Refiner, notifier ReadyNotifier, clock Clock, timeout time.Duration) *RefineProcessor {
	return &RefineProcessor{
		store:    store,
		users:    users,
		refiner:  refiner,
		notifier: notifier,
		clock:    clock,
		timeout:  timeout,
	}
}

// Process 处理一条消息：润色、置ready、通知接收者
// 可安全重复调用：非pending的消息直接跳过，pending守卫由存储层的条件更新保证
func (p *RefineProcessor) Process(ctx context.Context, messageID uint) {
	message, err := p.store.GetByID(messageID)
	if err != nil {
		logger.Error("润色任务加载消息失败",
			zap.Uint("message_id", messageID),
			zap.Error(err),
		)
		return
	}
	if message.Status != model.RelayStatusPending {
		return
	}

	refined := p.refine(ctx, message)

	updated, err := p.store.MarkProcessed(messageID, refined, p.clock.Now())
	if err != nil {
		// 存储失败让消息留在pending，补偿扫描会重新调度
		logger.Error("润色结果写入失败",
			zap.Uint("message_id", messageID),
			zap.Error(err),
		)
		return
	}
	if !updated {
		// 其他worker已经处理过
		return
	}

	p.notifier.NotifyRelayReady(message.ReceiverID, message.Variant, messageID)

	logger.Info("消息润色完成",
		zap.String("variant", message.Variant),
		zap.Uint("message_id", messageID),
		zap.Uint("receiver_id", message.ReceiverID),
	)
}

// refine 调用润色服务，任何失败都返回原文
func (p *RefineProcessor) refine(ctx context.Context, message *model.RelayMessage) string {
	senderName, receiverName := p.lookupNames(message)

	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	refined, err := p.refiner.Refine(rctx, message.OriginalText, senderName, receiverName, message.Variant)
	if err != nil {
		logger.Warn("润色失败，使用原文兜底",
			zap.Uint("message_id", message.ID),
			zap.Error(err),
		)
		return message.OriginalText
	}
	return refined
}

// lookupNames 取双方昵称供润色服务组prompt，查不到就传空串
func (p *RefineProcessor) lookupNames(message *model.RelayMessage) (string, string) {
	var senderName, receiverName string
	if sender, err := p.users.GetByID(message.SenderID); err == nil && sender != nil {
		senderName = sender.Nickname
	}
	if receiver, err := p.users.GetByID(message.ReceiverID); err == nil && receiver != nil {
		receiverName = receiver.Nickname
	}
	return senderName, receiverName
}
