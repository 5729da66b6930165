package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"relay-system/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRelayStore 内存版消息存储，行为对齐MySQL仓储
type fakeRelayStore struct {
	nextID    uint
	messages  map[uint]*model.RelayMessage
	createErr error
}

func newFakeRelayStore() *fakeRelayStore {
	return &fakeRelayStore{nextID: 1, messages: make(map[uint]*model.RelayMessage)}
}

func (s *fakeRelayStore) Create(m *model.RelayMessage) error {
	if s.createErr != nil {
		return s.createErr
	}
	// 模拟 (variant, sender_id, period_key) 唯一约束，period_key为空不参与
	if m.PeriodKey != nil {
		for _, existing := range s.messages {
			if existing.Variant == m.Variant && existing.SenderID == m.SenderID &&
				existing.PeriodKey != nil && *existing.PeriodKey == *m.PeriodKey {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	m.ID = s.nextID
	s.nextID++
	copied := *m
	s.messages[m.ID] = &copied
	return nil
}

func (s *fakeRelayStore) GetByID(id uint) (*model.RelayMessage, error) {
	m, ok := s.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *fakeRelayStore) FindReadyForReceiver(variant string, receiverID uint) (*model.RelayMessage, error) {
	var oldest *model.RelayMessage
	for _, m := range s.messages {
		if m.Variant != variant || m.ReceiverID != receiverID || m.Status != model.RelayStatusReady {
			continue
		}
		if oldest == nil || m.CreatedAt.Before(oldest.CreatedAt) {
			oldest = m
		}
	}
	if oldest == nil {
		return nil, nil
	}
	copied := *oldest
	return &copied, nil
}

func (s *fakeRelayStore) CountBySenderSince(variant string, senderID uint, since time.Time) (int64, error) {
	var count int64
	for _, m := range s.messages {
		if m.Variant == variant && m.SenderID == senderID && !m.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *fakeRelayStore) FindLatestBySender(variant string, senderID uint) (*model.RelayMessage, error) {
	var latest *model.RelayMessage
	for _, m := range s.messages {
		if m.Variant != variant || m.SenderID != senderID {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *fakeRelayStore) FindByPairing(variant string, pairingID uint, limit, offset int) ([]*model.RelayMessage, int64, error) {
	var all []*model.RelayMessage
	for _, m := range s.messages {
		if m.Variant == variant && m.PairingID == pairingID {
			copied := *m
			all = append(all, &copied)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *fakeRelayStore) ExistsBySenderAndPeriod(variant string, senderID uint, periodKey string) (bool, error) {
	for _, m := range s.messages {
		if m.Variant == variant && m.SenderID == senderID && m.PeriodKey != nil && *m.PeriodKey == periodKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeRelayStore) FindUnreadForReceiver(variant string, receiverID uint) ([]*model.RelayMessage, error) {
	var unread []*model.RelayMessage
	for _, m := range s.messages {
		if m.Variant == variant && m.ReceiverID == receiverID && !m.IsRead &&
			(m.Status == model.RelayStatusReady || m.Status == model.RelayStatusDelivered) {
			copied := *m
			unread = append(unread, &copied)
		}
	}
	sort.Slice(unread, func(i, j int) bool { return unread[i].CreatedAt.After(unread[j].CreatedAt) })
	return unread, nil
}

func (s *fakeRelayStore) MarkProcessed(id uint, refinedText string, at time.Time) (bool, error) {
	m, ok := s.messages[id]
	if !ok || m.Status != model.RelayStatusPending {
		return false, nil
	}
	m.RefinedText = refinedText
	m.Status = model.RelayStatusReady
	m.ProcessedAt = &at
	return true, nil
}

func (s *fakeRelayStore) MarkDelivered(id, receiverID uint, at time.Time) (bool, error) {
	m, ok := s.messages[id]
	if !ok || m.ReceiverID != receiverID || m.Status != model.RelayStatusReady {
		return false, nil
	}
	m.Status = model.RelayStatusDelivered
	m.DeliveredAt = &at
	return true, nil
}

func (s *fakeRelayStore) MarkRead(id, receiverID uint, at time.Time) (bool, error) {
	m, ok := s.messages[id]
	if !ok || m.ReceiverID != receiverID {
		return false, nil
	}
	if m.Status != model.RelayStatusReady && m.Status != model.RelayStatusDelivered && m.Status != model.RelayStatusRead {
		return false, nil
	}
	m.Status = model.RelayStatusRead
	m.IsRead = true
	m.ReadAt = &at
	return true, nil
}

func (s *fakeRelayStore) FindStalePending(before time.Time, limit int) ([]*model.RelayMessage, error) {
	var stale []*model.RelayMessage
	for _, m := range s.messages {
		if m.Status == model.RelayStatusPending && m.CreatedAt.Before(before) {
			copied := *m
			stale = append(stale, &copied)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

// fakePairings 固定一对配对
type fakePairings struct {
	pairing *model.Pairing
}

func (p *fakePairings) FindActiveByUser(userID uint) (*model.Pairing, error) {
	if p.pairing != nil && p.pairing.Contains(userID) {
		return p.pairing, nil
	}
	return nil, nil
}

// fakeUsers 固定昵称表
type fakeUsers struct {
	users map[uint]*model.User
}

func (u *fakeUsers) GetByID(id uint) (*model.User, error) {
	user, ok := u.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

// fakeLocker 可编程的发送者锁
type fakeLocker struct {
	denied bool
	err    error
}

func (l *fakeLocker) Acquire(variant string, senderID uint, ttlSeconds int) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return !l.denied, nil
}

func (l *fakeLocker) Release(variant string, senderID uint) error { return nil }

// fakeDispatcher 记录入队的消息ID
type fakeDispatcher struct {
	dispatched []uint
	err        error
}

func (d *fakeDispatcher) Dispatch(messageID uint) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, messageID)
	return nil
}

// fakeRefiner 可编程的润色器
type fakeRefiner struct {
	result string
	err    error
	calls  int
}

func (r *fakeRefiner) Refine(ctx context.Context, original, senderName, receiverName, variant string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.result, nil
}

// fakeNotifier 记录就绪通知
type fakeNotifier struct {
	notified []uint
}

func (n *fakeNotifier) NotifyRelayReady(receiverID uint, variant string, messageID uint) {
	n.notified = append(n.notified, messageID)
}

type relayFixture struct {
	svc        *RelayService
	store      *fakeRelayStore
	dispatcher *fakeDispatcher
	clock      *fakeClock
}

func passAlongRules() VariantRules {
	return VariantRules{
		Variant:         model.VariantPassAlong,
		MaxLength:       1000,
		RateLimitWindow: 24 * time.Hour,
		RateLimitMax:    1,
	}
}

func feedbackRules() VariantRules {
	return VariantRules{
		Variant:      model.VariantFeedback,
		MinLength:    10,
		MaxLength:    1000,
		Window:       saturdayWindow(),
		PeriodUnique: true,
	}
}

func newRelayFixture(rules VariantRules, now time.Time) *relayFixture {
	store := newFakeRelayStore()
	clock := &fakeClock{now: now}
	pairings := &fakePairings{pairing: &model.Pairing{
		ID:      1,
		User1ID: 1,
		User2ID: 2,
		Status:  model.PairingConnected,
	}}
	users := &fakeUsers{users: map[uint]*model.User{
		1: {ID: 1, Nickname: "小明"},
		2: {ID: 2, Nickname: "小红"},
	}}
	svc := NewRelayService(rules, store, pairings, users, &fakeLocker{}, clock)
	dispatcher := &fakeDispatcher{}
	svc.SetDispatcher(dispatcher)
	return &relayFixture{svc: svc, store: store, dispatcher: dispatcher, clock: clock}
}

func TestRelayService_CreateMessage(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	t.Run("happy path creates pending message and dispatches", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)

		message, err := f.svc.CreateMessage(1, "  今晚想一起吃饭  ")
		require.NoError(t, err)
		assert.Equal(t, model.RelayStatusPending, message.Status)
		assert.Equal(t, "今晚想一起吃饭", message.OriginalText)
		assert.Empty(t, message.RefinedText)
		assert.Equal(t, uint(2), message.ReceiverID)
		assert.Equal(t, []uint{message.ID}, f.dispatcher.dispatched)
	})

	t.Run("second send within window is rate limited", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)

		_, err := f.svc.CreateMessage(1, "第一条")
		require.NoError(t, err)

		_, err = f.svc.CreateMessage(1, "第二条")
		require.Error(t, err)
		ae, ok := AsAdmissionError(err)
		require.True(t, ok)
		assert.Equal(t, AdmissionRateLimited, ae.Reason)
		require.NotNil(t, ae.NextAvailableAt)
		assert.Equal(t, now.Add(24*time.Hour), *ae.NextAvailableAt)
	})

	t.Run("window slides after 24 hours", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)

		_, err := f.svc.CreateMessage(1, "第一条")
		require.NoError(t, err)

		f.clock.now = now.Add(24*time.Hour + time.Minute)
		_, err = f.svc.CreateMessage(1, "第二条")
		assert.NoError(t, err)
	})

	t.Run("partners are limited independently", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)

		_, err := f.svc.CreateMessage(1, "发送者1的消息")
		require.NoError(t, err)
		_, err = f.svc.CreateMessage(2, "发送者2的消息")
		assert.NoError(t, err)
	})

	t.Run("rejects without active pairing", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)

		_, err := f.svc.CreateMessage(99, "没有配对的人")
		assert.ErrorIs(t, err, ErrNotPaired)
	})

	t.Run("rejects empty and oversized text", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)

		_, err := f.svc.CreateMessage(1, "   ")
		assert.Error(t, err)

		long := make([]rune, 1001)
		for i := range long {
			long[i] = '字'
		}
		_, err = f.svc.CreateMessage(1, string(long))
		assert.ErrorIs(t, err, ErrMessageLength)
	})

	t.Run("concurrent sender rejected as busy", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		f.svc.locker = &fakeLocker{denied: true}

		_, err := f.svc.CreateMessage(1, "并发请求")
		require.Error(t, err)
		ae, ok := AsAdmissionError(err)
		require.True(t, ok)
		assert.Equal(t, AdmissionBusy, ae.Reason)
	})

	t.Run("lock failure degrades to db constraint", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		f.svc.locker = &fakeLocker{err: errors.New("redis down")}

		_, err := f.svc.CreateMessage(1, "Redis挂了也要能发")
		assert.NoError(t, err)
	})

	t.Run("dispatch failure still creates the message", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		f.dispatcher.err = errors.New("queue full")
		f.svc.SetDispatcher(f.dispatcher)

		message, err := f.svc.CreateMessage(1, "入队失败的消息")
		require.NoError(t, err)
		assert.Equal(t, model.RelayStatusPending, message.Status)
	})
}

func TestRelayService_CreateMessage_Feedback(t *testing.T) {
	t.Run("inside window with period key", func(t *testing.T) {
		f := newRelayFixture(feedbackRules(), saturday(12, 0))

		message, err := f.svc.CreateMessage(1, "这周想对你说的心里话")
		require.NoError(t, err)
		require.NotNil(t, message.PeriodKey)
		assert.Equal(t, "2026-08-29", *message.PeriodKey)
	})

	t.Run("outside window rejected", func(t *testing.T) {
		wednesday := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
		f := newRelayFixture(feedbackRules(), wednesday)

		_, err := f.svc.CreateMessage(1, "现在还不到周六就想发了")
		require.Error(t, err)
		ae, ok := AsAdmissionError(err)
		require.True(t, ok)
		assert.Equal(t, AdmissionOutsideWindow, ae.Reason)
	})

	t.Run("second submission in same period rejected", func(t *testing.T) {
		f := newRelayFixture(feedbackRules(), saturday(8, 0))

		_, err := f.svc.CreateMessage(1, "第一条心里话够长了吧")
		require.NoError(t, err)

		f.clock.now = saturday(20, 0)
		_, err = f.svc.CreateMessage(1, "同一周的第二条心里话")
		require.Error(t, err)
		ae, ok := AsAdmissionError(err)
		require.True(t, ok)
		assert.Equal(t, AdmissionPeriodUsed, ae.Reason)
	})

	t.Run("too short rejected", func(t *testing.T) {
		f := newRelayFixture(feedbackRules(), saturday(12, 0))

		_, err := f.svc.CreateMessage(1, "太短了")
		assert.Error(t, err)
	})

	t.Run("duplicate key from store mapped to period used", func(t *testing.T) {
		f := newRelayFixture(feedbackRules(), saturday(12, 0))
		f.store.createErr = gorm.ErrDuplicatedKey

		_, err := f.svc.CreateMessage(1, "并发竞争写入的心里话")
		require.Error(t, err)
		ae, ok := AsAdmissionError(err)
		require.True(t, ok)
		assert.Equal(t, AdmissionPeriodUsed, ae.Reason)
	})
}

func TestRefineProcessor_Process(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	newProcessor := func(f *relayFixture, refiner *fakeRefiner) (*RefineProcessor, *fakeNotifier) {
		notifier := &fakeNotifier{}
		users := &fakeUsers{users: map[uint]*model.User{
			1: {ID: 1, Nickname: "小明"},
			2: {ID: 2, Nickname: "小红"},
		}}
		return NewRefineProcessor(f.store, users, refiner, notifier, f.clock, time.Second), notifier
	}

	t.Run("success stores refined text and notifies", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message, err := f.svc.CreateMessage(1, "原始的话")
		require.NoError(t, err)

		p, notifier := newProcessor(f, &fakeRefiner{result: "润色后的话"})
		p.Process(context.Background(), message.ID)

		got, err := f.store.GetByID(message.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RelayStatusReady, got.Status)
		assert.Equal(t, "润色后的话", got.RefinedText)
		assert.Equal(t, "原始的话", got.OriginalText)
		require.NotNil(t, got.ProcessedAt)
		assert.Equal(t, []uint{message.ID}, notifier.notified)
	})

	t.Run("refine failure falls back to original text", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message, err := f.svc.CreateMessage(1, "原始的话")
		require.NoError(t, err)

		p, notifier := newProcessor(f, &fakeRefiner{err: errors.New("llm unavailable")})
		p.Process(context.Background(), message.ID)

		got, err := f.store.GetByID(message.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RelayStatusReady, got.Status)
		assert.Equal(t, "原始的话", got.RefinedText)
		assert.Equal(t, []uint{message.ID}, notifier.notified)
	})

	t.Run("already processed message is skipped", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message, err := f.svc.CreateMessage(1, "原始的话")
		require.NoError(t, err)

		refiner := &fakeRefiner{result: "第一次润色"}
		p, notifier := newProcessor(f, refiner)
		p.Process(context.Background(), message.ID)
		p.Process(context.Background(), message.ID)

		assert.Equal(t, 1, refiner.calls)
		assert.Equal(t, []uint{message.ID}, notifier.notified)
	})
}

func TestRelayService_Lifecycle(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	ready := func(f *relayFixture, senderID uint, text string) *model.RelayMessage {
		message, err := f.svc.CreateMessage(senderID, text)
		require.NoError(t, err)
		_, err = f.store.MarkProcessed(message.ID, text, f.clock.now)
		require.NoError(t, err)
		return message
	}

	t.Run("popup shows oldest ready message only", func(t *testing.T) {
		f := newRelayFixture(VariantRules{Variant: model.VariantPassAlong, MaxLength: 1000}, now)

		first := ready(f, 1, "先发的")
		f.clock.now = now.Add(time.Hour)
		ready(f, 1, "后发的")

		message, sender, err := f.svc.PeekForReceiver(2)
		require.NoError(t, err)
		require.NotNil(t, message)
		assert.Equal(t, first.ID, message.ID)
		require.NotNil(t, sender)
		assert.Equal(t, "小明", sender.Nickname)
	})

	t.Run("popup empty when nothing ready", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		_, err := f.svc.CreateMessage(1, "还在润色中")
		require.NoError(t, err)

		message, _, err := f.svc.PeekForReceiver(2)
		require.NoError(t, err)
		assert.Nil(t, message)
	})

	t.Run("delivered then read in order", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message := ready(f, 1, "一条消息")

		require.NoError(t, f.svc.AcknowledgeDelivered(message.ID, 2))
		f.clock.now = now.Add(time.Minute)
		require.NoError(t, f.svc.AcknowledgeRead(message.ID, 2))

		got, err := f.store.GetByID(message.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RelayStatusRead, got.Status)
		assert.True(t, got.IsRead)
		require.NotNil(t, got.DeliveredAt)
		require.NotNil(t, got.ReadAt)
		assert.True(t, got.ReadAt.After(*got.DeliveredAt))
	})

	t.Run("read without delivered ack also works", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message := ready(f, 1, "直接读")

		require.NoError(t, f.svc.AcknowledgeRead(message.ID, 2))
		got, _ := f.store.GetByID(message.ID)
		assert.Equal(t, model.RelayStatusRead, got.Status)
	})

	t.Run("read is idempotent", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message := ready(f, 1, "读两次")

		require.NoError(t, f.svc.AcknowledgeRead(message.ID, 2))
		require.NoError(t, f.svc.AcknowledgeRead(message.ID, 2))
	})

	t.Run("delivered twice fails", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message := ready(f, 1, "投递两次")

		require.NoError(t, f.svc.AcknowledgeDelivered(message.ID, 2))
		assert.ErrorIs(t, f.svc.AcknowledgeDelivered(message.ID, 2), ErrInvalidStatus)
	})

	t.Run("sender cannot ack receiver's message", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message := ready(f, 1, "只有接收者能确认")

		assert.ErrorIs(t, f.svc.AcknowledgeDelivered(message.ID, 1), ErrForbidden)
		assert.ErrorIs(t, f.svc.AcknowledgeRead(message.ID, 1), ErrForbidden)
	})

	t.Run("pending message cannot be read", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		message, err := f.svc.CreateMessage(1, "还没润色完")
		require.NoError(t, err)

		assert.ErrorIs(t, f.svc.AcknowledgeRead(message.ID, 2), ErrInvalidStatus)
	})

	t.Run("unknown message returns not found", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)
		assert.ErrorIs(t, f.svc.AcknowledgeDelivered(999, 2), ErrNotFound)
	})
}

func TestRelayService_Usage(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	t.Run("passalong usage tracks sliding window", func(t *testing.T) {
		f := newRelayFixture(passAlongRules(), now)

		usage, err := f.svc.Usage(1)
		require.NoError(t, err)
		assert.True(t, usage.CanSend)
		assert.EqualValues(t, 0, usage.Used)

		_, err = f.svc.CreateMessage(1, "用掉额度")
		require.NoError(t, err)

		usage, err = f.svc.Usage(1)
		require.NoError(t, err)
		assert.False(t, usage.CanSend)
		assert.EqualValues(t, 1, usage.Used)
		require.NotNil(t, usage.NextAvailableAt)
		assert.Equal(t, now.Add(24*time.Hour), *usage.NextAvailableAt)
	})

	t.Run("feedback usage is period based", func(t *testing.T) {
		f := newRelayFixture(feedbackRules(), saturday(8, 0))

		usage, err := f.svc.Usage(1)
		require.NoError(t, err)
		assert.True(t, usage.CanSend)

		_, err = f.svc.CreateMessage(1, "这一周的心里话写好了")
		require.NoError(t, err)

		usage, err = f.svc.Usage(1)
		require.NoError(t, err)
		assert.False(t, usage.CanSend)
		assert.EqualValues(t, 1, usage.Used)
		require.NotNil(t, usage.NextAvailableAt)
		assert.Equal(t, time.Date(2026, 9, 5, 7, 0, 0, 0, time.UTC), *usage.NextAvailableAt)
	})
}

func TestRelayService_Availability(t *testing.T) {
	t.Run("open window", func(t *testing.T) {
		f := newRelayFixture(feedbackRules(), saturday(8, 0))

		avail, err := f.svc.Availability(1)
		require.NoError(t, err)
		assert.True(t, avail.CanWrite)
		assert.Equal(t, "2026-08-29", avail.PeriodKey)
	})

	t.Run("closed outside window", func(t *testing.T) {
		wednesday := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
		f := newRelayFixture(feedbackRules(), wednesday)

		avail, err := f.svc.Availability(1)
		require.NoError(t, err)
		assert.False(t, avail.CanWrite)
		assert.Equal(t, AdmissionOutsideWindow, avail.Reason)
		require.NotNil(t, avail.NextAvailableAt)
		assert.Equal(t, saturday(7, 0), *avail.NextAvailableAt)
	})

	t.Run("closed after submitting this period", func(t *testing.T) {
		f := newRelayFixture(feedbackRules(), saturday(8, 0))
		_, err := f.svc.CreateMessage(1, "这一周已经提交过了呀")
		require.NoError(t, err)

		avail, err := f.svc.Availability(1)
		require.NoError(t, err)
		assert.False(t, avail.CanWrite)
		assert.Equal(t, AdmissionPeriodUsed, avail.Reason)
	})
}

func TestRelayService_History(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	f := newRelayFixture(VariantRules{Variant: model.VariantPassAlong, MaxLength: 1000}, now)

	for i := 0; i < 3; i++ {
		f.clock.now = now.Add(time.Duration(i) * time.Hour)
		_, err := f.svc.CreateMessage(1, "历史消息")
		require.NoError(t, err)
	}

	t.Run("newest first with pagination", func(t *testing.T) {
		messages, total, err := f.svc.History(2, 1, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, messages, 2)
		assert.True(t, messages[0].CreatedAt.After(messages[1].CreatedAt))
	})

	t.Run("not paired user gets error", func(t *testing.T) {
		_, _, err := f.svc.History(99, 1, 10)
		assert.ErrorIs(t, err, ErrNotPaired)
	})
}
