package service

import (
	"fmt"
	"time"

	"relay-system/config"
	"relay-system/internal/model"
)

const timeDisplayLayout = "2006-01-02 15:04"

// periodKeyLayout 周期锚点的日期格式
const periodKeyLayout = "2006-01-02"

// SubmissionWindow 提交时间窗（每周固定星期的固定时段）
type SubmissionWindow struct {
	Weekday     time.Weekday // 可提交的星期
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// Contains 判断时刻是否落在时间窗内
func (w *SubmissionWindow) Contains(t time.Time) bool {
	if t.Weekday() != w.Weekday {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= w.StartHour*60+w.StartMinute && minutes <= w.EndHour*60+w.EndMinute
}

// startOn 某一天的窗口开始时刻
func (w *SubmissionWindow) startOn(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), w.StartHour, w.StartMinute, 0, 0, t.Location())
}

// NextStart 计算下一个可提交时刻
// 当天是目标星期且还没到开始时间：当天开始时刻
// 当天是目标星期且已过结束时间：下周开始时刻
// 其他情况：本周（或下周）目标星期的开始时刻
func (w *SubmissionWindow) NextStart(t time.Time) time.Time {
	if t.Weekday() == w.Weekday {
		start := w.startOn(t)
		if t.Before(start) {
			return start
		}
		minutes := t.Hour()*60 + t.Minute()
		if minutes <= w.EndHour*60+w.EndMinute {
			// 已在窗口内
			return t
		}
		return start.AddDate(0, 0, 7)
	}

	days := (int(w.Weekday) - int(t.Weekday()) + 7) % 7
	return w.startOn(t.AddDate(0, 0, days))
}

// PeriodKeyFor 计算时刻所属周期的锚点日期（本周目标星期，含当天）
func (w *SubmissionWindow) PeriodKeyFor(t time.Time) string {
	days := (int(w.Weekday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, days).Format(periodKeyLayout)
}

// NextPeriodStart 周期已用完时，下一个周期的窗口开始时刻
func (w *SubmissionWindow) NextPeriodStart(periodKey string, loc *time.Location) time.Time {
	day, err := time.ParseInLocation(periodKeyLayout, periodKey, loc)
	if err != nil {
		return time.Time{}
	}
	return w.startOn(day.AddDate(0, 0, 7))
}

// VariantRules 单个变体的准入规则
// 三项检查彼此独立：变体按需启用其中的子集
type VariantRules struct {
	Variant         string
	MinLength       int
	MaxLength       int
	RateLimitWindow time.Duration // 0 表示不限频
	RateLimitMax    int64
	Window          *SubmissionWindow // nil 表示不启用提交时间窗
	PeriodUnique    bool              // 每周期每发送者最多一条
}

// RulesFromConfig 从配置构造变体规则
func RulesFromConfig(variant string, cfg config.VariantConfig) VariantRules {
	rules := VariantRules{
		Variant:         variant,
		MinLength:       cfg.MinLength,
		MaxLength:       cfg.MaxLength,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		PeriodUnique:    cfg.PeriodUnique,
	}
	if cfg.SubmissionWeekday >= 0 && cfg.SubmissionWeekday <= 6 {
		rules.Window = &SubmissionWindow{
			Weekday:     time.Weekday(cfg.SubmissionWeekday),
			StartHour:   cfg.StartHour,
			StartMinute: cfg.StartMinute,
			EndHour:     cfg.EndHour,
			EndMinute:   cfg.EndMinute,
		}
	}
	return rules
}

// admissionStore 准入检查需要的查询能力（只读）
type admissionStore interface {
	CountBySenderSince(variant string, senderID uint, since time.Time) (int64, error)
	FindLatestBySender(variant string, senderID uint) (*model.RelayMessage, error)
	ExistsBySenderAndPeriod(variant string, senderID uint, periodKey string) (bool, error)
}

// AdmissionController 创建消息前的准入控制
// 所有检查只读不写，可以在持有发送者锁后紧挨着插入重新执行
type AdmissionController struct {
	rules VariantRules
	store admissionStore
	clock Clock
}

// NewAdmissionController 创建AdmissionController实例
func NewAdmissionController(rules VariantRules, store admissionStore, clock Clock) *AdmissionController {
	return &AdmissionController{rules: rules, store: store, clock: clock}
}

// CheckRateLimit 滑动窗口限频检查
// 统计发送者在窗口内已创建的消息数，达到上限则拒绝并给出下次可发送时刻
func (a *AdmissionController) CheckRateLimit(senderID uint) error {
	if a.rules.RateLimitWindow <= 0 || a.rules.RateLimitMax <= 0 {
		return nil
	}

	now := a.clock.Now()
	count, err := a.store.CountBySenderSince(a.rules.Variant, senderID, now.Add(-a.rules.RateLimitWindow))
	if err != nil {
		return err
	}
	if count < a.rules.RateLimitMax {
		return nil
	}

	next, err := a.nextRateLimitReset(senderID, now)
	if err != nil {
		return err
	}
	message := "发送太频繁，请稍后再试"
	if next != nil {
		message = fmt.Sprintf("发送太频繁，%s 之后可以再次发送", next.Format(timeDisplayLayout))
	}
	return &AdmissionError{
		Reason:          AdmissionRateLimited,
		Message:         message,
		NextAvailableAt: next,
	}
}

// nextRateLimitReset 最近一条消息滑出窗口的时刻
func (a *AdmissionController) nextRateLimitReset(senderID uint, now time.Time) (*time.Time, error) {
	latest, err := a.store.FindLatestBySender(a.rules.Variant, senderID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	next := latest.CreatedAt.Add(a.rules.RateLimitWindow)
	if !next.After(now) {
		return nil, nil
	}
	return &next, nil
}

// CheckSubmissionWindow 提交时间窗检查（纯时钟函数，无I/O）
func (a *AdmissionController) CheckSubmissionWindow(now time.Time) error {
	if a.rules.Window == nil {
		return nil
	}
	if a.rules.Window.Contains(now) {
		return nil
	}
	next := a.rules.Window.NextStart(now)
	return &AdmissionError{
		Reason:          AdmissionOutsideWindow,
		Message:         fmt.Sprintf("现在不在提交时间内，%s 开放", next.Format(timeDisplayLayout)),
		NextAvailableAt: &next,
	}
}

// CheckPeriodUniqueness 周期唯一性检查
func (a *AdmissionController) CheckPeriodUniqueness(senderID uint, periodKey string) error {
	if !a.rules.PeriodUnique {
		return nil
	}
	exists, err := a.store.ExistsBySenderAndPeriod(a.rules.Variant, senderID, periodKey)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	var next *time.Time
	if a.rules.Window != nil {
		t := a.rules.Window.NextPeriodStart(periodKey, a.clock.Now().Location())
		if !t.IsZero() {
			next = &t
		}
	}
	return &AdmissionError{
		Reason:          AdmissionPeriodUsed,
		Message:         "这个周期已经提交过了",
		NextAvailableAt: next,
	}
}
