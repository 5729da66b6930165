package redis

import (
	"fmt"
	"time"
)

// 发送者准入锁
// 准入检查（计数/周期唯一性）与插入不是一个原子操作，两个并发请求可能同时通过检查。
// 创建消息前先用 SET NX 抢占发送者级别的锁，检查+插入期间持有，避免双写。
// TTL 兜底：进程崩溃后锁自动释放。

// SenderLock 基于Redis的发送者互斥锁
type SenderLock struct{}

// NewSenderLock 创建SenderLock实例
func NewSenderLock() *SenderLock {
	return &SenderLock{}
}

// lockKey 构造锁的键名
func lockKey(variant string, senderID uint) string {
	return fmt.Sprintf("relay:lock:%s:%d", variant, senderID)
}

// Acquire 尝试获取发送者锁，返回是否获取成功
func (l *SenderLock) Acquire(variant string, senderID uint, ttlSeconds int) (bool, error) {
	if client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}
	ok, err := client.SetNX(ctx, lockKey(variant, senderID), 1, time.Duration(ttlSeconds)*time.Second).Result()
	if err != nil {
		return false, fmt.Errorf("获取发送者锁失败: %w", err)
	}
	return ok, nil
}

// Release 释放发送者锁
func (l *SenderLock) Release(variant string, senderID uint) error {
	if client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return client.Del(ctx, lockKey(variant, senderID)).Err()
}
