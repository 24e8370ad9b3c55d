package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

/* ========================================================================
 * 分布式锁 - 删除守卫互斥
 * ========================================================================
 * 职责: 把"检查引用 + 删除"这类两步操作跨实例串行化
 * 实现: SET NX + 随机 token，释放/续期用 Lua 脚本校验持有者
 * ======================================================================== */

// 锁键统一前缀，便于运维按模式清理
const lockKeyPrefix = "fit:lock:"

var (
	ErrLockFailed   = errors.New("failed to acquire lock")
	ErrUnlockFailed = errors.New("failed to release lock")
)

// releaseScript 仅持有者可删键
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// extendScript 仅持有者可重置过期时间
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// LockOption 锁选项
type LockOption struct {
	TTL        time.Duration // 锁过期时间，持有者崩溃后的兜底
	RetryTimes int           // 获取失败的重试次数
	RetryDelay time.Duration // 重试间隔
}

// DefaultLockOption 默认锁选项
func DefaultLockOption() LockOption {
	return LockOption{
		TTL:        30 * time.Second,
		RetryTimes: 5,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Lock 一次性的分布式锁
// token 随 Acquire 重新生成，释放与续期都以 token 校验持有者，
// 过期后被他人取得的同名锁不会被误删
type Lock struct {
	client *Client
	key    string
	token  string
	opt    LockOption
}

// NewLock 创建分布式锁（未获取）
func (c *Client) NewLock(key string, opts ...LockOption) *Lock {
	opt := DefaultLockOption()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.TTL <= 0 {
		opt.TTL = DefaultLockOption().TTL
	}
	return &Lock{
		client: c,
		key:    lockKeyPrefix + key,
		opt:    opt,
	}
}

// Acquire 获取锁，重试耗尽返回 ErrLockFailed
func (l *Lock) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, l.key, token, l.opt.TTL)
		if err != nil {
			return err
		}
		if ok {
			l.token = token
			return nil
		}
		if attempt+1 >= l.opt.RetryTimes {
			return ErrLockFailed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.opt.RetryDelay):
		}
	}
}

// Release 释放锁
// 锁已过期或被他人持有时返回 ErrUnlockFailed
func (l *Lock) Release(ctx context.Context) error {
	n, err := l.client.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnlockFailed
	}
	return nil
}

// Extend 重置锁的过期时间
// 持有时间可能超过 TTL 的调用方在操作间隙显式续期；
// 锁已丢失返回 ErrLockFailed，调用方应放弃后续操作
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := l.client.rdb.Eval(ctx, extendScript, []string{l.key}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockFailed
	}
	return nil
}
