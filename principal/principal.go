package principal

import (
	"context"

	"github.com/fitgo/fit-go-core/errors"
)

/* ========================================================================
 * Principal - 请求主体身份
 * ========================================================================
 * 职责: 表示一次请求的执行身份（id / 角色 / 外部系统标记）
 * 设计: 每次请求构造一次，之后只读；通过 context 显式传递，
 *       禁止任何 ambient / 线程局部的隐式解析
 * ======================================================================== */

// Role 数据库授权角色
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleUser       Role = "user"
)

// SystemActorID 外部系统调用方的哨兵身份
// 该 id 被保留，不允许分配给任何真实的 instructor / user
const SystemActorID int64 = -1

// Principal 请求主体
// 构造后不可变，仅在单次请求生命周期内有效，不落库
type Principal struct {
	ID         int64
	Role       Role
	Email      string
	IsExternal bool
}

// ParseRole 解析角色字符串
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleInstructor, RoleUser:
		return Role(s), nil
	}
	return "", errors.Wrapf(errors.ErrCodeConfig, nil, "unrecognized role: %q", s)
}

// New 创建普通主体
func New(id int64, role Role, email string) Principal {
	return Principal{ID: id, Role: role, Email: email}
}

// External 创建外部系统主体（如视频处理回调）
// 会话身份注入时使用 SystemActorID，而不是任何真实租户 id
func External() Principal {
	return Principal{ID: SystemActorID, Role: RoleAdmin, IsExternal: true}
}

// ActorID 返回写入数据库会话的身份值
func (p Principal) ActorID() int64 {
	if p.IsExternal {
		return SystemActorID
	}
	return p.ID
}

// Valid 校验主体是否可用于核心入口
func (p Principal) Valid() bool {
	if p.IsExternal {
		return true
	}
	if p.ID <= 0 {
		return false
	}
	switch p.Role {
	case RoleAdmin, RoleInstructor, RoleUser:
		return true
	}
	return false
}

type principalCtxKey struct{}

// WithPrincipal 将主体注入 context.Context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// FromContext 从 context.Context 读取主体
func FromContext(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalCtxKey{})
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// MustFromContext 读取主体，不存在时返回 ErrUnauthenticated
func MustFromContext(ctx context.Context) (Principal, error) {
	p, ok := FromContext(ctx)
	if !ok || !p.Valid() {
		return Principal{}, errors.ErrUnauthenticated
	}
	return p, nil
}
