package uow

import (
	"context"
	"sync"

	"github.com/fitgo/fit-go-core/database/identity"
	"github.com/fitgo/fit-go-core/database/router"
	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/principal"
	"github.com/fitgo/fit-go-core/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

/* ========================================================================
 * Unit of Work - 工作单元
 * ========================================================================
 * 职责: 把多个仓储操作编排进同一数据库事务
 * 规则:
 *   - 事务开始时按主体角色路由连接，并注入一次会话身份，
 *     事务内所有语句共享该身份（逐语句注入被豁免）
 *   - 提交失败自动回滚，调用方拿到的是单一的失败结果
 *   - Rollback 可安全重复调用（defer 友好）
 * ======================================================================== */

// ErrTxClosed 事务已结束后继续使用
var ErrTxClosed = errors.New(errors.ErrCodeInternal, "transaction already closed")

// UnitOfWork 工作单元工厂
type UnitOfWork struct {
	router *router.Router
	log    *logger.Logger
}

// New 创建工作单元工厂
func New(rt *router.Router, log *logger.Logger) *UnitOfWork {
	return &UnitOfWork{router: rt, log: log}
}

// Tx 进行中的事务
type Tx struct {
	tx  *gorm.DB
	ctx context.Context
	log *logger.Logger

	mu     sync.Mutex
	closed bool
}

// Begin 开启事务
// 连接按主体角色路由；会话身份在此注入一次
func (u *UnitOfWork) Begin(ctx context.Context, p principal.Principal) (*Tx, error) {
	if !p.Valid() {
		return nil, errors.ErrUnauthenticated
	}

	db, err := u.router.ResolveForPrincipal(p)
	if err != nil {
		return nil, err
	}

	ctx = principal.WithPrincipal(ctx, p)
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to begin transaction", tx.Error)
	}

	if err := identity.Apply(tx, p.ActorID()); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			u.log.Error("rollback after identity failure also failed", zap.Error(rbErr))
		}
		return nil, err
	}

	// 身份已随事务注入，事务内逐语句注入豁免
	tx = identity.Skip(tx)

	return &Tx{
		tx:  tx,
		ctx: repository.ContextWithTx(ctx, tx),
		log: u.log,
	}, nil
}

// Context 返回绑定了事务的 context
// 仓储调用使用该 context 即自动加入本事务
func (t *Tx) Context() context.Context {
	return t.ctx
}

// DB 返回事务 DB（用于仓储 WithTx 或复杂查询）
func (t *Tx) DB() *gorm.DB {
	return t.tx
}

// Commit 提交事务
// 提交失败时自动回滚，连接不会带着悬挂事务回池
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true

	if err := t.tx.Commit().Error; err != nil {
		if rbErr := t.tx.Rollback().Error; rbErr != nil && rbErr != gorm.ErrInvalidTransaction {
			t.log.Error("rollback after commit failure also failed", zap.Error(rbErr))
		}
		return errors.Wrap(errors.ErrCodeInternal, "failed to commit transaction", err)
	}
	return nil
}

// Rollback 回滚事务
// 事务已结束时为空操作，可放进 defer 无条件调用
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.tx.Rollback().Error; err != nil && err != gorm.ErrInvalidTransaction {
		return errors.Wrap(errors.ErrCodeInternal, "failed to rollback transaction", err)
	}
	return nil
}

// Repo 返回绑定到事务 t 的类型化仓储
// 每种实体各拿各的仓储，全部写入共享同一次提交
func Repo[T any](t *Tx) repository.Repository[T] {
	return repository.NewRepository[T](t.tx)
}

// Execute 在工作单元内执行闭包
// fn 返回错误则回滚，否则提交；嵌套仓储调用使用 txCtx
func (u *UnitOfWork) Execute(ctx context.Context, p principal.Principal, fn func(txCtx context.Context) error) error {
	tx, err := u.Begin(ctx, p)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx.Context()); err != nil {
		return err
	}
	return tx.Commit()
}
