package repository

import (
	"context"

	"github.com/fitgo/fit-go-core/errors"

	"gorm.io/gorm"
)

/* ========================================================================
 * Transaction Repository Implementation - 事务支持实现
 * ========================================================================
 * 职责: 实现 TransactionRepository 接口
 * ======================================================================== */

// Transaction 在事务中执行操作
// 如果 fn 返回错误，事务将回滚；否则提交
func (r *RepositoryImpl[T]) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := r.withContext(ctx)

	if err := db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	}); err != nil {
		return wrapTxError(err)
	}

	return nil
}

// Execute 在事务中执行操作
// 事务通过 context 传递，fn 内使用 txCtx 调用的仓储方法自动加入同一事务
func (r *RepositoryImpl[T]) Execute(ctx context.Context, fn func(txCtx context.Context) error) error {
	db := r.withContext(ctx)

	if err := db.Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTx(ctx, tx))
	}); err != nil {
		return wrapTxError(err)
	}

	return nil
}

// wrapTxError 业务错误原样透出，保持错误码分类；其余归为内部错误
func wrapTxError(err error) error {
	if _, ok := errors.AsBizError(err); ok {
		return err
	}
	return errors.Wrap(errors.ErrCodeInternal, "transaction failed", err)
}

// WithTx 创建事务版本的仓储
// 返回的仓储实例使用传入的事务 DB
func (r *RepositoryImpl[T]) WithTx(tx *gorm.DB) Repository[T] {
	return &RepositoryImpl[T]{db: tx}
}
