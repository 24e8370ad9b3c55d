package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fitgo/fit-go-core/cache/redis"
	"github.com/fitgo/fit-go-core/database/router"
	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/principal"
	"github.com/fitgo/fit-go-core/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

/* ========================================================================
 * Taxonomy Service - 分类法服务
 * ========================================================================
 * 职责: 共享分类实体（目标/等级/训练类型/器械形态/标签）的管理
 * 规则:
 *   - 创建/更新/删除仅限管理员，读取对所有主体开放
 *   - 删除守卫：实体被任何内容引用期间不可删除，返回前置条件错误
 *   - 检查-删除通过分布式锁串行化，防止检查后、删除前出现新引用
 *   - 单查走 Redis 读穿缓存，写操作失效对应缓存键
 * ======================================================================== */

const (
	// taxonomyCacheTTL 分类实体缓存时长
	taxonomyCacheTTL = 10 * time.Minute

	// deleteLockTTL 删除守卫锁时长
	deleteLockTTL = 10 * time.Second
)

// Ref 指向分类实体的引用位置
type Ref struct {
	// Table 持有引用的表（关联表或实体表）
	Table string
	// Column 指向分类实体主键的列
	Column string
}

// TaxonomyService 分类法通用服务
type TaxonomyService[T any] struct {
	router *router.Router
	cache  redis.Clienter
	log    *logger.Logger

	// name 缓存键前缀（如 "goal"）
	name string
	// refs 删除守卫要检查的引用位置
	refs []Ref

	mu    sync.RWMutex
	repos map[principal.Role]repository.Repository[T]
}

// NewTaxonomyService 创建分类法服务
// refs 列出所有引用该分类实体的表列，删除守卫逐一检查
func NewTaxonomyService[T any](rt *router.Router, cache redis.Clienter, log *logger.Logger, name string, refs []Ref) *TaxonomyService[T] {
	return &TaxonomyService[T]{
		router: rt,
		cache:  cache,
		log:    log,
		name:   name,
		refs:   refs,
		repos:  make(map[principal.Role]repository.Repository[T]),
	}
}

func (s *TaxonomyService[T]) repoFor(p principal.Principal) (repository.Repository[T], error) {
	role := p.Role
	if p.IsExternal {
		role = principal.RoleAdmin
	}

	s.mu.RLock()
	repo, ok := s.repos[role]
	s.mu.RUnlock()
	if ok {
		return repo, nil
	}

	db, err := s.router.ResolveForPrincipal(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if repo, ok := s.repos[role]; ok {
		return repo, nil
	}
	repo = repository.NewRepository[T](db)
	s.repos[role] = repo
	return repo, nil
}

func (s *TaxonomyService[T]) cacheKey(id int64) string {
	return fmt.Sprintf("fit:taxonomy:%s:%d", s.name, id)
}

func (s *TaxonomyService[T]) requireAdmin(p principal.Principal) error {
	if !p.Valid() {
		return errors.ErrUnauthenticated
	}
	if p.IsExternal || p.Role == principal.RoleAdmin {
		return nil
	}
	return errors.New(errors.ErrCodePermissionDenied, "taxonomy entities are managed by administrators")
}

// Create 创建分类实体（仅管理员）
func (s *TaxonomyService[T]) Create(ctx context.Context, p principal.Principal, model *T) error {
	if err := s.requireAdmin(p); err != nil {
		return err
	}
	if model == nil {
		return errors.ErrInvalidArgument
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return err
	}
	return repo.Create(principal.WithPrincipal(ctx, p), model)
}

// GetByID 按 ID 获取分类实体（读穿缓存）
// 缓存不可用时直接回源，不影响读取
func (s *TaxonomyService[T]) GetByID(ctx context.Context, p principal.Principal, id int64) (*T, error) {
	if !p.Valid() {
		return nil, errors.ErrUnauthenticated
	}

	key := s.cacheKey(id)
	if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
		var model T
		if err := json.Unmarshal([]byte(raw), &model); err == nil {
			return &model, nil
		}
		// 缓存内容损坏，删除后回源
		_ = s.cache.Del(ctx, key)
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return nil, err
	}
	model, err := repo.FindByID(principal.WithPrincipal(ctx, p), id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(model); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), taxonomyCacheTTL); err != nil {
			s.log.Warn("taxonomy cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return model, nil
}

// List 列出全部分类实体
func (s *TaxonomyService[T]) List(ctx context.Context, p principal.Principal, opts ...repository.Option) ([]*T, error) {
	if !p.Valid() {
		return nil, errors.ErrUnauthenticated
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return nil, err
	}
	return repo.FindAll(principal.WithPrincipal(ctx, p), false, opts...)
}

// Update 按 ID 更新分类实体（仅管理员），并失效缓存
func (s *TaxonomyService[T]) Update(ctx context.Context, p principal.Principal, id int64, updates map[string]any, allowedFields ...string) error {
	if err := s.requireAdmin(p); err != nil {
		return err
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return err
	}
	if err := repo.UpdateByID(principal.WithPrincipal(ctx, p), id, updates, allowedFields...); err != nil {
		return err
	}

	if err := s.cache.Del(ctx, s.cacheKey(id)); err != nil {
		s.log.Warn("taxonomy cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
	return nil
}

// ReferenceCount 统计指向该分类实体的引用总数
// 软删除的内容仍计入引用：恢复后引用必须依旧有效
func (s *TaxonomyService[T]) ReferenceCount(ctx context.Context, db *gorm.DB, id int64) (int64, error) {
	var total int64
	for _, ref := range s.refs {
		var n int64
		if err := db.WithContext(ctx).Table(ref.Table).
			Where(ref.Column+" = ?", id).
			Count(&n).Error; err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, "failed to count references", err)
		}
		total += n
	}
	return total, nil
}

// CanDelete 检查分类实体当前是否可删除
// 对所有主体开放：教练在发起内容清理前也需要这个提示。
// 结果仅供界面提示，删除时仍会在锁内重新检查
func (s *TaxonomyService[T]) CanDelete(ctx context.Context, p principal.Principal, id int64) (bool, error) {
	if !p.Valid() {
		return false, errors.ErrUnauthenticated
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return false, err
	}
	refs, err := s.ReferenceCount(ctx, repo.GetDB(), id)
	if err != nil {
		return false, err
	}
	return refs == 0, nil
}

// Delete 按 ID 删除分类实体（仅管理员）
// 实体被引用时返回前置条件错误；检查与删除在分布式锁内串行化，
// 锁内再开事务，防止检查通过后、删除提交前出现新引用
func (s *TaxonomyService[T]) Delete(ctx context.Context, p principal.Principal, id int64) error {
	if err := s.requireAdmin(p); err != nil {
		return err
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return err
	}

	lockOpt := redis.DefaultLockOption()
	lockOpt.TTL = deleteLockTTL
	lock := s.cache.NewLock(fmt.Sprintf("taxonomy:%s:delete:%d", s.name, id), lockOpt)
	if err := lock.Acquire(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeUnavailable, "deletion guard lock unavailable", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("deletion guard lock release failed", zap.Error(err))
		}
	}()

	ctx = principal.WithPrincipal(ctx, p)
	return repo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := repository.ContextWithTx(ctx, tx)

		ok, err := repo.ExistsByID(txCtx, id)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrCodeNotFound, "record not found")
		}

		refs, err := s.ReferenceCount(ctx, tx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return errors.Wrapf(errors.ErrCodeFailedPrecondition, nil,
				"%s %d is referenced by %d item(s) and cannot be deleted", s.name, id, refs)
		}

		if err := repo.DeleteByID(txCtx, id); err != nil {
			return err
		}

		if err := s.cache.Del(ctx, s.cacheKey(id)); err != nil {
			s.log.Warn("taxonomy cache invalidation failed", zap.Int64("id", id), zap.Error(err))
		}
		return nil
	})
}
