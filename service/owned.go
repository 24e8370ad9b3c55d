package service

import (
	"context"
	"sync"

	"github.com/fitgo/fit-go-core/database/router"
	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/principal"
	"github.com/fitgo/fit-go-core/repository"
	"github.com/fitgo/fit-go-core/validator"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

/* ========================================================================
 * Owned Service - 教练私有实体通用服务
 * ========================================================================
 * 职责: 教练私有实体（训练课/计划/动作）的通用业务逻辑
 * 规则:
 *   - 创建时由当前主体写入归属，预置的陌生归属 id 视为越权
 *   - 更新/删除/单查一律先加载再校验归属，归属不符返回权限错误，
 *     记录不存在返回 NotFound，二者语义不混用
 *   - 列表只在归属过滤后的集合上分页，总数同样来自过滤后的集合
 *   - 外部系统调用方跳过归属校验（上游已完成鉴权），但不能创建
 * ======================================================================== */

// instructorColumns 归属列的可能写法，更新请求中出现即视为越权
var instructorColumns = []string{"instructor_id", "InstructorID"}

// Owned 约束：*T 必须实现归属接口
type Owned[T any] interface {
	*T
	repository.InstructorOwned
}

// OwnedService 教练私有实体通用服务
type OwnedService[T any, PT Owned[T]] struct {
	router   *router.Router
	validate *validator.Validator
	log      *logger.Logger

	mu    sync.RWMutex
	repos map[principal.Role]repository.Repository[T]
}

// NewOwnedService 创建服务实例
func NewOwnedService[T any, PT Owned[T]](rt *router.Router, v *validator.Validator, log *logger.Logger) *OwnedService[T, PT] {
	return &OwnedService[T, PT]{
		router:   rt,
		validate: v,
		log:      log,
		repos:    make(map[principal.Role]repository.Repository[T]),
	}
}

// repoFor 按主体角色解析仓储
// 同角色复用同一仓储实例（schema 缓存跟随实例）
func (s *OwnedService[T, PT]) repoFor(p principal.Principal) (repository.Repository[T], error) {
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

// Create 创建实体并写入归属
// 预置了其他教练归属 id 的输入视为越权
func (s *OwnedService[T, PT]) Create(ctx context.Context, p principal.Principal, model *T) error {
	if model == nil {
		return errors.ErrInvalidArgument
	}
	if !p.Valid() {
		return errors.ErrUnauthenticated
	}
	if p.IsExternal {
		return errors.New(errors.ErrCodePermissionDenied, "external callers cannot create owned entities")
	}
	if p.Role != principal.RoleInstructor {
		return errors.New(errors.ErrCodePermissionDenied, "only instructors can create owned entities")
	}

	owner := PT(model).GetInstructorID()
	if owner != 0 && owner != p.ID {
		s.log.Warn("rejected create with foreign owner id",
			zap.Int64("principal_id", p.ID),
			zap.Int64("preset_owner_id", owner))
		return errors.New(errors.ErrCodePermissionDenied, "cannot create entity for another instructor")
	}
	PT(model).SetInstructorID(p.ID)

	if err := s.validate.Validate(model); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidArgument, "validation failed", err)
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return err
	}
	return repo.Create(principal.WithPrincipal(ctx, p), model)
}

// GetByID 按 ID 获取实体并校验归属
// 记录不存在与归属不符返回不同的错误码
func (s *OwnedService[T, PT]) GetByID(ctx context.Context, p principal.Principal, id int64) (*T, error) {
	if !p.Valid() {
		return nil, errors.ErrUnauthenticated
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return nil, err
	}

	model, err := repo.FindByID(principal.WithPrincipal(ctx, p), id)
	if err != nil {
		return nil, err
	}
	if err := s.assertOwnership(p, PT(model)); err != nil {
		return nil, err
	}
	return model, nil
}

// Update 按 ID 更新指定字段
// 在单个事务内以待写意图加载、校验归属、再更新；
// 更新请求中出现归属列即视为越权
func (s *OwnedService[T, PT]) Update(ctx context.Context, p principal.Principal, id int64, updates map[string]any, allowedFields ...string) (*T, error) {
	if !p.Valid() {
		return nil, errors.ErrUnauthenticated
	}
	if len(updates) == 0 {
		return nil, errors.ErrInvalidArgument
	}
	for _, col := range instructorColumns {
		if _, ok := updates[col]; ok {
			return nil, errors.New(errors.ErrCodePermissionDenied, "ownership cannot be reassigned")
		}
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return nil, err
	}

	ctx = principal.WithPrincipal(ctx, p)
	var updated *T
	err = repo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := repository.ContextWithTx(ctx, tx)

		model, err := repo.FindByID(txCtx, id, repository.WithTracked())
		if err != nil {
			return err
		}
		if err := s.assertOwnership(p, PT(model)); err != nil {
			return err
		}

		if err := repo.UpdateByID(txCtx, id, updates, allowedFields...); err != nil {
			return err
		}

		updated, err = repo.FindByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete 按 ID 删除实体
// 目标不存在返回 NotFound（与仓储层的幂等删除不同，
// 服务层的删除以加载成功为前提）
func (s *OwnedService[T, PT]) Delete(ctx context.Context, p principal.Principal, id int64) error {
	if !p.Valid() {
		return errors.ErrUnauthenticated
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return err
	}

	ctx = principal.WithPrincipal(ctx, p)
	return repo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := repository.ContextWithTx(ctx, tx)

		model, err := repo.FindByID(txCtx, id, repository.WithTracked())
		if err != nil {
			return err
		}
		if err := s.assertOwnership(p, PT(model)); err != nil {
			return err
		}

		return repo.DeleteByID(txCtx, id)
	})
}

// List 分页列出当前主体归属的实体
// 外部系统调用方必须改用 ListForInstructor 指明归属
func (s *OwnedService[T, PT]) List(ctx context.Context, p principal.Principal, page, pageSize int, opts ...repository.Option) (*repository.PageResult[T], error) {
	if p.IsExternal {
		return nil, errors.New(errors.ErrCodePermissionDenied, "external callers must list by explicit instructor")
	}
	return s.ListForInstructor(ctx, p, p.ID, page, pageSize, opts...)
}

// ListForInstructor 分页列出指定教练归属的实体
// 教练只能列自己的；管理员和外部系统调用方可以指定任意教练
func (s *OwnedService[T, PT]) ListForInstructor(ctx context.Context, p principal.Principal, instructorID int64, page, pageSize int, opts ...repository.Option) (*repository.PageResult[T], error) {
	if !p.Valid() {
		return nil, errors.ErrUnauthenticated
	}
	if !p.IsExternal && p.Role == principal.RoleInstructor && instructorID != p.ID {
		return nil, errors.New(errors.ErrCodePermissionDenied, "instructors can only list their own entities")
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return nil, err
	}

	opts = append(opts, repository.WithScopes(repository.ScopeOwnedBy(instructorID)))
	return repo.FindPageWithOpts(principal.WithPrincipal(ctx, p), page, pageSize, "", opts)
}

// assertOwnership 校验实体归属
// 管理员与外部系统调用方不受归属限制
func (s *OwnedService[T, PT]) assertOwnership(p principal.Principal, m repository.InstructorOwned) error {
	if p.IsExternal || p.Role == principal.RoleAdmin {
		return nil
	}
	if m.GetInstructorID() != p.ID {
		s.log.Warn("rejected access to foreign entity",
			zap.Int64("principal_id", p.ID),
			zap.Int64("owner_id", m.GetInstructorID()))
		return errors.New(errors.ErrCodePermissionDenied, "entity belongs to another instructor")
	}
	return nil
}
