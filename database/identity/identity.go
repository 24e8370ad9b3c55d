package identity

import (
	"strconv"
	"strings"
	"sync"

	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/principal"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

/* ========================================================================
 * Session Identity Injector - 会话身份注入器
 * ========================================================================
 * 职责: 在任何变更语句到达数据库之前，把当前主体 id 写入会话变量，
 *       供数据库侧行级安全（触发器 / 视图）按租户过滤
 * 设计: GORM 插件 + 回调，身份语句通过 Statement.ConnPool 直接下发，
 *       保证与被保护语句同连接、同事务，且不会再次进入回调链
 * 策略: 身份语句失败默认 fail-closed（中止整个操作）；
 *       fail-open 必须显式配置，仅记录告警后放行
 * ======================================================================== */

const (
	// PluginName GORM 插件名
	PluginName = "fit:session-identity"

	// OptSkipKey 跳过身份注入（身份语句自身 / 显式豁免的语句）
	OptSkipKey = "fit:identity:skip"

	// OptMarkMutationKey 将一条读语句标记为"驱动后续变更"的读，
	// 使其同样获得身份注入（如 FOR UPDATE 的 tracked 读取）
	OptMarkMutationKey = "fit:identity:mark_mutation"

	callbackName = "fit:session_identity"

	// rawTxKey 记录插件为事务外原生变更自行开启的事务
	rawTxKey = "fit:identity:raw_tx"
)

// 预定义错误
var (
	// ErrMissingPrincipal 变更语句执行时 context 中没有主体
	ErrMissingPrincipal = errors.New(errors.ErrCodeUnauthenticated, "mutating statement without principal")

	// ErrInjectionFailed 身份语句自身执行失败（fail-closed 时中止操作）
	ErrInjectionFailed = errors.New(errors.ErrCodeInternal, "session identity injection failed")
)

// StatementFunc 按方言生成身份设置语句
type StatementFunc func(actorID int64) (sql string, args []any)

var (
	dialectMu   sync.RWMutex
	dialectStmt = map[string]StatementFunc{
		"postgres": func(actorID int64) (string, []any) {
			// set_config(..., true) 的作用域是当前事务
			return "SELECT set_config('app.user_id', $1, true)", []any{strconv.FormatInt(actorID, 10)}
		},
		"mysql": func(actorID int64) (string, []any) {
			return "SET @user_id = ?", []any{actorID}
		},
	}
)

// RegisterDialect 注册（或覆盖）某个方言的身份语句
// 主要用于测试方言（如 sqlite）
func RegisterDialect(name string, fn StatementFunc) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialectStmt[name] = fn
}

func statementFor(dialect string) (StatementFunc, bool) {
	dialectMu.RLock()
	defer dialectMu.RUnlock()
	fn, ok := dialectStmt[dialect]
	return fn, ok
}

// Config 注入器配置
type Config struct {
	// FailOpen 身份语句失败时是否放行原语句
	// 默认 false（fail-closed）：放行会直接破坏租户隔离保证
	FailOpen bool `yaml:"fail_open"`
}

// Plugin GORM 插件
type Plugin struct {
	cfg Config
	log *logger.Logger
}

// New 创建身份注入插件
func New(cfg Config, log *logger.Logger) *Plugin {
	return &Plugin{cfg: cfg, log: log}
}

// Name 实现 gorm.Plugin
func (p *Plugin) Name() string {
	return PluginName
}

// Initialize 实现 gorm.Plugin：注册变更前回调
func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register(callbackName, p.injectMutation); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register(callbackName, p.injectMutation); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register(callbackName, p.injectMutation); err != nil {
		return err
	}
	// 原生 SQL：按语句前缀分类后决定是否注入
	if err := db.Callback().Raw().Before("gorm:raw").Register(callbackName, p.injectRaw); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register(callbackName+":finish", p.finishRawTx); err != nil {
		return err
	}
	// 查询：仅当被显式标记为"驱动变更"时注入
	if err := db.Callback().Query().Before("gorm:query").Register(callbackName, p.injectMarkedQuery); err != nil {
		return err
	}
	return nil
}

// injectMutation Create/Update/Delete 回调
func (p *Plugin) injectMutation(db *gorm.DB) {
	if db.Error != nil {
		return
	}
	if p.skipped(db) {
		return
	}
	p.apply(db)
}

// injectRaw 原生 SQL 回调
// 只拦截 INSERT/UPDATE/DELETE 开头的语句；身份语句自身永不拦截。
// 事务外的原生变更先被裹进事务：连接池上两次 ExecContext 不保证落在
// 同一物理连接，而 set_config(..., true) 只在自身事务内生效，
// 不开事务时身份语句和被保护语句会彼此看不见
func (p *Plugin) injectRaw(db *gorm.DB) {
	if db.Error != nil {
		return
	}
	if p.skipped(db) {
		return
	}
	if !IsMutatingSQL(db.Statement.SQL.String()) {
		return
	}
	if !inTransaction(db) {
		if err := p.beginRawTx(db); err != nil {
			db.AddError(err)
			return
		}
	}
	p.apply(db)
}

// inTransaction 判断当前语句是否已在事务中执行
func inTransaction(db *gorm.DB) bool {
	connPool := db.Statement.ConnPool
	if connPool == nil {
		connPool = db.ConnPool
	}
	_, ok := connPool.(gorm.TxCommitter)
	return ok
}

// beginRawTx 为事务外的原生变更开启事务，并把语句切换到事务连接上
func (p *Plugin) beginRawTx(db *gorm.DB) error {
	connPool := db.Statement.ConnPool
	if connPool == nil {
		connPool = db.ConnPool
	}

	var tx gorm.ConnPool
	switch beginner := connPool.(type) {
	case gorm.TxBeginner:
		sqlTx, err := beginner.BeginTx(db.Statement.Context, nil)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to begin raw mutation transaction", err)
		}
		tx = sqlTx
	case gorm.ConnPoolBeginner:
		poolTx, err := beginner.BeginTx(db.Statement.Context, nil)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to begin raw mutation transaction", err)
		}
		tx = poolTx
	default:
		return errors.New(errors.ErrCodeInternal, "connection pool cannot begin raw mutation transaction")
	}

	db.Statement.ConnPool = tx
	db.InstanceSet(rawTxKey, tx)
	return nil
}

// finishRawTx 结束插件自行开启的 raw 事务：出错回滚，否则提交
func (p *Plugin) finishRawTx(db *gorm.DB) {
	v, ok := db.InstanceGet(rawTxKey)
	if !ok {
		return
	}
	committer, ok := v.(gorm.TxCommitter)
	if !ok {
		return
	}

	if db.Error != nil {
		_ = committer.Rollback()
		return
	}
	if err := committer.Commit(); err != nil {
		db.AddError(errors.Wrap(errors.ErrCodeInternal, "raw mutation transaction commit failed", err))
	}
}

// injectMarkedQuery 被标记为驱动变更的读
func (p *Plugin) injectMarkedQuery(db *gorm.DB) {
	if db.Error != nil {
		return
	}
	if p.skipped(db) {
		return
	}
	if marked, ok := db.Get(OptMarkMutationKey); !ok || marked != true {
		return
	}
	p.apply(db)
}

// skipped 检查语句是否被显式豁免
func (p *Plugin) skipped(db *gorm.DB) bool {
	if v, ok := db.Get(OptSkipKey); ok && v == true {
		return true
	}
	return false
}

// apply 下发身份语句
// 直接走 Statement.ConnPool：与被保护语句同一物理连接 / 事务，
// 不经过回调链，因而不存在自我递归
func (p *Plugin) apply(db *gorm.DB) {
	pr, ok := principal.FromContext(db.Statement.Context)
	if !ok || !pr.Valid() {
		db.AddError(ErrMissingPrincipal)
		return
	}

	if err := Apply(db, pr.ActorID()); err != nil {
		if p.cfg.FailOpen {
			// 显式配置的 fail-open：记录后放行
			if p.log != nil {
				p.log.Warn("session identity injection failed, proceeding (fail-open)",
					zap.Int64("actor_id", pr.ActorID()),
					zap.Error(err),
				)
			}
			return
		}
		db.AddError(err)
	}
}

// Apply 在 db 当前连接上设置会话身份
// 供事务入口（Unit of Work）在 Begin 后显式调用一次
func Apply(db *gorm.DB, actorID int64) error {
	fn, ok := statementFor(db.Dialector.Name())
	if !ok {
		return errors.Wrapf(errors.ErrCodeConfig, nil,
			"no session identity statement for dialect %q", db.Dialector.Name())
	}

	sqlStr, args := fn(actorID)
	connPool := db.Statement.ConnPool
	if connPool == nil {
		connPool = db.ConnPool
	}
	if _, err := connPool.ExecContext(db.Statement.Context, sqlStr, args...); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, ErrInjectionFailed.Message, err)
	}
	return nil
}

// IsMutatingSQL 判断语句是否为变更语句
func IsMutatingSQL(sql string) bool {
	s := strings.TrimSpace(sql)
	if len(s) < 6 {
		return false
	}
	switch strings.ToUpper(s[:6]) {
	case "INSERT", "UPDATE", "DELETE":
		return true
	}
	return false
}

// Skip 返回一个豁免身份注入的 DB 句柄
func Skip(db *gorm.DB) *gorm.DB {
	return db.Set(OptSkipKey, true)
}

// MarkMutation 返回一个将读语句标记为驱动变更的 DB 句柄
func MarkMutation(db *gorm.DB) *gorm.DB {
	return db.Set(OptMarkMutationKey, true)
}
