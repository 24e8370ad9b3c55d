package router

import (
	"context"

	"github.com/fitgo/fit-go-core/database/identity"
	"github.com/fitgo/fit-go-core/database/mysql"
	"github.com/fitgo/fit-go-core/database/postgres"
	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/principal"

	"gorm.io/gorm"
)

/* ========================================================================
 * Connection Router - 角色连接路由
 * ========================================================================
 * 职责: 将请求主体的角色映射到对应数据库授权账号的连接
 * 设计: 三个角色（admin/instructor/user）各持一条独立的连接配置，
 *       启动期逐一建连并注册身份注入插件；任一角色缺配置即启动失败。
 *       禁止任何角色回退到默认连接 —— 静默回退等于提权
 * ======================================================================== */

// Driver 支持的数据库方言
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// ConnConfig 单个角色的连接配置
type ConnConfig struct {
	Driver   string          `yaml:"driver"` // postgres / mysql
	Postgres postgres.Config `yaml:"postgres"`
	MySQL    mysql.Config    `yaml:"mysql"`
}

// Config 按角色划分的连接配置
// 三个角色全部必填：缺失即配置错误，不做运行时回退
type Config struct {
	Admin      *ConnConfig `yaml:"admin"`
	Instructor *ConnConfig `yaml:"instructor"`
	User       *ConnConfig `yaml:"user"`
}

func (c Config) forRole(role principal.Role) *ConnConfig {
	switch role {
	case principal.RoleAdmin:
		return c.Admin
	case principal.RoleInstructor:
		return c.Instructor
	case principal.RoleUser:
		return c.User
	}
	return nil
}

// Router 角色到物理连接的路由器
// 启动后只读，不缓存任何主体相关状态
type Router struct {
	dbs map[principal.Role]*gorm.DB
}

var allRoles = []principal.Role{principal.RoleAdmin, principal.RoleInstructor, principal.RoleUser}

// New 创建路由器：为每个角色建立连接并安装身份注入插件
func New(cfg Config, injector *identity.Plugin, log *logger.Logger) (*Router, error) {
	dbs := make(map[principal.Role]*gorm.DB, len(allRoles))

	for _, role := range allRoles {
		cc := cfg.forRole(role)
		if cc == nil {
			return nil, errors.Wrapf(errors.ErrCodeConfig, nil,
				"missing connection config for role %q", role)
		}

		db, err := open(cc, log)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeConfig, err,
				"open connection for role %q", role)
		}

		if injector != nil {
			if err := db.Use(injector); err != nil {
				return nil, errors.Wrapf(errors.ErrCodeConfig, err,
					"install identity injector for role %q", role)
			}
		}
		dbs[role] = db
	}

	return &Router{dbs: dbs}, nil
}

// NewWithConnections 用既有连接构造路由器（测试 / 自定义装配）
// 同样要求三个角色齐备
func NewWithConnections(dbs map[principal.Role]*gorm.DB) (*Router, error) {
	for _, role := range allRoles {
		if dbs[role] == nil {
			return nil, errors.Wrapf(errors.ErrCodeConfig, nil,
				"missing connection for role %q", role)
		}
	}
	cloned := make(map[principal.Role]*gorm.DB, len(dbs))
	for role, db := range dbs {
		cloned[role] = db
	}
	return &Router{dbs: cloned}, nil
}

func open(cc *ConnConfig, log *logger.Logger) (*gorm.DB, error) {
	switch cc.Driver {
	case DriverPostgres, "":
		if cc.Postgres.Empty() {
			return nil, errors.New(errors.ErrCodeConfig, "postgres connection config is empty")
		}
		return postgres.NewDB(cc.Postgres, log)
	case DriverMySQL:
		if cc.MySQL.Empty() {
			return nil, errors.New(errors.ErrCodeConfig, "mysql connection config is empty")
		}
		return mysql.NewDB(cc.MySQL, log)
	}
	return nil, errors.Wrapf(errors.ErrCodeConfig, nil, "unsupported driver %q", cc.Driver)
}

// Resolve 返回角色对应的连接
// 未识别的角色返回配置错误，绝不回退
func (r *Router) Resolve(role principal.Role) (*gorm.DB, error) {
	db, ok := r.dbs[role]
	if !ok {
		return nil, errors.Wrapf(errors.ErrCodeConfig, nil, "no connection for role %q", role)
	}
	return db, nil
}

// ResolveForPrincipal 按 context 中的主体角色解析连接
// 外部系统调用方走 admin 连接（写入时身份标记仍为哨兵值）
func (r *Router) ResolveForPrincipal(p principal.Principal) (*gorm.DB, error) {
	if p.IsExternal {
		return r.Resolve(principal.RoleAdmin)
	}
	return r.Resolve(p.Role)
}

// Ping 逐角色探测连接可用性
// 就绪检查用：任一角色通道断开时服务都不应继续接流量
func (r *Router) Ping(ctx context.Context) map[principal.Role]error {
	results := make(map[principal.Role]error, len(r.dbs))
	for role, db := range r.dbs {
		sqlDB, err := db.DB()
		if err != nil {
			results[role] = err
			continue
		}
		results[role] = sqlDB.PingContext(ctx)
	}
	return results
}
