package router

import (
	"go.uber.org/fx"
)

/* ========================================================================
 * Router Module
 * ========================================================================
 * 职责: 提供角色连接路由依赖注入模块
 * ======================================================================== */

// Module 路由器模块
// 提供: *Router
var Module = fx.Module("db-router",
	fx.Provide(New),
)
