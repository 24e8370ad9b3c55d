package uow

import (
	"go.uber.org/fx"
)

// Module 工作单元模块
var Module = fx.Module("uow",
	fx.Provide(New),
)
