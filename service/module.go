package service

import (
	"go.uber.org/fx"
)

/* ========================================================================
 * Service Module
 * ========================================================================
 * 职责: 提供领域服务依赖注入模块
 * ======================================================================== */

// Module 领域服务模块
var Module = fx.Module("service",
	fx.Provide(
		NewWorkoutService,
		NewRoutineService,
		NewExerciseService,
		NewGoalService,
		NewLevelService,
		NewTrainingTypeService,
		NewModalityService,
		NewHashtagService,
	),
)
