package service

import (
	"context"

	"github.com/fitgo/fit-go-core/cache/redis"
	"github.com/fitgo/fit-go-core/database/router"
	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/models"
	"github.com/fitgo/fit-go-core/principal"
	"github.com/fitgo/fit-go-core/repository"
	"github.com/fitgo/fit-go-core/uow"
	"github.com/fitgo/fit-go-core/validator"
)

/* ========================================================================
 * Fitness Services - 健身领域服务
 * ========================================================================
 * 职责: 把通用服务实例化到具体领域实体
 * ======================================================================== */

// WorkoutService 训练课服务
type WorkoutService struct {
	*OwnedService[models.Workout, *models.Workout]
}

// NewWorkoutService 创建训练课服务
func NewWorkoutService(rt *router.Router, v *validator.Validator, log *logger.Logger) *WorkoutService {
	return &WorkoutService{
		OwnedService: NewOwnedService[models.Workout, *models.Workout](rt, v, log),
	}
}

// UpdateMediaStatus 更新训练课媒体处理状态
// 媒体处理回调经外部系统主体走此路径，归属校验对其豁免
func (s *WorkoutService) UpdateMediaStatus(ctx context.Context, p principal.Principal, id int64, status models.MediaStatus) (*models.Workout, error) {
	if !status.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "unknown media status: "+string(status))
	}
	return s.Update(ctx, p, id, map[string]any{"media_status": string(status)}, "media_status")
}

// RoutineService 训练计划服务
type RoutineService struct {
	*OwnedService[models.Routine, *models.Routine]
	uow *uow.UnitOfWork
}

// NewRoutineService 创建训练计划服务
func NewRoutineService(rt *router.Router, v *validator.Validator, u *uow.UnitOfWork, log *logger.Logger) *RoutineService {
	return &RoutineService{
		OwnedService: NewOwnedService[models.Routine, *models.Routine](rt, v, log),
		uow:          u,
	}
}

// ArrangeWorkouts 整批替换计划内的训练课编排
// 多表写（清旧编排 + 按顺序插新行）走工作单元：同一事务、身份注入一次；
// 任一训练课不存在或不归属当前教练则整体失败
func (s *RoutineService) ArrangeWorkouts(ctx context.Context, p principal.Principal, routineID int64, workoutIDs []int64) error {
	if !p.Valid() {
		return errors.ErrUnauthenticated
	}
	if _, err := s.GetByID(ctx, p, routineID); err != nil {
		return err
	}

	seen := make(map[int64]struct{}, len(workoutIDs))
	for _, id := range workoutIDs {
		if id <= 0 {
			return errors.New(errors.ErrCodeInvalidArgument, "invalid workout id in arrangement")
		}
		if _, dup := seen[id]; dup {
			return errors.New(errors.ErrCodeInvalidArgument, "duplicate workout id in arrangement")
		}
		seen[id] = struct{}{}
	}

	return s.uow.Execute(ctx, p, func(txCtx context.Context) error {
		tx, ok := repository.TxFromContext(txCtx)
		if !ok {
			return errors.New(errors.ErrCodeInternal, "arrangement requires a transaction")
		}

		if len(workoutIDs) > 0 {
			q := tx.Model(&models.Workout{}).Where("id IN ?", workoutIDs)
			if !p.IsExternal && p.Role == principal.RoleInstructor {
				q = q.Where("instructor_id = ?", p.ID)
			}
			var visible int64
			if err := q.Count(&visible).Error; err != nil {
				return errors.Wrap(errors.ErrCodeInternal, "failed to verify workouts", err)
			}
			if visible != int64(len(workoutIDs)) {
				return errors.New(errors.ErrCodeNotFound, "arrangement references a missing or foreign workout")
			}
		}

		if err := tx.Where("routine_id = ?", routineID).Delete(&models.RoutineWorkout{}).Error; err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to clear arrangement", err)
		}
		if len(workoutIDs) == 0 {
			return nil
		}

		rows := make([]models.RoutineWorkout, 0, len(workoutIDs))
		for i, wid := range workoutIDs {
			rows = append(rows, models.RoutineWorkout{RoutineID: routineID, WorkoutID: wid, Position: i + 1})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return errors.Wrap(errors.ErrCodeInternal, "failed to write arrangement", err)
		}
		return nil
	})
}

// Workouts 按编排顺序返回计划内的训练课
func (s *RoutineService) Workouts(ctx context.Context, p principal.Principal, routineID int64) ([]*models.Workout, error) {
	if _, err := s.GetByID(ctx, p, routineID); err != nil {
		return nil, err
	}

	repo, err := s.repoFor(p)
	if err != nil {
		return nil, err
	}

	var workouts []*models.Workout
	err = repo.GetDB().WithContext(principal.WithPrincipal(ctx, p)).
		Model(&models.Workout{}).
		Joins("JOIN routine_workouts rw ON rw.workout_id = workouts.id").
		Where("rw.routine_id = ?", routineID).
		Order("rw.position").
		Find(&workouts).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to load arrangement", err)
	}
	return workouts, nil
}

// ExerciseService 训练动作服务
type ExerciseService struct {
	*OwnedService[models.Exercise, *models.Exercise]
}

// NewExerciseService 创建训练动作服务
func NewExerciseService(rt *router.Router, v *validator.Validator, log *logger.Logger) *ExerciseService {
	return &ExerciseService{
		OwnedService: NewOwnedService[models.Exercise, *models.Exercise](rt, v, log),
	}
}

/* ========================================================================
 * 分类法服务实例
 * ======================================================================== */

// NewGoalService 训练目标服务
func NewGoalService(rt *router.Router, cache redis.Clienter, log *logger.Logger) *TaxonomyService[models.Goal] {
	return NewTaxonomyService[models.Goal](rt, cache, log, "goal", []Ref{
		{Table: "workout_goals", Column: "goal_id"},
		{Table: "routine_goals", Column: "goal_id"},
	})
}

// NewLevelService 难度等级服务
func NewLevelService(rt *router.Router, cache redis.Clienter, log *logger.Logger) *TaxonomyService[models.Level] {
	return NewTaxonomyService[models.Level](rt, cache, log, "level", []Ref{
		{Table: "workouts", Column: "level_id"},
		{Table: "routines", Column: "level_id"},
	})
}

// NewTrainingTypeService 训练类型服务
func NewTrainingTypeService(rt *router.Router, cache redis.Clienter, log *logger.Logger) *TaxonomyService[models.TrainingType] {
	return NewTaxonomyService[models.TrainingType](rt, cache, log, "training_type", []Ref{
		{Table: "workout_training_types", Column: "training_type_id"},
	})
}

// NewModalityService 器械形态服务
func NewModalityService(rt *router.Router, cache redis.Clienter, log *logger.Logger) *TaxonomyService[models.Modality] {
	return NewTaxonomyService[models.Modality](rt, cache, log, "modality", []Ref{
		{Table: "exercise_modalities", Column: "modality_id"},
	})
}

// NewHashtagService 标签服务
func NewHashtagService(rt *router.Router, cache redis.Clienter, log *logger.Logger) *TaxonomyService[models.Hashtag] {
	return NewTaxonomyService[models.Hashtag](rt, cache, log, "hashtag", []Ref{
		{Table: "workout_hashtags", Column: "hashtag_id"},
		{Table: "routine_hashtags", Column: "hashtag_id"},
		{Table: "exercise_hashtags", Column: "hashtag_id"},
	})
}
