package models

import (
	"github.com/fitgo/fit-go-core/database"
	"github.com/fitgo/fit-go-core/repository"
)

/* ========================================================================
 * Routine Model - 训练计划模型
 * ========================================================================
 * 职责: 教练私有的训练计划，按顺序编排多节训练课
 * ======================================================================== */

// Routine 训练计划
type Routine struct {
	repository.BaseModel
	InstructorID int64          `json:"instructor_id,string" gorm:"column:instructor_id;index;not null;comment:归属教练ID"`
	Name         string         `json:"name" gorm:"column:name;type:varchar(160);not null;comment:名称" validate:"required,max=160" error_msg:"required:名称必填|max:名称过长"`
	Description  string         `json:"description" gorm:"column:description;type:text;comment:描述"`
	LevelID      int64          `json:"level_id,string" gorm:"column:level_id;index;comment:难度等级ID"`
	WeekCount    int            `json:"week_count" gorm:"column:week_count;default:1;comment:周期(周)" validate:"omitempty,min=1,max=52"`
	Metadata     database.JSONB `json:"metadata" gorm:"column:metadata;type:jsonb;comment:扩展元数据"`

	Level    *Level     `json:"level,omitempty" gorm:"foreignKey:LevelID"`
	Workouts []*Workout `json:"workouts,omitempty" gorm:"many2many:routine_workouts"`
	Goals    []*Goal    `json:"goals,omitempty" gorm:"many2many:routine_goals"`
	Hashtags []*Hashtag `json:"hashtags,omitempty" gorm:"many2many:routine_hashtags"`
}

// TableName 表名
func (Routine) TableName() string {
	return "routines"
}

// RoutineWorkout 计划内训练课的编排行
// 作为 routine_workouts 关联表的显式模型，附带课在计划内的顺序；
// 编排写入由服务层在工作单元内整批替换
type RoutineWorkout struct {
	RoutineID int64 `json:"routine_id,string" gorm:"primaryKey;column:routine_id;comment:计划ID"`
	WorkoutID int64 `json:"workout_id,string" gorm:"primaryKey;column:workout_id;comment:训练课ID"`
	Position  int   `json:"position" gorm:"column:position;not null;default:0;comment:计划内顺序(从1起)"`
}

// TableName 表名
func (RoutineWorkout) TableName() string {
	return "routine_workouts"
}

// GetInstructorID 归属教练
func (r *Routine) GetInstructorID() int64 {
	return r.InstructorID
}

// SetInstructorID 设置归属教练
func (r *Routine) SetInstructorID(id int64) {
	r.InstructorID = id
}
