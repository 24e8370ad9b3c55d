package models

import (
	"github.com/fitgo/fit-go-core/repository"
)

/* ========================================================================
 * Exercise Model - 动作模型
 * ========================================================================
 * 职责: 教练私有的训练动作
 * ======================================================================== */

// Exercise 训练动作
type Exercise struct {
	repository.BaseModel
	InstructorID int64  `json:"instructor_id,string" gorm:"column:instructor_id;index;not null;comment:归属教练ID"`
	Name         string `json:"name" gorm:"column:name;type:varchar(120);not null;comment:名称" validate:"required,max=120" error_msg:"required:名称必填|max:名称过长"`
	MuscleGroup  string `json:"muscle_group" gorm:"column:muscle_group;type:varchar(64);comment:目标肌群"`
	MediaKey     string `json:"media_key" gorm:"column:media_key;type:char(26);comment:演示媒体键(ULID)" validate:"omitempty,len=26"`

	Modalities []*Modality `json:"modalities,omitempty" gorm:"many2many:exercise_modalities"`
	Hashtags   []*Hashtag  `json:"hashtags,omitempty" gorm:"many2many:exercise_hashtags"`
}

// TableName 表名
func (Exercise) TableName() string {
	return "exercises"
}

// GetInstructorID 归属教练
func (e *Exercise) GetInstructorID() int64 {
	return e.InstructorID
}

// SetInstructorID 设置归属教练
func (e *Exercise) SetInstructorID(id int64) {
	e.InstructorID = id
}
