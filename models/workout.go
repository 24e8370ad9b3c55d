package models

import (
	"github.com/fitgo/fit-go-core/database"
	"github.com/fitgo/fit-go-core/repository"
	"github.com/fitgo/fit-go-core/utils/id-generator/ulid"
)

/* ========================================================================
 * Workout Model - 训练课模型
 * ========================================================================
 * 职责: 教练私有的训练课实体
 * 归属: instructor_id 在创建时写入，此后不可变更
 * ======================================================================== */

// MediaStatus 训练课媒体处理状态
type MediaStatus string

const (
	// MediaStatusPending 已上传，等待处理
	MediaStatusPending MediaStatus = "pending"
	// MediaStatusProcessing 转码处理中
	MediaStatusProcessing MediaStatus = "processing"
	// MediaStatusReady 处理完成，可播放
	MediaStatusReady MediaStatus = "ready"
	// MediaStatusFailed 处理失败
	MediaStatusFailed MediaStatus = "failed"
)

// Valid 检查是否为已知状态
func (s MediaStatus) Valid() bool {
	switch s {
	case MediaStatusPending, MediaStatusProcessing, MediaStatusReady, MediaStatusFailed:
		return true
	}
	return false
}

// NewMediaKey 生成对象存储媒体键
// 使用 ULID：按时间有序，可直接作为对象存储的 key 前缀
func NewMediaKey() string {
	return ulid.GenerateString()
}

// Workout 训练课
type Workout struct {
	repository.BaseModel
	InstructorID int64          `json:"instructor_id,string" gorm:"column:instructor_id;index;not null;comment:归属教练ID"`
	Title        string         `json:"title" gorm:"column:title;type:varchar(160);not null;comment:标题" validate:"required,max=160" error_msg:"required:标题必填|max:标题过长"`
	Description  string         `json:"description" gorm:"column:description;type:text;comment:描述"`
	LevelID      int64          `json:"level_id,string" gorm:"column:level_id;index;comment:难度等级ID"`
	MediaKey     string         `json:"media_key" gorm:"column:media_key;type:char(26);index;comment:媒体对象键(ULID)" validate:"omitempty,len=26"`
	MediaStatus  MediaStatus    `json:"media_status" gorm:"column:media_status;type:varchar(16);default:pending;comment:媒体处理状态" validate:"omitempty,media_status"`
	Metadata     database.JSONB `json:"metadata" gorm:"column:metadata;type:jsonb;comment:扩展元数据"`

	Level         *Level          `json:"level,omitempty" gorm:"foreignKey:LevelID"`
	Goals         []*Goal         `json:"goals,omitempty" gorm:"many2many:workout_goals"`
	Hashtags      []*Hashtag      `json:"hashtags,omitempty" gorm:"many2many:workout_hashtags"`
	TrainingTypes []*TrainingType `json:"training_types,omitempty" gorm:"many2many:workout_training_types"`
}

// TableName 表名
func (Workout) TableName() string {
	return "workouts"
}

// GetInstructorID 归属教练
func (w *Workout) GetInstructorID() int64 {
	return w.InstructorID
}

// SetInstructorID 设置归属教练
func (w *Workout) SetInstructorID(id int64) {
	w.InstructorID = id
}
