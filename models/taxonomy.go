package models

import (
	"github.com/fitgo/fit-go-core/repository"
)

/* ========================================================================
 * Taxonomy Models - 分类法模型
 * ========================================================================
 * 职责: 全平台共享的分类实体（目标、等级、训练类型、器械形态、标签）
 * 约束: 被任何训练课/计划/动作引用期间不可删除
 * ======================================================================== */

// Goal 训练目标（如增肌、减脂）
type Goal struct {
	repository.BaseModel
	Name string `json:"name" gorm:"column:name;type:varchar(80);uniqueIndex;not null;comment:名称"`
}

// TableName 表名
func (Goal) TableName() string {
	return "goals"
}

// Level 难度等级
type Level struct {
	repository.BaseModel
	Name string `json:"name" gorm:"column:name;type:varchar(80);uniqueIndex;not null;comment:名称"`
	Rank int    `json:"rank" gorm:"column:rank;default:0;comment:排序权重"`
}

// TableName 表名
func (Level) TableName() string {
	return "levels"
}

// TrainingType 训练类型（如力量、有氧、HIIT）
type TrainingType struct {
	repository.BaseModel
	Name string `json:"name" gorm:"column:name;type:varchar(80);uniqueIndex;not null;comment:名称"`
}

// TableName 表名
func (TrainingType) TableName() string {
	return "training_types"
}

// Modality 器械形态（如杠铃、哑铃、自重）
type Modality struct {
	repository.BaseModel
	Name string `json:"name" gorm:"column:name;type:varchar(80);uniqueIndex;not null;comment:名称"`
}

// TableName 表名
func (Modality) TableName() string {
	return "modalities"
}

// Hashtag 标签
type Hashtag struct {
	repository.BaseModel
	Tag string `json:"tag" gorm:"column:tag;type:varchar(80);uniqueIndex;not null;comment:标签文本"`
}

// TableName 表名
func (Hashtag) TableName() string {
	return "hashtags"
}
