package repository

import (
	"gorm.io/gorm"
)

/* ========================================================================
 * Instructor Ownership Scope - 教练归属作用域
 * ========================================================================
 * 职责: 教练私有实体的归属过滤
 * 安全: 归属 id 非法时令查询恒为空集，绝不放大可见范围
 * ======================================================================== */

const instructorColumn = "instructor_id"

// InstructorOwned 归属教练的实体
// 嵌入 instructor_id 列的模型实现此接口后，
// 可被 OwnedService 做归属校验
type InstructorOwned interface {
	GetInstructorID() int64
	SetInstructorID(id int64)
}

// ScopeOwnedBy 按教练归属过滤
// 与 WithScopes 配合使用，列表/分页/统计共用同一过滤条件
func ScopeOwnedBy(instructorID int64) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if instructorID <= 0 {
			// 非法归属 id 不等于不过滤
			return db.Where("1 = 0")
		}
		return db.Where(instructorColumn+" = ?", instructorID)
	}
}
