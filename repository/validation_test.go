package repository

import (
	"testing"
)

/* ========================================================================
 * ValidateOrderBy 测试
 * ======================================================================== */

func TestValidateOrderBy(t *testing.T) {
	tests := []struct {
		name    string
		orderBy string
		wantErr bool
	}{
		// 合法用例
		{"empty string", "", false},
		{"simple column ASC", "create_time ASC", false},
		{"simple column DESC", "id DESC", false},
		{"column without direction", "title", false},
		{"table.column", "workouts.title ASC", false},
		{"multiple fields", "media_status ASC, create_time DESC", false},
		{"lowercase direction", "id asc", false},
		{"keyword inside column name", "update_time DESC", false},

		// 注入攻击
		{"SQL injection - comment", "id--", true},
		{"SQL injection - union", "id UNION SELECT", true},
		{"SQL injection - drop", "id; DROP TABLE workouts", true},
		{"SQL injection - semicolon", "id;", true},
		{"SQL injection - sleep", "id, SLEEP(5)", true},
		{"keyword after column-like prefix", "updated_at, UPDATE workouts", true},
		{"invalid direction", "id RANDOM", true},
		{"too many parts", "id ASC DESC", true},
		{"special characters", "id@name", true},
		{"parenthesis", "COUNT(*)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrderBy(tt.orderBy)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOrderBy(%q) error = %v, wantErr %v", tt.orderBy, err, tt.wantErr)
			}
		})
	}
}

/* ========================================================================
 * ValidateSelect 测试
 * ======================================================================== */

func TestValidateSelect(t *testing.T) {
	tests := []struct {
		name    string
		selects []string
		wantErr bool
	}{
		// 合法用例
		{"empty array", []string{}, false},
		{"single column", []string{"id"}, false},
		{"multiple columns", []string{"id", "title", "media_status"}, false},
		{"table.column", []string{"workouts.id", "workouts.title"}, false},
		{"aggregate function", []string{"COUNT(*) AS count"}, false},
		{"sum function", []string{"SUM(week_count) AS total"}, false},

		// 注入攻击
		{"SQL injection - drop", []string{"id", "title; DROP TABLE workouts"}, true},
		{"SQL injection - union", []string{"* FROM workouts--"}, true},
		{"SQL injection - comment", []string{"id--"}, true},
		{"SQL injection - semicolon", []string{"id;"}, true},
		{"special characters", []string{"id@name"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelect(tt.selects)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSelect(%v) error = %v, wantErr %v", tt.selects, err, tt.wantErr)
			}
		})
	}
}

/* ========================================================================
 * ValidateJoins 测试
 * ======================================================================== */

func TestValidateJoins(t *testing.T) {
	tests := []struct {
		name    string
		joins   []string
		wantErr bool
	}{
		// 合法用例
		{"empty array", []string{}, false},
		{"inner join", []string{"INNER JOIN levels ON levels.id = workouts.level_id"}, false},
		{"left join", []string{"LEFT JOIN workout_goals ON workout_goals.workout_id = workouts.id"}, false},
		{"multiple joins", []string{
			"LEFT JOIN levels ON levels.id = workouts.level_id",
			"INNER JOIN workout_goals ON workout_goals.workout_id = workouts.id",
		}, false},

		// 非法用例
		{"missing JOIN keyword", []string{"levels ON levels.id = workouts.level_id"}, true},
		{"missing ON clause", []string{"LEFT JOIN levels"}, true},
		{"SQL injection - drop", []string{"LEFT JOIN levels ON 1=1; DROP TABLE workouts--"}, true},
		{"SQL injection - union", []string{"LEFT JOIN levels ON 1=1 UNION SELECT"}, true},
		{"SQL injection - comment", []string{"LEFT JOIN levels-- ON levels.id = workouts.level_id"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJoins(tt.joins)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJoins(%v) error = %v, wantErr %v", tt.joins, err, tt.wantErr)
			}
		})
	}
}

/* ========================================================================
 * validateColumnName 测试
 * ======================================================================== */

func TestValidateColumnName(t *testing.T) {
	tests := []struct {
		name    string
		column  string
		wantErr bool
	}{
		{"simple column", "instructor_id", false},
		{"table.column", "workouts.id", false},
		{"snake_case", "create_time", false},
		{"with alias", "workouts.title AS workout_title", false},

		{"empty", "", true},
		{"with space", "instructor id", true},
		{"special char", "instructor@id", true},
		{"sql keyword", "DROP TABLE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateColumnName(tt.column)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateColumnName(%q) error = %v, wantErr %v", tt.column, err, tt.wantErr)
			}
		})
	}
}
