package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	fitredis "github.com/fitgo/fit-go-core/cache/redis"
	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/models"
	"github.com/fitgo/fit-go-core/principal"
)

func newTestCache(t *testing.T) fitredis.Clienter {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return fitredis.NewClientFromRaw(rdb, logger.NewNop())
}

func newTestGoalService(t *testing.T) (*TaxonomyService[models.Goal], *gorm.DB) {
	t.Helper()
	db := openServiceTestDB(t)
	rt := newTestRouter(t, db)
	return NewGoalService(rt, newTestCache(t), logger.NewNop()), db
}

func adminPrincipal() principal.Principal {
	return principal.New(1, principal.RoleAdmin, "ops@fit.dev")
}

func TestTaxonomyWriteRequiresAdmin(t *testing.T) {
	svc, _ := newTestGoalService(t)
	ctx := context.Background()
	coach := principal.New(7, principal.RoleInstructor, "coach@fit.dev")

	if err := svc.Create(ctx, coach, &models.Goal{Name: "Strength"}); !errors.IsPermissionDenied(err) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := svc.Delete(ctx, coach, 1); !errors.IsPermissionDenied(err) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestTaxonomyCRUDAndCache(t *testing.T) {
	svc, db := newTestGoalService(t)
	ctx := context.Background()
	admin := adminPrincipal()
	coach := principal.New(7, principal.RoleInstructor, "coach@fit.dev")

	goal := &models.Goal{Name: "Hypertrophy"}
	if err := svc.Create(ctx, admin, goal); err != nil {
		t.Fatalf("create: %v", err)
	}

	// 教练可读
	got, err := svc.GetByID(ctx, coach, goal.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Hypertrophy" {
		t.Fatalf("unexpected name %q", got.Name)
	}

	// 第二次读取命中缓存：直接改底层行，读取结果保持不变
	if err := db.Exec("UPDATE goals SET name = ? WHERE id = ?", "Changed", goal.ID).Error; err != nil {
		t.Fatalf("raw update: %v", err)
	}
	cached, err := svc.GetByID(ctx, coach, goal.ID)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if cached.Name != "Hypertrophy" {
		t.Fatalf("expected cached name, got %q", cached.Name)
	}

	// 走服务更新会失效缓存
	if err := svc.Update(ctx, admin, goal.ID, map[string]any{"name": "Power"}, "name"); err != nil {
		t.Fatalf("update: %v", err)
	}
	fresh, err := svc.GetByID(ctx, coach, goal.ID)
	if err != nil {
		t.Fatalf("fresh get: %v", err)
	}
	if fresh.Name != "Power" {
		t.Fatalf("expected invalidated cache, got %q", fresh.Name)
	}
}

func TestDeletionGuardBlocksReferencedEntity(t *testing.T) {
	svc, db := newTestGoalService(t)
	ctx := context.Background()
	admin := adminPrincipal()
	coach := principal.New(7, principal.RoleInstructor, "coach@fit.dev")

	goal := &models.Goal{Name: "Endurance"}
	if err := svc.Create(ctx, admin, goal); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	// 教练创建引用该目标的训练课
	w := &models.Workout{Title: "5k Prep", InstructorID: coach.ID, Goals: []*models.Goal{goal}}
	if err := db.Create(w).Error; err != nil {
		t.Fatalf("create workout: %v", err)
	}

	ok, err := svc.CanDelete(ctx, admin, goal.ID)
	if err != nil {
		t.Fatalf("can delete: %v", err)
	}
	if ok {
		t.Fatalf("expected referenced goal to be undeletable")
	}

	// 教练同样能查询可删性，且看到同样的结论
	ok, err = svc.CanDelete(ctx, coach, goal.ID)
	if err != nil {
		t.Fatalf("coach can delete: %v", err)
	}
	if ok {
		t.Fatalf("expected coach to observe the goal as undeletable")
	}

	err = svc.Delete(ctx, admin, goal.ID)
	if !errors.IsFailedPrecondition(err) {
		t.Fatalf("expected failed precondition, got %v", err)
	}

	// 解除引用后可删除
	if err := db.Exec("DELETE FROM workout_goals WHERE goal_id = ?", goal.ID).Error; err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := svc.Delete(ctx, admin, goal.ID); err != nil {
		t.Fatalf("delete unreferenced: %v", err)
	}
	if _, err := svc.GetByID(ctx, admin, goal.ID); !errors.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDeletionGuardChecksAllReferencingTables(t *testing.T) {
	db := openServiceTestDB(t)
	rt := newTestRouter(t, db)
	svc := NewHashtagService(rt, newTestCache(t), logger.NewNop())
	ctx := context.Background()
	admin := adminPrincipal()

	tag := &models.Hashtag{Tag: "mobility"}
	if err := svc.Create(ctx, admin, tag); err != nil {
		t.Fatalf("create hashtag: %v", err)
	}

	// 标签仅被动作引用，不被任何训练课引用
	e := &models.Exercise{Name: "Hip Hinge", InstructorID: 7, Hashtags: []*models.Hashtag{tag}}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("create exercise: %v", err)
	}

	if err := svc.Delete(ctx, admin, tag.ID); !errors.IsFailedPrecondition(err) {
		t.Fatalf("expected failed precondition, got %v", err)
	}

	if err := db.Exec("DELETE FROM exercise_hashtags WHERE hashtag_id = ?", tag.ID).Error; err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := svc.Delete(ctx, admin, tag.ID); err != nil {
		t.Fatalf("delete unreferenced: %v", err)
	}
}

func TestDeleteMissingTaxonomyReturnsNotFound(t *testing.T) {
	svc, _ := newTestGoalService(t)

	err := svc.Delete(context.Background(), adminPrincipal(), 424242)
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
