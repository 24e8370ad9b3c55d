package uow

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fitgo/fit-go-core/database/identity"
	"github.com/fitgo/fit-go-core/database/router"
	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/models"
	"github.com/fitgo/fit-go-core/principal"
	"github.com/fitgo/fit-go-core/repository"
)

func init() {
	// sqlite 没有会话变量，用无副作用语句承载身份参数
	identity.RegisterDialect("sqlite", func(actorID int64) (string, []any) {
		return "SELECT ? AS session_actor", []any{actorID}
	})
}

func newTestUoW(t *testing.T) (*UnitOfWork, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Exercise{}, &models.Modality{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rt, err := router.NewWithConnections(map[principal.Role]*gorm.DB{
		principal.RoleAdmin:      db,
		principal.RoleInstructor: db,
		principal.RoleUser:       db,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return New(rt, logger.NewNop()), db
}

func TestBeginRejectsInvalidPrincipal(t *testing.T) {
	u, _ := newTestUoW(t)

	_, err := u.Begin(context.Background(), principal.Principal{})
	if err == nil || errors.Code(err) != errors.ErrCodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestCommitPersistsAllWrites(t *testing.T) {
	u, db := newTestUoW(t)
	ctx := context.Background()
	p := principal.New(7, principal.RoleInstructor, "coach@fit.dev")
	repo := repository.NewRepository[models.Exercise](db)

	tx, err := u.Begin(ctx, p)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := repo.Create(tx.Context(), &models.Exercise{InstructorID: 7, Name: "Squat"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(tx.Context(), &models.Exercise{InstructorID: 7, Name: "Press"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	count, err := repo.Count(ctx, "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows after commit, got %d", count)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	u, db := newTestUoW(t)
	ctx := context.Background()
	p := principal.New(7, principal.RoleInstructor, "coach@fit.dev")
	repo := repository.NewRepository[models.Exercise](db)

	tx, err := u.Begin(ctx, p)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.Create(tx.Context(), &models.Exercise{InstructorID: 7, Name: "Ghost"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	count, err := repo.Count(ctx, "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to discard writes, got %d rows", count)
	}
}

func TestTxIsSingleUse(t *testing.T) {
	u, _ := newTestUoW(t)
	p := principal.New(7, principal.RoleInstructor, "coach@fit.dev")

	tx, err := u.Begin(context.Background(), p)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	// 重复 Rollback 安全，Commit 报错
	if err := tx.Rollback(); err != nil {
		t.Fatalf("second rollback must be a no-op, got %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, ErrTxClosed) {
		t.Fatalf("expected ErrTxClosed, got %v", err)
	}
}

func TestRepoBindsTypedRepositoriesToOneTx(t *testing.T) {
	u, db := newTestUoW(t)
	ctx := context.Background()
	p := principal.New(7, principal.RoleInstructor, "coach@fit.dev")

	tx, err := u.Begin(ctx, p)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	// 不同实体各拿各的仓储，但坐在同一个事务上
	if err := Repo[models.Exercise](tx).Create(tx.Context(), &models.Exercise{InstructorID: 7, Name: "Row"}); err != nil {
		t.Fatalf("create exercise: %v", err)
	}
	if err := Repo[models.Modality](tx).Create(tx.Context(), &models.Modality{Name: "Strength"}); err != nil {
		t.Fatalf("create modality: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	exercises := repository.NewRepository[models.Exercise](db)
	modalities := repository.NewRepository[models.Modality](db)
	if count, _ := exercises.Count(ctx, ""); count != 0 {
		t.Fatalf("exercise write survived rollback, count %d", count)
	}
	if count, _ := modalities.Count(ctx, ""); count != 0 {
		t.Fatalf("modality write survived rollback, count %d", count)
	}
}

func TestExecuteCommitsOnSuccessAndRollsBackOnError(t *testing.T) {
	u, db := newTestUoW(t)
	ctx := context.Background()
	p := principal.New(7, principal.RoleInstructor, "coach@fit.dev")
	repo := repository.NewRepository[models.Exercise](db)

	if err := u.Execute(ctx, p, func(txCtx context.Context) error {
		return repo.Create(txCtx, &models.Exercise{InstructorID: 7, Name: "Kept"})
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	boom := errors.New(errors.ErrCodeInternal, "boom")
	err := u.Execute(ctx, p, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, &models.Exercise{InstructorID: 7, Name: "Lost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	count, err := repo.Count(ctx, "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only committed row, got %d", count)
	}
}
