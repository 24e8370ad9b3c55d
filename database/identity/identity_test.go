package identity

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/principal"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// 测试方言：sqlite 没有会话变量，用一条可观测的 SELECT 代替
func registerSQLiteStatement(t *testing.T) {
	t.Helper()
	RegisterDialect("sqlite", func(actorID int64) (string, []any) {
		return "SELECT ? AS session_actor", []any{actorID}
	})
}

type recordedQuery struct {
	SQL  string
	Args []any
}

// recordingConnPool 包装 ConnPool，按执行顺序记录所有语句
type recordingConnPool struct {
	gorm.ConnPool
	mu      sync.Mutex
	queries []recordedQuery
}

func (r *recordingConnPool) record(query string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, recordedQuery{SQL: query, Args: args})
}

func (r *recordingConnPool) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.record(query, args)
	return r.ConnPool.ExecContext(ctx, query, args...)
}

func (r *recordingConnPool) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	r.record(query, args)
	return r.ConnPool.QueryContext(ctx, query, args...)
}

func (r *recordingConnPool) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	r.record(query, args)
	return r.ConnPool.QueryRowContext(ctx, query, args...)
}

// BeginTx 让插件能在记录池上开事务，事务内语句同样计入记录
func (r *recordingConnPool) BeginTx(ctx context.Context, opts *sql.TxOptions) (gorm.ConnPool, error) {
	beginner, ok := r.ConnPool.(gorm.TxBeginner)
	if !ok {
		return nil, sql.ErrConnDone
	}
	tx, err := beginner.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	r.record("BEGIN", nil)
	return &recordingTx{tx: tx, rec: r}, nil
}

// recordingTx 记录事务内语句与提交/回滚
type recordingTx struct {
	tx  *sql.Tx
	rec *recordingConnPool
}

func (r *recordingTx) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return r.tx.PrepareContext(ctx, query)
}

func (r *recordingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.rec.record(query, args)
	return r.tx.ExecContext(ctx, query, args...)
}

func (r *recordingTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	r.rec.record(query, args)
	return r.tx.QueryContext(ctx, query, args...)
}

func (r *recordingTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	r.rec.record(query, args)
	return r.tx.QueryRowContext(ctx, query, args...)
}

func (r *recordingTx) Commit() error {
	r.rec.record("COMMIT", nil)
	return r.tx.Commit()
}

func (r *recordingTx) Rollback() error {
	r.rec.record("ROLLBACK", nil)
	return r.tx.Rollback()
}

func (r *recordingConnPool) snapshot() []recordedQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedQuery, len(r.queries))
	copy(out, r.queries)
	return out
}

type identityTestModel struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func openIdentityTestDB(t *testing.T, cfg Config) (*gorm.DB, *recordingConnPool) {
	t.Helper()
	registerSQLiteStatement(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&identityTestModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rec := &recordingConnPool{ConnPool: db.ConnPool}
	db.ConnPool = rec
	db.Statement.ConnPool = rec

	if err := db.Use(New(cfg, logger.NewLogger(logger.Config{Level: "error"}))); err != nil {
		t.Fatalf("use plugin: %v", err)
	}
	return db, rec
}

func withInstructor(id int64) context.Context {
	return principal.WithPrincipal(context.Background(),
		principal.New(id, principal.RoleInstructor, "coach@example.com"))
}

func findIndex(queries []recordedQuery, match func(recordedQuery) bool) int {
	for i, q := range queries {
		if match(q) {
			return i
		}
	}
	return -1
}

func TestIdentityPrecedesInsertOnSameConnection(t *testing.T) {
	db, rec := openIdentityTestDB(t, Config{})

	if err := db.WithContext(withInstructor(5)).Create(&identityTestModel{ID: 1, Name: "w"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	queries := rec.snapshot()
	idIdx := findIndex(queries, func(q recordedQuery) bool {
		return strings.Contains(q.SQL, "session_actor")
	})
	insIdx := findIndex(queries, func(q recordedQuery) bool {
		return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.SQL)), "INSERT")
	})

	if idIdx < 0 || insIdx < 0 {
		t.Fatalf("missing statements, got: %+v", queries)
	}
	if idIdx > insIdx {
		t.Fatalf("identity statement must precede the insert: identity=%d insert=%d", idIdx, insIdx)
	}
	if got := queries[idIdx].Args[0]; got != int64(5) {
		t.Fatalf("unexpected actor id: %v", got)
	}
}

func TestExternalCallerUsesSentinel(t *testing.T) {
	db, rec := openIdentityTestDB(t, Config{})

	ctx := principal.WithPrincipal(context.Background(), principal.External())
	if err := db.WithContext(ctx).Create(&identityTestModel{ID: 2, Name: "callback"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	queries := rec.snapshot()
	idIdx := findIndex(queries, func(q recordedQuery) bool {
		return strings.Contains(q.SQL, "session_actor")
	})
	if idIdx < 0 {
		t.Fatalf("identity statement not recorded")
	}
	if got := queries[idIdx].Args[0]; got != principal.SystemActorID {
		t.Fatalf("external caller must use sentinel id, got: %v", got)
	}
}

func TestMutationWithoutPrincipalFailsClosed(t *testing.T) {
	db, rec := openIdentityTestDB(t, Config{})

	err := db.WithContext(context.Background()).Create(&identityTestModel{ID: 3}).Error
	if !errors.Is(err, ErrMissingPrincipal) {
		t.Fatalf("expected missing principal error, got: %v", err)
	}

	// 原语句不得到达数据库
	queries := rec.snapshot()
	if idx := findIndex(queries, func(q recordedQuery) bool {
		return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.SQL)), "INSERT")
	}); idx >= 0 {
		t.Fatalf("insert must not execute without principal: %+v", queries[idx])
	}
}

func TestInjectionFailureDefaultsClosed(t *testing.T) {
	db, _ := openIdentityTestDB(t, Config{})

	// 替换为必然失败的身份语句
	RegisterDialect("sqlite", func(actorID int64) (string, []any) {
		return "NOT A STATEMENT", nil
	})
	defer registerSQLiteStatement(t)

	err := db.WithContext(withInstructor(5)).Create(&identityTestModel{ID: 4}).Error
	if !errors.Is(err, errors.ErrInternal) {
		t.Fatalf("expected injection failure to abort, got: %v", err)
	}

	var count int64
	if err := db.WithContext(withInstructor(5)).Model(&identityTestModel{}).Where("id = ?", 4).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("row must not exist after fail-closed abort")
	}
}

func TestInjectionFailureFailOpenProceeds(t *testing.T) {
	db, _ := openIdentityTestDB(t, Config{FailOpen: true})

	RegisterDialect("sqlite", func(actorID int64) (string, []any) {
		return "NOT A STATEMENT", nil
	})
	defer registerSQLiteStatement(t)

	if err := db.WithContext(withInstructor(5)).Create(&identityTestModel{ID: 5}).Error; err != nil {
		t.Fatalf("fail-open create: %v", err)
	}
}

func TestRawStatementClassification(t *testing.T) {
	db, rec := openIdentityTestDB(t, Config{})
	ctx := withInstructor(9)

	// 变更语句注入
	if err := db.WithContext(ctx).Exec("UPDATE identity_test_models SET name = ? WHERE id = ?", "x", 1).Error; err != nil {
		t.Fatalf("exec update: %v", err)
	}
	queries := rec.snapshot()
	if findIndex(queries, func(q recordedQuery) bool {
		return strings.Contains(q.SQL, "session_actor")
	}) < 0 {
		t.Fatalf("raw update must be injected")
	}

	// 纯读不注入
	before := len(rec.snapshot())
	var n int64
	if err := db.WithContext(ctx).Raw("SELECT COUNT(1) FROM identity_test_models").Scan(&n).Error; err != nil {
		t.Fatalf("raw select: %v", err)
	}
	for _, q := range rec.snapshot()[before:] {
		if strings.Contains(q.SQL, "session_actor") {
			t.Fatalf("plain select must not be injected")
		}
	}

	// 显式豁免
	before = len(rec.snapshot())
	if err := Skip(db.WithContext(ctx)).Exec("UPDATE identity_test_models SET name = ? WHERE id = ?", "y", 1).Error; err != nil {
		t.Fatalf("skipped exec: %v", err)
	}
	for _, q := range rec.snapshot()[before:] {
		if strings.Contains(q.SQL, "session_actor") {
			t.Fatalf("skipped statement must not be injected")
		}
	}
}

func TestMarkedQueryIsInjected(t *testing.T) {
	db, rec := openIdentityTestDB(t, Config{})
	ctx := withInstructor(9)

	before := len(rec.snapshot())
	var rows []identityTestModel
	if err := MarkMutation(db.WithContext(ctx)).Find(&rows).Error; err != nil {
		t.Fatalf("marked find: %v", err)
	}

	found := false
	for _, q := range rec.snapshot()[before:] {
		if strings.Contains(q.SQL, "session_actor") {
			found = true
		}
	}
	if !found {
		t.Fatalf("mutation-driving read must be injected")
	}
}

func TestIsMutatingSQL(t *testing.T) {
	cases := map[string]bool{
		"INSERT INTO t VALUES (1)":   true,
		"  update t set a = 1":       true,
		"DELETE FROM t":              true,
		"SELECT * FROM t":            false,
		"SET @user_id = 1":           false,
		"SELECT set_config('a','1')": false,
		"":                           false,
	}
	for sqlStr, want := range cases {
		if got := IsMutatingSQL(sqlStr); got != want {
			t.Fatalf("IsMutatingSQL(%q) = %v, want %v", sqlStr, got, want)
		}
	}
}

func TestRawMutationOutsideTransactionGetsOwnTransaction(t *testing.T) {
	db, rec := openIdentityTestDB(t, Config{})
	ctx := withInstructor(9)

	if err := db.WithContext(ctx).Create(&identityTestModel{ID: 11, Name: "a"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	before := len(rec.snapshot())
	if err := db.WithContext(ctx).Exec("UPDATE identity_test_models SET name = ? WHERE id = ?", "b", 11).Error; err != nil {
		t.Fatalf("raw update: %v", err)
	}

	// 连接池上的两次执行不保证同一物理连接，身份语句和变更语句
	// 必须落在同一事务里：BEGIN -> 身份 -> UPDATE -> COMMIT
	queries := rec.snapshot()[before:]
	beginIdx := findIndex(queries, func(q recordedQuery) bool { return q.SQL == "BEGIN" })
	idIdx := findIndex(queries, func(q recordedQuery) bool { return strings.Contains(q.SQL, "session_actor") })
	updIdx := findIndex(queries, func(q recordedQuery) bool {
		return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.SQL)), "UPDATE")
	})
	commitIdx := findIndex(queries, func(q recordedQuery) bool { return q.SQL == "COMMIT" })

	if beginIdx < 0 || idIdx < 0 || updIdx < 0 || commitIdx < 0 {
		t.Fatalf("missing statements, got: %+v", queries)
	}
	if !(beginIdx < idIdx && idIdx < updIdx && updIdx < commitIdx) {
		t.Fatalf("unexpected order: begin=%d identity=%d update=%d commit=%d", beginIdx, idIdx, updIdx, commitIdx)
	}

	var name string
	if err := db.WithContext(ctx).Raw("SELECT name FROM identity_test_models WHERE id = ?", 11).Scan(&name).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if name != "b" {
		t.Fatalf("expected committed update, got %q", name)
	}
}

func TestRawMutationWithoutPrincipalRollsBack(t *testing.T) {
	db, rec := openIdentityTestDB(t, Config{})

	before := len(rec.snapshot())
	err := db.WithContext(context.Background()).Exec("UPDATE identity_test_models SET name = ?", "x").Error
	if !errors.Is(err, ErrMissingPrincipal) {
		t.Fatalf("expected missing principal error, got: %v", err)
	}

	queries := rec.snapshot()[before:]
	if idx := findIndex(queries, func(q recordedQuery) bool {
		return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.SQL)), "UPDATE")
	}); idx >= 0 {
		t.Fatalf("update must not execute without principal: %+v", queries[idx])
	}
	if findIndex(queries, func(q recordedQuery) bool { return q.SQL == "ROLLBACK" }) < 0 {
		t.Fatalf("plugin transaction must roll back, got: %+v", queries)
	}
}

func TestRawMutationInsideTransactionDoesNotNest(t *testing.T) {
	db, rec := openIdentityTestDB(t, Config{})
	ctx := withInstructor(9)

	before := len(rec.snapshot())
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Exec("UPDATE identity_test_models SET name = ?", "y").Error
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	// 已在事务中的原生变更不再额外开事务，只注入身份：
	// 仅外层 Transaction 产生一次 BEGIN
	queries := rec.snapshot()[before:]
	begins := 0
	for _, q := range queries {
		if q.SQL == "BEGIN" {
			begins++
		}
	}
	if begins != 1 {
		t.Fatalf("expected a single transaction, got %d BEGINs: %+v", begins, queries)
	}
	if findIndex(queries, func(q recordedQuery) bool { return strings.Contains(q.SQL, "session_actor") }) < 0 {
		t.Fatalf("identity must still be injected inside the transaction")
	}
}
