package router

import (
	"testing"

	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/principal"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewWithConnections(map[principal.Role]*gorm.DB{
		principal.RoleAdmin:      openTestDB(t),
		principal.RoleInstructor: openTestDB(t),
		principal.RoleUser:       openTestDB(t),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r
}

func TestResolveKnownRoles(t *testing.T) {
	r := newTestRouter(t)
	for _, role := range []principal.Role{principal.RoleAdmin, principal.RoleInstructor, principal.RoleUser} {
		db, err := r.Resolve(role)
		if err != nil {
			t.Fatalf("resolve %q: %v", role, err)
		}
		if db == nil {
			t.Fatalf("nil db for role %q", role)
		}
	}

	// 每个角色必须各持独立连接
	adminDB, _ := r.Resolve(principal.RoleAdmin)
	userDB, _ := r.Resolve(principal.RoleUser)
	if adminDB == userDB {
		t.Fatalf("roles must not share a connection")
	}
}

func TestResolveUnknownRoleFailsFast(t *testing.T) {
	r := newTestRouter(t)
	if _, err := r.Resolve(principal.Role("auditor")); !errors.Is(err, errors.ErrConfig) {
		t.Fatalf("expected config error for unknown role, got: %v", err)
	}
}

func TestMissingRoleConnectionIsConfigError(t *testing.T) {
	_, err := NewWithConnections(map[principal.Role]*gorm.DB{
		principal.RoleAdmin: openTestDB(t),
		principal.RoleUser:  openTestDB(t),
	})
	if !errors.Is(err, errors.ErrConfig) {
		t.Fatalf("expected config error, got: %v", err)
	}
}

func TestMissingRoleConfigIsConfigError(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	if !errors.Is(err, errors.ErrConfig) {
		t.Fatalf("expected config error, got: %v", err)
	}
}

func TestResolveForPrincipal(t *testing.T) {
	r := newTestRouter(t)

	instructorDB, _ := r.Resolve(principal.RoleInstructor)
	db, err := r.ResolveForPrincipal(principal.New(5, principal.RoleInstructor, ""))
	if err != nil {
		t.Fatalf("resolve for principal: %v", err)
	}
	if db != instructorDB {
		t.Fatalf("instructor must route to instructor connection")
	}

	adminDB, _ := r.Resolve(principal.RoleAdmin)
	db, err = r.ResolveForPrincipal(principal.External())
	if err != nil {
		t.Fatalf("resolve external: %v", err)
	}
	if db != adminDB {
		t.Fatalf("external caller must route to admin connection")
	}
}
