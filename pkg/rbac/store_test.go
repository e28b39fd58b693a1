package rbac

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// UUID columns are TEXT in sqlite; uuid.UUID round-trips through its
	// Valuer/Scanner implementations.
	_, err = db.Exec(`
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			surname TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			valid INTEGER NOT NULL DEFAULT 1,
			created TIMESTAMP NOT NULL,
			createdby TEXT,
			lastchange TIMESTAMP NOT NULL,
			changedby TEXT
		);

		CREATE TABLE groupcategories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_en TEXT NOT NULL DEFAULT '',
			created TIMESTAMP NOT NULL,
			createdby TEXT,
			lastchange TIMESTAMP NOT NULL,
			changedby TEXT
		);

		CREATE TABLE grouptypes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_en TEXT NOT NULL DEFAULT '',
			category_id TEXT,
			created TIMESTAMP NOT NULL,
			createdby TEXT,
			lastchange TIMESTAMP NOT NULL,
			changedby TEXT
		);

		CREATE TABLE groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_en TEXT NOT NULL DEFAULT '',
			abbreviation TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			startdate TIMESTAMP,
			enddate TIMESTAMP,
			valid INTEGER NOT NULL DEFAULT 1,
			grouptype_id TEXT,
			mastergroup_id TEXT,
			created TIMESTAMP NOT NULL,
			createdby TEXT,
			lastchange TIMESTAMP NOT NULL,
			changedby TEXT
		);

		CREATE TABLE rolecategories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_en TEXT NOT NULL DEFAULT '',
			created TIMESTAMP NOT NULL,
			createdby TEXT,
			lastchange TIMESTAMP NOT NULL,
			changedby TEXT
		);

		CREATE TABLE roletypes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_en TEXT NOT NULL DEFAULT '',
			category_id TEXT,
			created TIMESTAMP NOT NULL,
			createdby TEXT,
			lastchange TIMESTAMP NOT NULL,
			changedby TEXT
		);

		CREATE TABLE memberships (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			group_id TEXT NOT NULL,
			startdate TIMESTAMP,
			enddate TIMESTAMP,
			valid INTEGER NOT NULL DEFAULT 1,
			created TIMESTAMP NOT NULL,
			createdby TEXT,
			lastchange TIMESTAMP NOT NULL,
			changedby TEXT
		);

		CREATE TABLE roles (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			group_id TEXT NOT NULL,
			roletype_id TEXT NOT NULL,
			startdate TIMESTAMP,
			enddate TIMESTAMP,
			valid INTEGER NOT NULL DEFAULT 1,
			rbacobject TEXT,
			created TIMESTAMP NOT NULL,
			createdby TEXT,
			lastchange TIMESTAMP NOT NULL,
			changedby TEXT
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

func mustCreateUser(t *testing.T, store *Store, name, surname string) *User {
	t.Helper()
	u := &User{Name: name, Surname: surname, Email: name + "@example.org", Valid: true}
	if err := store.CreateUser(context.Background(), u, nil); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return u
}

func mustCreateGroup(t *testing.T, store *Store, name string, mastergroupID *uuid.UUID) *Group {
	t.Helper()
	g := &Group{Name: name, Valid: true, MastergroupID: mastergroupID}
	if err := store.CreateGroup(context.Background(), g, nil); err != nil {
		t.Fatalf("Failed to create group %s: %v", name, err)
	}
	return g
}

func mustCreateRoleType(t *testing.T, store *Store, name string) *RoleType {
	t.Helper()
	rt := &RoleType{Name: name}
	if err := store.CreateRoleType(context.Background(), rt, nil); err != nil {
		t.Fatalf("Failed to create role type %s: %v", name, err)
	}
	return rt
}

func mustCreateMembership(t *testing.T, store *Store, userID, groupID uuid.UUID) *Membership {
	t.Helper()
	m := &Membership{UserID: userID, GroupID: groupID, Valid: true}
	if err := store.CreateMembership(context.Background(), m, nil); err != nil {
		t.Fatalf("Failed to create membership: %v", err)
	}
	return m
}

func mustCreateRole(t *testing.T, store *Store, userID, groupID, roleTypeID uuid.UUID) *Role {
	t.Helper()
	r := &Role{UserID: userID, GroupID: groupID, RoleTypeID: roleTypeID, Valid: true}
	if err := store.CreateRole(context.Background(), r, nil); err != nil {
		t.Fatalf("Failed to create role: %v", err)
	}
	return r
}

func TestStore_UserCRUD(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	u := mustCreateUser(t, store, "Jana", "Novotná")

	got, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Surname != "Novotná" {
		t.Errorf("Expected surname Novotná, got %s", got.Surname)
	}
	if !got.Valid {
		t.Error("Expected user to be valid")
	}

	got.Email = "jana.novotna@example.org"
	if err := store.UpdateUser(ctx, got, nil); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	updated, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser after update failed: %v", err)
	}
	if updated.Email != "jana.novotna@example.org" {
		t.Errorf("Expected updated email, got %s", updated.Email)
	}

	if err := store.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := store.GetUser(ctx, u.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_GetUserNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	if _, err := store.GetUser(context.Background(), uuid.New()); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_StaleWriteRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	u := mustCreateUser(t, store, "Petr", "Svoboda")

	first, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	second, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	first.Email = "first@example.org"
	if err := store.UpdateUser(ctx, first, nil); err != nil {
		t.Fatalf("First update failed: %v", err)
	}

	// The second writer still holds the old token.
	second.Email = "second@example.org"
	if err := store.UpdateUser(ctx, second, nil); err != ErrStaleWrite {
		t.Errorf("Expected ErrStaleWrite, got %v", err)
	}

	got, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Email != "first@example.org" {
		t.Errorf("Stale write must not change the row, email is %s", got.Email)
	}
}

func TestStore_UpdateMissingRowIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	u := &User{Entity: Entity{ID: uuid.New(), Lastchange: time.Now().UTC()}, Name: "x", Surname: "y"}
	if err := store.UpdateUser(context.Background(), u, nil); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_CreateRoleStampsObject(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	user := mustCreateUser(t, store, "Eva", "Dvořáková")
	group := mustCreateGroup(t, store, "Katedra informatiky", nil)
	rt := mustCreateRoleType(t, store, "vedoucí katedry")

	role := mustCreateRole(t, store, user.ID, group.ID, rt.ID)

	got, err := store.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("GetRole failed: %v", err)
	}
	if got.RBACObjectID == nil || *got.RBACObjectID != group.ID {
		t.Errorf("Expected rbacobject to equal group id %s, got %v", group.ID, got.RBACObjectID)
	}
}

func TestStore_CreateRoleUnknownReferences(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	user := mustCreateUser(t, store, "Eva", "Dvořáková")
	group := mustCreateGroup(t, store, "Katedra informatiky", nil)
	rt := mustCreateRoleType(t, store, "garant")

	cases := []struct {
		name string
		role *Role
	}{
		{"unknown user", &Role{UserID: uuid.New(), GroupID: group.ID, RoleTypeID: rt.ID, Valid: true}},
		{"unknown group", &Role{UserID: user.ID, GroupID: uuid.New(), RoleTypeID: rt.ID, Valid: true}},
		{"unknown role type", &Role{UserID: user.ID, GroupID: group.ID, RoleTypeID: uuid.New(), Valid: true}},
	}
	for _, tc := range cases {
		err := store.CreateRole(ctx, tc.role, nil)
		if !errors.Is(err, ErrReferenceNotFound) {
			t.Errorf("%s: expected ErrReferenceNotFound, got %v", tc.name, err)
		}
	}
}

func TestStore_ListRolesByGroupIDsFilter(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	alice := mustCreateUser(t, store, "Alice", "First")
	bob := mustCreateUser(t, store, "Bob", "Second")
	group := mustCreateGroup(t, store, "Fakulta", nil)
	rt := mustCreateRoleType(t, store, "děkan")

	mustCreateRole(t, store, alice.ID, group.ID, rt.ID)
	mustCreateRole(t, store, bob.ID, group.ID, rt.ID)

	all, err := store.ListRolesByGroupIDs(ctx, []uuid.UUID{group.ID}, nil)
	if err != nil {
		t.Fatalf("ListRolesByGroupIDs failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 roles, got %d", len(all))
	}

	onlyAlice, err := store.ListRolesByGroupIDs(ctx, []uuid.UUID{group.ID}, &alice.ID)
	if err != nil {
		t.Fatalf("ListRolesByGroupIDs with filter failed: %v", err)
	}
	if len(onlyAlice) != 1 || onlyAlice[0].UserID != alice.ID {
		t.Errorf("Expected only alice's role, got %d roles", len(onlyAlice))
	}
	if onlyAlice[0].Type.Name != "děkan" {
		t.Errorf("Expected role type annotation, got %q", onlyAlice[0].Type.Name)
	}
}

func TestStore_ListRolesExcludesInvalid(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	user := mustCreateUser(t, store, "Alice", "First")
	group := mustCreateGroup(t, store, "Fakulta", nil)
	rt := mustCreateRoleType(t, store, "garant")
	role := mustCreateRole(t, store, user.ID, group.ID, rt.ID)

	role.Valid = false
	if err := store.UpdateRole(ctx, role, nil); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}

	roles, err := store.ListRolesByGroupIDs(ctx, []uuid.UUID{group.ID}, nil)
	if err != nil {
		t.Fatalf("ListRolesByGroupIDs failed: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("Expected invalidated roles to be excluded, got %d", len(roles))
	}
}

func TestStore_ListRolesExcludesOutOfDateWindow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	user := mustCreateUser(t, store, "Alice", "First")
	group := mustCreateGroup(t, store, "Fakulta", nil)
	rt := mustCreateRoleType(t, store, "garant")

	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	// Still flagged valid, the sweep has not run yet.
	expired := mustCreateRole(t, store, user.ID, group.ID, rt.ID)
	expired.EndDate = &past
	if err := store.UpdateRole(ctx, expired, nil); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}

	notYet := mustCreateRole(t, store, user.ID, group.ID, rt.ID)
	notYet.StartDate = &future
	if err := store.UpdateRole(ctx, notYet, nil); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}

	open := mustCreateRole(t, store, user.ID, group.ID, rt.ID)

	roles, err := store.ListRolesByGroupIDs(ctx, []uuid.UUID{group.ID}, nil)
	if err != nil {
		t.Fatalf("ListRolesByGroupIDs failed: %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("Expected only the open-ended role, got %d", len(roles))
	}
	if roles[0].ID != open.ID {
		t.Errorf("Expected role %s, got %s", open.ID, roles[0].ID)
	}
}

func TestStore_MembershipGroupIDs(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	user := mustCreateUser(t, store, "Alice", "First")
	g1 := mustCreateGroup(t, store, "Katedra A", nil)
	g2 := mustCreateGroup(t, store, "Katedra B", nil)
	mustCreateMembership(t, store, user.ID, g1.ID)

	m2 := mustCreateMembership(t, store, user.ID, g2.ID)
	m2.Valid = false
	if err := store.UpdateMembership(ctx, m2, nil); err != nil {
		t.Fatalf("UpdateMembership failed: %v", err)
	}

	ids, err := store.MembershipGroupIDs(ctx, user.ID)
	if err != nil {
		t.Fatalf("MembershipGroupIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != g1.ID {
		t.Errorf("Expected only the valid membership group, got %v", ids)
	}
}

func TestStore_ExpireRoles(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)

	user := mustCreateUser(t, store, "Alice", "First")
	group := mustCreateGroup(t, store, "Fakulta", nil)
	rt := mustCreateRoleType(t, store, "garant")

	past := time.Now().UTC().Add(-24 * time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)

	expired := &Role{UserID: user.ID, GroupID: group.ID, RoleTypeID: rt.ID, Valid: true, EndDate: &past}
	if err := store.CreateRole(ctx, expired, nil); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	active := &Role{UserID: user.ID, GroupID: group.ID, RoleTypeID: rt.ID, Valid: true, EndDate: &future}
	if err := store.CreateRole(ctx, active, nil); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	open := &Role{UserID: user.ID, GroupID: group.ID, RoleTypeID: rt.ID, Valid: true}
	if err := store.CreateRole(ctx, open, nil); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	n, err := store.ExpireRoles(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireRoles failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 expired role, got %d", n)
	}

	got, err := store.GetRole(ctx, expired.ID)
	if err != nil {
		t.Fatalf("GetRole failed: %v", err)
	}
	if got.Valid {
		t.Error("Expected expired role to be invalid")
	}

	got, err = store.GetRole(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetRole failed: %v", err)
	}
	if !got.Valid {
		t.Error("Expected active role to stay valid")
	}
}

func TestStore_CreateGroupUnknownMastergroup(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	missing := uuid.New()
	g := &Group{Name: "orphan", Valid: true, MastergroupID: &missing}
	if err := store.CreateGroup(context.Background(), g, nil); !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("Expected ErrReferenceNotFound, got %v", err)
	}
}
