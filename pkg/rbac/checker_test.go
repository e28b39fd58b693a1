package rbac

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// stubGate returns a fixed set of role type ids for every state.
type stubGate struct {
	read  []uuid.UUID
	write []uuid.UUID
	err   error
}

func (g *stubGate) RoleTypeIDsForState(ctx context.Context, stateID uuid.UUID, access AccessKind) ([]uuid.UUID, error) {
	if g.err != nil {
		return nil, g.err
	}
	if access == AccessWrite {
		return g.write, nil
	}
	return g.read, nil
}

// hierarchyFixture is a small university tree with a dean on the faculty and
// a regular member in the department.
type hierarchyFixture struct {
	store      *Store
	engine     *Engine
	university *Group
	faculty    *Group
	department *Group
	dean       *User
	alice      *User
	deanType   *RoleType
	garantType *RoleType
}

func setupHierarchy(t *testing.T, db *sql.DB) *hierarchyFixture {
	t.Helper()
	store := NewStore(db)

	university := mustCreateGroup(t, store, "Univerzita", nil)
	faculty := mustCreateGroup(t, store, "Fakulta", &university.ID)
	department := mustCreateGroup(t, store, "Katedra", &faculty.ID)

	dean := mustCreateUser(t, store, "Dagmar", "Dekanová")
	alice := mustCreateUser(t, store, "Alice", "Studentová")

	deanType := mustCreateRoleType(t, store, "děkan")
	garantType := mustCreateRoleType(t, store, "garant")

	mustCreateMembership(t, store, dean.ID, faculty.ID)
	mustCreateMembership(t, store, alice.ID, department.ID)
	mustCreateRole(t, store, dean.ID, faculty.ID, deanType.ID)

	return &hierarchyFixture{
		store:      store,
		engine:     NewEngine(store, nil),
		university: university,
		faculty:    faculty,
		department: department,
		dean:       dean,
		alice:      alice,
		deanType:   deanType,
		garantType: garantType,
	}
}

func requestContextFor(f *hierarchyFixture, principal *User) *RequestContext {
	return &RequestContext{Principal: principal, Loaders: NewLoaders(f.store)}
}

func TestEngine_AncestorChain(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	chain, err := f.engine.AncestorChain(context.Background(), NewLoaders(f.store), f.department.ID)
	if err != nil {
		t.Fatalf("AncestorChain failed: %v", err)
	}

	want := []uuid.UUID{f.department.ID, f.faculty.ID, f.university.ID}
	if len(chain) != len(want) {
		t.Fatalf("Expected chain of %d groups, got %d", len(want), len(chain))
	}
	for i, id := range want {
		if chain[i] != id {
			t.Errorf("Chain position %d: expected %s, got %s", i, id, chain[i])
		}
	}
}

func TestEngine_AncestorChainStopsOnCycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)
	engine := NewEngine(store, nil)

	a := mustCreateGroup(t, store, "A", nil)
	b := mustCreateGroup(t, store, "B", &a.ID)

	// Close the loop A -> B -> A.
	a.MastergroupID = &b.ID
	if err := store.UpdateGroup(ctx, a, nil); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}

	chain, err := engine.AncestorChain(ctx, NewLoaders(store), a.ID)
	if err != nil {
		t.Fatalf("AncestorChain failed: %v", err)
	}
	if len(chain) != 2 {
		t.Errorf("Expected cycle to yield each group once, got %v", chain)
	}
}

func TestEngine_AncestorChainMissingParent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)
	engine := NewEngine(store, nil)

	parent := mustCreateGroup(t, store, "parent", nil)
	child := mustCreateGroup(t, store, "child", &parent.ID)
	if err := store.DeleteGroup(ctx, parent.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}

	chain, err := engine.AncestorChain(ctx, NewLoaders(store), child.ID)
	if err != nil {
		t.Fatalf("Expected missing parent to terminate the walk, got error: %v", err)
	}
	if len(chain) != 1 || chain[0] != child.ID {
		t.Errorf("Expected chain to stop at the child, got %v", chain)
	}
}

func TestEngine_Resolve(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()

	obj, err := f.engine.Resolve(ctx, NewLoaders(f.store), f.alice.ID)
	if err != nil {
		t.Fatalf("Resolve user failed: %v", err)
	}
	if !obj.IsUser() {
		t.Errorf("Expected user kind, got %s", obj.Kind)
	}

	obj, err = f.engine.Resolve(ctx, NewLoaders(f.store), f.faculty.ID)
	if err != nil {
		t.Fatalf("Resolve group failed: %v", err)
	}
	if !obj.IsGroup() {
		t.Errorf("Expected group kind, got %s", obj.Kind)
	}

	if _, err := f.engine.Resolve(ctx, NewLoaders(f.store), uuid.New()); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestEngine_ResolveAmbiguousID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)
	engine := NewEngine(store, nil)

	shared := uuid.New()
	u := &User{Entity: Entity{ID: shared}, Name: "x", Surname: "y", Valid: true}
	if err := store.CreateUser(ctx, u, nil); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	g := &Group{Entity: Entity{ID: shared}, Name: "x", Valid: true}
	if err := store.CreateGroup(ctx, g, nil); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	if _, err := engine.Resolve(ctx, NewLoaders(store), shared); err != ErrNotFound {
		t.Errorf("Expected ambiguous id to resolve as not found, got %v", err)
	}
}

func TestEngine_RolesOnGroupInheritsFromAncestors(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	roles, err := f.engine.RolesOnGroup(context.Background(), NewLoaders(f.store), f.department.ID, nil)
	if err != nil {
		t.Fatalf("RolesOnGroup failed: %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("Expected the dean's faculty role to reach the department, got %d roles", len(roles))
	}
	if roles[0].UserID != f.dean.ID || roles[0].Type.Name != "děkan" {
		t.Errorf("Unexpected role %+v", roles[0])
	}
}

func TestEngine_RolesOnUserThroughMemberships(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()

	// The dean's faculty role reaches alice through her department
	// membership.
	roles, err := f.engine.RolesOnUser(ctx, NewLoaders(f.store), f.alice.ID, nil)
	if err != nil {
		t.Fatalf("RolesOnUser failed: %v", err)
	}
	if len(roles) != 1 || roles[0].UserID != f.dean.ID {
		t.Fatalf("Expected the dean's role to reach alice, got %d roles", len(roles))
	}

	// Filtered to alice herself, the dean's role disappears.
	roles, err = f.engine.RolesOnUser(ctx, NewLoaders(f.store), f.alice.ID, &f.alice.ID)
	if err != nil {
		t.Fatalf("RolesOnUser with filter failed: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("Expected no roles held by alice herself, got %d", len(roles))
	}

	// Alice's own grant on the department shows up under the filter.
	mustCreateRole(t, f.store, f.alice.ID, f.department.ID, f.garantType.ID)
	roles, err = f.engine.RolesOnUser(ctx, NewLoaders(f.store), f.alice.ID, &f.alice.ID)
	if err != nil {
		t.Fatalf("RolesOnUser with filter failed: %v", err)
	}
	if len(roles) != 1 || roles[0].Type.Name != "garant" {
		t.Errorf("Expected alice's own garant role, got %d roles", len(roles))
	}
}

func TestChecker_UserCanWithState(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()
	stateID := uuid.New()

	gate := &stubGate{read: []uuid.UUID{f.deanType.ID}}
	checker := NewChecker(f.engine, gate, []string{"administrátor"}, nil)

	// The dean reads a department-scoped object through the faculty role.
	allowed, err := checker.UserCanWithState(ctx, requestContextFor(f, f.dean), f.department.ID, stateID, AccessRead)
	if err != nil {
		t.Fatalf("UserCanWithState failed: %v", err)
	}
	if !allowed {
		t.Error("Expected the dean to be allowed to read")
	}

	// Write access requires the writer list, which is empty.
	allowed, err = checker.UserCanWithState(ctx, requestContextFor(f, f.dean), f.department.ID, stateID, AccessWrite)
	if err != nil {
		t.Fatalf("UserCanWithState failed: %v", err)
	}
	if allowed {
		t.Error("Expected write access to be denied")
	}

	// Alice holds no roles at all.
	allowed, err = checker.UserCanWithState(ctx, requestContextFor(f, f.alice), f.department.ID, stateID, AccessRead)
	if err != nil {
		t.Fatalf("UserCanWithState failed: %v", err)
	}
	if allowed {
		t.Error("Expected alice to be denied")
	}
}

func TestChecker_UserCanWithStateOnUserObject(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()
	gate := &stubGate{read: []uuid.UUID{f.deanType.ID}}
	checker := NewChecker(f.engine, gate, []string{"administrátor"}, nil)

	// Alice is the object; the dean's faculty role reaches her through the
	// department membership.
	allowed, err := checker.UserCanWithState(ctx, requestContextFor(f, f.dean), f.alice.ID, uuid.New(), AccessRead)
	if err != nil {
		t.Fatalf("UserCanWithState failed: %v", err)
	}
	if !allowed {
		t.Error("Expected the dean to be allowed on a member of a subordinate department")
	}
}

func TestChecker_FailsClosed(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()
	gate := &stubGate{read: []uuid.UUID{f.deanType.ID}}
	checker := NewChecker(f.engine, gate, []string{"administrátor"}, nil)

	// Anonymous principal.
	allowed, err := checker.UserCanWithState(ctx, requestContextFor(f, nil), f.department.ID, uuid.New(), AccessRead)
	if err != nil || allowed {
		t.Errorf("Expected anonymous deny without error, got allowed=%v err=%v", allowed, err)
	}

	// Unknown object.
	allowed, err = checker.UserCanWithState(ctx, requestContextFor(f, f.dean), uuid.New(), uuid.New(), AccessRead)
	if err != nil || allowed {
		t.Errorf("Expected unknown object deny without error, got allowed=%v err=%v", allowed, err)
	}

	// Unknown state.
	gate.err = ErrNotFound
	allowed, err = checker.UserCanWithState(ctx, requestContextFor(f, f.dean), f.department.ID, uuid.New(), AccessRead)
	if err != nil || allowed {
		t.Errorf("Expected unknown state deny without error, got allowed=%v err=%v", allowed, err)
	}
}

func TestChecker_UserCanWithoutState(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()
	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)

	allowed, err := checker.UserCanWithoutState(ctx, requestContextFor(f, f.dean), f.department.ID, []string{"děkan", "rektor"})
	if err != nil {
		t.Fatalf("UserCanWithoutState failed: %v", err)
	}
	if !allowed {
		t.Error("Expected the dean to satisfy the required set")
	}

	allowed, err = checker.UserCanWithoutState(ctx, requestContextFor(f, f.dean), f.department.ID, []string{"rektor"})
	if err != nil {
		t.Fatalf("UserCanWithoutState failed: %v", err)
	}
	if allowed {
		t.Error("Expected the dean to miss the required set")
	}
}

func TestChecker_ExpiredRoleDenies(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()
	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)

	// The grant lapsed a day ago but the expiry sweep has not flipped the
	// valid flag yet. It must not count.
	past := time.Now().UTC().Add(-24 * time.Hour)
	role := mustCreateRole(t, f.store, f.alice.ID, f.department.ID, f.garantType.ID)
	role.EndDate = &past
	if err := f.store.UpdateRole(ctx, role, nil); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}

	allowed, err := checker.UserCanWithoutState(ctx, requestContextFor(f, f.alice), f.department.ID, []string{"garant"})
	if err != nil {
		t.Fatalf("UserCanWithoutState failed: %v", err)
	}
	if allowed {
		t.Error("Expected a lapsed grant to deny before the sweep runs")
	}
}

func TestChecker_AdminOverride(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()
	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)

	adminType := mustCreateRoleType(t, f.store, "administrátor")
	admin := mustCreateUser(t, f.store, "Adam", "Adminů")
	mustCreateMembership(t, f.store, admin.ID, f.university.ID)
	mustCreateRole(t, f.store, admin.ID, f.university.ID, adminType.ID)

	// The admin role satisfies a required set it does not name.
	allowed, err := checker.UserCanWithoutState(ctx, requestContextFor(f, admin), f.department.ID, []string{"rektor"})
	if err != nil {
		t.Fatalf("UserCanWithoutState failed: %v", err)
	}
	if !allowed {
		t.Error("Expected the administrator override to allow")
	}
}

func TestLoaders_Memoization(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	store := NewStore(db)
	loaders := NewLoaders(store)

	user := mustCreateUser(t, store, "Alice", "First")

	first, err := loaders.User(ctx, user.ID)
	if err != nil {
		t.Fatalf("User load failed: %v", err)
	}

	// A write behind the loader's back is not observed within the request.
	first.Email = "changed@example.org"
	if err := store.UpdateUser(ctx, first, nil); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	second, err := loaders.User(ctx, user.ID)
	if err != nil {
		t.Fatalf("User load failed: %v", err)
	}
	if first != second {
		t.Error("Expected the loader to return the memoized instance")
	}

	// Negative results memoize too.
	missing := uuid.New()
	if _, err := loaders.User(ctx, missing); err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if _, err := loaders.User(ctx, missing); err != ErrNotFound {
		t.Fatalf("Expected memoized ErrNotFound, got %v", err)
	}
}
