package workflow

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusware/gatekeeper/pkg/rbac"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type handlerFixture struct {
	store     *Store
	rbacStore *rbac.Store
	checker   *rbac.Checker
	admin     *rbac.User
	alice     *rbac.User
}

func setupHandlerFixture(t *testing.T, db *sql.DB) *handlerFixture {
	t.Helper()
	ctx := context.Background()

	rbacStore := rbac.NewStore(db)
	engine := rbac.NewEngine(rbacStore, nil)
	store := NewStore(db)
	gate := NewGate(store, rbac.NewCatalog(rbacStore, 16, time.Minute, nil, nil))
	checker := rbac.NewChecker(engine, gate, []string{"administrátor"}, nil)

	university := &rbac.Group{Name: "Univerzita", Valid: true}
	if err := rbacStore.CreateGroup(ctx, university, nil); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	adminType := &rbac.RoleType{Name: "administrátor"}
	if err := rbacStore.CreateRoleType(ctx, adminType, nil); err != nil {
		t.Fatalf("CreateRoleType failed: %v", err)
	}

	admin := &rbac.User{Name: "Adam", Surname: "Adminů", Valid: true}
	if err := rbacStore.CreateUser(ctx, admin, nil); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := rbacStore.CreateMembership(ctx, &rbac.Membership{UserID: admin.ID, GroupID: university.ID, Valid: true}, nil); err != nil {
		t.Fatalf("CreateMembership failed: %v", err)
	}
	if err := rbacStore.CreateRole(ctx, &rbac.Role{UserID: admin.ID, GroupID: university.ID, RoleTypeID: adminType.ID, Valid: true}, nil); err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	alice := &rbac.User{Name: "Alice", Surname: "Studentová", Valid: true}
	if err := rbacStore.CreateUser(ctx, alice, nil); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := rbacStore.CreateMembership(ctx, &rbac.Membership{UserID: alice.ID, GroupID: university.ID, Valid: true}, nil); err != nil {
		t.Fatalf("CreateMembership failed: %v", err)
	}

	return &handlerFixture{
		store:     store,
		rbacStore: rbacStore,
		checker:   checker,
		admin:     admin,
		alice:     alice,
	}
}

func (f *handlerFixture) router(principal *rbac.User) *mux.Router {
	gate := NewGate(f.store, rbac.NewCatalog(f.rbacStore, 16, time.Minute, nil, nil))
	handlers := NewHandlers(f.store, gate, f.checker, nil)
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := &rbac.RequestContext{Principal: principal, Loaders: rbac.NewLoaders(f.rbacStore)}
			next.ServeHTTP(w, r.WithContext(rbac.WithRequestContext(r.Context(), rc)))
		})
	})
	handlers.RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_MachineCRUDRequiresAdmin(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHandlerFixture(t, db)

	// Alice has no administrator role anywhere.
	rec := doJSON(t, f.router(f.alice), "POST", "/workflow/statemachines", map[string]interface{}{
		"name": "žádost",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for alice, got %d", rec.Code)
	}

	rec = doJSON(t, f.router(f.admin), "POST", "/workflow/statemachines", map[string]interface{}{
		"name": "žádost",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	var result rbac.MutationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Msg != rbac.MsgOK {
		t.Errorf("Expected ok result, got %+v", result)
	}

	// Reads are open.
	rec = doJSON(t, f.router(f.alice), "GET", "/workflow/statemachines", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 listing machines, got %d", rec.Code)
	}
}

func TestHandlers_CreateStateReturnsLists(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHandlerFixture(t, db)
	router := f.router(f.admin)

	machine := mustCreateMachine(t, f.store, "žádost")
	rec := doJSON(t, router, "POST", "/workflow/states", map[string]interface{}{
		"name":            "rozpracováno",
		"order":           1,
		"statemachine_id": machine.ID.String(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var st State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if st.ReadersListID == uuid.Nil || st.WritersListID == uuid.Nil {
		t.Error("Expected the response to carry the generated list ids")
	}

	rec = doJSON(t, router, "POST", "/workflow/states", map[string]interface{}{
		"name":            "osiřelý",
		"statemachine_id": uuid.NewString(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown machine, got %d", rec.Code)
	}
}

func TestHandlers_DuplicateListAddFails(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHandlerFixture(t, db)
	router := f.router(f.admin)

	machine := mustCreateMachine(t, f.store, "žádost")
	st := mustCreateState(t, f.store, machine.ID, "schvalování", 1)
	garant := &rbac.RoleType{Name: "garant"}
	if err := f.rbacStore.CreateRoleType(context.Background(), garant, nil); err != nil {
		t.Fatalf("CreateRoleType failed: %v", err)
	}

	path := "/workflow/states/" + st.ID.String() + "/roletypes/" + garant.ID.String() + "?access=read"
	rec := doJSON(t, router, "POST", path, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// The second add reports a failed mutation without erroring.
	rec = doJSON(t, router, "POST", path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for the duplicate, got %d: %s", rec.Code, rec.Body.String())
	}
	var result rbac.MutationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Msg != rbac.MsgFail {
		t.Errorf("Expected fail result, got %+v", result)
	}

	ids, err := f.store.ListRoleTypeIDs(context.Background(), st.ReadersListID)
	if err != nil {
		t.Fatalf("ListRoleTypeIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("Expected a single entry after the duplicate add, got %d", len(ids))
	}
}

func TestHandlers_StateRoleTypesByAccess(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHandlerFixture(t, db)
	router := f.router(f.admin)

	machine := mustCreateMachine(t, f.store, "žádost")
	st := mustCreateState(t, f.store, machine.ID, "schvalování", 1)
	garant := &rbac.RoleType{Name: "garant"}
	if err := f.rbacStore.CreateRoleType(context.Background(), garant, nil); err != nil {
		t.Fatalf("CreateRoleType failed: %v", err)
	}
	if _, err := f.store.AddRoleTypeToList(context.Background(), st.WritersListID, garant.ID, nil); err != nil {
		t.Fatalf("AddRoleTypeToList failed: %v", err)
	}

	rec := doJSON(t, router, "GET", "/workflow/states/"+st.ID.String()+"/roletypes?access=write", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var types []*rbac.RoleType
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatalf("Failed to decode types: %v", err)
	}
	if len(types) != 1 || types[0].Name != "garant" {
		t.Errorf("Expected garant on the writers list, got %v", types)
	}

	rec = doJSON(t, router, "GET", "/workflow/states/"+st.ID.String()+"/roletypes?access=read", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatalf("Failed to decode types: %v", err)
	}
	if len(types) != 0 {
		t.Errorf("Expected an empty readers list, got %v", types)
	}

	rec = doJSON(t, router, "GET", "/workflow/states/"+st.ID.String()+"/roletypes?access=execute", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad access kind, got %d", rec.Code)
	}
}

func TestHandlers_CrossMachineTransitionRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHandlerFixture(t, db)
	router := f.router(f.admin)

	first := mustCreateMachine(t, f.store, "žádost")
	second := mustCreateMachine(t, f.store, "akreditace")
	draft := mustCreateState(t, f.store, first.ID, "rozpracováno", 1)
	foreign := mustCreateState(t, f.store, second.ID, "podáno", 1)

	rec := doJSON(t, router, "POST", "/workflow/transitions", map[string]interface{}{
		"name":            "odeslat",
		"source_id":       draft.ID.String(),
		"target_id":       foreign.ID.String(),
		"statemachine_id": first.ID.String(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for the cross machine transition, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlers_StateUpdateStaleToken(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHandlerFixture(t, db)
	router := f.router(f.admin)

	machine := mustCreateMachine(t, f.store, "žádost")
	st := mustCreateState(t, f.store, machine.ID, "rozpracováno", 1)

	stale := time.Now().UTC().Add(-time.Hour)
	rec := doJSON(t, router, "PUT", "/workflow/states/"+st.ID.String(), map[string]interface{}{
		"name":       "přejmenováno",
		"lastchange": stale.Format(time.RFC3339Nano),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	var result rbac.MutationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Msg != rbac.MsgFail {
		t.Errorf("Expected fail result, got %+v", result)
	}
}
