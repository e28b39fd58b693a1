package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// testRouter wires the handlers behind a middleware that injects the given
// principal, mirroring what the principal middleware does in production.
func testRouter(f *hierarchyFixture, checker *Checker, principal *User) *mux.Router {
	handlers := NewHandlers(f.store, checker, nil, DefaultPolicy(), nil, nil)
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := &RequestContext{Principal: principal, Loaders: NewLoaders(f.store)}
			next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
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

func setupAdminFixture(t *testing.T, f *hierarchyFixture) *User {
	t.Helper()
	adminType := mustCreateRoleType(t, f.store, "administrátor")
	admin := mustCreateUser(t, f.store, "Adam", "Adminů")
	mustCreateMembership(t, f.store, admin.ID, f.university.ID)
	mustCreateRole(t, f.store, admin.ID, f.university.ID, adminType.ID)
	return admin
}

func TestHandlers_GroupUpdateByGarantRestrictedField(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	garant := mustCreateUser(t, f.store, "Gustav", "Garantů")
	mustCreateRole(t, f.store, garant.ID, f.department.ID, f.garantType.ID)

	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)
	router := testRouter(f, checker, garant)

	group, err := f.store.GetGroup(context.Background(), f.department.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}

	// Plain field update succeeds.
	rec := doJSON(t, router, "PUT", "/rbac/groups/"+f.department.ID.String(), map[string]interface{}{
		"name":       "Katedra přejmenovaná",
		"lastchange": group.Lastchange.Format(time.RFC3339Nano),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Moving the group in the hierarchy is a policy violation for a garant.
	group, _ = f.store.GetGroup(context.Background(), f.department.ID)
	rec = doJSON(t, router, "PUT", "/rbac/groups/"+f.department.ID.String(), map[string]interface{}{
		"mastergroup_id": f.university.ID.String(),
		"lastchange":     group.Lastchange.Format(time.RFC3339Nano),
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("mastergroup_id")) {
		t.Errorf("Expected the violation to name the field, got %s", rec.Body.String())
	}
}

func TestHandlers_GroupUpdateStaleToken(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)
	admin := setupAdminFixture(t, f)

	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)
	router := testRouter(f, checker, admin)

	stale := time.Now().UTC().Add(-time.Hour)
	rec := doJSON(t, router, "PUT", "/rbac/groups/"+f.department.ID.String(), map[string]interface{}{
		"name":       "nový název",
		"lastchange": stale.Format(time.RFC3339Nano),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	var result MutationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Msg != MsgFail || result.ID != f.department.ID {
		t.Errorf("Expected fail result for the group, got %+v", result)
	}
}

func TestHandlers_CheckState(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	gate := &stubGate{read: []uuid.UUID{f.deanType.ID}}
	checker := NewChecker(f.engine, gate, []string{"administrátor"}, nil)
	router := testRouter(f, checker, f.dean)

	rec := doJSON(t, router, "POST", "/rbac/check/state", map[string]interface{}{
		"object_id": f.department.ID.String(),
		"state_id":  uuid.New().String(),
		"access":    "read",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Allowed {
		t.Error("Expected the dean to be allowed")
	}

	rec = doJSON(t, router, "POST", "/rbac/check/state", map[string]interface{}{
		"object_id": f.department.ID.String(),
		"state_id":  uuid.New().String(),
		"access":    "execute",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad access kind, got %d", rec.Code)
	}
}

func TestHandlers_UserRolesFiltersToOwner(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)
	router := testRouter(f, checker, f.alice)

	// The dean's role reaches alice but is not hers, so her role listing
	// stays empty until she gets her own grant.
	rec := doJSON(t, router, "GET", "/rbac/users/"+f.alice.ID.String()+"/roles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var roles []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &roles); err != nil {
		t.Fatalf("Failed to decode roles: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("Expected no roles for alice, got %d", len(roles))
	}

	mustCreateRole(t, f.store, f.alice.ID, f.department.ID, f.garantType.ID)
	rec = doJSON(t, router, "GET", "/rbac/users/"+f.alice.ID.String()+"/roles", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &roles); err != nil {
		t.Fatalf("Failed to decode roles: %v", err)
	}
	if len(roles) != 1 {
		t.Errorf("Expected alice's own role, got %d", len(roles))
	}
}

func TestHandlers_ResolveObject(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)
	router := testRouter(f, checker, f.alice)

	rec := doJSON(t, router, "GET", "/rbac/objects/"+f.faculty.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var obj RBACObject
	if err := json.Unmarshal(rec.Body.Bytes(), &obj); err != nil {
		t.Fatalf("Failed to decode object: %v", err)
	}
	if obj.Kind != ObjectKindGroup {
		t.Errorf("Expected group kind, got %s", obj.Kind)
	}

	rec = doJSON(t, router, "GET", "/rbac/objects/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown object, got %d", rec.Code)
	}
}

func TestHandlers_RoleMutationRequiresGroupAuthority(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)
	admin := setupAdminFixture(t, f)

	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)

	// Alice cannot grant roles.
	router := testRouter(f, checker, f.alice)
	rec := doJSON(t, router, "POST", "/rbac/roles", map[string]interface{}{
		"user_id":     f.alice.ID.String(),
		"group_id":    f.department.ID.String(),
		"roletype_id": f.garantType.ID.String(),
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for alice, got %d", rec.Code)
	}

	// The admin's university role reaches the department.
	router = testRouter(f, checker, admin)
	rec = doJSON(t, router, "POST", "/rbac/roles", map[string]interface{}{
		"user_id":     f.alice.ID.String(),
		"group_id":    f.department.ID.String(),
		"roletype_id": f.garantType.ID.String(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	var result MutationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Msg != MsgOK {
		t.Errorf("Expected ok result, got %+v", result)
	}
}

func TestHandlers_CreateRoleUnknownGroup(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)
	admin := setupAdminFixture(t, f)

	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)
	router := testRouter(f, checker, admin)

	rec := doJSON(t, router, "POST", "/rbac/roles", map[string]interface{}{
		"user_id":     f.alice.ID.String(),
		"group_id":    uuid.NewString(),
		"roletype_id": f.garantType.ID.String(),
	})
	// The unknown group denies at the guard before the reference check.
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 403 or 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func ExampleMutationResult() {
	id := uuid.MustParse("3f1a8a1e-0000-0000-0000-000000000001")
	out, _ := json.Marshal(OkResult(id))
	fmt.Println(string(out))
	// Output: {"id":"3f1a8a1e-0000-0000-0000-000000000001","msg":"ok"}
}
