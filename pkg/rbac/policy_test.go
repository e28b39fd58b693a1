package rbac

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveActorRole(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	f := setupHierarchy(t, db)

	ctx := context.Background()
	checker := NewChecker(f.engine, &stubGate{}, []string{"administrátor"}, nil)
	policy := DefaultPolicy()

	adminType := mustCreateRoleType(t, f.store, "administrátor")
	admin := mustCreateUser(t, f.store, "Adam", "Adminů")
	mustCreateRole(t, f.store, admin.ID, f.faculty.ID, adminType.ID)

	garant := mustCreateUser(t, f.store, "Gustav", "Garantů")
	mustCreateRole(t, f.store, garant.ID, f.department.ID, f.garantType.ID)

	// Admin grant is unrestricted.
	grant, err := checker.ResolveActorRole(ctx, requestContextFor(f, admin), f.department.ID, policy.Groups)
	if err != nil {
		t.Fatalf("ResolveActorRole failed: %v", err)
	}
	if grant.Restricted || grant.Role != "administrátor" {
		t.Errorf("Expected unrestricted administrátor grant, got %+v", grant)
	}

	// Garant grant is restricted.
	grant, err = checker.ResolveActorRole(ctx, requestContextFor(f, garant), f.department.ID, policy.Groups)
	if err != nil {
		t.Fatalf("ResolveActorRole failed: %v", err)
	}
	if !grant.Restricted || grant.Role != "garant" {
		t.Errorf("Expected restricted garant grant, got %+v", grant)
	}

	// Alice holds nothing.
	if _, err := checker.ResolveActorRole(ctx, requestContextFor(f, f.alice), f.department.ID, policy.Groups); err != ErrPermissionDenied {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}

	// Anonymous denies.
	if _, err := checker.ResolveActorRole(ctx, requestContextFor(f, nil), f.department.ID, policy.Groups); err != ErrPermissionDenied {
		t.Errorf("Expected ErrPermissionDenied for anonymous, got %v", err)
	}
}

func TestGuardPolicy_CheckFieldChanges(t *testing.T) {
	guard := DefaultPolicy().Groups

	admin := &ActorGrant{Role: "administrátor"}
	if err := guard.CheckFieldChanges(admin, []string{"mastergroup_id", "name"}); err != nil {
		t.Errorf("Expected admin to change anything, got %v", err)
	}

	garant := &ActorGrant{Role: "garant", Restricted: true}
	if err := guard.CheckFieldChanges(garant, []string{"name", "email"}); err != nil {
		t.Errorf("Expected garant to change plain fields, got %v", err)
	}

	err := guard.CheckFieldChanges(garant, []string{"name", "mastergroup_id"})
	pv, ok := IsPolicyViolation(err)
	if !ok {
		t.Fatalf("Expected PolicyViolationError, got %v", err)
	}
	if pv.Role != "garant" || pv.Field != "mastergroup_id" {
		t.Errorf("Unexpected violation %+v", pv)
	}

	err = guard.CheckFieldChanges(garant, []string{"grouptype_id"})
	if _, ok := IsPolicyViolation(err); !ok {
		t.Errorf("Expected PolicyViolationError for grouptype_id, got %v", err)
	}

	if err := guard.CheckFieldChanges(nil, []string{"name"}); err != ErrPermissionDenied {
		t.Errorf("Expected nil grant to deny, got %v", err)
	}
}

func TestLoadPolicy(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy with empty path failed: %v", err)
	}
	if len(policy.Groups.AdminRoles) == 0 {
		t.Error("Expected default admin roles")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
groups:
  admin_roles: ["administrator"]
  allowed_roles: ["manager"]
  restricted_fields: ["mastergroup_id"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	policy, err = LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if len(policy.Groups.AllowedRoles) != 1 || policy.Groups.AllowedRoles[0] != "manager" {
		t.Errorf("Expected loaded groups policy, got %+v", policy.Groups)
	}
	// Untouched sections keep their defaults.
	if len(policy.Users.AdminRoles) != 2 {
		t.Errorf("Expected default users policy, got %+v", policy.Users)
	}

	if _, err := LoadPolicy(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing policy file")
	}
}

func TestPolicyViolationError_Message(t *testing.T) {
	err := &PolicyViolationError{Role: "garant", Field: "mastergroup_id"}
	want := `role "garant" is not allowed to change "mastergroup_id"`
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}
