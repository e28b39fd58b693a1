package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/campusware/gatekeeper/pkg/async"
	"github.com/campusware/gatekeeper/pkg/audit"
	"github.com/campusware/gatekeeper/pkg/httputil"
	"github.com/campusware/gatekeeper/pkg/observability"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const auditTimeout = 5 * time.Second

// Handlers provides HTTP handlers for RBAC entities and authorization
// checks. Permission checks run at mutation time against current rows,
// never against data the client read earlier.
type Handlers struct {
	store   *Store
	checker *Checker
	catalog *Catalog
	policy  *Policy
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewHandlers creates RBAC handlers. catalog and metrics may be nil.
func NewHandlers(store *Store, checker *Checker, catalog *Catalog, policy *Policy, logger *observability.Logger, metrics *observability.Metrics) *Handlers {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Handlers{
		store:   store,
		checker: checker,
		catalog: catalog,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
	}
}

// RegisterRoutes registers all RBAC routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Users
	r.HandleFunc("/rbac/users", h.CreateUser).Methods("POST")
	r.HandleFunc("/rbac/users", h.ListUsers).Methods("GET")
	r.HandleFunc("/rbac/users/{id}", h.GetUser).Methods("GET")
	r.HandleFunc("/rbac/users/{id}", h.UpdateUser).Methods("PUT")
	r.HandleFunc("/rbac/users/{id}", h.DeleteUser).Methods("DELETE")
	r.HandleFunc("/rbac/users/{id}/roles", h.UserRoles).Methods("GET")

	// Groups
	r.HandleFunc("/rbac/groups", h.CreateGroup).Methods("POST")
	r.HandleFunc("/rbac/groups", h.ListGroups).Methods("GET")
	r.HandleFunc("/rbac/groups/{id}", h.GetGroup).Methods("GET")
	r.HandleFunc("/rbac/groups/{id}", h.UpdateGroup).Methods("PUT")
	r.HandleFunc("/rbac/groups/{id}", h.DeleteGroup).Methods("DELETE")
	r.HandleFunc("/rbac/groups/{id}/roles", h.GroupRoles).Methods("GET")

	// Catalog entities
	r.HandleFunc("/rbac/grouptypes", h.CreateGroupType).Methods("POST")
	r.HandleFunc("/rbac/grouptypes", h.ListGroupTypes).Methods("GET")
	r.HandleFunc("/rbac/grouptypes/{id}", h.GetGroupType).Methods("GET")
	r.HandleFunc("/rbac/grouptypes/{id}", h.UpdateGroupType).Methods("PUT")
	r.HandleFunc("/rbac/grouptypes/{id}", h.DeleteGroupType).Methods("DELETE")

	r.HandleFunc("/rbac/rolecategories", h.CreateRoleCategory).Methods("POST")
	r.HandleFunc("/rbac/rolecategories", h.ListRoleCategories).Methods("GET")

	r.HandleFunc("/rbac/roletypes", h.CreateRoleType).Methods("POST")
	r.HandleFunc("/rbac/roletypes", h.ListRoleTypes).Methods("GET")
	r.HandleFunc("/rbac/roletypes/{id}", h.GetRoleType).Methods("GET")
	r.HandleFunc("/rbac/roletypes/{id}", h.UpdateRoleType).Methods("PUT")
	r.HandleFunc("/rbac/roletypes/{id}", h.DeleteRoleType).Methods("DELETE")

	// Memberships and roles
	r.HandleFunc("/rbac/memberships", h.CreateMembership).Methods("POST")
	r.HandleFunc("/rbac/memberships/{id}", h.GetMembership).Methods("GET")
	r.HandleFunc("/rbac/memberships/{id}", h.UpdateMembership).Methods("PUT")
	r.HandleFunc("/rbac/memberships/{id}", h.DeleteMembership).Methods("DELETE")

	r.HandleFunc("/rbac/roles", h.CreateRole).Methods("POST")
	r.HandleFunc("/rbac/roles/{id}", h.GetRole).Methods("GET")
	r.HandleFunc("/rbac/roles/{id}", h.UpdateRole).Methods("PUT")
	r.HandleFunc("/rbac/roles/{id}", h.DeleteRole).Methods("DELETE")

	// Object resolution and checks
	r.HandleFunc("/rbac/objects/{id}", h.ResolveObject).Methods("GET")
	r.HandleFunc("/rbac/objects/{id}/roles", h.ObjectRoles).Methods("GET")
	r.HandleFunc("/rbac/check/state", h.CheckState).Methods("POST")
	r.HandleFunc("/rbac/check/roles", h.CheckRoles).Methods("POST")
}

func parseIDVar(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

// reqCtx pulls the request context, failing closed when the middleware did
// not run.
func (h *Handlers) reqCtx(w http.ResponseWriter, r *http.Request) (*RequestContext, bool) {
	rc := FromContext(r.Context())
	if rc == nil || rc.Loaders == nil {
		httputil.WriteForbidden(w, "no request principal")
		return nil, false
	}
	return rc, true
}

// writeStoreError maps store errors to HTTP responses
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == ErrNotFound:
		httputil.WriteNotFound(w, "entity not found")
	case errors.Is(err, ErrReferenceNotFound):
		httputil.WriteBadRequest(w, err.Error())
	case err == ErrPermissionDenied:
		httputil.WriteForbidden(w, "permission denied")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w, err)
	}
}

func (h *Handlers) auditMutation(r *http.Request, eventType audit.EventType, rc *RequestContext, resource audit.ResourceType, resourceID uuid.UUID, status audit.EventStatus, message string) {
	logger := audit.FromContext(r.Context())
	actorID := rc.PrincipalID()
	async.SafeGo(r.Context(), auditTimeout, "audit write", func(ctx context.Context) error {
		return logger.LogMutation(ctx, eventType, actorID, resource, resourceID.String(), status, message)
	})
}

func (h *Handlers) auditAuthz(r *http.Request, eventType audit.EventType, rc *RequestContext, resource audit.ResourceType, resourceID uuid.UUID, allowed bool) {
	logger := audit.FromContext(r.Context())
	actorID := rc.PrincipalID()
	status := audit.EventStatusSuccess
	if !allowed {
		status = audit.EventStatusDenied
	}
	async.SafeGo(r.Context(), auditTimeout, "audit write", func(ctx context.Context) error {
		return logger.LogAuthorization(ctx, eventType, actorID, resource, resourceID.String(), status, "")
	})
}

// guardMutation resolves the actor's role under the guard and enforces the
// restricted fields. Writes the response and returns false on denial.
func (h *Handlers) guardMutation(w http.ResponseWriter, r *http.Request, rc *RequestContext, objectID uuid.UUID, guard GuardPolicy, resource audit.ResourceType, changedFields []string) bool {
	grant, err := h.checker.ResolveActorRole(r.Context(), rc, objectID, guard)
	if err == ErrPermissionDenied {
		h.auditAuthz(r, audit.EventTypeAuthzAccessDenied, rc, resource, objectID, false)
		httputil.WriteForbidden(w, "permission denied")
		return false
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return false
	}

	if err := guard.CheckFieldChanges(grant, changedFields); err != nil {
		if pv, ok := IsPolicyViolation(err); ok {
			if h.metrics != nil {
				h.metrics.PolicyViolationsTotal.WithLabelValues(pv.Role).Inc()
			}
			h.auditAuthz(r, audit.EventTypeAuthzPolicyViolation, rc, resource, objectID, false)
			httputil.WriteForbidden(w, pv.Error())
			return false
		}
		h.writeStoreError(w, r, err)
		return false
	}
	return true
}

// requireAdmin checks the principal holds an administrator role somewhere in
// their own group closure. Used for catalog mutations, which have no natural
// target object.
func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request, rc *RequestContext) bool {
	principalID := rc.PrincipalID()
	if principalID == nil {
		httputil.WriteForbidden(w, "permission denied")
		return false
	}
	allowed, err := h.checker.UserCanWithoutState(r.Context(), rc, *principalID, nil)
	if err != nil {
		h.writeStoreError(w, r, err)
		return false
	}
	if !allowed {
		h.auditAuthz(r, audit.EventTypeAuthzAccessDenied, rc, audit.ResourceTypeRoleType, *principalID, false)
		httputil.WriteForbidden(w, "permission denied")
		return false
	}
	return true
}

// --- Users ---

type createUserRequest struct {
	ID      *uuid.UUID `json:"id,omitempty"`
	Name    string     `json:"name"`
	Surname string     `json:"surname"`
	Email   string     `json:"email"`
}

// CreateUser handles POST /rbac/users
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" || req.Surname == "" {
		httputil.WriteBadRequest(w, "name and surname are required")
		return
	}

	principalID := rc.PrincipalID()
	if principalID == nil {
		httputil.WriteForbidden(w, "permission denied")
		return
	}
	// Creating people requires an admin-class role (administrator or HR).
	grant, err := h.checker.ResolveActorRole(r.Context(), rc, *principalID, h.policy.Users)
	if err == ErrPermissionDenied || (grant != nil && grant.Restricted) {
		h.auditAuthz(r, audit.EventTypeAuthzAccessDenied, rc, audit.ResourceTypeUser, *principalID, false)
		httputil.WriteForbidden(w, "permission denied")
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	user := &User{Name: req.Name, Surname: req.Surname, Email: req.Email, Valid: true}
	if req.ID != nil {
		user.ID = *req.ID
	}
	if err := h.store.CreateUser(r.Context(), user, principalID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.auditMutation(r, audit.EventTypeDataUserCreate, rc, audit.ResourceTypeUser, user.ID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, OkResult(user.ID))
}

// GetUser handles GET /rbac/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// ListUsers handles GET /rbac/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, 50)
	users, err := h.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

type updateUserRequest struct {
	Name       *string   `json:"name,omitempty"`
	Surname    *string   `json:"surname,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Valid      *bool     `json:"valid,omitempty"`
	Lastchange time.Time `json:"lastchange"`
}

// UpdateUser handles PUT /rbac/users/{id}
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	changed := make([]string, 0, 4)
	if req.Name != nil {
		changed = append(changed, "name")
	}
	if req.Surname != nil {
		changed = append(changed, "surname")
	}
	if req.Email != nil {
		changed = append(changed, "email")
	}
	if req.Valid != nil {
		changed = append(changed, "valid")
	}
	if !h.guardMutation(w, r, rc, id, h.policy.Users, audit.ResourceTypeUser, changed) {
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Surname != nil {
		user.Surname = *req.Surname
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Valid != nil {
		user.Valid = *req.Valid
	}
	user.Lastchange = req.Lastchange

	err = h.store.UpdateUser(r.Context(), user, rc.PrincipalID())
	if err == ErrStaleWrite {
		h.auditMutation(r, audit.EventTypeDataUserUpdate, rc, audit.ResourceTypeUser, id, audit.EventStatusFailure, "stale write")
		httputil.WriteJSON(w, http.StatusConflict, FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.auditMutation(r, audit.EventTypeDataUserUpdate, rc, audit.ResourceTypeUser, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// DeleteUser handles DELETE /rbac/users/{id}
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if !h.guardMutation(w, r, rc, id, h.policy.Users, audit.ResourceTypeUser, nil) {
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeDataUserDelete, rc, audit.ResourceTypeUser, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// UserRoles handles GET /rbac/users/{id}/roles. It returns the roles the
// user themselves holds that reach them through their group memberships; a
// dean's role on the faculty shows up here for every member of the faculty's
// departments, but only the named user's own grants are listed.
func (h *Handlers) UserRoles(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	roles, err := h.checker.Engine().RolesOnUser(r.Context(), rc.Loaders, id, &id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roles)
}

// --- Groups ---

type createGroupRequest struct {
	ID            *uuid.UUID `json:"id,omitempty"`
	Name          string     `json:"name"`
	NameEn        string     `json:"name_en"`
	Abbreviation  string     `json:"abbreviation"`
	Email         string     `json:"email"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	GroupTypeID   *uuid.UUID `json:"group_type_id,omitempty"`
	MastergroupID *uuid.UUID `json:"mastergroup_id,omitempty"`
}

// CreateGroup handles POST /rbac/groups. Creating a subgroup requires
// mutation rights on the parent group; creating a root group requires an
// administrator role.
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	if req.MastergroupID != nil {
		if !h.guardMutation(w, r, rc, *req.MastergroupID, h.policy.Groups, audit.ResourceTypeGroup, nil) {
			return
		}
	} else if !h.requireAdmin(w, r, rc) {
		return
	}

	group := &Group{
		Name:          req.Name,
		NameEn:        req.NameEn,
		Abbreviation:  req.Abbreviation,
		Email:         req.Email,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Valid:         true,
		GroupTypeID:   req.GroupTypeID,
		MastergroupID: req.MastergroupID,
	}
	if req.ID != nil {
		group.ID = *req.ID
	}
	if err := h.store.CreateGroup(r.Context(), group, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.auditMutation(r, audit.EventTypeDataGroupCreate, rc, audit.ResourceTypeGroup, group.ID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, OkResult(group.ID))
}

// GetGroup handles GET /rbac/groups/{id}
func (h *Handlers) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	group, err := h.store.GetGroup(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, group)
}

// ListGroups handles GET /rbac/groups
func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	limit, offset := httputil.Pagination(r, 50)
	groups, err := h.store.ListGroups(r.Context(), limit, offset)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, groups)
}

type updateGroupRequest struct {
	Name          *string    `json:"name,omitempty"`
	NameEn        *string    `json:"name_en,omitempty"`
	Abbreviation  *string    `json:"abbreviation,omitempty"`
	Email         *string    `json:"email,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Valid         *bool      `json:"valid,omitempty"`
	GroupTypeID   *uuid.UUID `json:"grouptype_id,omitempty"`
	MastergroupID *uuid.UUID `json:"mastergroup_id,omitempty"`
	Lastchange    time.Time  `json:"lastchange"`
}

// UpdateGroup handles PUT /rbac/groups/{id}. Administrators may change
// anything; a garant may update the group but not move it in the hierarchy
// or change its type.
func (h *Handlers) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req updateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	changed := make([]string, 0, 8)
	if req.Name != nil {
		changed = append(changed, "name")
	}
	if req.NameEn != nil {
		changed = append(changed, "name_en")
	}
	if req.Abbreviation != nil {
		changed = append(changed, "abbreviation")
	}
	if req.Email != nil {
		changed = append(changed, "email")
	}
	if req.StartDate != nil {
		changed = append(changed, "startdate")
	}
	if req.EndDate != nil {
		changed = append(changed, "enddate")
	}
	if req.Valid != nil {
		changed = append(changed, "valid")
	}
	if req.GroupTypeID != nil {
		changed = append(changed, "grouptype_id")
	}
	if req.MastergroupID != nil {
		changed = append(changed, "mastergroup_id")
	}
	if !h.guardMutation(w, r, rc, id, h.policy.Groups, audit.ResourceTypeGroup, changed) {
		return
	}

	group, err := h.store.GetGroup(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.NameEn != nil {
		group.NameEn = *req.NameEn
	}
	if req.Abbreviation != nil {
		group.Abbreviation = *req.Abbreviation
	}
	if req.Email != nil {
		group.Email = *req.Email
	}
	if req.StartDate != nil {
		group.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		group.EndDate = req.EndDate
	}
	if req.Valid != nil {
		group.Valid = *req.Valid
	}
	if req.GroupTypeID != nil {
		group.GroupTypeID = req.GroupTypeID
	}
	if req.MastergroupID != nil {
		group.MastergroupID = req.MastergroupID
	}
	group.Lastchange = req.Lastchange

	err = h.store.UpdateGroup(r.Context(), group, rc.PrincipalID())
	if err == ErrStaleWrite {
		h.auditMutation(r, audit.EventTypeDataGroupUpdate, rc, audit.ResourceTypeGroup, id, audit.EventStatusFailure, "stale write")
		httputil.WriteJSON(w, http.StatusConflict, FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.auditMutation(r, audit.EventTypeDataGroupUpdate, rc, audit.ResourceTypeGroup, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// DeleteGroup handles DELETE /rbac/groups/{id}
func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if !h.guardMutation(w, r, rc, id, h.policy.Groups, audit.ResourceTypeGroup, nil) {
		return
	}
	if err := h.store.DeleteGroup(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeDataGroupDelete, rc, audit.ResourceTypeGroup, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// GroupRoles handles GET /rbac/groups/{id}/roles. The optional user_id query
// parameter restricts the result to one holder.
func (h *Handlers) GroupRoles(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	filterUserID, ok := parseOptionalUserID(w, r)
	if !ok {
		return
	}
	roles, err := h.checker.Engine().RolesOnGroup(r.Context(), rc.Loaders, id, filterUserID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roles)
}

func parseOptionalUserID(w http.ResponseWriter, r *http.Request) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid user_id")
		return nil, false
	}
	return &id, true
}

// --- Group types ---

type groupTypeRequest struct {
	Name       string     `json:"name"`
	NameEn     string     `json:"name_en"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Lastchange time.Time  `json:"lastchange"`
}

// CreateGroupType handles POST /rbac/grouptypes
func (h *Handlers) CreateGroupType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	var req groupTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	gt := &GroupType{Name: req.Name, NameEn: req.NameEn, CategoryID: req.CategoryID}
	if err := h.store.CreateGroupType(r.Context(), gt, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, OkResult(gt.ID))
}

// GetGroupType handles GET /rbac/grouptypes/{id}
func (h *Handlers) GetGroupType(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	gt, err := h.store.GetGroupType(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gt)
}

// ListGroupTypes handles GET /rbac/grouptypes
func (h *Handlers) ListGroupTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListGroupTypes(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, types)
}

// UpdateGroupType handles PUT /rbac/grouptypes/{id}
func (h *Handlers) UpdateGroupType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req groupTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	gt, err := h.store.GetGroupType(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if req.Name != "" {
		gt.Name = req.Name
	}
	if req.NameEn != "" {
		gt.NameEn = req.NameEn
	}
	if req.CategoryID != nil {
		gt.CategoryID = req.CategoryID
	}
	gt.Lastchange = req.Lastchange

	err = h.store.UpdateGroupType(r.Context(), gt, rc.PrincipalID())
	if err == ErrStaleWrite {
		httputil.WriteJSON(w, http.StatusConflict, FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// DeleteGroupType handles DELETE /rbac/grouptypes/{id}
func (h *Handlers) DeleteGroupType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if err := h.store.DeleteGroupType(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// --- Role categories and types ---

type roleCategoryRequest struct {
	Name   string `json:"name"`
	NameEn string `json:"name_en"`
}

// CreateRoleCategory handles POST /rbac/rolecategories
func (h *Handlers) CreateRoleCategory(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	var req roleCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	category := &RoleCategory{Name: req.Name, NameEn: req.NameEn}
	if err := h.store.CreateRoleCategory(r.Context(), category, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, OkResult(category.ID))
}

// ListRoleCategories handles GET /rbac/rolecategories
func (h *Handlers) ListRoleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListRoleCategories(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, categories)
}

type roleTypeRequest struct {
	Name       string     `json:"name"`
	NameEn     string     `json:"name_en"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Lastchange time.Time  `json:"lastchange"`
}

// CreateRoleType handles POST /rbac/roletypes
func (h *Handlers) CreateRoleType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	var req roleTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	rt := &RoleType{Name: req.Name, NameEn: req.NameEn, CategoryID: req.CategoryID}
	if err := h.store.CreateRoleType(r.Context(), rt, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeDataRoleTypeCreate, rc, audit.ResourceTypeRoleType, rt.ID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, OkResult(rt.ID))
}

// GetRoleType handles GET /rbac/roletypes/{id}
func (h *Handlers) GetRoleType(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	rt, err := h.store.GetRoleType(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rt)
}

// ListRoleTypes handles GET /rbac/roletypes
func (h *Handlers) ListRoleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListRoleTypes(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, types)
}

// UpdateRoleType handles PUT /rbac/roletypes/{id}
func (h *Handlers) UpdateRoleType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req roleTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	rt, err := h.store.GetRoleType(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if req.Name != "" {
		rt.Name = req.Name
	}
	if req.NameEn != "" {
		rt.NameEn = req.NameEn
	}
	if req.CategoryID != nil {
		rt.CategoryID = req.CategoryID
	}
	rt.Lastchange = req.Lastchange

	err = h.store.UpdateRoleType(r.Context(), rt, rc.PrincipalID())
	if err == ErrStaleWrite {
		httputil.WriteJSON(w, http.StatusConflict, FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	if h.catalog != nil {
		h.catalog.Invalidate(r.Context(), id)
	}
	h.auditMutation(r, audit.EventTypeDataRoleTypeUpdate, rc, audit.ResourceTypeRoleType, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// DeleteRoleType handles DELETE /rbac/roletypes/{id}
func (h *Handlers) DeleteRoleType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if err := h.store.DeleteRoleType(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if h.catalog != nil {
		h.catalog.Invalidate(r.Context(), id)
	}
	h.auditMutation(r, audit.EventTypeDataRoleTypeDelete, rc, audit.ResourceTypeRoleType, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// --- Memberships ---

type createMembershipRequest struct {
	UserID    uuid.UUID  `json:"user_id"`
	GroupID   uuid.UUID  `json:"group_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// CreateMembership handles POST /rbac/memberships. Requires mutation rights
// on the target group.
func (h *Handlers) CreateMembership(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	var req createMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil || req.GroupID == uuid.Nil {
		httputil.WriteBadRequest(w, "user_id and group_id are required")
		return
	}
	if !h.guardMutation(w, r, rc, req.GroupID, h.policy.Groups, audit.ResourceTypeMembership, nil) {
		return
	}

	m := &Membership{
		UserID:    req.UserID,
		GroupID:   req.GroupID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Valid:     true,
	}
	if err := h.store.CreateMembership(r.Context(), m, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeDataMembershipCreate, rc, audit.ResourceTypeMembership, m.ID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, OkResult(m.ID))
}

// GetMembership handles GET /rbac/memberships/{id}
func (h *Handlers) GetMembership(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	m, err := h.store.GetMembership(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

type updateMembershipRequest struct {
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Valid      *bool      `json:"valid,omitempty"`
	Lastchange time.Time  `json:"lastchange"`
}

// UpdateMembership handles PUT /rbac/memberships/{id}
func (h *Handlers) UpdateMembership(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req updateMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	m, err := h.store.GetMembership(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !h.guardMutation(w, r, rc, m.GroupID, h.policy.Groups, audit.ResourceTypeMembership, nil) {
		return
	}
	if req.StartDate != nil {
		m.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		m.EndDate = req.EndDate
	}
	if req.Valid != nil {
		m.Valid = *req.Valid
	}
	m.Lastchange = req.Lastchange

	err = h.store.UpdateMembership(r.Context(), m, rc.PrincipalID())
	if err == ErrStaleWrite {
		httputil.WriteJSON(w, http.StatusConflict, FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// DeleteMembership handles DELETE /rbac/memberships/{id}
func (h *Handlers) DeleteMembership(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	m, err := h.store.GetMembership(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !h.guardMutation(w, r, rc, m.GroupID, h.policy.Groups, audit.ResourceTypeMembership, nil) {
		return
	}
	if err := h.store.DeleteMembership(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeDataMembershipDelete, rc, audit.ResourceTypeMembership, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// --- Roles ---

type createRoleRequest struct {
	UserID     uuid.UUID  `json:"user_id"`
	GroupID    uuid.UUID  `json:"group_id"`
	RoleTypeID uuid.UUID  `json:"roletype_id"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// CreateRole handles POST /rbac/roles. Requires mutation rights on the group
// the role is granted on.
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	var req createRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil || req.GroupID == uuid.Nil || req.RoleTypeID == uuid.Nil {
		httputil.WriteBadRequest(w, "user_id, group_id and roletype_id are required")
		return
	}
	if !h.guardMutation(w, r, rc, req.GroupID, h.policy.Groups, audit.ResourceTypeRole, nil) {
		return
	}

	role := &Role{
		UserID:     req.UserID,
		GroupID:    req.GroupID,
		RoleTypeID: req.RoleTypeID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Valid:      true,
	}
	if err := h.store.CreateRole(r.Context(), role, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeDataRoleCreate, rc, audit.ResourceTypeRole, role.ID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, OkResult(role.ID))
}

// GetRole handles GET /rbac/roles/{id}
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	role, err := h.store.GetRole(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, role)
}

type updateRoleRequest struct {
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Valid      *bool      `json:"valid,omitempty"`
	Lastchange time.Time  `json:"lastchange"`
}

// UpdateRole handles PUT /rbac/roles/{id}
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	role, err := h.store.GetRole(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !h.guardMutation(w, r, rc, role.GroupID, h.policy.Groups, audit.ResourceTypeRole, nil) {
		return
	}
	if req.StartDate != nil {
		role.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		role.EndDate = req.EndDate
	}
	if req.Valid != nil {
		role.Valid = *req.Valid
	}
	role.Lastchange = req.Lastchange

	err = h.store.UpdateRole(r.Context(), role, rc.PrincipalID())
	if err == ErrStaleWrite {
		h.auditMutation(r, audit.EventTypeDataRoleUpdate, rc, audit.ResourceTypeRole, id, audit.EventStatusFailure, "stale write")
		httputil.WriteJSON(w, http.StatusConflict, FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeDataRoleUpdate, rc, audit.ResourceTypeRole, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// DeleteRole handles DELETE /rbac/roles/{id}
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	role, err := h.store.GetRole(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !h.guardMutation(w, r, rc, role.GroupID, h.policy.Groups, audit.ResourceTypeRole, nil) {
		return
	}
	if err := h.store.DeleteRole(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeDataRoleDelete, rc, audit.ResourceTypeRole, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, OkResult(id))
}

// --- Object resolution and checks ---

// ResolveObject handles GET /rbac/objects/{id}
func (h *Handlers) ResolveObject(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	obj, err := h.checker.Engine().Resolve(r.Context(), rc.Loaders, id)
	if err == ErrNotFound {
		httputil.WriteNotFound(w, "object not found")
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, obj)
}

// ObjectRoles handles GET /rbac/objects/{id}/roles. The optional user_id
// query parameter restricts the result to roles held by that user.
func (h *Handlers) ObjectRoles(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	id, ok := parseIDVar(r)
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	filterUserID, ok := parseOptionalUserID(w, r)
	if !ok {
		return
	}
	obj, err := h.checker.Engine().Resolve(r.Context(), rc.Loaders, id)
	if err == ErrNotFound {
		httputil.WriteNotFound(w, "object not found")
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	roles, err := h.checker.Engine().RolesOnObject(r.Context(), rc.Loaders, *obj, filterUserID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roles)
}

type checkStateRequest struct {
	ObjectID uuid.UUID  `json:"object_id"`
	StateID  uuid.UUID  `json:"state_id"`
	Access   AccessKind `json:"access"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// CheckState handles POST /rbac/check/state
func (h *Handlers) CheckState(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	var req checkStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if !req.Access.Valid() {
		httputil.WriteBadRequest(w, "access must be read or write")
		return
	}

	allowed, err := h.checker.UserCanWithState(r.Context(), rc, req.ObjectID, req.StateID, req.Access)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditAuthz(r, audit.EventTypeAuthzStateCheck, rc, audit.ResourceTypeState, req.StateID, allowed)
	httputil.WriteJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

type checkRolesRequest struct {
	ObjectID uuid.UUID `json:"object_id"`
	Roles    []string  `json:"roles"`
}

// CheckRoles handles POST /rbac/check/roles
func (h *Handlers) CheckRoles(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	var req checkRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	allowed, err := h.checker.UserCanWithoutState(r.Context(), rc, req.ObjectID, req.Roles)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditAuthz(r, audit.EventTypeAuthzRoleCheck, rc, audit.ResourceTypeUser, req.ObjectID, allowed)
	httputil.WriteJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}
