package workflow

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
	"github.com/campusware/gatekeeper/pkg/rbac"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const auditTimeout = 5 * time.Second

// Handlers provides HTTP handlers for workflow definitions. Changing
// machines, states, transitions or the role type lists is configuration
// work and requires an administrator role.
type Handlers struct {
	store   *Store
	gate    *Gate
	checker *rbac.Checker
	metrics *observability.Metrics
}

// NewHandlers creates workflow handlers. metrics may be nil.
func NewHandlers(store *Store, gate *Gate, checker *rbac.Checker, metrics *observability.Metrics) *Handlers {
	return &Handlers{
		store:   store,
		gate:    gate,
		checker: checker,
		metrics: metrics,
	}
}

// RegisterRoutes registers all workflow routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/workflow/statemachinecategories", h.CreateCategory).Methods("POST")
	r.HandleFunc("/workflow/statemachinecategories", h.ListCategories).Methods("GET")
	r.HandleFunc("/workflow/statemachinetypes", h.CreateType).Methods("POST")
	r.HandleFunc("/workflow/statemachinetypes", h.ListTypes).Methods("GET")

	r.HandleFunc("/workflow/statemachines", h.CreateStateMachine).Methods("POST")
	r.HandleFunc("/workflow/statemachines", h.ListStateMachines).Methods("GET")
	r.HandleFunc("/workflow/statemachines/{id}", h.GetStateMachine).Methods("GET")
	r.HandleFunc("/workflow/statemachines/{id}", h.UpdateStateMachine).Methods("PUT")
	r.HandleFunc("/workflow/statemachines/{id}", h.DeleteStateMachine).Methods("DELETE")
	r.HandleFunc("/workflow/statemachines/{id}/states", h.MachineStates).Methods("GET")
	r.HandleFunc("/workflow/statemachines/{id}/transitions", h.MachineTransitions).Methods("GET")

	r.HandleFunc("/workflow/states", h.CreateState).Methods("POST")
	r.HandleFunc("/workflow/states/{id}", h.GetState).Methods("GET")
	r.HandleFunc("/workflow/states/{id}", h.UpdateState).Methods("PUT")
	r.HandleFunc("/workflow/states/{id}", h.DeleteState).Methods("DELETE")
	r.HandleFunc("/workflow/states/{id}/roletypes", h.StateRoleTypes).Methods("GET")
	r.HandleFunc("/workflow/states/{id}/roletypes/{type_id}", h.AddStateRoleType).Methods("POST")
	r.HandleFunc("/workflow/states/{id}/roletypes/{type_id}", h.RemoveStateRoleType).Methods("DELETE")

	r.HandleFunc("/workflow/transitions", h.CreateTransition).Methods("POST")
	r.HandleFunc("/workflow/transitions/{id}", h.GetTransition).Methods("GET")
	r.HandleFunc("/workflow/transitions/{id}", h.UpdateTransition).Methods("PUT")
	r.HandleFunc("/workflow/transitions/{id}", h.DeleteTransition).Methods("DELETE")
}

func parseIDVar(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	return id, err == nil
}

func (h *Handlers) reqCtx(w http.ResponseWriter, r *http.Request) (*rbac.RequestContext, bool) {
	rc := rbac.FromContext(r.Context())
	if rc == nil || rc.Loaders == nil {
		httputil.WriteForbidden(w, "no request principal")
		return nil, false
	}
	return rc, true
}

func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == rbac.ErrNotFound:
		httputil.WriteNotFound(w, "entity not found")
	case errors.Is(err, rbac.ErrReferenceNotFound):
		httputil.WriteBadRequest(w, err.Error())
	case err == ErrCrossMachineTransition:
		httputil.WriteBadRequest(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w, err)
	}
}

func (h *Handlers) auditMutation(r *http.Request, eventType audit.EventType, rc *rbac.RequestContext, resource audit.ResourceType, resourceID uuid.UUID, status audit.EventStatus, message string) {
	logger := audit.FromContext(r.Context())
	actorID := rc.PrincipalID()
	async.SafeGo(r.Context(), auditTimeout, "audit write", func(ctx context.Context) error {
		return logger.LogMutation(ctx, eventType, actorID, resource, resourceID.String(), status, message)
	})
}

// requireAdmin checks the principal holds an administrator role somewhere in
// their own group closure, same as the rbac catalog mutations.
func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request, rc *rbac.RequestContext) bool {
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
		httputil.WriteForbidden(w, "permission denied")
		return false
	}
	return true
}

// --- Categories and types ---

type namedRequest struct {
	Name       string     `json:"name"`
	NameEn     string     `json:"name_en"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
}

// CreateCategory handles POST /workflow/statemachinecategories
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	var req namedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	category := &StateMachineCategory{Name: req.Name, NameEn: req.NameEn}
	if err := h.store.CreateStateMachineCategory(r.Context(), category, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rbac.OkResult(category.ID))
}

// ListCategories handles GET /workflow/statemachinecategories
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListStateMachineCategories(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, categories)
}

// CreateType handles POST /workflow/statemachinetypes
func (h *Handlers) CreateType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	var req namedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	t := &StateMachineType{Name: req.Name, NameEn: req.NameEn, CategoryID: req.CategoryID}
	if err := h.store.CreateStateMachineType(r.Context(), t, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rbac.OkResult(t.ID))
}

// ListTypes handles GET /workflow/statemachinetypes
func (h *Handlers) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListStateMachineTypes(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, types)
}

// --- State machines ---

type stateMachineRequest struct {
	Name       string     `json:"name"`
	NameEn     string     `json:"name_en"`
	TypeID     *uuid.UUID `json:"type_id,omitempty"`
	Lastchange time.Time  `json:"lastchange"`
}

// CreateStateMachine handles POST /workflow/statemachines
func (h *Handlers) CreateStateMachine(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	var req stateMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	m := &StateMachine{Name: req.Name, NameEn: req.NameEn, TypeID: req.TypeID}
	if err := h.store.CreateStateMachine(r.Context(), m, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowMachineCreate, rc, audit.ResourceTypeStateMachine, m.ID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, rbac.OkResult(m.ID))
}

// GetStateMachine handles GET /workflow/statemachines/{id}
func (h *Handlers) GetStateMachine(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	m, err := h.store.GetStateMachine(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// ListStateMachines handles GET /workflow/statemachines
func (h *Handlers) ListStateMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.store.ListStateMachines(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, machines)
}

// UpdateStateMachine handles PUT /workflow/statemachines/{id}
func (h *Handlers) UpdateStateMachine(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req stateMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	m, err := h.store.GetStateMachine(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if req.Name != "" {
		m.Name = req.Name
	}
	if req.NameEn != "" {
		m.NameEn = req.NameEn
	}
	if req.TypeID != nil {
		m.TypeID = req.TypeID
	}
	m.Lastchange = req.Lastchange

	err = h.store.UpdateStateMachine(r.Context(), m, rc.PrincipalID())
	if err == rbac.ErrStaleWrite {
		h.auditMutation(r, audit.EventTypeWorkflowMachineUpdate, rc, audit.ResourceTypeStateMachine, id, audit.EventStatusFailure, "stale write")
		httputil.WriteJSON(w, http.StatusConflict, rbac.FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowMachineUpdate, rc, audit.ResourceTypeStateMachine, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, rbac.OkResult(id))
}

// DeleteStateMachine handles DELETE /workflow/statemachines/{id}
func (h *Handlers) DeleteStateMachine(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if err := h.store.DeleteStateMachine(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowMachineDelete, rc, audit.ResourceTypeStateMachine, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, rbac.OkResult(id))
}

// MachineStates handles GET /workflow/statemachines/{id}/states
func (h *Handlers) MachineStates(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if _, err := h.store.GetStateMachine(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	states, err := h.store.ListStatesByMachine(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, states)
}

// MachineTransitions handles GET /workflow/statemachines/{id}/transitions
func (h *Handlers) MachineTransitions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if _, err := h.store.GetStateMachine(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	transitions, err := h.store.ListTransitionsByMachine(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transitions)
}

// --- States ---

type createStateRequest struct {
	Name           string    `json:"name"`
	NameEn         string    `json:"name_en"`
	Order          int       `json:"order"`
	StateMachineID uuid.UUID `json:"statemachine_id"`
}

// CreateState handles POST /workflow/states. The readers and writers role
// type lists are created together with the state.
func (h *Handlers) CreateState(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	var req createStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" || req.StateMachineID == uuid.Nil {
		httputil.WriteBadRequest(w, "name and statemachine_id are required")
		return
	}

	st := &State{
		Name:           req.Name,
		NameEn:         req.NameEn,
		Order:          req.Order,
		StateMachineID: req.StateMachineID,
	}
	if err := h.store.CreateState(r.Context(), st, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowStateCreate, rc, audit.ResourceTypeState, st.ID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, st)
}

// GetState handles GET /workflow/states/{id}
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	st, err := h.store.GetState(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

type updateStateRequest struct {
	Name       *string   `json:"name,omitempty"`
	NameEn     *string   `json:"name_en,omitempty"`
	Order      *int      `json:"order,omitempty"`
	Lastchange time.Time `json:"lastchange"`
}

// UpdateState handles PUT /workflow/states/{id}
func (h *Handlers) UpdateState(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req updateStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	st, err := h.store.GetState(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if req.Name != nil {
		st.Name = *req.Name
	}
	if req.NameEn != nil {
		st.NameEn = *req.NameEn
	}
	if req.Order != nil {
		st.Order = *req.Order
	}
	st.Lastchange = req.Lastchange

	err = h.store.UpdateState(r.Context(), st, rc.PrincipalID())
	if err == rbac.ErrStaleWrite {
		h.auditMutation(r, audit.EventTypeWorkflowStateUpdate, rc, audit.ResourceTypeState, id, audit.EventStatusFailure, "stale write")
		httputil.WriteJSON(w, http.StatusConflict, rbac.FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowStateUpdate, rc, audit.ResourceTypeState, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, rbac.OkResult(id))
}

// DeleteState handles DELETE /workflow/states/{id}
func (h *Handlers) DeleteState(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if err := h.store.DeleteState(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowStateDelete, rc, audit.ResourceTypeState, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, rbac.OkResult(id))
}

// parseAccess reads the access query parameter, defaulting to read
func parseAccess(w http.ResponseWriter, r *http.Request) (rbac.AccessKind, bool) {
	raw := r.URL.Query().Get("access")
	if raw == "" {
		return rbac.AccessRead, true
	}
	access := rbac.AccessKind(raw)
	if !access.Valid() {
		httputil.WriteBadRequest(w, "access must be read or write")
		return "", false
	}
	return access, true
}

// StateRoleTypes handles GET /workflow/states/{id}/roletypes
func (h *Handlers) StateRoleTypes(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	access, ok := parseAccess(w, r)
	if !ok {
		return
	}
	types, err := h.gate.RoleTypesForState(r.Context(), id, access)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, types)
}

// AddStateRoleType handles POST /workflow/states/{id}/roletypes/{type_id}.
// Adding a role type that is already on the list reports a failed mutation
// and leaves the list unchanged.
func (h *Handlers) AddStateRoleType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	typeID, ok := parseIDVar(r, "type_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid type_id")
		return
	}
	access, ok := parseAccess(w, r)
	if !ok {
		return
	}

	st, err := h.store.GetState(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	listID, err := listIDForAccess(st, access)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	_, err = h.store.AddRoleTypeToList(r.Context(), listID, typeID, rc.PrincipalID())
	if err == ErrDuplicateListEntry {
		h.auditMutation(r, audit.EventTypeWorkflowListAdd, rc, audit.ResourceTypeRoleTypeList, listID, audit.EventStatusFailure, "duplicate entry")
		httputil.WriteJSON(w, http.StatusOK, rbac.FailResult(typeID))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowListAdd, rc, audit.ResourceTypeRoleTypeList, listID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, rbac.OkResult(typeID))
}

// RemoveStateRoleType handles DELETE /workflow/states/{id}/roletypes/{type_id}.
// Removing an absent entry succeeds.
func (h *Handlers) RemoveStateRoleType(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	typeID, ok := parseIDVar(r, "type_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid type_id")
		return
	}
	access, ok := parseAccess(w, r)
	if !ok {
		return
	}

	st, err := h.store.GetState(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	listID, err := listIDForAccess(st, access)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.store.RemoveRoleTypeFromList(r.Context(), listID, typeID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowListRemove, rc, audit.ResourceTypeRoleTypeList, listID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, rbac.OkResult(typeID))
}

// --- Transitions ---

type transitionRequest struct {
	Name           string    `json:"name"`
	NameEn         string    `json:"name_en"`
	SourceID       uuid.UUID `json:"source_id"`
	TargetID       uuid.UUID `json:"target_id"`
	StateMachineID uuid.UUID `json:"statemachine_id"`
	Lastchange     time.Time `json:"lastchange"`
}

// CreateTransition handles POST /workflow/transitions. Both endpoint states
// must belong to the named machine.
func (h *Handlers) CreateTransition(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.SourceID == uuid.Nil || req.TargetID == uuid.Nil || req.StateMachineID == uuid.Nil {
		httputil.WriteBadRequest(w, "source_id, target_id and statemachine_id are required")
		return
	}

	tr := &StateTransition{
		Name:           req.Name,
		NameEn:         req.NameEn,
		SourceID:       req.SourceID,
		TargetID:       req.TargetID,
		StateMachineID: req.StateMachineID,
	}
	if err := h.store.CreateTransition(r.Context(), tr, rc.PrincipalID()); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowTransitionCreate, rc, audit.ResourceTypeTransition, tr.ID, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusCreated, rbac.OkResult(tr.ID))
}

// GetTransition handles GET /workflow/transitions/{id}
func (h *Handlers) GetTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	tr, err := h.store.GetTransition(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tr)
}

// UpdateTransition handles PUT /workflow/transitions/{id}
func (h *Handlers) UpdateTransition(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Lastchange.IsZero() {
		httputil.WriteBadRequest(w, "lastchange token is required")
		return
	}

	tr, err := h.store.GetTransition(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if req.Name != "" {
		tr.Name = req.Name
	}
	if req.NameEn != "" {
		tr.NameEn = req.NameEn
	}
	if req.SourceID != uuid.Nil {
		tr.SourceID = req.SourceID
	}
	if req.TargetID != uuid.Nil {
		tr.TargetID = req.TargetID
	}
	tr.Lastchange = req.Lastchange

	err = h.store.UpdateTransition(r.Context(), tr, rc.PrincipalID())
	if err == rbac.ErrStaleWrite {
		h.auditMutation(r, audit.EventTypeWorkflowTransitionUpdate, rc, audit.ResourceTypeTransition, id, audit.EventStatusFailure, "stale write")
		httputil.WriteJSON(w, http.StatusConflict, rbac.FailResult(id))
		return
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowTransitionUpdate, rc, audit.ResourceTypeTransition, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, rbac.OkResult(id))
}

// DeleteTransition handles DELETE /workflow/transitions/{id}
func (h *Handlers) DeleteTransition(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.reqCtx(w, r)
	if !ok {
		return
	}
	if !h.requireAdmin(w, r, rc) {
		return
	}
	id, ok := parseIDVar(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid id")
		return
	}
	if err := h.store.DeleteTransition(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.auditMutation(r, audit.EventTypeWorkflowTransitionDelete, rc, audit.ResourceTypeTransition, id, audit.EventStatusSuccess, "")
	httputil.WriteJSON(w, http.StatusOK, rbac.OkResult(id))
}
