package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campusware/gatekeeper/pkg/rbac"
	"github.com/google/uuid"
)

// Store provides database access for workflow entities. Updates are
// compare-and-swap on lastchange, matching the rbac store.
type Store struct {
	db *sql.DB
}

// NewStore creates a new workflow store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func prepareInsert(e *rbac.Entity, actorID *uuid.UUID) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.Created = now
	e.Lastchange = now
	e.CreatedBy = actorID
	e.ChangedBy = actorID
}

func (s *Store) casUpdate(ctx context.Context, table, query string, id uuid.UUID, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE id = $1", table), id).Scan(&exists)
	if err == sql.ErrNoRows {
		return rbac.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	return rbac.ErrStaleWrite
}

func (s *Store) deleteRow(ctx context.Context, table string, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func nullUUIDPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

// --- State machine categories and types ---

// CreateStateMachineCategory inserts a new category
func (s *Store) CreateStateMachineCategory(ctx context.Context, c *StateMachineCategory, actorID *uuid.UUID) error {
	prepareInsert(&c.Entity, actorID)

	query := `
		INSERT INTO statemachinecategories (id, name, name_en, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.NameEn, c.Created, c.CreatedBy, c.Lastchange, c.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create state machine category: %w", err)
	}
	return nil
}

// ListStateMachineCategories lists all categories
func (s *Store) ListStateMachineCategories(ctx context.Context) ([]*StateMachineCategory, error) {
	query := `
		SELECT id, name, name_en, created, createdby, lastchange, changedby
		FROM statemachinecategories ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list state machine categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*StateMachineCategory, 0)
	for rows.Next() {
		c := &StateMachineCategory{}
		var createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&c.ID, &c.Name, &c.NameEn, &c.Created, &createdBy, &c.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan state machine category: %w", err)
		}
		c.CreatedBy = nullUUIDPtr(createdBy)
		c.ChangedBy = nullUUIDPtr(changedBy)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateStateMachineType inserts a new type
func (s *Store) CreateStateMachineType(ctx context.Context, t *StateMachineType, actorID *uuid.UUID) error {
	prepareInsert(&t.Entity, actorID)

	query := `
		INSERT INTO statemachinetypes (id, name, name_en, category_id, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Name, t.NameEn, t.CategoryID, t.Created, t.CreatedBy, t.Lastchange, t.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create state machine type: %w", err)
	}
	return nil
}

// ListStateMachineTypes lists all types
func (s *Store) ListStateMachineTypes(ctx context.Context) ([]*StateMachineType, error) {
	query := `
		SELECT id, name, name_en, category_id, created, createdby, lastchange, changedby
		FROM statemachinetypes ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list state machine types: %w", err)
	}
	defer rows.Close()

	types := make([]*StateMachineType, 0)
	for rows.Next() {
		t := &StateMachineType{}
		var categoryID, createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&t.ID, &t.Name, &t.NameEn, &categoryID,
			&t.Created, &createdBy, &t.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan state machine type: %w", err)
		}
		t.CategoryID = nullUUIDPtr(categoryID)
		t.CreatedBy = nullUUIDPtr(createdBy)
		t.ChangedBy = nullUUIDPtr(changedBy)
		types = append(types, t)
	}
	return types, rows.Err()
}

// --- State machines ---

// CreateStateMachine inserts a new state machine
func (s *Store) CreateStateMachine(ctx context.Context, m *StateMachine, actorID *uuid.UUID) error {
	prepareInsert(&m.Entity, actorID)

	query := `
		INSERT INTO statemachines (id, name, name_en, type_id, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Name, m.NameEn, m.TypeID, m.Created, m.CreatedBy, m.Lastchange, m.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create state machine: %w", err)
	}
	return nil
}

// GetStateMachine retrieves a state machine by id
func (s *Store) GetStateMachine(ctx context.Context, id uuid.UUID) (*StateMachine, error) {
	query := `
		SELECT id, name, name_en, type_id, created, createdby, lastchange, changedby
		FROM statemachines WHERE id = $1
	`
	m := &StateMachine{}
	var typeID, createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.NameEn, &typeID,
		&m.Created, &createdBy, &m.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state machine: %w", err)
	}
	m.TypeID = nullUUIDPtr(typeID)
	m.CreatedBy = nullUUIDPtr(createdBy)
	m.ChangedBy = nullUUIDPtr(changedBy)
	return m, nil
}

// ListStateMachines lists all state machines
func (s *Store) ListStateMachines(ctx context.Context) ([]*StateMachine, error) {
	query := `
		SELECT id, name, name_en, type_id, created, createdby, lastchange, changedby
		FROM statemachines ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list state machines: %w", err)
	}
	defer rows.Close()

	machines := make([]*StateMachine, 0)
	for rows.Next() {
		m := &StateMachine{}
		var typeID, createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&m.ID, &m.Name, &m.NameEn, &typeID,
			&m.Created, &createdBy, &m.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan state machine: %w", err)
		}
		m.TypeID = nullUUIDPtr(typeID)
		m.CreatedBy = nullUUIDPtr(createdBy)
		m.ChangedBy = nullUUIDPtr(changedBy)
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// UpdateStateMachine updates a state machine guarded by the lastchange token.
func (s *Store) UpdateStateMachine(ctx context.Context, m *StateMachine, actorID *uuid.UUID) error {
	token := m.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE statemachines SET name = $1, name_en = $2, type_id = $3,
			lastchange = $4, changedby = $5
		WHERE id = $6 AND lastchange = $7
	`
	err := s.casUpdate(ctx, "statemachines", query, m.ID,
		m.Name, m.NameEn, m.TypeID, newChange, actorID, m.ID, token)
	if err != nil {
		return err
	}
	m.Lastchange = newChange
	m.ChangedBy = actorID
	return nil
}

// DeleteStateMachine deletes a state machine by id
func (s *Store) DeleteStateMachine(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "statemachines", id)
}

// --- States ---

// CreateState inserts a new state together with its two role type lists.
// The readers and writers list ids are generated here and are immutable.
func (s *Store) CreateState(ctx context.Context, st *State, actorID *uuid.UUID) error {
	if _, err := s.GetStateMachine(ctx, st.StateMachineID); err != nil {
		if err == rbac.ErrNotFound {
			return fmt.Errorf("state machine %s: %w", st.StateMachineID, rbac.ErrReferenceNotFound)
		}
		return err
	}
	prepareInsert(&st.Entity, actorID)
	st.ReadersListID = uuid.New()
	st.WritersListID = uuid.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	listQuery := `
		INSERT INTO roletypelists (id, owner_kind, owner_id, access, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, list := range []struct {
		id     uuid.UUID
		access rbac.AccessKind
	}{
		{st.ReadersListID, rbac.AccessRead},
		{st.WritersListID, rbac.AccessWrite},
	} {
		if _, err := tx.ExecContext(ctx, listQuery,
			list.id, ListOwnerState, st.ID, string(list.access),
			st.Created, st.CreatedBy, st.Lastchange, st.ChangedBy); err != nil {
			return fmt.Errorf("failed to create role type list: %w", err)
		}
	}

	stateQuery := `
		INSERT INTO states (id, name, name_en, ord, statemachine_id, readerslist_id, writerslist_id,
			created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := tx.ExecContext(ctx, stateQuery,
		st.ID, st.Name, st.NameEn, st.Order, st.StateMachineID, st.ReadersListID, st.WritersListID,
		st.Created, st.CreatedBy, st.Lastchange, st.ChangedBy); err != nil {
		return fmt.Errorf("failed to create state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state creation: %w", err)
	}
	return nil
}

// GetState retrieves a state by id
func (s *Store) GetState(ctx context.Context, id uuid.UUID) (*State, error) {
	query := `
		SELECT id, name, name_en, ord, statemachine_id, readerslist_id, writerslist_id,
			created, createdby, lastchange, changedby
		FROM states WHERE id = $1
	`
	st := &State{}
	var createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&st.ID, &st.Name, &st.NameEn, &st.Order, &st.StateMachineID,
		&st.ReadersListID, &st.WritersListID,
		&st.Created, &createdBy, &st.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	st.CreatedBy = nullUUIDPtr(createdBy)
	st.ChangedBy = nullUUIDPtr(changedBy)
	return st, nil
}

// ListStatesByMachine lists the states of a machine in display order, ties
// by insertion order.
func (s *Store) ListStatesByMachine(ctx context.Context, machineID uuid.UUID) ([]*State, error) {
	query := `
		SELECT id, name, name_en, ord, statemachine_id, readerslist_id, writerslist_id,
			created, createdby, lastchange, changedby
		FROM states WHERE statemachine_id = $1 ORDER BY ord, created
	`
	rows, err := s.db.QueryContext(ctx, query, machineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	defer rows.Close()

	states := make([]*State, 0)
	for rows.Next() {
		st := &State{}
		var createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&st.ID, &st.Name, &st.NameEn, &st.Order, &st.StateMachineID,
			&st.ReadersListID, &st.WritersListID,
			&st.Created, &createdBy, &st.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		st.CreatedBy = nullUUIDPtr(createdBy)
		st.ChangedBy = nullUUIDPtr(changedBy)
		states = append(states, st)
	}
	return states, rows.Err()
}

// UpdateState updates a state guarded by the lastchange token. The list ids
// and the owning machine never change.
func (s *Store) UpdateState(ctx context.Context, st *State, actorID *uuid.UUID) error {
	token := st.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE states SET name = $1, name_en = $2, ord = $3,
			lastchange = $4, changedby = $5
		WHERE id = $6 AND lastchange = $7
	`
	err := s.casUpdate(ctx, "states", query, st.ID,
		st.Name, st.NameEn, st.Order, newChange, actorID, st.ID, token)
	if err != nil {
		return err
	}
	st.Lastchange = newChange
	st.ChangedBy = actorID
	return nil
}

// DeleteState deletes a state together with its role type lists.
func (s *Store) DeleteState(ctx context.Context, id uuid.UUID) error {
	st, err := s.GetState(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM roletypelistitems WHERE list_id IN ($1, $2)",
		st.ReadersListID, st.WritersListID); err != nil {
		return fmt.Errorf("failed to delete list items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM roletypelists WHERE id IN ($1, $2)",
		st.ReadersListID, st.WritersListID); err != nil {
		return fmt.Errorf("failed to delete role type lists: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM states WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state deletion: %w", err)
	}
	return nil
}

// --- Transitions ---

// validateTransition checks both endpoint states exist and belong to the
// transition's machine.
func (s *Store) validateTransition(ctx context.Context, tr *StateTransition) error {
	source, err := s.GetState(ctx, tr.SourceID)
	if err != nil {
		if err == rbac.ErrNotFound {
			return fmt.Errorf("source state %s: %w", tr.SourceID, rbac.ErrReferenceNotFound)
		}
		return err
	}
	target, err := s.GetState(ctx, tr.TargetID)
	if err != nil {
		if err == rbac.ErrNotFound {
			return fmt.Errorf("target state %s: %w", tr.TargetID, rbac.ErrReferenceNotFound)
		}
		return err
	}
	if source.StateMachineID != tr.StateMachineID || target.StateMachineID != tr.StateMachineID {
		return ErrCrossMachineTransition
	}
	return nil
}

// CreateTransition inserts a new transition after validating its endpoints.
func (s *Store) CreateTransition(ctx context.Context, tr *StateTransition, actorID *uuid.UUID) error {
	if err := s.validateTransition(ctx, tr); err != nil {
		return err
	}
	prepareInsert(&tr.Entity, actorID)

	query := `
		INSERT INTO statetransitions (id, name, name_en, source_id, target_id, statemachine_id,
			created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		tr.ID, tr.Name, tr.NameEn, tr.SourceID, tr.TargetID, tr.StateMachineID,
		tr.Created, tr.CreatedBy, tr.Lastchange, tr.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create transition: %w", err)
	}
	return nil
}

// GetTransition retrieves a transition by id
func (s *Store) GetTransition(ctx context.Context, id uuid.UUID) (*StateTransition, error) {
	query := `
		SELECT id, name, name_en, source_id, target_id, statemachine_id,
			created, createdby, lastchange, changedby
		FROM statetransitions WHERE id = $1
	`
	tr := &StateTransition{}
	var createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tr.ID, &tr.Name, &tr.NameEn, &tr.SourceID, &tr.TargetID, &tr.StateMachineID,
		&tr.Created, &createdBy, &tr.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transition: %w", err)
	}
	tr.CreatedBy = nullUUIDPtr(createdBy)
	tr.ChangedBy = nullUUIDPtr(changedBy)
	return tr, nil
}

// ListTransitionsByMachine lists the transitions of a machine
func (s *Store) ListTransitionsByMachine(ctx context.Context, machineID uuid.UUID) ([]*StateTransition, error) {
	query := `
		SELECT id, name, name_en, source_id, target_id, statemachine_id,
			created, createdby, lastchange, changedby
		FROM statetransitions WHERE statemachine_id = $1 ORDER BY created
	`
	rows, err := s.db.QueryContext(ctx, query, machineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	transitions := make([]*StateTransition, 0)
	for rows.Next() {
		tr := &StateTransition{}
		var createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&tr.ID, &tr.Name, &tr.NameEn, &tr.SourceID, &tr.TargetID, &tr.StateMachineID,
			&tr.Created, &createdBy, &tr.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.CreatedBy = nullUUIDPtr(createdBy)
		tr.ChangedBy = nullUUIDPtr(changedBy)
		transitions = append(transitions, tr)
	}
	return transitions, rows.Err()
}

// UpdateTransition updates a transition guarded by the lastchange token,
// re-validating the endpoints.
func (s *Store) UpdateTransition(ctx context.Context, tr *StateTransition, actorID *uuid.UUID) error {
	if err := s.validateTransition(ctx, tr); err != nil {
		return err
	}
	token := tr.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE statetransitions SET name = $1, name_en = $2, source_id = $3, target_id = $4,
			lastchange = $5, changedby = $6
		WHERE id = $7 AND lastchange = $8
	`
	err := s.casUpdate(ctx, "statetransitions", query, tr.ID,
		tr.Name, tr.NameEn, tr.SourceID, tr.TargetID, newChange, actorID, tr.ID, token)
	if err != nil {
		return err
	}
	tr.Lastchange = newChange
	tr.ChangedBy = actorID
	return nil
}

// DeleteTransition deletes a transition by id
func (s *Store) DeleteTransition(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "statetransitions", id)
}

// --- Role type lists ---

// GetRoleTypeList retrieves a list by id
func (s *Store) GetRoleTypeList(ctx context.Context, id uuid.UUID) (*RoleTypeList, error) {
	query := `
		SELECT id, owner_kind, owner_id, access, created, createdby, lastchange, changedby
		FROM roletypelists WHERE id = $1
	`
	list := &RoleTypeList{}
	var createdBy, changedBy uuid.NullUUID
	var access string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&list.ID, &list.OwnerKind, &list.OwnerID, &access,
		&list.Created, &createdBy, &list.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role type list: %w", err)
	}
	list.Access = rbac.AccessKind(access)
	list.CreatedBy = nullUUIDPtr(createdBy)
	list.ChangedBy = nullUUIDPtr(changedBy)
	return list, nil
}

// ListRoleTypeIDs returns the role type ids on a list in insertion order
func (s *Store) ListRoleTypeIDs(ctx context.Context, listID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT roletype_id FROM roletypelistitems WHERE list_id = $1 ORDER BY created`
	rows, err := s.db.QueryContext(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role type ids: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role type id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddRoleTypeToList adds a role type to a list. A role type already on the
// list returns ErrDuplicateListEntry and leaves the list unchanged.
func (s *Store) AddRoleTypeToList(ctx context.Context, listID, roleTypeID uuid.UUID, actorID *uuid.UUID) (*RoleTypeListItem, error) {
	if _, err := s.GetRoleTypeList(ctx, listID); err != nil {
		if err == rbac.ErrNotFound {
			return nil, fmt.Errorf("role type list %s: %w", listID, rbac.ErrReferenceNotFound)
		}
		return nil, err
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM roletypelistitems WHERE list_id = $1 AND roletype_id = $2",
		listID, roleTypeID).Scan(&exists)
	if err == nil {
		return nil, ErrDuplicateListEntry
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check list entry: %w", err)
	}

	item := &RoleTypeListItem{ListID: listID, RoleTypeID: roleTypeID}
	prepareInsert(&item.Entity, actorID)

	query := `
		INSERT INTO roletypelistitems (id, list_id, roletype_id, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.ExecContext(ctx, query,
		item.ID, item.ListID, item.RoleTypeID,
		item.Created, item.CreatedBy, item.Lastchange, item.ChangedBy); err != nil {
		return nil, fmt.Errorf("failed to add role type to list: %w", err)
	}
	return item, nil
}

// RemoveRoleTypeFromList removes a role type from a list. Removing an absent
// entry is a no-op.
func (s *Store) RemoveRoleTypeFromList(ctx context.Context, listID, roleTypeID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM roletypelistitems WHERE list_id = $1 AND roletype_id = $2",
		listID, roleTypeID)
	if err != nil {
		return fmt.Errorf("failed to remove role type from list: %w", err)
	}
	return nil
}
