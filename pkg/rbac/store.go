package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store provides database access for RBAC entities. All updates are
// compare-and-swap on the lastchange column; a mismatched token returns
// ErrStaleWrite without touching the row.
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks and migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

// prepareInsert stamps the audit columns on a new entity, generating an id
// when the caller did not supply one.
func prepareInsert(e *Entity, actorID *uuid.UUID) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.Created = now
	e.Lastchange = now
	e.CreatedBy = actorID
	e.ChangedBy = actorID
}

// casUpdate runs an update guarded by the lastchange token. The query must
// end with "WHERE id = $k AND lastchange = $k+1" and args must already
// include the new lastchange value. Returns ErrNotFound when the row does not
// exist and ErrStaleWrite when it exists with a different token.
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
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	return ErrStaleWrite
}

// deleteRow deletes a row by id, returning ErrNotFound when nothing matched.
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
		return ErrNotFound
	}
	return nil
}

// --- Users ---

// CreateUser inserts a new user
func (s *Store) CreateUser(ctx context.Context, u *User, actorID *uuid.UUID) error {
	prepareInsert(&u.Entity, actorID)

	query := `
		INSERT INTO users (id, name, surname, email, valid, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Surname, u.Email, u.Valid,
		u.Created, u.CreatedBy, u.Lastchange, u.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, name, surname, email, valid, created, createdby, lastchange, changedby
		FROM users WHERE id = $1
	`
	u := &User{}
	var createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Surname, &u.Email, &u.Valid,
		&u.Created, &createdBy, &u.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedBy = nullUUIDPtr(createdBy)
	u.ChangedBy = nullUUIDPtr(changedBy)
	return u, nil
}

// ListUsers lists users ordered by surname
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	query := `
		SELECT id, name, surname, email, valid, created, createdby, lastchange, changedby
		FROM users ORDER BY surname, name LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u := &User{}
		var createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Surname, &u.Email, &u.Valid,
			&u.Created, &createdBy, &u.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.CreatedBy = nullUUIDPtr(createdBy)
		u.ChangedBy = nullUUIDPtr(changedBy)
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser updates a user guarded by the lastchange token in u.Lastchange.
// On success u.Lastchange holds the new token.
func (s *Store) UpdateUser(ctx context.Context, u *User, actorID *uuid.UUID) error {
	token := u.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE users SET name = $1, surname = $2, email = $3, valid = $4,
			lastchange = $5, changedby = $6
		WHERE id = $7 AND lastchange = $8
	`
	err := s.casUpdate(ctx, "users", query, u.ID,
		u.Name, u.Surname, u.Email, u.Valid, newChange, actorID, u.ID, token)
	if err != nil {
		return err
	}
	u.Lastchange = newChange
	u.ChangedBy = actorID
	return nil
}

// DeleteUser deletes a user by id
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "users", id)
}

// --- Groups ---

// CreateGroup inserts a new group
func (s *Store) CreateGroup(ctx context.Context, g *Group, actorID *uuid.UUID) error {
	if g.MastergroupID != nil {
		if _, err := s.GetGroup(ctx, *g.MastergroupID); err != nil {
			if err == ErrNotFound {
				return fmt.Errorf("mastergroup %s: %w", g.MastergroupID, ErrReferenceNotFound)
			}
			return err
		}
	}
	prepareInsert(&g.Entity, actorID)

	query := `
		INSERT INTO groups (id, name, name_en, abbreviation, email, startdate, enddate, valid,
			grouptype_id, mastergroup_id, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.Name, g.NameEn, g.Abbreviation, g.Email, g.StartDate, g.EndDate, g.Valid,
		g.GroupTypeID, g.MastergroupID, g.Created, g.CreatedBy, g.Lastchange, g.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by id
func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*Group, error) {
	query := `
		SELECT id, name, name_en, abbreviation, email, startdate, enddate, valid,
			grouptype_id, mastergroup_id, created, createdby, lastchange, changedby
		FROM groups WHERE id = $1
	`
	g := &Group{}
	var startDate, endDate sql.NullTime
	var groupTypeID, mastergroupID, createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.NameEn, &g.Abbreviation, &g.Email, &startDate, &endDate, &g.Valid,
		&groupTypeID, &mastergroupID, &g.Created, &createdBy, &g.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	g.StartDate = nullTimePtr(startDate)
	g.EndDate = nullTimePtr(endDate)
	g.GroupTypeID = nullUUIDPtr(groupTypeID)
	g.MastergroupID = nullUUIDPtr(mastergroupID)
	g.CreatedBy = nullUUIDPtr(createdBy)
	g.ChangedBy = nullUUIDPtr(changedBy)
	return g, nil
}

// ListGroups lists groups ordered by name
func (s *Store) ListGroups(ctx context.Context, limit, offset int) ([]*Group, error) {
	query := `
		SELECT id, name, name_en, abbreviation, email, startdate, enddate, valid,
			grouptype_id, mastergroup_id, created, createdby, lastchange, changedby
		FROM groups ORDER BY name LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*Group, 0)
	for rows.Next() {
		g := &Group{}
		var startDate, endDate sql.NullTime
		var groupTypeID, mastergroupID, createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&g.ID, &g.Name, &g.NameEn, &g.Abbreviation, &g.Email, &startDate, &endDate, &g.Valid,
			&groupTypeID, &mastergroupID, &g.Created, &createdBy, &g.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.StartDate = nullTimePtr(startDate)
		g.EndDate = nullTimePtr(endDate)
		g.GroupTypeID = nullUUIDPtr(groupTypeID)
		g.MastergroupID = nullUUIDPtr(mastergroupID)
		g.CreatedBy = nullUUIDPtr(createdBy)
		g.ChangedBy = nullUUIDPtr(changedBy)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateGroup updates a group guarded by the lastchange token in g.Lastchange.
func (s *Store) UpdateGroup(ctx context.Context, g *Group, actorID *uuid.UUID) error {
	token := g.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE groups SET name = $1, name_en = $2, abbreviation = $3, email = $4,
			startdate = $5, enddate = $6, valid = $7, grouptype_id = $8, mastergroup_id = $9,
			lastchange = $10, changedby = $11
		WHERE id = $12 AND lastchange = $13
	`
	err := s.casUpdate(ctx, "groups", query, g.ID,
		g.Name, g.NameEn, g.Abbreviation, g.Email,
		g.StartDate, g.EndDate, g.Valid, g.GroupTypeID, g.MastergroupID,
		newChange, actorID, g.ID, token)
	if err != nil {
		return err
	}
	g.Lastchange = newChange
	g.ChangedBy = actorID
	return nil
}

// DeleteGroup deletes a group by id
func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "groups", id)
}

// --- Group types and categories ---

// CreateGroupType inserts a new group type
func (s *Store) CreateGroupType(ctx context.Context, gt *GroupType, actorID *uuid.UUID) error {
	prepareInsert(&gt.Entity, actorID)

	query := `
		INSERT INTO grouptypes (id, name, name_en, category_id, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		gt.ID, gt.Name, gt.NameEn, gt.CategoryID,
		gt.Created, gt.CreatedBy, gt.Lastchange, gt.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create group type: %w", err)
	}
	return nil
}

// GetGroupType retrieves a group type by id
func (s *Store) GetGroupType(ctx context.Context, id uuid.UUID) (*GroupType, error) {
	query := `
		SELECT id, name, name_en, category_id, created, createdby, lastchange, changedby
		FROM grouptypes WHERE id = $1
	`
	gt := &GroupType{}
	var categoryID, createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&gt.ID, &gt.Name, &gt.NameEn, &categoryID,
		&gt.Created, &createdBy, &gt.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group type: %w", err)
	}
	gt.CategoryID = nullUUIDPtr(categoryID)
	gt.CreatedBy = nullUUIDPtr(createdBy)
	gt.ChangedBy = nullUUIDPtr(changedBy)
	return gt, nil
}

// ListGroupTypes lists all group types
func (s *Store) ListGroupTypes(ctx context.Context) ([]*GroupType, error) {
	query := `
		SELECT id, name, name_en, category_id, created, createdby, lastchange, changedby
		FROM grouptypes ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list group types: %w", err)
	}
	defer rows.Close()

	types := make([]*GroupType, 0)
	for rows.Next() {
		gt := &GroupType{}
		var categoryID, createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&gt.ID, &gt.Name, &gt.NameEn, &categoryID,
			&gt.Created, &createdBy, &gt.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan group type: %w", err)
		}
		gt.CategoryID = nullUUIDPtr(categoryID)
		gt.CreatedBy = nullUUIDPtr(createdBy)
		gt.ChangedBy = nullUUIDPtr(changedBy)
		types = append(types, gt)
	}
	return types, rows.Err()
}

// UpdateGroupType updates a group type guarded by the lastchange token.
func (s *Store) UpdateGroupType(ctx context.Context, gt *GroupType, actorID *uuid.UUID) error {
	token := gt.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE grouptypes SET name = $1, name_en = $2, category_id = $3,
			lastchange = $4, changedby = $5
		WHERE id = $6 AND lastchange = $7
	`
	err := s.casUpdate(ctx, "grouptypes", query, gt.ID,
		gt.Name, gt.NameEn, gt.CategoryID, newChange, actorID, gt.ID, token)
	if err != nil {
		return err
	}
	gt.Lastchange = newChange
	gt.ChangedBy = actorID
	return nil
}

// DeleteGroupType deletes a group type by id
func (s *Store) DeleteGroupType(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "grouptypes", id)
}

// --- Role categories and types ---

// CreateRoleCategory inserts a new role category
func (s *Store) CreateRoleCategory(ctx context.Context, rc *RoleCategory, actorID *uuid.UUID) error {
	prepareInsert(&rc.Entity, actorID)

	query := `
		INSERT INTO rolecategories (id, name, name_en, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		rc.ID, rc.Name, rc.NameEn, rc.Created, rc.CreatedBy, rc.Lastchange, rc.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create role category: %w", err)
	}
	return nil
}

// GetRoleCategory retrieves a role category by id
func (s *Store) GetRoleCategory(ctx context.Context, id uuid.UUID) (*RoleCategory, error) {
	query := `
		SELECT id, name, name_en, created, createdby, lastchange, changedby
		FROM rolecategories WHERE id = $1
	`
	rc := &RoleCategory{}
	var createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rc.ID, &rc.Name, &rc.NameEn, &rc.Created, &createdBy, &rc.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role category: %w", err)
	}
	rc.CreatedBy = nullUUIDPtr(createdBy)
	rc.ChangedBy = nullUUIDPtr(changedBy)
	return rc, nil
}

// ListRoleCategories lists all role categories
func (s *Store) ListRoleCategories(ctx context.Context) ([]*RoleCategory, error) {
	query := `
		SELECT id, name, name_en, created, createdby, lastchange, changedby
		FROM rolecategories ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list role categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*RoleCategory, 0)
	for rows.Next() {
		rc := &RoleCategory{}
		var createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&rc.ID, &rc.Name, &rc.NameEn, &rc.Created, &createdBy, &rc.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan role category: %w", err)
		}
		rc.CreatedBy = nullUUIDPtr(createdBy)
		rc.ChangedBy = nullUUIDPtr(changedBy)
		categories = append(categories, rc)
	}
	return categories, rows.Err()
}

// CreateRoleType inserts a new role type
func (s *Store) CreateRoleType(ctx context.Context, rt *RoleType, actorID *uuid.UUID) error {
	prepareInsert(&rt.Entity, actorID)

	query := `
		INSERT INTO roletypes (id, name, name_en, category_id, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		rt.ID, rt.Name, rt.NameEn, rt.CategoryID,
		rt.Created, rt.CreatedBy, rt.Lastchange, rt.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create role type: %w", err)
	}
	return nil
}

// GetRoleType retrieves a role type by id
func (s *Store) GetRoleType(ctx context.Context, id uuid.UUID) (*RoleType, error) {
	query := `
		SELECT id, name, name_en, category_id, created, createdby, lastchange, changedby
		FROM roletypes WHERE id = $1
	`
	rt := &RoleType{}
	var categoryID, createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rt.ID, &rt.Name, &rt.NameEn, &categoryID,
		&rt.Created, &createdBy, &rt.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role type: %w", err)
	}
	rt.CategoryID = nullUUIDPtr(categoryID)
	rt.CreatedBy = nullUUIDPtr(createdBy)
	rt.ChangedBy = nullUUIDPtr(changedBy)
	return rt, nil
}

// ListRoleTypes lists all role types
func (s *Store) ListRoleTypes(ctx context.Context) ([]*RoleType, error) {
	query := `
		SELECT id, name, name_en, category_id, created, createdby, lastchange, changedby
		FROM roletypes ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list role types: %w", err)
	}
	defer rows.Close()

	return scanRoleTypes(rows)
}

// RoleTypesByIDs retrieves role types for a set of ids in one query
func (s *Store) RoleTypesByIDs(ctx context.Context, ids []uuid.UUID) ([]*RoleType, error) {
	if len(ids) == 0 {
		return []*RoleType{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, name_en, category_id, created, createdby, lastchange, changedby
		FROM roletypes WHERE id IN (%s)
	`, placeholders(1, len(ids)))

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get role types: %w", err)
	}
	defer rows.Close()

	return scanRoleTypes(rows)
}

func scanRoleTypes(rows *sql.Rows) ([]*RoleType, error) {
	types := make([]*RoleType, 0)
	for rows.Next() {
		rt := &RoleType{}
		var categoryID, createdBy, changedBy uuid.NullUUID
		if err := rows.Scan(
			&rt.ID, &rt.Name, &rt.NameEn, &categoryID,
			&rt.Created, &createdBy, &rt.Lastchange, &changedBy); err != nil {
			return nil, fmt.Errorf("failed to scan role type: %w", err)
		}
		rt.CategoryID = nullUUIDPtr(categoryID)
		rt.CreatedBy = nullUUIDPtr(createdBy)
		rt.ChangedBy = nullUUIDPtr(changedBy)
		types = append(types, rt)
	}
	return types, rows.Err()
}

// UpdateRoleType updates a role type guarded by the lastchange token.
func (s *Store) UpdateRoleType(ctx context.Context, rt *RoleType, actorID *uuid.UUID) error {
	token := rt.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE roletypes SET name = $1, name_en = $2, category_id = $3,
			lastchange = $4, changedby = $5
		WHERE id = $6 AND lastchange = $7
	`
	err := s.casUpdate(ctx, "roletypes", query, rt.ID,
		rt.Name, rt.NameEn, rt.CategoryID, newChange, actorID, rt.ID, token)
	if err != nil {
		return err
	}
	rt.Lastchange = newChange
	rt.ChangedBy = actorID
	return nil
}

// DeleteRoleType deletes a role type by id
func (s *Store) DeleteRoleType(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "roletypes", id)
}

// --- Memberships ---

// CreateMembership inserts a new membership, verifying both referenced rows
// exist.
func (s *Store) CreateMembership(ctx context.Context, m *Membership, actorID *uuid.UUID) error {
	if _, err := s.GetUser(ctx, m.UserID); err != nil {
		if err == ErrNotFound {
			return fmt.Errorf("user %s: %w", m.UserID, ErrReferenceNotFound)
		}
		return err
	}
	if _, err := s.GetGroup(ctx, m.GroupID); err != nil {
		if err == ErrNotFound {
			return fmt.Errorf("group %s: %w", m.GroupID, ErrReferenceNotFound)
		}
		return err
	}
	prepareInsert(&m.Entity, actorID)

	query := `
		INSERT INTO memberships (id, user_id, group_id, startdate, enddate, valid,
			created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.GroupID, m.StartDate, m.EndDate, m.Valid,
		m.Created, m.CreatedBy, m.Lastchange, m.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// GetMembership retrieves a membership by id
func (s *Store) GetMembership(ctx context.Context, id uuid.UUID) (*Membership, error) {
	query := `
		SELECT id, user_id, group_id, startdate, enddate, valid,
			created, createdby, lastchange, changedby
		FROM memberships WHERE id = $1
	`
	m := &Membership{}
	var startDate, endDate sql.NullTime
	var createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.UserID, &m.GroupID, &startDate, &endDate, &m.Valid,
		&m.Created, &createdBy, &m.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.StartDate = nullTimePtr(startDate)
	m.EndDate = nullTimePtr(endDate)
	m.CreatedBy = nullUUIDPtr(createdBy)
	m.ChangedBy = nullUUIDPtr(changedBy)
	return m, nil
}

// MembershipGroupIDs returns the ids of groups the user is a valid member of
func (s *Store) MembershipGroupIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT group_id FROM memberships WHERE user_id = $1 AND valid = $2`
	rows, err := s.db.QueryContext(ctx, query, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership groups: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateMembership updates a membership guarded by the lastchange token.
func (s *Store) UpdateMembership(ctx context.Context, m *Membership, actorID *uuid.UUID) error {
	token := m.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE memberships SET startdate = $1, enddate = $2, valid = $3,
			lastchange = $4, changedby = $5
		WHERE id = $6 AND lastchange = $7
	`
	err := s.casUpdate(ctx, "memberships", query, m.ID,
		m.StartDate, m.EndDate, m.Valid, newChange, actorID, m.ID, token)
	if err != nil {
		return err
	}
	m.Lastchange = newChange
	m.ChangedBy = actorID
	return nil
}

// DeleteMembership deletes a membership by id
func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "memberships", id)
}

// --- Roles ---

// CreateRole inserts a new role. The rbacobject column is always stamped with
// the group id so grants stay scoped to the group they were made on.
func (s *Store) CreateRole(ctx context.Context, r *Role, actorID *uuid.UUID) error {
	if _, err := s.GetUser(ctx, r.UserID); err != nil {
		if err == ErrNotFound {
			return fmt.Errorf("user %s: %w", r.UserID, ErrReferenceNotFound)
		}
		return err
	}
	if _, err := s.GetGroup(ctx, r.GroupID); err != nil {
		if err == ErrNotFound {
			return fmt.Errorf("group %s: %w", r.GroupID, ErrReferenceNotFound)
		}
		return err
	}
	if _, err := s.GetRoleType(ctx, r.RoleTypeID); err != nil {
		if err == ErrNotFound {
			return fmt.Errorf("role type %s: %w", r.RoleTypeID, ErrReferenceNotFound)
		}
		return err
	}
	prepareInsert(&r.Entity, actorID)
	groupID := r.GroupID
	r.RBACObjectID = &groupID

	query := `
		INSERT INTO roles (id, user_id, group_id, roletype_id, startdate, enddate, valid,
			rbacobject, created, createdby, lastchange, changedby)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.UserID, r.GroupID, r.RoleTypeID, r.StartDate, r.EndDate, r.Valid,
		r.RBACObjectID, r.Created, r.CreatedBy, r.Lastchange, r.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetRole retrieves a role by id
func (s *Store) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	query := `
		SELECT id, user_id, group_id, roletype_id, startdate, enddate, valid,
			rbacobject, created, createdby, lastchange, changedby
		FROM roles WHERE id = $1
	`
	r := &Role{}
	var startDate, endDate sql.NullTime
	var rbacObject, createdBy, changedBy uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.UserID, &r.GroupID, &r.RoleTypeID, &startDate, &endDate, &r.Valid,
		&rbacObject, &r.Created, &createdBy, &r.Lastchange, &changedBy)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	r.StartDate = nullTimePtr(startDate)
	r.EndDate = nullTimePtr(endDate)
	r.RBACObjectID = nullUUIDPtr(rbacObject)
	r.CreatedBy = nullUUIDPtr(createdBy)
	r.ChangedBy = nullUUIDPtr(changedBy)
	return r, nil
}

// ListRolesByGroupIDs returns roles granted on any of the given groups that
// are valid at the time of the call, each annotated with its role type. A role
// whose date window excludes now is revoked even before the expiry sweep
// flips its valid flag. When filterUserID is non-nil only that user's roles
// are returned.
func (s *Store) ListRolesByGroupIDs(ctx context.Context, groupIDs []uuid.UUID, filterUserID *uuid.UUID) ([]*RoleWithType, error) {
	if len(groupIDs) == 0 {
		return []*RoleWithType{}, nil
	}

	args := make([]interface{}, 0, len(groupIDs)+4)
	for _, id := range groupIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.user_id, r.group_id, r.roletype_id, r.startdate, r.enddate, r.valid,
			r.rbacobject, r.created, r.createdby, r.lastchange, r.changedby,
			t.id, t.name, t.name_en, t.category_id, t.created, t.createdby, t.lastchange, t.changedby
		FROM roles r
		JOIN roletypes t ON t.id = r.roletype_id
		WHERE r.group_id IN (%s) AND r.valid = $%d
			AND (r.startdate IS NULL OR r.startdate <= $%d)
			AND (r.enddate IS NULL OR r.enddate >= $%d)
	`, placeholders(1, len(groupIDs)), len(groupIDs)+1, len(groupIDs)+2, len(groupIDs)+3)
	now := time.Now().UTC()
	args = append(args, true, now, now)

	if filterUserID != nil {
		query += fmt.Sprintf(" AND r.user_id = $%d", len(args)+1)
		args = append(args, *filterUserID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*RoleWithType, 0)
	for rows.Next() {
		rwt := &RoleWithType{}
		var startDate, endDate sql.NullTime
		var rbacObject, rCreatedBy, rChangedBy uuid.NullUUID
		var tCategoryID, tCreatedBy, tChangedBy uuid.NullUUID
		if err := rows.Scan(
			&rwt.ID, &rwt.UserID, &rwt.GroupID, &rwt.RoleTypeID, &startDate, &endDate, &rwt.Valid,
			&rbacObject, &rwt.Created, &rCreatedBy, &rwt.Lastchange, &rChangedBy,
			&rwt.Type.ID, &rwt.Type.Name, &rwt.Type.NameEn, &tCategoryID,
			&rwt.Type.Created, &tCreatedBy, &rwt.Type.Lastchange, &tChangedBy); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		rwt.StartDate = nullTimePtr(startDate)
		rwt.EndDate = nullTimePtr(endDate)
		rwt.RBACObjectID = nullUUIDPtr(rbacObject)
		rwt.CreatedBy = nullUUIDPtr(rCreatedBy)
		rwt.ChangedBy = nullUUIDPtr(rChangedBy)
		rwt.Type.CategoryID = nullUUIDPtr(tCategoryID)
		rwt.Type.CreatedBy = nullUUIDPtr(tCreatedBy)
		rwt.Type.ChangedBy = nullUUIDPtr(tChangedBy)
		roles = append(roles, rwt)
	}
	return roles, rows.Err()
}

// UpdateRole updates a role guarded by the lastchange token.
func (s *Store) UpdateRole(ctx context.Context, r *Role, actorID *uuid.UUID) error {
	token := r.Lastchange
	newChange := time.Now().UTC()

	query := `
		UPDATE roles SET startdate = $1, enddate = $2, valid = $3,
			lastchange = $4, changedby = $5
		WHERE id = $6 AND lastchange = $7
	`
	err := s.casUpdate(ctx, "roles", query, r.ID,
		r.StartDate, r.EndDate, r.Valid, newChange, actorID, r.ID, token)
	if err != nil {
		return err
	}
	r.Lastchange = newChange
	r.ChangedBy = actorID
	return nil
}

// DeleteRole deletes a role by id
func (s *Store) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return s.deleteRow(ctx, "roles", id)
}

// ExpireRoles invalidates roles whose end date passed. Returns the number of
// roles invalidated.
func (s *Store) ExpireRoles(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE roles SET valid = $1, lastchange = $2
		WHERE valid = $3 AND enddate IS NOT NULL AND enddate < $4
	`
	result, err := s.db.ExecContext(ctx, query, false, now.UTC(), true, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire roles: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func nullUUIDPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func nullTimePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
