package access

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PermissionFilter controls which permissions a List query returns.
type PermissionFilter struct {
	Filter
	ID     string // optional: exact permission ID
	UserID string // optional: owning user
	Door   *int   // optional: door filter
	Status *int   // optional: status filter
}

// PermissionRepository defines the interface for permission
// persistence.
type PermissionRepository interface {
	Create(ctx context.Context, perm *Permission) error
	GetByID(ctx context.Context, id string) (*Permission, error)
	GetActiveByUserID(ctx context.Context, userID string) ([]Permission, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteAll(ctx context.Context) error
	List(ctx context.Context, filter PermissionFilter) ([]Permission, int, error)
}

// SQLitePermissionRepository implements PermissionRepository using
// SQLite.
type SQLitePermissionRepository struct {
	db *sql.DB
}

// NewPermissionRepository creates a new SQLite-backed permission
// repository.
func NewPermissionRepository(db *sql.DB) *SQLitePermissionRepository {
	return &SQLitePermissionRepository{db: db}
}

// Create inserts a new permission. The ID is generated if empty; a
// caller-supplied ID that already exists returns ErrIDExists. The
// owning user must exist. The weekly slot map is stored as JSON in the
// period column.
func (r *SQLitePermissionRepository) Create(ctx context.Context, perm *Permission) error {
	id, err := resolveID(ctx, r.db, "ac_permission", perm.ID)
	if err != nil {
		return err
	}
	perm.ID = id

	extra, err := marshalExtra(perm.Extra)
	if err != nil {
		return err
	}
	period, err := marshalPeriod(perm.WeekPeriod)
	if err != nil {
		return err
	}

	now, parsed := nowRFC3339()
	perm.CreatedAt = parsed
	perm.UpdatedAt = parsed

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO ac_permission (id, userId, door, timeType, beginTime, endTime, repeatBeginTime, repeatEndTime, period, status, extra, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		perm.ID, perm.UserID, perm.Door, perm.TimeType,
		perm.BeginTime, perm.EndTime,
		nullInt64(perm.RepeatBegin), nullInt64(perm.RepeatEnd),
		period, perm.Status, extra, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("creating permission: %w", err)
	}
	return nil
}

// GetByID retrieves a permission by its unique ID.
func (r *SQLitePermissionRepository) GetByID(ctx context.Context, id string) (*Permission, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, userId, door, timeType, beginTime, endTime, repeatBeginTime, repeatEndTime, period, status, extra, created_at, updated_at FROM ac_permission WHERE id = ?", id)
	return scanPermissionFrom(row)
}

// GetActiveByUserID returns a user's active permissions in persisted
// order, across every door. This is the decision-path query for a
// single-door terminal: disabled rows are invisible, door filtering is
// left to the caller if a multi-door variant ever needs it.
func (r *SQLitePermissionRepository) GetActiveByUserID(ctx context.Context, userID string) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, userId, door, timeType, beginTime, endTime, repeatBeginTime, repeatEndTime, period, status, extra, created_at, updated_at FROM ac_permission WHERE userId = ? AND status = ? ORDER BY created_at ASC",
		userID, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("listing user permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// Delete removes a permission by ID.
func (r *SQLitePermissionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ac_permission WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting permission: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// DeleteByUserID removes all of a user's permissions and returns how
// many were removed. Zero removals is not an error.
func (r *SQLitePermissionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ac_permission WHERE userId = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user permissions: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows, nil
}

// DeleteAll removes every permission.
func (r *SQLitePermissionRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM ac_permission"); err != nil {
		return fmt.Errorf("clearing permissions: %w", err)
	}
	return nil
}

// List returns a page of permissions matching the filter plus the
// total match count.
func (r *SQLitePermissionRepository) List(ctx context.Context, filter PermissionFilter) ([]Permission, int, error) {
	limit, offset := filter.clamp()

	var conditions []string
	var args []any
	if filter.ID != "" {
		conditions = append(conditions, "id = ?")
		args = append(args, filter.ID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "userId = ?")
		args = append(args, filter.UserID)
	}
	if filter.Door != nil {
		conditions = append(conditions, "door = ?")
		args = append(args, *filter.Door)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	where := buildWhere(conditions)

	total, err := countWhere(ctx, r.db, "ac_permission", where, args)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from ? placeholders
		"SELECT id, userId, door, timeType, beginTime, endTime, repeatBeginTime, repeatEndTime, period, status, extra, created_at, updated_at FROM ac_permission %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms, err := collectPermissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

func collectPermissions(rows *sql.Rows) ([]Permission, error) {
	perms := []Permission{}
	for rows.Next() {
		p, err := scanPermissionFrom(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return perms, nil
}

// scanPermissionFrom scans a permission from any scanner (Row or
// Rows).
func scanPermissionFrom(s scanner) (*Permission, error) {
	var p Permission
	var repeatBegin, repeatEnd sql.NullInt64
	var period, extra sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.UserID, &p.Door, &p.TimeType,
		&p.BeginTime, &p.EndTime, &repeatBegin, &repeatEnd,
		&period, &p.Status, &extra, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPermissionNotFound
		}
		return nil, fmt.Errorf("scanning permission: %w", err)
	}

	p.RepeatBegin = int64PtrFrom(repeatBegin)
	p.RepeatEnd = int64PtrFrom(repeatEnd)
	p.WeekPeriod = unmarshalPeriod(period)
	p.Extra = unmarshalExtra(extra)
	p.CreatedAt = parseStoredTime(createdAt)
	p.UpdatedAt = parseStoredTime(updatedAt)

	return &p, nil
}

func marshalPeriod(period map[string]string) (any, error) {
	if len(period) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(period)
	if err != nil {
		return nil, fmt.Errorf("marshalling week period: %w", err)
	}
	return string(b), nil
}

// unmarshalPeriod decodes the stored weekday slot map; an undecodable
// value yields nil, which the evaluator treats as no weekly grant.
func unmarshalPeriod(raw sql.NullString) map[string]string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var period map[string]string
	if json.Unmarshal([]byte(raw.String), &period) != nil {
		return nil
	}
	return period
}
