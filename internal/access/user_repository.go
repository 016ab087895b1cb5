package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserFilter controls which users a List query returns.
type UserFilter struct {
	Filter
	Name   string // optional: substring match on name
	Status *int   // optional: status filter
}

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	List(ctx context.Context, filter UserFilter) ([]User, int, error)
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a new user. The ID is generated if empty; a
// caller-supplied ID that already exists returns ErrIDExists.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	id, err := resolveID(ctx, r.db, "ac_user", user.ID)
	if err != nil {
		return err
	}
	user.ID = id

	extra, err := marshalExtra(user.Extra)
	if err != nil {
		return err
	}

	now, parsed := nowRFC3339()
	user.CreatedAt = parsed
	user.UpdatedAt = parsed

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO ac_user (id, name, phone, email, department, position, status, extra, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, nullString(user.Phone), nullString(user.Email),
		nullString(user.Department), nullString(user.Position),
		user.Status, extra, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, phone, email, department, position, status, extra, created_at, updated_at FROM ac_user WHERE id = ?", id)
	return scanUserFrom(row)
}

// Update modifies a user's mutable fields.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	extra, err := marshalExtra(user.Extra)
	if err != nil {
		return err
	}

	now, parsed := nowRFC3339()
	user.UpdatedAt = parsed

	result, err := r.db.ExecContext(ctx,
		`UPDATE ac_user SET name = ?, phone = ?, email = ?, department = ?, position = ?, status = ?, extra = ?, updated_at = ? WHERE id = ?`,
		user.Name, nullString(user.Phone), nullString(user.Email),
		nullString(user.Department), nullString(user.Position),
		user.Status, extra, now, user.ID,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user; the foreign keys cascade the removal to the
// user's credentials, permissions, and access records.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ac_user WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteAll removes every user, cascading to all dependent rows.
func (r *SQLiteUserRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM ac_user"); err != nil {
		return fmt.Errorf("clearing users: %w", err)
	}
	return nil
}

// List returns a page of users matching the filter plus the total
// match count.
func (r *SQLiteUserRepository) List(ctx context.Context, filter UserFilter) ([]User, int, error) {
	limit, offset := filter.clamp()

	var conditions []string
	var args []any
	if filter.Name != "" {
		conditions = append(conditions, "name LIKE ?")
		args = append(args, "%"+filter.Name+"%")
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	where := buildWhere(conditions)

	total, err := countWhere(ctx, r.db, "ac_user", where, args)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from ? placeholders
		"SELECT id, name, phone, email, department, position, status, extra, created_at, updated_at FROM ac_user %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating users: %w", err)
	}
	return users, total, nil
}

// Count returns the total number of users.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ac_user").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var phone, email, department, position, extra sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Name, &phone, &email, &department, &position,
		&u.Status, &extra, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Phone = phone.String
	u.Email = email.String
	u.Department = department.String
	u.Position = position.String
	u.Extra = unmarshalExtra(extra)
	u.CreatedAt = parseStoredTime(createdAt)
	u.UpdatedAt = parseStoredTime(updatedAt)

	return &u, nil
}
