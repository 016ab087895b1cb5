package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CredentialFilter controls which credentials a List query returns.
type CredentialFilter struct {
	Filter
	ID     string // optional: exact credential ID
	UserID string // optional: owning user
	Type   *int   // optional: credential type
	Status *int   // optional: status filter
}

// CredentialRepository defines the interface for credential
// persistence.
type CredentialRepository interface {
	Create(ctx context.Context, cred *Credential) error
	GetByID(ctx context.Context, id string) (*Credential, error)
	GetByTypeAndCode(ctx context.Context, credType int, code string) (*Credential, error)
	GetByUserID(ctx context.Context, userID string) ([]Credential, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteAll(ctx context.Context) error
	List(ctx context.Context, filter CredentialFilter) ([]Credential, int, error)
}

// SQLiteCredentialRepository implements CredentialRepository using
// SQLite.
type SQLiteCredentialRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCredentialRepository creates a new SQLite-backed credential
// repository.
func NewCredentialRepository(db *sql.DB) *SQLiteCredentialRepository {
	return &SQLiteCredentialRepository{db: db, now: time.Now}
}

// Create inserts a new credential. The ID is generated if empty; a
// caller-supplied ID that already exists returns ErrIDExists. The
// owning user must exist.
func (r *SQLiteCredentialRepository) Create(ctx context.Context, cred *Credential) error {
	id, err := resolveID(ctx, r.db, "ac_credential", cred.ID)
	if err != nil {
		return err
	}
	cred.ID = id

	extra, err := marshalExtra(cred.Extra)
	if err != nil {
		return err
	}

	var expiresAt any
	if cred.ExpiresAt > 0 {
		expiresAt = cred.ExpiresAt
	}

	now, parsed := nowRFC3339()
	cred.CreatedAt = parsed
	cred.UpdatedAt = parsed

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO ac_credential (id, userId, type, code, name, status, expires_at, extra, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.UserID, cred.Type, cred.Code, nullString(cred.Name),
		cred.Status, expiresAt, extra, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("creating credential: %w", err)
	}
	return nil
}

// GetByID retrieves a credential by its unique ID, regardless of
// status or expiry. This is the management path; verification goes
// through GetByTypeAndCode.
func (r *SQLiteCredentialRepository) GetByID(ctx context.Context, id string) (*Credential, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, userId, type, code, name, status, expires_at, extra, created_at, updated_at FROM ac_credential WHERE id = ?", id)
	return scanCredentialFrom(row)
}

// GetByTypeAndCode looks up the active, non-expired credential
// matching (type, code) for door verification. Disabled or expired
// rows are invisible here even though GetByID still returns them.
func (r *SQLiteCredentialRepository) GetByTypeAndCode(ctx context.Context, credType int, code string) (*Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, userId, type, code, name, status, expires_at, extra, created_at, updated_at
		 FROM ac_credential
		 WHERE type = ? AND code = ? AND status = ? AND (expires_at IS NULL OR expires_at >= ?)`,
		credType, code, StatusActive, r.now().Unix(),
	)
	return scanCredentialFrom(row)
}

// GetByUserID returns all credentials belonging to a user.
func (r *SQLiteCredentialRepository) GetByUserID(ctx context.Context, userID string) ([]Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, userId, type, code, name, status, expires_at, extra, created_at, updated_at FROM ac_credential WHERE userId = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing user credentials: %w", err)
	}
	defer rows.Close()
	return collectCredentials(rows)
}

// Delete removes a credential by ID.
func (r *SQLiteCredentialRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ac_credential WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// DeleteByUserID removes all of a user's credentials and returns how
// many were removed. Zero removals is not an error.
func (r *SQLiteCredentialRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ac_credential WHERE userId = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user credentials: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows, nil
}

// DeleteAll removes every credential.
func (r *SQLiteCredentialRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM ac_credential"); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// List returns a page of credentials matching the filter plus the
// total match count.
func (r *SQLiteCredentialRepository) List(ctx context.Context, filter CredentialFilter) ([]Credential, int, error) {
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
	if filter.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	where := buildWhere(conditions)

	total, err := countWhere(ctx, r.db, "ac_credential", where, args)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from ? placeholders
		"SELECT id, userId, type, code, name, status, expires_at, extra, created_at, updated_at FROM ac_credential %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	creds, err := collectCredentials(rows)
	if err != nil {
		return nil, 0, err
	}
	return creds, total, nil
}

func collectCredentials(rows *sql.Rows) ([]Credential, error) {
	creds := []Credential{}
	for rows.Next() {
		c, err := scanCredentialFrom(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}
	return creds, nil
}

// scanCredentialFrom scans a credential from any scanner (Row or
// Rows).
func scanCredentialFrom(s scanner) (*Credential, error) {
	var c Credential
	var name, extra sql.NullString
	var expiresAt sql.NullInt64
	var createdAt, updatedAt string

	err := s.Scan(&c.ID, &c.UserID, &c.Type, &c.Code, &name,
		&c.Status, &expiresAt, &extra, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("scanning credential: %w", err)
	}

	c.Name = name.String
	if expiresAt.Valid {
		c.ExpiresAt = expiresAt.Int64
	}
	c.Extra = unmarshalExtra(extra)
	c.CreatedAt = parseStoredTime(createdAt)
	c.UpdatedAt = parseStoredTime(updatedAt)

	return &c, nil
}
