package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RecordFilter controls which access records a List query returns.
type RecordFilter struct {
	Filter
	UserID    string // optional: filter by user
	Door      *int   // optional: filter by door
	Result    *int   // optional: filter by decision result
	BeginTime int64  // optional: accessTime >= BeginTime when non-zero
	EndTime   int64  // optional: accessTime <= EndTime when non-zero
}

// AccessRecordRepository defines the interface for the audit trail.
// Records are write-once: there is no update or delete path beyond the
// user cascade.
type AccessRecordRepository interface {
	Create(ctx context.Context, rec *AccessRecord) error
	GetByID(ctx context.Context, id string) (*AccessRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]AccessRecord, int, error)
}

// SQLiteAccessRecordRepository implements AccessRecordRepository using
// SQLite.
type SQLiteAccessRecordRepository struct {
	db *sql.DB
}

// NewAccessRecordRepository creates a new SQLite-backed access record
// repository.
func NewAccessRecordRepository(db *sql.DB) *SQLiteAccessRecordRepository {
	return &SQLiteAccessRecordRepository{db: db}
}

// Create inserts a new access record. The ID is generated if empty.
func (r *SQLiteAccessRecordRepository) Create(ctx context.Context, rec *AccessRecord) error {
	id, err := resolveID(ctx, r.db, "ac_access_record", rec.ID)
	if err != nil {
		return err
	}
	rec.ID = id

	extra, err := marshalExtra(rec.Extra)
	if err != nil {
		return err
	}

	now, parsed := nowRFC3339()
	rec.CreatedAt = parsed

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO ac_access_record (id, credentialId, permissionId, userId, door, accessTime, result, method, extra, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.CredentialID), nullString(rec.PermissionID),
		rec.UserID, rec.Door, rec.AccessTime, rec.Result,
		nullString(rec.Method), extra, nullString(rec.Message), now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("creating access record: %w", err)
	}
	return nil
}

// GetByID retrieves an access record by its unique ID.
func (r *SQLiteAccessRecordRepository) GetByID(ctx context.Context, id string) (*AccessRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, credentialId, permissionId, userId, door, accessTime, result, method, extra, message, created_at FROM ac_access_record WHERE id = ?", id)
	return scanRecordFrom(row)
}

// List returns a page of access records matching the filter, most
// recent first, plus the total match count.
func (r *SQLiteAccessRecordRepository) List(ctx context.Context, filter RecordFilter) ([]AccessRecord, int, error) {
	limit, offset := filter.clamp()

	var conditions []string
	var args []any
	if filter.UserID != "" {
		conditions = append(conditions, "userId = ?")
		args = append(args, filter.UserID)
	}
	if filter.Door != nil {
		conditions = append(conditions, "door = ?")
		args = append(args, *filter.Door)
	}
	if filter.Result != nil {
		conditions = append(conditions, "result = ?")
		args = append(args, *filter.Result)
	}
	if filter.BeginTime > 0 {
		conditions = append(conditions, "accessTime >= ?")
		args = append(args, filter.BeginTime)
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "accessTime <= ?")
		args = append(args, filter.EndTime)
	}
	where := buildWhere(conditions)

	total, err := countWhere(ctx, r.db, "ac_access_record", where, args)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from ? placeholders
		"SELECT id, credentialId, permissionId, userId, door, accessTime, result, method, extra, message, created_at FROM ac_access_record %s ORDER BY accessTime DESC LIMIT ? OFFSET ?",
		where,
	)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing access records: %w", err)
	}
	defer rows.Close()

	records := []AccessRecord{}
	for rows.Next() {
		rec, err := scanRecordFrom(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating access records: %w", err)
	}
	return records, total, nil
}

// scanRecordFrom scans an access record from any scanner (Row or
// Rows).
func scanRecordFrom(s scanner) (*AccessRecord, error) {
	var rec AccessRecord
	var credentialID, permissionID, method, extra, message sql.NullString
	var createdAt string

	err := s.Scan(&rec.ID, &credentialID, &permissionID, &rec.UserID,
		&rec.Door, &rec.AccessTime, &rec.Result, &method, &extra,
		&message, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("scanning access record: %w", err)
	}

	rec.CredentialID = credentialID.String
	rec.PermissionID = permissionID.String
	rec.Method = method.String
	rec.Message = message.String
	rec.Extra = unmarshalExtra(extra)
	rec.CreatedAt = parseStoredTime(createdAt)

	return &rec, nil
}
