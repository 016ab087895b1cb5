package access

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page size bounds shared by all paginated queries. Pages are 0-based
// to match the management protocol.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Filter holds the pagination window common to all list queries.
// Entity-specific filters embed it.
type Filter struct {
	Page     int
	PageSize int
}

// clamp normalises the pagination window in place and returns the SQL
// LIMIT/OFFSET pair.
func (f *Filter) clamp() (limit, offset int) {
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if f.Page < 0 {
		f.Page = 0
	}
	return f.PageSize, f.Page * f.PageSize
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// generateID returns a fresh 32-character lowercase hex identifier.
func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// resolveID implements the pre-insert existence probe: a
// caller-supplied ID that already exists in table is a conflict, not a
// constraint violation, because backend-issued IDs may collide with
// device-generated ones. An empty ID is replaced with a fresh unique
// one.
func resolveID(ctx context.Context, db *sql.DB, table, id string) (string, error) {
	if id != "" {
		exists, err := idExists(ctx, db, table, id)
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrIDExists
		}
		return id, nil
	}

	for {
		id = generateID()
		exists, err := idExists(ctx, db, table, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
}

func idExists(ctx context.Context, db *sql.DB, table, id string) (bool, error) {
	// table is always one of the four ac_* constants, never user input.
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table) //nolint:gosec
	if err := db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("probing %s id: %w", table, err)
	}
	return count > 0, nil
}

// marshalExtra encodes the free-form extra attributes for a nullable
// TEXT column.
func marshalExtra(extra map[string]any) (any, error) {
	if extra == nil {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("marshalling extra: %w", err)
	}
	return string(b), nil
}

// unmarshalExtra decodes a nullable extra column; undecodable stored
// values are dropped rather than failing the whole row.
func unmarshalExtra(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var extra map[string]any
	if json.Unmarshal([]byte(raw.String), &extra) != nil {
		return nil
	}
	return extra
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64PtrFrom(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// nowRFC3339 returns the current UTC instant both formatted for
// storage and parsed back, so struct timestamps round-trip exactly.
func nowRFC3339() (string, time.Time) {
	s := time.Now().UTC().Format(time.RFC3339)
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // format is controlled
	return s, t
}

func parseStoredTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // format is controlled
	return t
}

// countWhere runs a COUNT(*) with a pre-assembled WHERE clause built
// from parameterised conditions.
func countWhere(ctx context.Context, db *sql.DB, table, where string, args []any) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", table, where) //nolint:gosec // WHERE built from ? placeholders
	var total int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return total, nil
}

// isForeignKeyViolation checks if a SQLite error is a FOREIGN KEY
// constraint violation, which on the ac_* tables means the referenced
// user does not exist.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func buildWhere(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}
