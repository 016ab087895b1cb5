package access

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the access-control
// schema applied. The database file is cleaned up when the test
// completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "access-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE ac_user (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT,
			email TEXT,
			department TEXT,
			position TEXT,
			status INTEGER NOT NULL DEFAULT 1,
			extra TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE ac_credential (
			id TEXT PRIMARY KEY,
			userId TEXT NOT NULL,
			type INTEGER NOT NULL,
			code TEXT NOT NULL,
			name TEXT,
			status INTEGER NOT NULL DEFAULT 1,
			expires_at INTEGER,
			extra TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (userId) REFERENCES ac_user(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_ac_credential_user ON ac_credential(userId);
		CREATE INDEX idx_ac_credential_lookup ON ac_credential(type, code, status);

		CREATE TABLE ac_permission (
			id TEXT PRIMARY KEY,
			userId TEXT NOT NULL,
			door INTEGER NOT NULL,
			timeType INTEGER NOT NULL,
			beginTime INTEGER NOT NULL DEFAULT 0,
			endTime INTEGER NOT NULL DEFAULT 0,
			repeatBeginTime INTEGER,
			repeatEndTime INTEGER,
			period TEXT,
			status INTEGER NOT NULL DEFAULT 1,
			extra TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (userId) REFERENCES ac_user(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_ac_permission_user ON ac_permission(userId, door, status);

		CREATE TABLE ac_access_record (
			id TEXT PRIMARY KEY,
			credentialId TEXT,
			permissionId TEXT,
			userId TEXT NOT NULL,
			door INTEGER NOT NULL,
			accessTime INTEGER NOT NULL,
			result INTEGER NOT NULL,
			method TEXT,
			extra TEXT,
			message TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (credentialId) REFERENCES ac_credential(id) ON DELETE SET NULL,
			FOREIGN KEY (permissionId) REFERENCES ac_permission(id) ON DELETE SET NULL,
			FOREIGN KEY (userId) REFERENCES ac_user(id) ON DELETE CASCADE
		) STRICT;

		CREATE INDEX idx_ac_access_record_user ON ac_access_record(userId);
		CREATE INDEX idx_ac_access_record_time ON ac_access_record(accessTime);
		CREATE INDEX idx_ac_access_record_door ON ac_access_record(door, result);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying access migration: %v", err)
	}

	return db
}

// seedTestUser inserts an active user and returns it.
func seedTestUser(t *testing.T, db *sql.DB, name string) *User {
	t.Helper()

	repo := NewUserRepository(db)
	user := &User{Name: name, Status: StatusActive}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", name, err)
	}
	return user
}

// seedTestCredential inserts an active card credential for the user.
func seedTestCredential(t *testing.T, db *sql.DB, userID, code string) *Credential {
	t.Helper()

	repo := NewCredentialRepository(db)
	cred := &Credential{
		UserID: userID,
		Type:   CredentialTypeCard,
		Code:   code,
		Status: StatusActive,
	}
	if err := repo.Create(context.Background(), cred); err != nil {
		t.Fatalf("creating test credential %s: %v", code, err)
	}
	return cred
}

// seedTestPermission inserts an active always-valid permission for the
// user on door 1.
func seedTestPermission(t *testing.T, db *sql.DB, userID string) *Permission {
	t.Helper()

	repo := NewPermissionRepository(db)
	perm := &Permission{
		UserID:   userID,
		Door:     1,
		TimeType: TimeTypeAlways,
		Status:   StatusActive,
	}
	if err := repo.Create(context.Background(), perm); err != nil {
		t.Fatalf("creating test permission: %v", err)
	}
	return perm
}
