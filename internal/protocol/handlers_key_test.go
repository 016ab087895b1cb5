package protocol

import (
	"fmt"
	"strings"
	"testing"
)

func (r *rig) addUser(t *testing.T, id, name string) {
	t.Helper()
	reply := r.send(t, "insertUser", []any{map[string]any{"id": id, "name": name}})
	if reply.Code != CodeOK {
		t.Fatalf("insertUser %s: code = %s data = %v", id, reply.Code, reply.Data)
	}
}

func TestInsertKeyHappyPath(t *testing.T) {
	r := newRig(t)
	r.addUser(t, "user-000001", "Alice")

	reply := r.send(t, "insertKey", []any{map[string]any{
		"keyId":  "key-00000001",
		"userId": "user-000001",
		"type":   1,
		"code":   "04a1b2c3",
	}})
	if reply.Code != CodeOK {
		t.Fatalf("code = %s data = %v", reply.Code, reply.Data)
	}
	if len(r.credentials.creds) != 1 {
		t.Fatalf("stored %d credentials", len(r.credentials.creds))
	}
	if r.credentials.creds[0].Status != 1 {
		t.Fatalf("status = %d, want active", r.credentials.creds[0].Status)
	}
}

func TestInsertKeyValidation(t *testing.T) {
	r := newRig(t)
	r.addUser(t, "user-000001", "Alice")

	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{
			name:   "missing type",
			record: map[string]any{"keyId": "key-00000001", "userId": "user-000001", "code": "04a1"},
			want:   "Missing required fields: keyId, userId, type, code",
		},
		{
			name:   "short keyId",
			record: map[string]any{"keyId": "k1", "userId": "user-000001", "type": 1, "code": "04a1"},
			want:   "Invalid keyId length: must be 6-128 characters",
		},
		{
			name:   "short userId",
			record: map[string]any{"keyId": "key-00000001", "userId": "u1", "type": 1, "code": "04a1"},
			want:   "Invalid userId length: must be 6-128 characters",
		},
		{
			name: "oversized code",
			record: map[string]any{
				"keyId": "key-00000001", "userId": "user-000001", "type": 1,
				"code": strings.Repeat("a", 2049),
			},
			want: "Invalid code length: must be 0-2048 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := r.send(t, "insertKey", []any{tt.record})
			if reply.Code != CodePartial {
				t.Fatalf("code = %s, want %s", reply.Code, CodePartial)
			}
			if reply.Data != "Some credentials failed to add: "+tt.want {
				t.Fatalf("data = %v", reply.Data)
			}
		})
	}
}

func TestInsertKeyBatchCap(t *testing.T) {
	r := newRig(t)

	batch := make([]any, 101)
	for i := range batch {
		batch[i] = map[string]any{
			"keyId":  fmt.Sprintf("key-%08d", i),
			"userId": "user-000001",
			"type":   1,
			"code":   "04a1",
		}
	}

	reply := r.send(t, "insertKey", batch)
	if reply.Code != CodePartial {
		t.Fatalf("code = %s, want %s", reply.Code, CodePartial)
	}
	if reply.Data != "Too many credentials: maximum 100 per request" {
		t.Fatalf("data = %v", reply.Data)
	}
	if len(r.credentials.creds) != 0 {
		t.Fatal("oversized batch must not be partially applied")
	}
}

func TestDelKeyRequiresSelector(t *testing.T) {
	r := newRig(t)

	reply := r.send(t, "delKey", map[string]any{})
	if reply.Code != CodeError {
		t.Fatalf("code = %s, want %s", reply.Code, CodeError)
	}
	if reply.Data != "Invalid parameter: at least one of keyIds or userIds must be provided" {
		t.Fatalf("data = %v", reply.Data)
	}
}

func TestDelKeyByUser(t *testing.T) {
	r := newRig(t)
	r.addUser(t, "user-000001", "Alice")
	r.addUser(t, "user-000002", "Bob")
	r.send(t, "insertKey", []any{
		map[string]any{"keyId": "key-00000001", "userId": "user-000001", "type": 1, "code": "a"},
		map[string]any{"keyId": "key-00000002", "userId": "user-000001", "type": 2, "code": "b"},
		map[string]any{"keyId": "key-00000003", "userId": "user-000002", "type": 1, "code": "c"},
	})

	reply := r.send(t, "delKey", map[string]any{"userIds": []string{"user-000001"}})
	if reply.Code != CodeOK {
		t.Fatalf("code = %s data = %v", reply.Code, reply.Data)
	}
	if len(r.credentials.creds) != 1 || r.credentials.creds[0].ID != "key-00000003" {
		t.Fatalf("remaining credentials = %v", r.credentials.creds)
	}
}

func TestGetKeyWireFieldNames(t *testing.T) {
	r := newRig(t)
	r.addUser(t, "user-000001", "Alice")
	r.send(t, "insertKey", []any{map[string]any{
		"keyId":      "key-00000001",
		"userId":     "user-000001",
		"type":       1,
		"code":       "04a1b2c3",
		"expires_at": 1893456000,
	}})

	reply := r.send(t, "getKey", map[string]any{"userId": "user-000001"})
	if reply.Code != CodeOK {
		t.Fatalf("code = %s data = %v", reply.Code, reply.Data)
	}
	data := dataMap(t, reply)
	content := data["content"].([]any)
	entry := content[0].(map[string]any)

	if entry["keyId"] != "key-00000001" {
		t.Fatalf("keyId = %v", entry["keyId"])
	}
	if entry["userId"] != "user-000001" {
		t.Fatalf("userId = %v", entry["userId"])
	}
	if entry["expires_at"] != float64(1893456000) {
		t.Fatalf("expires_at = %v", entry["expires_at"])
	}
}

func TestGetKeyFiltersByType(t *testing.T) {
	r := newRig(t)
	r.addUser(t, "user-000001", "Alice")
	r.send(t, "insertKey", []any{
		map[string]any{"keyId": "key-00000001", "userId": "user-000001", "type": 1, "code": "a"},
		map[string]any{"keyId": "key-00000002", "userId": "user-000001", "type": 2, "code": "b"},
	})

	reply := r.send(t, "getKey", map[string]any{"type": 2})
	data := dataMap(t, reply)
	if data["total"] != float64(1) {
		t.Fatalf("total = %v, want 1", data["total"])
	}
}
