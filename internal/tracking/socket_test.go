package tracking

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

func dialRecognizer(t *testing.T, path string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dialing recognizer socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func pollUntil(t *testing.T, r *SocketRecognizer) Match {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if m, ok := r.Poll(); ok {
			return m
		}
		select {
		case <-deadline:
			t.Fatal("no match arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSocketRecognizerDeliversMatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognizer.sock")
	r, err := NewSocketRecognizer(path, logging.Default())
	if err != nil {
		t.Fatalf("NewSocketRecognizer: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	conn := dialRecognizer(t, path)
	if _, err := conn.Write([]byte(`{"userId":"user-000001","score":0.93}` + "\n")); err != nil {
		t.Fatalf("writing match: %v", err)
	}

	m := pollUntil(t, r)
	if m.UserID != "user-000001" || m.Score != 0.93 {
		t.Fatalf("match = %+v", m)
	}

	// Consumed; a second poll is empty.
	if _, ok := r.Poll(); ok {
		t.Fatal("match delivered twice")
	}
}

func TestSocketRecognizerKeepsNewestMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognizer.sock")
	r, err := NewSocketRecognizer(path, logging.Default())
	if err != nil {
		t.Fatalf("NewSocketRecognizer: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	conn := dialRecognizer(t, path)
	payload := `{"userId":"user-000001","score":0.80}` + "\n" +
		`{"userId":"user-000002","score":0.90}` + "\n"
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("writing matches: %v", err)
	}

	// Give the reader time to drain both messages.
	var m Match
	deadline := time.After(2 * time.Second)
	for {
		m = pollUntil(t, r)
		if m.UserID == "user-000002" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("newest match never arrived, got %+v", m)
		default:
		}
	}
}

func TestSocketRecognizerReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognizer.sock")

	first, err := NewSocketRecognizer(path, logging.Default())
	if err != nil {
		t.Fatalf("first listener: %v", err)
	}
	first.Close()

	second, err := NewSocketRecognizer(path, logging.Default())
	if err != nil {
		t.Fatalf("second listener after stale socket: %v", err)
	}
	second.Close()
}
