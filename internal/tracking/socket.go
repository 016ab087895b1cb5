package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

// SocketRecognizer adapts an out-of-process recognition engine to the
// Recognizer interface. The engine connects to a unix socket and
// streams JSON match objects ({"userId": ..., "score": ...}); only the
// newest unconsumed match is kept, because the loop cares about who is
// in frame now, not the backlog.
type SocketRecognizer struct {
	listener net.Listener
	logger   *logging.Logger

	mu      sync.Mutex
	latest  Match
	pending bool
}

// NewSocketRecognizer listens on the given unix socket path, replacing
// a stale socket left by a previous run.
func NewSocketRecognizer(path string, logger *logging.Logger) (*SocketRecognizer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on recognizer socket: %w", err)
	}

	r := &SocketRecognizer{
		listener: listener,
		logger:   logger.With("component", "recognizer"),
	}
	go r.acceptLoop()
	return r, nil
}

// Poll returns the newest match since the last call.
func (r *SocketRecognizer) Poll() (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pending {
		return Match{}, false
	}
	r.pending = false
	return r.latest, true
}

// Close stops accepting engine connections.
func (r *SocketRecognizer) Close() error {
	return r.listener.Close()
}

func (r *SocketRecognizer) acceptLoop() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				r.logger.Error("recognizer socket accept failed", "error", err)
			}
			return
		}
		r.logger.Info("recognition engine connected")
		go r.readLoop(conn)
	}
}

func (r *SocketRecognizer) readLoop(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	for {
		var msg struct {
			UserID string  `json:"userId"`
			Score  float64 `json:"score"`
		}
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				r.logger.Warn("recognition engine stream error", "error", err)
			}
			return
		}
		if msg.UserID == "" {
			continue
		}

		r.mu.Lock()
		r.latest = Match{UserID: msg.UserID, Score: msg.Score}
		r.pending = true
		r.mu.Unlock()
	}
}
