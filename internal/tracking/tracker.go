// Package tracking runs the terminal's recognition loop: poll the
// recognizer, debounce repeated sightings, ask the access service for
// a decision, persist it, and drive the door/UI feedback.
//
// The recognizer and feedback sinks are hardware-specific and live
// behind interfaces; this package owns the cadence and the debounce
// policy between them.
package tracking

import (
	"context"
	"time"

	"github.com/doorpoint/terminal-core/internal/access"
	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

// Access methods stamped on recorded decisions.
const (
	MethodFace = "face"
	MethodCard = "card"
)

// DefaultInterval is the poll period when the config carries none.
// The recognizer produces track data far faster than the decision
// flow needs it; 100ms keeps the door responsive without hammering
// the database on an idle frame.
const DefaultInterval = 100 * time.Millisecond

// Match is one recognizer hit: a user the camera is confident about.
type Match struct {
	UserID string
	Score  float64
}

// Recognizer exposes the newest recognition result, if any. Poll must
// not block; returning false means no one is in frame right now.
type Recognizer interface {
	Poll() (Match, bool)
}

// Feedback receives the outcome of each decision so the relay, screen
// and speaker can react. Implementations decide what a grant or a
// denial looks like.
type Feedback interface {
	Granted(ctx context.Context, decision access.Decision)
	Denied(ctx context.Context, decision access.Decision)
}

// Decider is the slice of the access service the loop needs.
type Decider interface {
	DecideByUser(ctx context.Context, userID string) access.Decision
	Record(ctx context.Context, door int, method string, decision access.Decision) error
}

// Config collects the tracker's collaborators and tuning.
type Config struct {
	Recognizer Recognizer
	Feedback   Feedback
	Decider    Decider
	Debouncer  *access.Debouncer
	Door       int
	Interval   time.Duration
	Logger     *logging.Logger
}

// Tracker is the recognition loop.
type Tracker struct {
	recognizer Recognizer
	feedback   Feedback
	decider    Decider
	debouncer  *access.Debouncer
	door       int
	interval   time.Duration
	logger     *logging.Logger
	now        func() time.Time
}

// New creates a tracker. A nil debouncer gets the default window; a
// non-positive interval gets DefaultInterval; a zero door defaults
// to 1.
func New(cfg Config) *Tracker {
	if cfg.Debouncer == nil {
		cfg.Debouncer = access.NewDebouncer(access.DefaultDebounceWindow)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Door == 0 {
		cfg.Door = 1
	}
	return &Tracker{
		recognizer: cfg.Recognizer,
		feedback:   cfg.Feedback,
		decider:    cfg.Decider,
		debouncer:  cfg.Debouncer,
		door:       cfg.Door,
		interval:   cfg.Interval,
		logger:     cfg.Logger.With("component", "tracking"),
		now:        time.Now,
	}
}

// Run polls the recognizer until ctx is cancelled. It always returns
// nil; cancellation is the normal way to stop the loop.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("tracking loop started", "interval", t.interval, "door", t.door)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracking loop stopped")
			return nil
		case <-ticker.C:
			t.step(ctx)
		}
	}
}

// step processes at most one recognition hit.
func (t *Tracker) step(ctx context.Context) {
	match, ok := t.recognizer.Poll()
	if !ok {
		return
	}
	if !t.debouncer.Allow(match.UserID, t.now()) {
		return
	}

	decision := t.decider.DecideByUser(ctx, match.UserID)

	if err := t.decider.Record(ctx, t.door, MethodFace, decision); err != nil {
		// The decision still drives the door; a failed audit write
		// must not lock someone out.
		t.logger.Error("recording access decision", "user_id", match.UserID, "error", err)
	}

	if decision.Granted {
		t.feedback.Granted(ctx, decision)
	} else {
		t.logger.Info("access denied", "user_id", match.UserID, "reason", decision.Reason)
		t.feedback.Denied(ctx, decision)
	}
}
