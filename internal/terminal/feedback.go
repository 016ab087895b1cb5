package terminal

import (
	"context"
	"time"

	"github.com/doorpoint/terminal-core/internal/access"
	"github.com/doorpoint/terminal-core/internal/confstore"
	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
	"github.com/doorpoint/terminal-core/internal/infrastructure/mqtt"
)

// feedbackTextTimeout is how long grant/deny text stays on screen.
const feedbackTextTimeout = 3 * time.Second

// eventPublisher sends an unsolicited device event. Satisfied by the
// protocol dispatcher.
type eventPublisher interface {
	PublishEvent(topic string, data any) error
}

// accessEvent is the payload reported to the backend for each decision.
type accessEvent struct {
	UserID       string `json:"userId,omitempty"`
	Door         int    `json:"door"`
	Result       int    `json:"result"`
	Method       string `json:"method"`
	Reason       string `json:"reason,omitempty"`
	PermissionID string `json:"permissionId,omitempty"`
}

// Feedback turns access decisions into door, screen and backend
// effects: a grant pulses the relay and greets; both outcomes are
// reported on the access event topic.
type Feedback struct {
	relay   Relay
	display Display
	store   *confstore.Store
	events  eventPublisher
	topics  mqtt.Topics
	door    int
	method  string
	logger  *logging.Logger
}

// FeedbackConfig collects the feedback sink's collaborators.
type FeedbackConfig struct {
	Relay   Relay
	Display Display
	Store   *confstore.Store
	Events  eventPublisher
	Door    int
	Method  string
	Logger  *logging.Logger
}

func NewFeedback(cfg FeedbackConfig) *Feedback {
	if cfg.Door == 0 {
		cfg.Door = 1
	}
	return &Feedback{
		relay:   cfg.Relay,
		display: cfg.Display,
		store:   cfg.Store,
		events:  cfg.Events,
		door:    cfg.Door,
		method:  cfg.Method,
		logger:  cfg.Logger.With("component", "feedback"),
	}
}

// Granted opens the door, greets on screen, and reports the event.
func (f *Feedback) Granted(ctx context.Context, decision access.Decision) {
	if err := f.relay.Pulse(ctx, f.relayHold()); err != nil {
		f.logger.Error("relay pulse failed", "user_id", decision.UserID, "error", err)
	}
	if err := f.display.ShowText(ctx, f.greeting(), feedbackTextTimeout); err != nil {
		f.logger.Warn("greeting display failed", "error", err)
	}
	f.report(decision)
}

// Denied shows the refusal and reports the event. The relay stays shut.
func (f *Feedback) Denied(ctx context.Context, decision access.Decision) {
	if err := f.display.ShowText(ctx, "No access", feedbackTextTimeout); err != nil {
		f.logger.Warn("denial display failed", "error", err)
	}
	f.report(decision)
}

func (f *Feedback) report(decision access.Decision) {
	event := accessEvent{
		UserID: decision.UserID,
		Door:   f.door,
		Result: decision.Result,
		Method: f.method,
		Reason: decision.Reason,
	}
	if decision.Permission != nil {
		event.PermissionID = decision.Permission.ID
	}
	if err := f.events.PublishEvent(f.topics.EventAccess(), event); err != nil {
		f.logger.Warn("publishing access event", "error", err)
	}
}

// greeting is the configured success text (face.voiceSucCum).
func (f *Feedback) greeting() string {
	if v, ok := f.store.Get("face.voiceSucCum"); ok {
		if text, ok := v.(string); ok && text != "" {
			return text
		}
	}
	return "Welcome"
}

func (f *Feedback) relayHold() time.Duration {
	if v, ok := f.store.Get("access.relayTime"); ok {
		if seconds, ok := v.(float64); ok && seconds > 0 {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return defaultRelayHold
}
