package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/doorpoint/terminal-core/internal/audit"
	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
	"github.com/doorpoint/terminal-core/internal/infrastructure/mqtt"
)

// auditTrail records each processed command. Satisfied by the audit
// repository; nil disables the trail.
type auditTrail interface {
	Create(ctx context.Context, entry *audit.Entry) error
}

// Publisher sends a JSON payload to a topic. *mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, payload []byte) error
}

// Handler processes one decoded command and returns the reply code
// plus optional data (result payload on success, diagnostic string on
// failure).
type Handler func(ctx context.Context, req *Request) (code string, data any)

// Dispatcher routes inbound command messages to registered handlers
// and publishes their replies.
type Dispatcher struct {
	handlers  map[string]Handler
	publisher Publisher
	deviceID  func() string
	topics    mqtt.Topics
	trail     auditTrail
	now       func() time.Time
	logger    *logging.Logger
}

// NewDispatcher creates an empty dispatcher. deviceID is called per
// message so a regenerated uuid takes effect without restart.
func NewDispatcher(publisher Publisher, deviceID func() string, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		handlers:  make(map[string]Handler),
		publisher: publisher,
		deviceID:  deviceID,
		now:       time.Now,
		logger:    logger.With("component", "protocol"),
	}
}

// SetAudit attaches the command audit trail. Each decoded command is
// recorded with the code it was answered with.
func (d *Dispatcher) SetAudit(trail auditTrail) {
	d.trail = trail
}

// Register binds a command name to its handler. Registering a name
// twice is a programming error and fails loudly at startup.
func (d *Dispatcher) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("protocol: invalid registration for %q", name)
	}
	if _, dup := d.handlers[name]; dup {
		return fmt.Errorf("protocol: command %q registered twice", name)
	}
	d.handlers[name] = h
	return nil
}

// Commands returns the registered command names.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}

// HandleMessage consumes one (topic, payload) pair from the transport.
// The command is the final topic segment. Undecodable payloads get no
// reply; there is no serial number to correlate one with.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) error {
	name := topic[strings.LastIndex(topic, "/")+1:]

	handler, ok := d.handlers[name]
	if !ok {
		d.logger.Warn("no handler for command", "topic", topic)
		return nil
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		d.logger.Warn("undecodable command payload", "topic", topic, "error", err)
		return nil
	}

	var code string
	var data any
	if req.SerialNo == "" || req.UUID == "" {
		code, data = CodeError, "Parameter error: missing required parameters"
	} else {
		code, data = d.invoke(handler, &req, name)
	}

	if d.trail != nil {
		entry := audit.Entry{Command: name, Code: code, SerialNo: req.SerialNo, Origin: req.UUID}
		if err := d.trail.Create(context.Background(), &entry); err != nil {
			d.logger.Warn("recording command audit entry", "command", name, "error", err)
		}
	}

	return d.publishReply(name, &req, code, data)
}

// invoke runs the handler with panic recovery so one bad command
// cannot take down the transport loop.
func (d *Dispatcher) invoke(handler Handler, req *Request, name string) (code string, data any) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command handler panicked", "command", name, "panic", r)
			code, data = CodeError, "Internal server error"
		}
	}()
	return handler(context.Background(), req)
}

func (d *Dispatcher) publishReply(name string, req *Request, code string, data any) error {
	reply := Reply{
		SerialNo: req.SerialNo,
		UUID:     d.deviceID(),
		Time:     d.now().Unix(),
		Code:     code,
		Data:     data,
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("encoding reply for %s: %w", name, err)
	}
	if err := d.publisher.PublishJSON(d.topics.Reply(name), payload); err != nil {
		return fmt.Errorf("publishing reply for %s: %w", name, err)
	}
	return nil
}

// PublishEvent sends an unsolicited device event, generating a fresh
// serial number (unix seconds plus three random digits).
func (d *Dispatcher) PublishEvent(topic string, data any) error {
	now := d.now()
	event := Event{
		SerialNo: fmt.Sprintf("%d%03d", now.Unix(), rand.Intn(1000)),
		UUID:     d.deviceID(),
		Time:     now.Unix(),
		Data:     data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := d.publisher.PublishJSON(topic, payload); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// Bind wires the dispatcher to an MQTT client: on every (re)connect it
// subscribes each registered command topic for this device and reports
// the full configuration snapshot on the connect event topic. The
// client connects before Bind can run, so the initial subscription
// happens inline rather than waiting for a reconnect.
func (d *Dispatcher) Bind(client *mqtt.Client, qos byte, snapshot func() any) {
	announce := func() {
		uuid := d.deviceID()
		for _, name := range d.Commands() {
			topic := d.topics.Command(uuid, name)
			if err := client.Subscribe(topic, qos, d.HandleMessage); err != nil {
				d.logger.Error("subscribing command topic", "topic", topic, "error", err)
			}
		}

		if err := d.PublishEvent(d.topics.EventConnect(), snapshot()); err != nil {
			d.logger.Error("publishing connect event", "error", err)
		}
	}

	client.SetOnConnect(announce)
	if client.IsConnected() {
		announce()
	}
}
