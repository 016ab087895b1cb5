package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// defaultReconnectInitial is the first reconnect delay.
	defaultReconnectInitial = 1 * time.Second

	// defaultReconnectMax is the ceiling for reconnect backoff.
	defaultReconnectMax = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Config contains the broker connection settings for the terminal's
// management channel. These values come from the "mqtt" group of the
// device configuration, so the backend can repoint a deployed terminal
// at a different broker via setConfig.
type Config struct {
	// Addr is the broker address including scheme, e.g. "mqtt://host:1883",
	// "tcp://host:1883" or "ssl://host:8883".
	Addr string

	// ClientID identifies this terminal to the broker. Usually the
	// device UUID.
	ClientID string

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// QoS is the quality-of-service level for command and event traffic.
	QoS int

	// CleanSession starts each connection without broker-side session state.
	CleanSession bool

	// WillTopic, when set, registers a Last Will message so the backend
	// receives an offline event if the terminal disconnects unexpectedly.
	WillTopic string

	// ReconnectInitial and ReconnectMax bound the reconnect backoff.
	// Zero values fall back to 1s / 60s.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// buildClientOptions creates paho MQTT options from the device config.
//
// This configures:
//   - Broker URL (the "mqtt://" prefix used by provisioning tools is
//     normalised to "tcp://")
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (for "ssl://" addresses)
//   - Last Will registration (offline event)
func buildClientOptions(cfg Config) (*pahomqtt.ClientOptions, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: broker address is empty", ErrConnectionFailed)
	}
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}

	opts := pahomqtt.NewClientOptions()

	// Broker URL. Provisioned configs use the mqtt:// scheme; paho wants tcp://.
	addr := cfg.Addr
	if strings.HasPrefix(addr, "mqtt://") {
		addr = "tcp://" + strings.TrimPrefix(addr, "mqtt://")
	}
	opts.AddBroker(addr)

	// Client identification
	opts.SetClientID(cfg.ClientID)

	// Authentication (if credentials provided)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(cfg.CleanSession)

	// Auto-reconnect with exponential backoff
	initial := cfg.ReconnectInitial
	if initial <= 0 {
		initial = defaultReconnectInitial
	}
	max := cfg.ReconnectMax
	if max <= 0 {
		max = defaultReconnectMax
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(initial)
	opts.SetMaxReconnectInterval(max)

	// Connection timeout
	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	// TLS configuration for ssl:// addresses
	if strings.HasPrefix(addr, "ssl://") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	// Last Will: the broker publishes this if the terminal vanishes without
	// a clean disconnect, so the backend can mark the door offline.
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, buildOfflinePayload(cfg.ClientID, "unexpected_disconnect"), byte(cfg.QoS), false)
	}

	return opts, nil
}

// buildOfflinePayload creates the JSON payload for offline events.
func buildOfflinePayload(clientID, reason string) string {
	return fmt.Sprintf(
		`{"status":"offline","uuid":"%s","reason":"%s","timestamp":"%s"}`,
		clientID,
		reason,
		time.Now().UTC().Format(time.RFC3339),
	)
}
