package mqtt

import "fmt"

// Topic scheme for the device-management protocol, version 2.
//
// Commands arrive on per-device topics; replies and events are published on
// shared topics and correlated by the envelope's serialNo/uuid fields:
//
//	access_device/v2/cmd/{uuid}/{command}   backend -> device
//	access_device/v2/cmd/{command}_reply    device  -> backend
//	access_device/v2/event/connect          device  -> backend (config snapshot)
//	access_device/v2/event/offline          broker  -> backend (Last Will)
const (
	// TopicPrefixCmd is the base for command and reply topics.
	TopicPrefixCmd = "access_device/v2/cmd"

	// TopicPrefixEvent is the base for device event topics.
	TopicPrefixEvent = "access_device/v2/event"
)

// Topics provides builders for the management-protocol topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.Command("8f14e45fceea167a", "insertUser")
//	// Returns: "access_device/v2/cmd/8f14e45fceea167a/insertUser"
type Topics struct{}

// Command returns the inbound topic for one command addressed to a device.
//
// Example: access_device/v2/cmd/8f14e45fceea167a/insertUser
func (Topics) Command(uuid, name string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixCmd, uuid, name)
}

// Reply returns the shared reply topic for a command name.
// Replies carry the request's serialNo so the backend can correlate them.
//
// Example: access_device/v2/cmd/insertUser_reply
func (Topics) Reply(name string) string {
	return fmt.Sprintf("%s/%s_reply", TopicPrefixCmd, name)
}

// AllCommands returns a pattern matching every command topic for a device.
//
// Pattern: access_device/v2/cmd/{uuid}/+
func (Topics) AllCommands(uuid string) string {
	return fmt.Sprintf("%s/%s/+", TopicPrefixCmd, uuid)
}

// EventConnect returns the topic for the connect event, published with the
// full configuration snapshot each time the device (re)connects.
//
// Topic: access_device/v2/event/connect
func (Topics) EventConnect() string {
	return fmt.Sprintf("%s/connect", TopicPrefixEvent)
}

// EventOffline returns the default offline event topic, used as the Last
// Will unless the device configuration overrides mqtt.willTopic.
//
// Topic: access_device/v2/event/offline
func (Topics) EventOffline() string {
	return fmt.Sprintf("%s/offline", TopicPrefixEvent)
}

// EventAccess returns the topic for local access-decision notifications,
// published after each granted or denied passage so the backend can mirror
// the terminal's audit trail in near real time.
//
// Topic: access_device/v2/event/access
func (Topics) EventAccess() string {
	return fmt.Sprintf("%s/access", TopicPrefixEvent)
}
