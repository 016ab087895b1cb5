package protocol

import "encoding/json"

// Reply codes used on the wire.
const (
	CodeOK      = "000000" // command succeeded
	CodeError   = "100000" // command failed
	CodePartial = "100001" // partial success or validation failure
)

// Request is an inbound command envelope. Data is left raw; each
// handler decodes the shape its command expects.
type Request struct {
	SerialNo string          `json:"serialNo"`
	UUID     string          `json:"uuid"`
	Time     int64           `json:"time"`
	Sign     string          `json:"sign"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Reply is an outbound envelope. UUID is always the device's own
// identity, not the requester's; the serial number ties the reply back
// to its request. On failure Data carries a diagnostic string.
type Reply struct {
	SerialNo string `json:"serialNo"`
	UUID     string `json:"uuid"`
	Time     int64  `json:"time"`
	Sign     string `json:"sign"`
	Code     string `json:"code"`
	Data     any    `json:"data,omitempty"`
}

// Event is an unsolicited device-to-backend message, such as the
// connect report carrying the configuration snapshot.
type Event struct {
	SerialNo string `json:"serialNo"`
	UUID     string `json:"uuid"`
	Time     int64  `json:"time"`
	Sign     string `json:"sign"`
	Data     any    `json:"data,omitempty"`
}
