package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAccessEvent writes one access-decision measurement.
//
// This is the primary telemetry call: one point per decision, tagged for
// cheap per-door and per-method aggregation. The write is non-blocking;
// data is batched and sent asynchronously.
//
// Parameters:
//   - door: Door identifier the decision applied to
//   - method: How the credential was presented (e.g. "face", "card", "password")
//   - result: Decision outcome (1 success, 0 fail, -1 deny)
//   - userID: Matched user, empty when the credential was unknown
//
// Example:
//
//	client.WriteAccessEvent(1, "face", 1, "0e317a9c...")
func (c *Client) WriteAccessEvent(door int, method string, result int, userID string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"access_decision",
		map[string]string{
			"door":   strconv.Itoa(door),
			"method": method,
			"result": strconv.Itoa(result),
		},
		map[string]interface{}{
			"count":   1,
			"user_id": userID,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandMetric records one handled management command.
//
// Used to track provisioning traffic per command name and result code.
//
// Parameters:
//   - command: Command name (e.g. "insertUser")
//   - code: Protocol result code of the reply ("000000", "100000", "100001")
//   - durationMS: Handler execution time in milliseconds
func (c *Client) WriteCommandMetric(command string, code string, durationMS float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command",
		map[string]string{
			"command": command,
			"code":    code,
		},
		map[string]interface{}{
			"duration_ms": durationMS,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"device": "lobby-door"},
//	    map[string]interface{}{"uptime_s": 86400.0})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed records).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
