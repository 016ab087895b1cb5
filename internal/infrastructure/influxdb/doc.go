// Package influxdb provides optional time-series telemetry for the terminal.
//
// It wraps the official influxdb-client-go v2 library with the patterns used
// across this codebase for connection management, writing, and health checks.
//
// # Purpose
//
// This package handles time-series data for:
//   - Access-decision events (per door, method, and outcome)
//   - Management-command traffic (per command and result code)
//
// The authoritative audit trail is the local SQLite access-record table;
// InfluxDB is a convenience mirror for fleet dashboards and is disabled by
// default.
//
// # Usage
//
//	cfg := config.TelemetryConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "doors",
//	    Bucket:  "access",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteAccessEvent(1, "face", 1, userID)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
package influxdb
