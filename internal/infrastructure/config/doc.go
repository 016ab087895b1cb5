// Package config handles loading and validating the terminal's bootstrap
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The bootstrap file only describes process-local concerns: filesystem
// paths, database location, logging, and optional telemetry. The remotely
// mutable device configuration (broker address, face thresholds, relay
// time) lives in the confstore package instead.
//
// Security Considerations:
//   - Sensitive values (tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Name)
package config
