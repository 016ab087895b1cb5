// Package confstore manages the terminal's mutable device configuration.
//
// The configuration is a single JSON document namespaced by group (base,
// ui, net, mqtt, face, access, sys) and persisted atomically on every
// accepted change. Keys are addressed by dotted path ("face.livenessVal").
//
// Writes go through per-key validators and a read-only policy: keys the
// device owns (version, restart count, hardware identity) cannot be
// changed remotely. A value that fails validation is still accepted when
// it equals the key's default, so a device can always recover from a bad
// persisted value by writing the default back.
//
// Change notification is listener-based: Subscribe registers a callback
// for one key, SubscribeAll for every key. Listeners fire only after the
// triggering write has been durably saved, and a panicking listener never
// affects other listeners or the writer.
package confstore
