// Package protocol implements the device-management command protocol.
//
// The backend addresses a terminal on per-device MQTT topics
// (access_device/v2/cmd/{uuid}/{command}); the terminal replies on a
// shared per-command reply topic. Payloads are JSON envelopes carrying
// a serial number for correlation, the sender's uuid, a unix timestamp
// and a command-specific data field. Replies add a result code:
// "000000" success, "100000" error, "100001" partial success or
// validation failure.
//
// Dispatch is an explicit command->handler table built at startup;
// registering the same command twice fails construction. A payload
// that does not decode as an envelope gets no reply, because there is
// no serial number to correlate one with. A decodable envelope always
// gets exactly one reply, even if the handler panics.
package protocol
