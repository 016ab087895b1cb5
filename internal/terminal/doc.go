// Package terminal implements the device-side effects behind the
// management protocol and the recognition loop: pulsing the door
// relay, driving the screen and speaker, restarting the unit, and
// reporting access events to the backend.
//
// Hardware access goes through small interfaces (Relay, Display,
// Speaker) so the same flow runs against GPIO-backed drivers on the
// terminal and fakes in tests. The shell-exec drivers here match how
// embedded images usually expose these peripherals (a gpio utility, a
// wav player).
package terminal
