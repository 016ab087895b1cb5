package upgrade

import (
	"os/exec"
	"time"

	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

// ExecRebooter restarts the terminal by running the configured reboot
// command after the requested delay.
type ExecRebooter struct {
	command string
	logger  *logging.Logger
}

// NewExecRebooter returns a rebooter that shells out to command
// (typically "reboot").
func NewExecRebooter(command string, logger *logging.Logger) *ExecRebooter {
	return &ExecRebooter{command: command, logger: logger}
}

// Reboot schedules the reboot command. The delay runs on a timer so
// the caller can still publish its success reply before the restart.
func (r *ExecRebooter) Reboot(delay time.Duration) {
	r.logger.Info("reboot scheduled", "command", r.command, "delay", delay)
	time.AfterFunc(delay, func() {
		//nolint:gosec // command comes from the bootstrap config, not the wire
		if err := exec.Command("sh", "-c", r.command).Run(); err != nil {
			r.logger.Error("reboot command failed", "error", err)
		}
	})
}
