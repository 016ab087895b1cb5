package terminal

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

// Relay drives the door lock. Pulse energises the relay for hold and
// releases it.
type Relay interface {
	Pulse(ctx context.Context, hold time.Duration) error
}

// Display drives the terminal screen.
type Display interface {
	ShowImage(ctx context.Context, name string, timeout time.Duration) error
	ShowText(ctx context.Context, text string, timeout time.Duration) error
}

// Speaker plays a named audio resource.
type Speaker interface {
	Play(ctx context.Context, name string) error
}

// ExecRelay pulses the relay through a shell command, the way embedded
// images expose GPIO (a gpioset/relayctl utility). The hold duration
// in whole seconds is appended as the last argument.
type ExecRelay struct {
	command string
	logger  *logging.Logger
}

func NewExecRelay(command string, logger *logging.Logger) *ExecRelay {
	return &ExecRelay{command: command, logger: logger.With("component", "relay")}
}

func (r *ExecRelay) Pulse(ctx context.Context, hold time.Duration) error {
	seconds := int(hold / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	r.logger.Info("pulsing relay", "hold_seconds", seconds)

	cmd := fmt.Sprintf("%s %d", r.command, seconds)
	//nolint:gosec // command comes from the bootstrap config, not the wire
	if err := exec.CommandContext(ctx, "sh", "-c", cmd).Run(); err != nil {
		return fmt.Errorf("pulsing relay: %w", err)
	}
	return nil
}

// ExecSpeaker plays audio through a shell command (typically aplay);
// the resource name is appended as the last argument.
type ExecSpeaker struct {
	command string
	logger  *logging.Logger
}

func NewExecSpeaker(command string, logger *logging.Logger) *ExecSpeaker {
	return &ExecSpeaker{command: command, logger: logger.With("component", "speaker")}
}

func (s *ExecSpeaker) Play(ctx context.Context, name string) error {
	s.logger.Info("playing audio", "name", name)

	cmd := fmt.Sprintf("%s %s", s.command, name)
	//nolint:gosec // command comes from the bootstrap config; the name is length- and charset-checked upstream
	if err := exec.CommandContext(ctx, "sh", "-c", cmd).Run(); err != nil {
		return fmt.Errorf("playing audio %s: %w", name, err)
	}
	return nil
}

// LogDisplay is a display driver that only logs. Used until a panel
// driver is wired in and on headless bench units.
type LogDisplay struct {
	logger *logging.Logger
}

func NewLogDisplay(logger *logging.Logger) *LogDisplay {
	return &LogDisplay{logger: logger.With("component", "display")}
}

func (d *LogDisplay) ShowImage(_ context.Context, name string, timeout time.Duration) error {
	d.logger.Info("showing image", "name", name, "timeout", timeout)
	return nil
}

func (d *LogDisplay) ShowText(_ context.Context, text string, timeout time.Duration) error {
	d.logger.Info("showing text", "text", text, "timeout", timeout)
	return nil
}
