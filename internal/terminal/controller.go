package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/doorpoint/terminal-core/internal/access"
	"github.com/doorpoint/terminal-core/internal/confstore"
	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
	"github.com/doorpoint/terminal-core/internal/upgrade"
)

// defaultRelayHold matches the access.relayTime factory default.
const defaultRelayHold = 2 * time.Second

// restartDelay gives the restart reply time to reach the broker before
// the process goes down.
const restartDelay = time.Second

// resourceChecker reports whether a named user resource is installed.
// Satisfied by upgrade.DirResourceStore; nil skips the check.
type resourceChecker interface {
	Has(name string) bool
}

// Controller executes the remote control commands against the
// terminal's hardware and state.
type Controller struct {
	relay     Relay
	display   Display
	speaker   Speaker
	store     *confstore.Store
	users     access.UserRepository
	rebooter  upgrade.Rebooter
	resources resourceChecker
	logger    *logging.Logger
}

// ControllerConfig collects the controller's collaborators.
type ControllerConfig struct {
	Relay     Relay
	Display   Display
	Speaker   Speaker
	Store     *confstore.Store
	Users     access.UserRepository
	Rebooter  upgrade.Rebooter
	Resources resourceChecker
	Logger    *logging.Logger
}

func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		relay:     cfg.Relay,
		display:   cfg.Display,
		speaker:   cfg.Speaker,
		store:     cfg.Store,
		users:     cfg.Users,
		rebooter:  cfg.Rebooter,
		resources: cfg.Resources,
		logger:    cfg.Logger.With("component", "terminal"),
	}
}

// Restart schedules a reboot. The handler's reply is published before
// the delay elapses.
func (c *Controller) Restart(context.Context) error {
	c.logger.Info("remote restart requested")
	c.rebooter.Reboot(restartDelay)
	return nil
}

// OpenDoor pulses the relay for the configured access.relayTime.
func (c *Controller) OpenDoor(ctx context.Context) error {
	return c.relay.Pulse(ctx, c.relayHold())
}

// FactoryReset wipes the user database (credentials and permissions
// cascade), restores the configuration to factory defaults keeping the
// device identity, and reboots.
func (c *Controller) FactoryReset(ctx context.Context) error {
	c.logger.Warn("factory reset requested")

	if err := c.users.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing user database: %w", err)
	}
	if err := c.store.Reset(); err != nil {
		return fmt.Errorf("resetting configuration: %w", err)
	}

	c.rebooter.Reboot(restartDelay)
	return nil
}

// PlayAudio plays an installed audio resource.
func (c *Controller) PlayAudio(ctx context.Context, name string) error {
	if c.resources != nil && !c.resources.Has(name) {
		return fmt.Errorf("audio resource %s is not installed", name)
	}
	return c.speaker.Play(ctx, name)
}

// ShowImage displays an installed image resource for timeoutSec
// seconds (0 means the driver default).
func (c *Controller) ShowImage(ctx context.Context, name string, timeoutSec int) error {
	if c.resources != nil && !c.resources.Has(name) {
		return fmt.Errorf("image resource %s is not installed", name)
	}
	return c.display.ShowImage(ctx, name, time.Duration(timeoutSec)*time.Second)
}

// ShowText displays free text for timeoutSec seconds.
func (c *Controller) ShowText(ctx context.Context, text string, timeoutSec int) error {
	return c.display.ShowText(ctx, text, time.Duration(timeoutSec)*time.Second)
}

// relayHold reads access.relayTime, falling back to the factory value
// if the stored one is unusable.
func (c *Controller) relayHold() time.Duration {
	v, ok := c.store.Get("access.relayTime")
	if !ok {
		return defaultRelayHold
	}
	seconds, ok := v.(float64)
	if !ok || seconds <= 0 {
		return defaultRelayHold
	}
	return time.Duration(seconds * float64(time.Second))
}
