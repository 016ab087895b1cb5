package protocol

import (
	"context"

	"github.com/doorpoint/terminal-core/internal/access"
	"github.com/doorpoint/terminal-core/internal/confstore"
	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

// Controller executes the hardware side of remote control commands.
// Drivers live outside this package; the protocol layer only validates
// and delegates.
type Controller interface {
	Restart(ctx context.Context) error
	OpenDoor(ctx context.Context) error
	FactoryReset(ctx context.Context) error
	PlayAudio(ctx context.Context, name string) error
	ShowImage(ctx context.Context, name string, timeoutSec int) error
	ShowText(ctx context.Context, text string, timeoutSec int) error
}

// Upgrader is the slice of the upgrade coordinator the protocol needs.
type Upgrader interface {
	Busy() bool
	Firmware(ctx context.Context, url, md5 string) error
	Resource(ctx context.Context, name string, mode int) error
}

// Service implements the sixteen management commands over the access
// repositories, the config store, the controller and the upgrader.
type Service struct {
	users       access.UserRepository
	credentials access.CredentialRepository
	permissions access.PermissionRepository
	store       *confstore.Store
	controller  Controller
	upgrader    Upgrader
	logger      *logging.Logger
}

// Deps collects the service's collaborators.
type Deps struct {
	Users       access.UserRepository
	Credentials access.CredentialRepository
	Permissions access.PermissionRepository
	Store       *confstore.Store
	Controller  Controller
	Upgrader    Upgrader
	Logger      *logging.Logger
}

// NewService wires the command handlers into a dispatcher. It fails if
// any command name collides, which would mean a programming error in
// the table below.
func NewService(d *Dispatcher, deps Deps) (*Service, error) {
	s := &Service{
		users:       deps.Users,
		credentials: deps.Credentials,
		permissions: deps.Permissions,
		store:       deps.Store,
		controller:  deps.Controller,
		upgrader:    deps.Upgrader,
		logger:      deps.Logger.With("component", "protocol"),
	}

	commands := map[string]Handler{
		"insertUser": s.handleInsertUser,
		"delUser":    s.handleDelUser,
		"clearUser":  s.handleClearUser,
		"getUser":    s.handleGetUser,

		"insertKey": s.handleInsertKey,
		"delKey":    s.handleDelKey,
		"clearKey":  s.handleClearKey,
		"getKey":    s.handleGetKey,

		"insertPermission": s.handleInsertPermission,
		"delPermission":    s.handleDelPermission,
		"clearPermission":  s.handleClearPermission,
		"getPermission":    s.handleGetPermission,

		"getConfig": s.handleGetConfig,
		"setConfig": s.handleSetConfig,

		"control":         s.handleControl,
		"upgradeFirmware": s.handleUpgradeFirmware,
	}

	for name, handler := range commands {
		if err := d.Register(name, handler); err != nil {
			return nil, err
		}
	}
	return s, nil
}
