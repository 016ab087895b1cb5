// Doorpoint Terminal Core
//
// Entry point for the unattended door-access terminal firmware core.
// The terminal runs fully offline: recognition, permission evaluation
// and the audit trail are all local. The MQTT management channel is
// used by the backend to provision users, credentials, permissions and
// configuration, and to push firmware upgrades.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/doorpoint/terminal-core/migrations"

	"github.com/doorpoint/terminal-core/internal/access"
	"github.com/doorpoint/terminal-core/internal/audit"
	"github.com/doorpoint/terminal-core/internal/confstore"
	"github.com/doorpoint/terminal-core/internal/infrastructure/config"
	"github.com/doorpoint/terminal-core/internal/infrastructure/database"
	"github.com/doorpoint/terminal-core/internal/infrastructure/influxdb"
	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
	"github.com/doorpoint/terminal-core/internal/infrastructure/mqtt"
	"github.com/doorpoint/terminal-core/internal/protocol"
	"github.com/doorpoint/terminal-core/internal/terminal"
	"github.com/doorpoint/terminal-core/internal/tracking"
	"github.com/doorpoint/terminal-core/internal/upgrade"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting doorpoint terminal core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and bring the schema current
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schemaVersion, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "schema", schemaVersion)

	// Load the mutable device configuration
	store, err := confstore.Load(cfg.Device.ConfigPath, log)
	if err != nil {
		return fmt.Errorf("loading device configuration: %w", err)
	}
	bumpRestartCount(store, log)

	deviceID := func() string {
		v, _ := store.Get("sys.uuid")
		id, _ := v.(string)
		return id
	}
	log.Info("device identity", "uuid", deviceID())

	// Access repositories and decision service
	userRepo := access.NewUserRepository(db.DB)
	credRepo := access.NewCredentialRepository(db.DB)
	permRepo := access.NewPermissionRepository(db.DB)
	recordRepo := access.NewAccessRecordRepository(db.DB)

	accessService := access.NewService(credRepo, permRepo, recordRepo, log)

	// Access-event telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.Telemetry.Enabled {
		influxClient, err = influxdb.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		accessService.SetTelemetry(influxClient)
		log.Info("telemetry enabled", "url", cfg.Telemetry.URL, "bucket", cfg.Telemetry.Bucket)
	}

	// Upgrade coordinator
	resources, err := upgrade.NewDirResourceStore(filepath.Join(cfg.Device.UpgradeDir, "resources"))
	if err != nil {
		return fmt.Errorf("preparing resource store: %w", err)
	}
	rebooter := upgrade.NewExecRebooter(cfg.Device.RebootCommand, log)
	coordinator := upgrade.New(cfg.Device.UpgradeDir, upgrade.NewHTTPDownloader(), rebooter, resources, log)

	// Hardware drivers and the control-command executor
	relay := terminal.NewExecRelay(cfg.Device.RelayCommand, log)
	speaker := terminal.NewExecSpeaker(cfg.Device.AudioCommand, log)
	display := terminal.NewLogDisplay(log)

	controller := terminal.NewController(terminal.ControllerConfig{
		Relay:     relay,
		Display:   display,
		Speaker:   speaker,
		Store:     store,
		Users:     userRepo,
		Rebooter:  rebooter,
		Resources: resources,
		Logger:    log,
	})

	// Management channel
	mqttClient, err := mqtt.Connect(brokerConfig(store, deviceID()))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	dispatcher := protocol.NewDispatcher(mqttClient, deviceID, log)
	dispatcher.SetAudit(audit.NewSQLiteRepository(db.DB))
	if _, err := protocol.NewService(dispatcher, protocol.Deps{
		Users:       userRepo,
		Credentials: credRepo,
		Permissions: permRepo,
		Store:       store,
		Controller:  controller,
		Upgrader:    coordinator,
		Logger:      log,
	}); err != nil {
		return fmt.Errorf("registering command handlers: %w", err)
	}
	dispatcher.Bind(mqttClient, brokerQoS(store), func() any { return store.GetAll() })
	log.Info("management channel ready", "commands", len(dispatcher.Commands()))

	// Recognition loop
	if cfg.Device.RecognizerSocket != "" {
		recognizer, recErr := tracking.NewSocketRecognizer(cfg.Device.RecognizerSocket, log)
		if recErr != nil {
			return fmt.Errorf("opening recognizer socket: %w", recErr)
		}
		defer recognizer.Close()

		feedback := terminal.NewFeedback(terminal.FeedbackConfig{
			Relay:   relay,
			Display: display,
			Store:   store,
			Events:  dispatcher,
			Method:  tracking.MethodFace,
			Logger:  log,
		})

		tracker := tracking.New(tracking.Config{
			Recognizer: recognizer,
			Feedback:   feedback,
			Decider:    accessService,
			Debouncer:  access.NewDebouncer(access.DefaultDebounceWindow),
			Interval:   cfg.GetTrackInterval(),
			Logger:     log,
		})
		go func() { _ = tracker.Run(ctx) }()
		log.Info("tracking loop running", "socket", cfg.Device.RecognizerSocket)
	} else {
		log.Info("tracking loop disabled (no recognizer socket configured)")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOORPOINT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOORPOINT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bumpRestartCount increments the device-owned boot counter. Failures
// are logged, never fatal; the counter is diagnostic.
func bumpRestartCount(store *confstore.Store, log *logging.Logger) {
	count := 0.0
	if v, ok := store.Get("base.restartCount"); ok {
		if n, ok := v.(float64); ok {
			count = n
		}
	}
	if err := store.SetSystem("base.restartCount", count+1); err != nil {
		log.Warn("updating restart counter", "error", err)
		return
	}
	log.Info("boot counter", "restarts", int(count)+1)
}

// brokerConfig assembles the MQTT connection settings from the "mqtt"
// group of the device configuration.
func brokerConfig(store *confstore.Store, clientID string) mqtt.Config {
	return mqtt.Config{
		Addr:         confString(store, "mqtt.addr"),
		ClientID:     clientID,
		Username:     confString(store, "mqtt.username"),
		Password:     confString(store, "mqtt.password"),
		QoS:          int(brokerQoS(store)),
		CleanSession: confNumber(store, "mqtt.cleanSession") != 0,
		WillTopic:    confString(store, "mqtt.willTopic"),
	}
}

func brokerQoS(store *confstore.Store) byte {
	qos := confNumber(store, "mqtt.qos")
	if qos < 0 || qos > 2 {
		return 1
	}
	return byte(qos)
}

func confString(store *confstore.Store, key string) string {
	v, _ := store.Get(key)
	s, _ := v.(string)
	return s
}

func confNumber(store *confstore.Store, key string) float64 {
	v, _ := store.Get(key)
	n, _ := v.(float64)
	return n
}

// healthCheck verifies the infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
