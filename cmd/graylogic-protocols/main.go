// Gray Logic Protocols - device protocol support service
//
// This is the main entry point for the protocol service. It assembles the
// protocol support (codecs, authenticators, config schemas and device
// models per transport) and exposes it to devices over MQTT and to
// configuration tools over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/api"
	"github.com/nerrad567/gray-logic-protocols/internal/audit"
	"github.com/nerrad567/gray-logic-protocols/internal/device"
	"github.com/nerrad567/gray-logic-protocols/internal/gateway"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/auth"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/builtin"
	"github.com/nerrad567/gray-logic-protocols/migrations"
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

// startupHealthTimeout bounds the health check run once everything is up.
const startupHealthTimeout = 5 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Protocols",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log.Component("device"))

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Audit trail
	auditRepo := audit.NewSQLiteRepository(db.DB)
	if days := cfg.Database.AuditRetentionDays; days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		pruned, pruneErr := auditRepo.Prune(ctx, cutoff)
		if pruneErr != nil {
			log.Warn("pruning audit trail", "error", pruneErr)
		} else if pruned > 0 {
			log.Info("audit trail pruned", "removed", pruned, "retention_days", days)
		}
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var recorder gateway.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assemble the protocol support. The token authenticator is shared
	// with the API, which issues device tokens.
	tokens := auth.NewTokenAuthenticator(cfg.Security.DeviceToken.Secret)
	support, err := builtin.New(builtin.Options{
		Config:   cfg.Protocol,
		Tokens:   tokens,
		Devices:  deviceRegistry,
		Recorder: recorder,
		Logger:   log.Component("protocol"),
	})
	if err != nil {
		return fmt.Errorf("assembling protocol support: %w", err)
	}
	defer func() {
		log.Info("disposing protocol support")
		if disposeErr := support.Dispose(); disposeErr != nil {
			log.Error("error disposing protocol support", "error", disposeErr)
		}
	}()
	if initErr := support.Init(cfg.Protocol.Init); initErr != nil {
		return fmt.Errorf("initialising protocol support: %w", initErr)
	}
	log.Info("protocol support ready",
		"protocol", support.ID(),
		"transports", len(cfg.Protocol.Transports),
	)

	// Start the MQTT gateway
	gw, err := gateway.New(gateway.Options{
		Support:  support,
		MQTT:     mqttClient,
		Devices:  deviceRegistry,
		Recorder: recorder,
		Logger:   log.Component("gateway"),
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	if startErr := gw.Start(ctx); startErr != nil {
		return fmt.Errorf("starting gateway: %w", startErr)
	}
	defer func() {
		log.Info("stopping gateway")
		gw.Stop()
	}()

	// Start the HTTP API
	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Support:  support,
		Devices:  deviceRegistry,
		Audit:    auditRepo,
		Tokens:   tokens,
		TokenTTL: cfg.GetDeviceTokenTTL(),
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	healthCtx, healthCancel := context.WithTimeout(ctx, startupHealthTimeout)
	if healthErr := healthCheck(healthCtx, db, mqttClient, influxClient); healthErr != nil {
		log.Warn("startup health check failed", "error", healthErr)
	}
	healthCancel()

	log.Info("Gray Logic Protocols started",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info("shutdown signal received, stopping services")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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
