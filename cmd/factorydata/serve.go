package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/factory-data-core/internal/api"
	"github.com/nerrad567/factory-data-core/internal/events"
	"github.com/nerrad567/factory-data-core/internal/factorydata"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/database"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/logging"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/metrics"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/telemetry"
	"github.com/nerrad567/factory-data-core/internal/swm"
	_ "github.com/nerrad567/factory-data-core/migrations"
)

func newServeCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(commandContext(cmd), configPath())
		},
	}
}

// run is the service lifecycle, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting factory data core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, cfg.Service.Name, version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		// The signal context is already cancelled here.
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			log.Error("error flushing traces", "error", shutdownErr)
		}
	}()

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	checks := map[string]api.HealthChecker{"database": db}
	m := metrics.New()
	sinks := events.Multi{events.NewMetricsSink(m)}

	// SWM mirror (optional)
	var mirror factorydata.Mirror
	if cfg.SWM.Enabled {
		swmClient, swmErr := swm.NewClient(cfg.SWM, log)
		if swmErr != nil {
			return fmt.Errorf("creating SWM client: %w", swmErr)
		}
		mirror = swmClient
		log.Info("SWM mirroring enabled", "base_url", cfg.SWM.BaseURL)
	} else {
		log.Info("SWM mirroring disabled")
	}

	// MQTT lifecycle events (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		checks["mqtt"] = mqttClient
		sinks = append(sinks, events.NewMQTTSink(mqttClient, log))
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB lifecycle points (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		checks["influxdb"] = influxClient
		sinks = append(sinks, events.NewInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	repo := factorydata.NewSQLiteRepository(db.DB)
	validator := factorydata.NewValidator(cfg.FactoryData, factorydata.NewSQLiteMandatoryParams(db.DB), repo)
	service := factorydata.NewService(validator, repo, mirror, sinks, log.With("component", "factorydata"))

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Service:  service,
		Metrics:  m,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("factory data core started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// openDatabase opens the configured database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)

	applied, err := db.Migrate(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete", "applied", applied)
	return db, nil
}
