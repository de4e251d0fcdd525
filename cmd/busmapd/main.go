// busmapd maps device register windows into records and serves them over
// MQTT, HTTP and WebSocket.
//
// Usage:
//
//	busmapd                         run the daemon
//	busmapd token <subject> [role]  print an API token signed with the configured secret
//
// The configuration file is configs/busmap.yaml unless BUSMAP_CONFIG is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/busmap-core/internal/api"
	"github.com/nerrad567/busmap-core/internal/audit"
	"github.com/nerrad567/busmap-core/internal/auth"
	"github.com/nerrad567/busmap-core/internal/bridge"
	"github.com/nerrad567/busmap-core/internal/devbus"
	"github.com/nerrad567/busmap-core/internal/infrastructure/config"
	"github.com/nerrad567/busmap-core/internal/infrastructure/database"
	"github.com/nerrad567/busmap-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/busmap-core/internal/infrastructure/logging"
	"github.com/nerrad567/busmap-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/busmap-core/internal/mmio"
	"github.com/nerrad567/busmap-core/internal/record"
	"github.com/nerrad567/busmap-core/internal/scan"
	"github.com/nerrad567/busmap-core/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/busmap.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = runToken(os.Args[2:], os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runToken prints a signed API token for args[0] with role args[1]
// (default operator).
func runToken(args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: busmapd token <subject> [viewer|operator]")
	}
	role := auth.RoleOperator
	if len(args) == 2 {
		role = auth.Role(args[1])
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := auth.GenerateToken(args[0], role, cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL())
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}

// run starts every component and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting busmapd",
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

	log = logging.New(cfg.Logging, version)

	// Bus devices
	regions, err := mapWindows(cfg.Bus.Windows)
	if err != nil {
		return err
	}
	defer func() {
		for _, r := range regions {
			if closeErr := r.region.Close(); closeErr != nil {
				log.Error("error unmapping window", "window", r.name, "error", closeErr)
			}
		}
	}()

	bus, err := newBus(cfg.Bus, regions)
	if err != nil {
		return err
	}
	bus.SetLogger(log.Component("devbus"))
	log.Info("bus devices registered",
		"devices", len(bus.Devices()),
		"shadow_policy", bus.Options().Shadow.String(),
	)

	// Audit trail
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo)
	recorder.SetLogger(log.Component("audit"))
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		recorder.Run(recorderCtx)
		close(recorderDone)
	}()
	defer func() {
		stopRecorder()
		<-recorderDone
	}()

	// Records
	records := record.NewDatabase()
	records.SetLogger(log.Component("record"))
	records.OnWrite(recorder.Observe)
	for _, rc := range cfg.Records {
		if _, err := records.Add(recordConfig(rc)); err != nil {
			return fmt.Errorf("adding record: %w", err)
		}
	}
	if err := records.BindAll(bus); err != nil {
		// Unbound records stay visible with a LINK alarm.
		log.Warn("some records failed to bind", "error", err)
	}

	scanner := scan.New(records.List())
	scanner.SetLogger(log.Component("scan"))

	healthChecks := map[string]api.HealthChecker{"database": db}

	// MQTT (optional)
	var mqttStatus api.ConnectionStatus
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
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		br, brErr := bridge.NewBridge(bridge.Options{
			MQTTClient: mqttClient,
			Records:    records,
			Reporter:   scanner,
			QoS:        byte(cfg.MQTT.QoS), //nolint:gosec // validated 0..2
		})
		if brErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", brErr)
		}
		br.SetLogger(log.Component("bridge"))
		if err := br.Start(ctx); err != nil {
			return fmt.Errorf("starting MQTT bridge: %w", err)
		}
		defer br.Stop()

		scanner.AddSink(br)
		mqttStatus = mqttClient
		healthChecks["mqtt"] = mqttClient
		log.Info("MQTT bridge started",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB, cfg.Site.ID)
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
		scanner.AddSink(influxClient)
		records.OnWrite(influxClient.WriteRegisterWrite)
		healthChecks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API
	srv, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log.Component("api"),
		Bus:          bus,
		Records:      records,
		Reporter:     scanner,
		Audit:        auditRepo,
		MQTT:         mqttStatus,
		HealthChecks: healthChecks,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	scanner.AddSink(srv)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	if cfg.Security.JWT.Secret == "" {
		log.Warn("no JWT secret configured, record writes over HTTP are unauthenticated")
	}

	log.Info("initialisation complete",
		"records", records.Len(),
		"scan_periods", len(scanner.Periods()),
	)

	if err := scanner.Run(ctx); err != nil {
		return fmt.Errorf("scanner: %w", err)
	}

	log.Info("busmapd stopped")
	return nil
}

// getConfigPath returns BUSMAP_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("BUSMAP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

type mappedWindow struct {
	name   string
	region *mmio.Region
}

// mapWindows maps every configured window. On failure the windows mapped so
// far are released.
func mapWindows(windows []config.WindowConfig) ([]mappedWindow, error) {
	mapped := make([]mappedWindow, 0, len(windows))
	for _, w := range windows {
		var (
			region *mmio.Region
			err    error
		)
		switch w.Backend {
		case config.BackendAnonymous:
			region, err = mmio.Anonymous(w.Size)
		case config.BackendDevMem:
			region, err = mmio.MapDevMem(w.DevicePath(), w.Physical, w.Size)
		case config.BackendUIO:
			region, err = mmio.MapUIO(w.DevicePath(), w.Index, w.Size)
		default:
			err = fmt.Errorf("unknown backend %q", w.Backend)
		}
		if err != nil {
			for _, m := range mapped {
				m.region.Close() //nolint:errcheck // already failing
			}
			return nil, fmt.Errorf("mapping window %q: %w", w.Name, err)
		}
		mapped = append(mapped, mappedWindow{name: w.Name, region: region})
	}
	return mapped, nil
}

// newBus builds the device registry and registers each mapped window as a
// device of the same name.
func newBus(cfg config.BusConfig, windows []mappedWindow) (*devbus.Registry, error) {
	policy, err := devbus.ParseShadowPolicy(cfg.ShadowPolicy)
	if err != nil {
		return nil, err
	}
	bus := devbus.NewRegistry(devbus.Options{
		Shadow:             policy,
		LockUnmaskedWrites: cfg.LockUnmaskedWrites,
	})
	for _, w := range windows {
		if _, err := bus.RegisterDevice(w.name, w.region.Base(), devbus.WithSize(w.region.Size())); err != nil {
			return nil, fmt.Errorf("registering device %q: %w", w.name, err)
		}
	}
	return bus, nil
}

func recordConfig(rc config.RecordConfig) record.Config {
	return record.Config{
		Name:        rc.Name,
		Description: rc.Description,
		Kind:        record.Kind(rc.Kind),
		Link:        rc.Link,
		Instance:    rc.Instance,
		Shift:       rc.Shift,
		Mask:        rc.Mask,
		PINI:        rc.PINI,
		Scan:        rc.Scan,
		Signed:      rc.Signed,
	}
}
