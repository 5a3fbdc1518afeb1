package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"telescope/pkg/catalog"
	"telescope/pkg/client"
	"telescope/pkg/config"
	"telescope/pkg/control"
	"telescope/pkg/notify"
	"telescope/pkg/server"
	"telescope/pkg/store"
)

func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && !c.IsSet("config") {
		log.Infof("No configuration at %s, using defaults", path)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to load configuration: %v", err)
	}

	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("data-dir") {
		cfg.Data.Root = c.String("data-dir")
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	level, _ := log.ParseLevel(cfg.Logging.Level)
	log.SetLevel(level)
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("Telescope control daemon")

	if err := os.MkdirAll(cfg.Data.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %v", err)
	}

	db, err := bolt.Open(filepath.Join(cfg.Data.Root, "telescoped.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	settingsStore, err := store.New(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}
	settings, err := settingsStore.Settings()
	if err != nil {
		return fmt.Errorf("failed to read settings: %v", err)
	}

	cat, err := catalog.Load(cfg.Data.Root, log.WithField("component", "catalog"))
	if err != nil {
		return fmt.Errorf("failed to load device catalog: %v", err)
	}
	log.Infof("Device catalog %s: %d models, %d third-party drivers", cat.Version(), len(cat.IDs()), len(cat.Drivers()))

	ctl := control.New(control.Options{
		DataDir: cfg.Data.Root,
		Logger:  log.StandardLogger(),
		Client: client.Options{
			ServerDir:      cfg.Data.ServerDir,
			ConnectTimeout: time.Duration(cfg.Scheduler.ConnectTimeoutMS) * time.Millisecond,
		},
		UseServerLogs: settings.UseServerLogs,
		Diagnostics: control.DiagnosticOptions{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	})

	hub := server.NewHub(log.WithField("component", "ws"))
	ctl.Subscribe(hub)

	if cfg.MQTT.Enabled {
		mqttClient, err := notify.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		defer mqttClient.Disconnect(250)
		ctl.Subscribe(notify.NewMQTTPublisher(mqttClient, cfg.MQTT.TopicRoot, log.WithField("component", "mqtt")))
		log.Infof("Publishing events to %s/events", cfg.MQTT.TopicRoot)
	}

	if err := ctl.LoadAll(); err != nil {
		log.Warnf("Some telescopes failed to start: %v", err)
	}

	host := control.NewHost(ctl, time.Duration(cfg.Scheduler.TickIntervalMS)*time.Millisecond, log.WithField("component", "host"))
	api := server.NewServer(host, cat, settingsStore, hub, log.WithField("component", "api"))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.AddRoutes(),
	}

	// Channel to listen for interrupt or terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		host.Run(ctx)
		wg.Done()
	}()

	wg.Add(1)
	go func() {
		hub.Run(ctx)
		wg.Done()
	}()

	wg.Add(1)
	go func() {
		log.Debugf("Server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen on %s: %v", srv.Addr, err)
			stop()
		}
		wg.Done()
	}()

	if cfg.Server.Discovery {
		addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(server.DiscoveryPort))
		dr := server.NewDiscoveryResponder(addr, cfg.Server.Port, log.WithField("component", "discovery"))

		wg.Add(1)
		go func() {
			if err := dr.Run(ctx); err != nil {
				log.Errorf("Discovery responder failed: %v", err)
			}
			wg.Done()
			log.Debug("Discovery responder stopped")
		}()
	}

	<-ctx.Done()

	log.Info("Shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
	return nil
}

func main() {
	app := cli.App{
		Name:  "telescoped",
		Usage: "Telescope slot management and control daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the TOML configuration file",
				Value:   "/etc/telescoped/telescoped.toml",
				EnvVars: []string{"TELESCOPED_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port of the administrative API",
				EnvVars: []string{"TELESCOPED_PORT"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for telescopes, catalog, settings and logs",
				EnvVars: []string{"TELESCOPED_DATA_DIR"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
