package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ibisek/ogn-logbook/internal/api"
	"github.com/ibisek/ogn-logbook/internal/config"
	"github.com/ibisek/ogn-logbook/internal/cron"
	"github.com/ibisek/ogn-logbook/internal/detector"
	"github.com/ibisek/ogn-logbook/internal/geo"
	"github.com/ibisek/ogn-logbook/internal/mqtt"
	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/internal/state"
	"github.com/ibisek/ogn-logbook/internal/storage/influx"
	"github.com/ibisek/ogn-logbook/internal/storage/sqlite"
	"github.com/ibisek/ogn-logbook/internal/websocket"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting OGN logbook",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Geo resources, immutable for the process lifetime.
	airfields, err := geo.LoadAirfields(cfg.Geo.AirfieldsPath, log)
	if err != nil {
		log.Error("Failed to load airfields", logger.Error(err))
		os.Exit(1)
	}

	// Live aircraft state store.
	kv := state.NewRedisKV(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := kv.Ping(ctx); err != nil {
		log.Error("Failed to connect to Redis", logger.String("addr", cfg.Redis.Addr), logger.Error(err))
		os.Exit(1)
	}
	defer kv.Close()
	stateStore := state.NewStore(kv, cfg.StatusTTL(), cfg.SpeedTTL(), log)

	// Position history: batched writer plus query client for the jobs.
	influxWriter := influx.NewWriter(cfg.Influx.URL, cfg.Influx.Database, cfg.Influx.BatchSize, log)
	influxWriter.Start()

	influxClient, err := influx.NewClient(cfg.Influx.URL, cfg.Influx.Database)
	if err != nil {
		log.Error("Failed to create influx query client", logger.Error(err))
		os.Exit(1)
	}
	defer influxClient.Close()

	// Logbook database.
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err))
		os.Exit(1)
	}
	events, err := sqlite.NewEventsStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer events.Close()
	events.Start()

	// WebSocket event feed.
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Rate reporting broker, optional.
	var publisher ogn.RatePublisher
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password, log)
		if err != nil {
			log.Warn("MQTT broker unavailable, rate reporting disabled", logger.Error(err))
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	detectorCfg := detector.DefaultConfig()
	detectorCfg.TakeoffSpeed = cfg.Detector.TakeoffSpeedKmh
	detectorCfg.LandingSpeedSlow = cfg.Detector.LandingSpeedSlowKmh
	detectorCfg.LandingSpeedFast = cfg.Detector.LandingSpeedFastKmh
	detectorCfg.MaxSpeed = cfg.Detector.MaxSpeedKmh
	detectorCfg.TakeoffAGLMin = cfg.Detector.TakeoffAGLMinM
	detectorCfg.LandingAGLMax = cfg.Detector.LandingAGLMaxM
	detectorCfg.DedupTTL = cfg.DedupTTL()
	detectorCfg.SmoothedSpeedTTL = cfg.SpeedTTL()

	// One detector per beacon category, each with its own raster handle
	// since the GDAL dataset is not safe for concurrent reads.
	processors := make(map[ogn.AddressType]ogn.Processor, len(ogn.AddressTypes))
	for _, t := range ogn.AddressTypes {
		geoFile, err := geo.OpenGeoFile(cfg.Geo.GeotiffPath, log)
		if err != nil {
			log.Error("Failed to open geotiff", logger.Error(err))
			os.Exit(1)
		}
		defer geoFile.Close()
		processors[t] = detector.New(detectorCfg, geoFile, airfields, stateStore, influxWriter, events, wsServer, log)
	}

	listener := ogn.NewListener(processors, publisher, log)
	listener.Start(ctx)

	aprsClient := ogn.NewAPRSClient(ogn.APRSConfig{
		Server:   cfg.OGN.Server,
		Callsign: cfg.OGN.Callsign,
		Filter:   cfg.OGN.Filter,
	}, listener.OnBeacon, log)
	aprsClient.Start()

	// Background reconciliation jobs.
	scheduler := cron.NewScheduler(log,
		cron.NewTakeoffRefiner(time.Duration(cfg.Cron.TakeoffRefinerSecs)*time.Second, events, influxClient, airfields, log),
		cron.NewReaper(time.Duration(cfg.Cron.ReaperSecs)*time.Second, stateStore, influxClient, events, airfields, log),
		cron.NewDistanceCalculator(time.Duration(cfg.Cron.DistanceSecs)*time.Second, events, influxClient, log),
	)
	scheduler.Start(ctx)

	// HTTP API.
	router := api.NewRouter(events, listener, wsServer, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down...")

	log.Info("Stopping APRS client...")
	aprsClient.Stop()

	log.Info("Stopping beacon workers...")
	listener.Stop()

	log.Info("Stopping background jobs...")
	scheduler.Stop()

	log.Info("Flushing writers...")
	influxWriter.Stop()
	events.Stop()

	wsServer.Stop()

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
