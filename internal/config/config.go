// Package config loads and validates the TOML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	OGN      OGNConfig      `toml:"ogn"`      // APRS-IS beacon source settings
	MQTT     MQTTConfig     `toml:"mqtt"`     // Rate-reporting broker settings
	Redis    RedisConfig    `toml:"redis"`    // Live aircraft state store settings
	Influx   InfluxConfig   `toml:"influx"`   // Position history store settings
	Storage  StorageConfig  `toml:"storage"`  // Logbook database settings
	Geo      GeoConfig      `toml:"geo"`      // Terrain raster and airfield gazetteer
	Detector DetectorConfig `toml:"detector"` // Flight-state detection thresholds
	Cron     CronConfig     `toml:"cron"`     // Background job intervals
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	Port             int    `toml:"port"`                  // HTTP port for the API and WebSocket feed
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, required for the WebSocket feed)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// OGNConfig contains APRS-IS beacon source configuration
type OGNConfig struct {
	Server   string `toml:"server"`   // APRS-IS server address, e.g. "aprs.glidernet.org:10152" for the full feed
	Callsign string `toml:"callsign"` // Login callsign sent to the APRS-IS server
	Filter   string `toml:"filter"`   // Optional server-side filter, e.g. "r/49.5/16.0/999"
}

// MQTTConfig contains rate-reporting broker configuration
type MQTTConfig struct {
	Enabled   bool   `toml:"enabled"`    // Publish ingest rates to the broker
	BrokerURL string `toml:"broker_url"` // Broker URL, e.g. "tcp://localhost:1883"
	ClientID  string `toml:"client_id"`  // MQTT client identifier
	Username  string `toml:"username"`   // Broker username (optional)
	Password  string `toml:"password"`   // Broker password (optional)
}

// RedisConfig contains live aircraft state store configuration
type RedisConfig struct {
	Addr     string `toml:"addr"`     // Redis address, host:port
	Password string `toml:"password"` // Redis password (optional)
	DB       int    `toml:"db"`       // Redis database number
}

// InfluxConfig contains position history store configuration
type InfluxConfig struct {
	URL       string `toml:"url"`        // InfluxDB endpoint, e.g. "http://localhost:8086"
	Database  string `toml:"database"`   // Database holding the position series
	BatchSize int    `toml:"batch_size"` // Points accumulated before a flush
}

// StorageConfig contains logbook database configuration
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"` // Path to the logbook SQLite database file
}

// GeoConfig contains terrain raster and airfield gazetteer configuration
type GeoConfig struct {
	GeotiffPath   string `toml:"geotiff_path"`   // Path to the terrain elevation raster
	AirfieldsPath string `toml:"airfields_path"` // Path to the airfield gazetteer JSON file
}

// DetectorConfig contains flight-state detection thresholds. Zero values
// fall back to the built-in defaults.
type DetectorConfig struct {
	TakeoffSpeedKmh     float64 `toml:"takeoff_speed_kmh"`      // Smoothed speed above which a grounded aircraft is airborne
	LandingSpeedSlowKmh float64 `toml:"landing_speed_slow_kmh"` // Landing threshold for gliders and other slow categories
	LandingSpeedFastKmh float64 `toml:"landing_speed_fast_kmh"` // Landing threshold for everything else
	MaxSpeedKmh         float64 `toml:"max_speed_kmh"`          // Beacons faster than this never transition
	TakeoffAGLMinM      int     `toml:"takeoff_agl_min_m"`      // Take-off below this AGL is a false positive
	LandingAGLMaxM      int     `toml:"landing_agl_max_m"`      // Landing above this AGL is a false positive
	StatusTTLHours      int     `toml:"status_ttl_hours"`       // TTL on the per-aircraft status record
	SpeedTTLSecs        int     `toml:"speed_ttl_seconds"`      // TTL on the smoothed ground speed
	DedupTTLMillis      int     `toml:"dedup_ttl_millis"`       // TTL on the duplicate-beacon markers
}

// CronConfig contains background job intervals
type CronConfig struct {
	TakeoffRefinerSecs int `toml:"takeoff_refiner_seconds"` // Take-off refinement interval
	ReaperSecs         int `toml:"reaper_seconds"`          // Stale airborne-state reaping interval
	DistanceSecs       int `toml:"distance_seconds"`        // Flown-distance computation interval
}

// Load reads and parses the configuration file at the given path.
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 30
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 120
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.OGN.Server == "" {
		c.OGN.Server = "aprs.glidernet.org:10152"
	}
	if c.OGN.Callsign == "" {
		return fmt.Errorf("ogn.callsign is required")
	}

	if c.MQTT.Enabled {
		if c.MQTT.BrokerURL == "" {
			return fmt.Errorf("mqtt.broker_url is required when mqtt is enabled")
		}
		if c.MQTT.ClientID == "" {
			c.MQTT.ClientID = "ogn-logbook"
		}
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Influx.URL == "" {
		c.Influx.URL = "http://localhost:8086"
	}
	if c.Influx.Database == "" {
		c.Influx.Database = "ogn_logbook"
	}
	if c.Influx.BatchSize == 0 {
		c.Influx.BatchSize = 5000
	}

	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/ogn-logbook.db"
	}

	if c.Geo.GeotiffPath == "" {
		return fmt.Errorf("geo.geotiff_path is required")
	}
	if c.Geo.AirfieldsPath == "" {
		return fmt.Errorf("geo.airfields_path is required")
	}

	if c.Detector.TakeoffSpeedKmh == 0 {
		c.Detector.TakeoffSpeedKmh = 80
	}
	if c.Detector.LandingSpeedSlowKmh == 0 {
		c.Detector.LandingSpeedSlowKmh = 20
	}
	if c.Detector.LandingSpeedFastKmh == 0 {
		c.Detector.LandingSpeedFastKmh = 50
	}
	if c.Detector.MaxSpeedKmh == 0 {
		c.Detector.MaxSpeedKmh = 400
	}
	if c.Detector.TakeoffAGLMinM == 0 {
		c.Detector.TakeoffAGLMinM = 50
	}
	if c.Detector.LandingAGLMaxM == 0 {
		c.Detector.LandingAGLMaxM = 100
	}
	if c.Detector.StatusTTLHours == 0 {
		c.Detector.StatusTTLHours = 6
	}
	if c.Detector.SpeedTTLSecs == 0 {
		c.Detector.SpeedTTLSecs = 3600
	}
	if c.Detector.DedupTTLMillis == 0 {
		c.Detector.DedupTTLMillis = 1000
	}

	if c.Cron.TakeoffRefinerSecs == 0 {
		c.Cron.TakeoffRefinerSecs = 60
	}
	if c.Cron.ReaperSecs == 0 {
		c.Cron.ReaperSecs = 300
	}
	if c.Cron.DistanceSecs == 0 {
		c.Cron.DistanceSecs = 10
	}

	return nil
}

// StatusTTL returns the status record TTL as a duration.
func (c *Config) StatusTTL() time.Duration {
	return time.Duration(c.Detector.StatusTTLHours) * time.Hour
}

// SpeedTTL returns the smoothed-speed TTL as a duration.
func (c *Config) SpeedTTL() time.Duration {
	return time.Duration(c.Detector.SpeedTTLSecs) * time.Second
}

// DedupTTL returns the duplicate-marker TTL as a duration.
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Detector.DedupTTLMillis) * time.Millisecond
}
