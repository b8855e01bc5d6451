package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// The station and the admin API are configured entirely through environment
// variables so the same binaries run unchanged on a kiosk, in a container,
// or against LocalStack during development.

type Config struct {
	IsLocalDev bool   `mapstructure:"IS_LOCAL_DEV"`
	Timezone   string `mapstructure:"TIMEZONE"`

	// Admin API / station HTTP surfaces
	ServerPort  string `mapstructure:"SERVER_PORT"`
	StationPort string `mapstructure:"STATION_PORT"`

	// Document backend: "postgres" for a self-hosted store, "rest" for a
	// hosted document backend reached over HTTP.
	BackendKind string `mapstructure:"BACKEND_KIND"`
	BackendURL  string `mapstructure:"BACKEND_URL"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`

	// Offline queue
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	QueueKey      string        `mapstructure:"QUEUE_KEY"`
	DrainInterval time.Duration `mapstructure:"DRAIN_INTERVAL"`

	// Evidence capture. CameraURLs is comma separated, preferred source
	// first; remaining entries are the progressive fallback order.
	CameraURLs      string        `mapstructure:"CAMERA_URLS"`
	LocatorURL      string        `mapstructure:"LOCATOR_URL"`
	StationLat      float64       `mapstructure:"STATION_LAT"`
	StationLon      float64       `mapstructure:"STATION_LON"`
	LocationTimeout time.Duration `mapstructure:"LOCATION_TIMEOUT"`
	GeocoderURL     string        `mapstructure:"GEOCODER_URL"`

	// Identity of the employee bound to this station.
	UserID    string `mapstructure:"USER_ID"`
	UserEmail string `mapstructure:"USER_EMAIL"`

	// Messaging / notifications
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSEndpoint        string `mapstructure:"AWS_ENDPOINT"`
	EventsSQSQueueURL  string `mapstructure:"EVENTS_SQS_QUEUE_URL"`
	SummarySenderEmail string `mapstructure:"SUMMARY_SENDER_EMAIL"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("IS_LOCAL_DEV", false)
	viper.SetDefault("TIMEZONE", "")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STATION_PORT", "8090")
	viper.SetDefault("BACKEND_KIND", "postgres")
	viper.SetDefault("BACKEND_URL", "http://localhost:8080")
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "attendance_db")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("QUEUE_KEY", "attendance:offline")
	viper.SetDefault("DRAIN_INTERVAL", "30s")
	viper.SetDefault("CAMERA_URLS", "http://localhost:8791/snapshot")
	viper.SetDefault("LOCATOR_URL", "")
	viper.SetDefault("STATION_LAT", 0.0)
	viper.SetDefault("STATION_LON", 0.0)
	viper.SetDefault("LOCATION_TIMEOUT", "12s")
	viper.SetDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org")
	viper.SetDefault("USER_ID", "")
	viper.SetDefault("USER_EMAIL", "")
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("AWS_ENDPOINT", "")
	viper.SetDefault("EVENTS_SQS_QUEUE_URL", "")
	viper.SetDefault("SUMMARY_SENDER_EMAIL", "attendance@example.com")

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}

// CameraSources splits the configured camera URL list, preferred first.
func (c Config) CameraSources() []string {
	var out []string
	for _, u := range strings.Split(c.CameraURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Location resolves the configured timezone, falling back to the station's
// local zone. Day boundaries for the state machine are computed in this zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
