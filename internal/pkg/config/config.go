package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Map       MapConfig       `mapstructure:"map"`
	GPS       GPSConfig       `mapstructure:"gps"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  int `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout int `mapstructure:"write_timeout" validate:"gt=0"`
}

type NATSConfig struct {
	URL            string `mapstructure:"url" validate:"required"`
	FixSubject     string `mapstructure:"fix_subject" validate:"required"`
	ControlSubject string `mapstructure:"control_subject" validate:"required"`
	RenderPrefix   string `mapstructure:"render_prefix" validate:"required"`
}

type ValkeyConfig struct {
	// Addr may be empty to disable snapshots.
	Addr        string `mapstructure:"addr"`
	SnapshotKey string `mapstructure:"snapshot_key" validate:"required"`
	SnapshotTTL int    `mapstructure:"snapshot_ttl" validate:"gte=0"`
}

// SnapshotTTLDuration returns the snapshot TTL; zero means no expiry.
func (v ValkeyConfig) SnapshotTTLDuration() time.Duration {
	return time.Duration(v.SnapshotTTL) * time.Second
}

type MapConfig struct {
	Backend     string  `mapstructure:"backend" validate:"oneof=headless nats"`
	PointZoom   float64 `mapstructure:"point_zoom" validate:"gt=0"`
	InitialLat  float64 `mapstructure:"initial_lat" validate:"min=-90,max=90"`
	InitialLon  float64 `mapstructure:"initial_lon" validate:"min=-180,max=180"`
	InitialZoom float64 `mapstructure:"initial_zoom" validate:"gte=0"`
	FitScale    float64 `mapstructure:"fit_scale" validate:"gt=0,lte=1"`
}

type GPSConfig struct {
	EnableOnStart bool `mapstructure:"enable_on_start"`
	// RecordTrace appends every fix to a polyline feature.
	RecordTrace bool `mapstructure:"record_trace"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	// TempoAddr is the OTLP/gRPC collector, host:port.
	TempoAddr string `mapstructure:"tempo_addr" validate:"required_if=Enabled true"`
	Enabled   bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config (%s): %w", service, err)
		}
	}

	// Environment variables: FIELDMAP_NATS_URL → nats.url
	v.SetEnvPrefix("FIELDMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.fix_subject", "fieldmap.gps.fix")
	v.SetDefault("nats.control_subject", "fieldmap.gps.control")
	v.SetDefault("nats.render_prefix", "fieldmap.render")
	v.SetDefault("valkey.addr", "")
	v.SetDefault("valkey.snapshot_key", "fieldmap:snapshot")
	v.SetDefault("valkey.snapshot_ttl", 3600)
	v.SetDefault("map.backend", "headless")
	v.SetDefault("map.point_zoom", 16)
	v.SetDefault("map.initial_lat", 0)
	v.SetDefault("map.initial_lon", 0)
	v.SetDefault("map.initial_zoom", 2)
	v.SetDefault("map.fit_scale", 0.8)
	v.SetDefault("gps.enable_on_start", true)
	v.SetDefault("gps.record_trace", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
}

var validate = newValidator()

// newValidator reports fields by their mapstructure key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	sections := map[string]any{
		"server":    c.Server,
		"nats":      c.NATS,
		"valkey":    c.Valkey,
		"map":       c.Map,
		"log":       c.Log,
		"telemetry": c.Telemetry,
	}
	for _, name := range []string{"server", "nats", "valkey", "map", "log", "telemetry"} {
		err := validate.Struct(sections[name])
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Sprintf("%s.%s must satisfy %s, got %v",
				name, fe.Field(), constraint(fe), fe.Value()))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
