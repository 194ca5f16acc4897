// Package config loads service settings from defaults, an optional config
// file, a .env file and the process environment (highest priority).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Base struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Port           string

	LogLevel string
	LogFile  string

	OTLPEndpoint string
	OTLPProtocol string
	OTLPDisabled bool
	SampleRatio  float64

	JWTSecret string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Loader wraps a viper instance that already has env binding configured.
// Services add their own defaults with SetDefault before calling Base.
type Loader struct {
	v *viper.Viper
}

func NewLoader(service, port string) (*Loader, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/" + service)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service_name", service)
	v.SetDefault("service_version", "1.0.0")
	v.SetDefault("environment", "development")
	v.SetDefault("port", port)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("otel_exporter_otlp_endpoint", "tempo:4318")
	v.SetDefault("otel_exporter_otlp_protocol", "http")
	v.SetDefault("otel_sdk_disabled", false)
	v.SetDefault("otel_sample_ratio", 1.0)
	v.SetDefault("jwt_secret", "your-secret-key")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("shutdown_timeout", "10s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Loader{v: v}, nil
}

func (l *Loader) Base() Base {
	return Base{
		ServiceName:     l.v.GetString("service_name"),
		ServiceVersion:  l.v.GetString("service_version"),
		Environment:     l.v.GetString("environment"),
		Port:            l.v.GetString("port"),
		LogLevel:        l.v.GetString("log_level"),
		LogFile:         l.v.GetString("log_file"),
		OTLPEndpoint:    l.v.GetString("otel_exporter_otlp_endpoint"),
		OTLPProtocol:    l.v.GetString("otel_exporter_otlp_protocol"),
		OTLPDisabled:    l.v.GetBool("otel_sdk_disabled"),
		SampleRatio:     l.v.GetFloat64("otel_sample_ratio"),
		JWTSecret:       l.v.GetString("jwt_secret"),
		RequestTimeout:  l.v.GetDuration("request_timeout"),
		ShutdownTimeout: l.v.GetDuration("shutdown_timeout"),
	}
}

func (l *Loader) SetDefault(key string, value any) { l.v.SetDefault(key, value) }

func (l *Loader) String(key string) string { return l.v.GetString(key) }

func (l *Loader) Int(key string) int { return l.v.GetInt(key) }

func (l *Loader) Bool(key string) bool { return l.v.GetBool(key) }

func (l *Loader) Duration(key string) time.Duration { return l.v.GetDuration(key) }

// Strings splits a comma separated value, dropping empty parts.
func (l *Loader) Strings(key string) []string {
	raw := l.v.GetString(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
