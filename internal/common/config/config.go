// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig               `mapstructure:"app"`
	Server  ServerConfig            `mapstructure:"server"`
	Camunda CamundaConfig           `mapstructure:"camunda"`
	Workers map[string]WorkerConfig `mapstructure:"workers"`
	Photo   PhotoConfig             `mapstructure:"photo"`
	Render  RenderConfig            `mapstructure:"render"`
	Logging LoggingConfig           `mapstructure:"logging"`
	Tracing TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the HTTP form surface settings.
type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CamundaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	BrokerAddress   string   `mapstructure:"broker_address"`
	MaxJobsActive   int      `mapstructure:"max_jobs_active"`
	Timeout         int      `mapstructure:"timeout"`         // milliseconds
	RequestTimeout  int      `mapstructure:"request_timeout"` // milliseconds
	DeployResources []string `mapstructure:"deploy_resources"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// --- Domain Configuration Sections ---

// PhotoConfig bounds the image normalizer and the remote photo fetch.
type PhotoConfig struct {
	MaxWidth        int    `mapstructure:"max_width"`
	MaxHeight       int    `mapstructure:"max_height"`
	JPEGQuality     int    `mapstructure:"jpeg_quality"`
	FetchTimeout    int    `mapstructure:"fetch_timeout"` // milliseconds
	MaxFetchBytes   int64  `mapstructure:"max_fetch_bytes"`
	MaxSourcePixels int    `mapstructure:"max_source_pixels"` // width*height checked before decoding
	UserAgent       string `mapstructure:"user_agent"`
}

// RenderConfig holds QR rendering defaults.
type RenderConfig struct {
	Size            int    `mapstructure:"size"`
	Background      string `mapstructure:"background"`
	RecoveryLevel   string `mapstructure:"recovery_level"`
	IncludeMargin   bool   `mapstructure:"include_margin"`
	MaxPayloadBytes int    `mapstructure:"max_payload_bytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig enables span export to Jaeger when an endpoint is set.
type TracingConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
