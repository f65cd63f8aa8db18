package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	Provider      ProviderConfig
	Webhooks      WebhookConfig
	Events        EventsConfig
	Tasks         TasksConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Path      string
	LogTiming bool
}

type ProviderConfig struct {
	BaseURL   string
	APIKey    string
	TimeoutMS int
}

type WebhookConfig struct {
	MaxRetries    int
	BaseDelayMS   int
	TimeoutMS     int
	SigningSecret string
}

type EventsConfig struct {
	HeartbeatSeconds int
}

type TasksConfig struct {
	Workers    int
	QueueDepth int
}

type ObservabilityConfig struct {
	Enabled           bool
	OTLPEndpoint      string
	OTLPTraceHeaders  map[string]string
	OTLPMetricHeaders map[string]string
	ServiceName       string
	ServiceVer        string
	SamplingRatio     float64
	MetricsConsole    bool
}

func Load() (Config, error) {
	return load(true)
}

// LoadForTool loads config for CLI tools that do not talk to the provider.
func LoadForTool() (Config, error) {
	return load(false)
}

func load(requireProvider bool) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("geosync_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("geosync_port", 8080)
	v.SetDefault("geosync_db_path", "data/geosync")
	v.SetDefault("geosync_db_timing", false)
	v.SetDefault("geosync_provider_base_url", "")
	v.SetDefault("geosync_provider_api_key", "")
	v.SetDefault("geosync_provider_timeout_ms", 15000)
	v.SetDefault("geosync_webhook_max_retries", 3)
	v.SetDefault("geosync_webhook_base_delay_ms", 1000)
	v.SetDefault("geosync_webhook_timeout_ms", 10000)
	v.SetDefault("geosync_webhook_signing_secret", "")
	v.SetDefault("geosync_sse_heartbeat_seconds", 30)
	v.SetDefault("geosync_task_workers", 4)
	v.SetDefault("geosync_task_queue_depth", 64)
	v.SetDefault("geosync_otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_headers", "")
	v.SetDefault("otel_exporter_otlp_traces_headers", "")
	v.SetDefault("otel_exporter_otlp_metrics_headers", "")
	v.SetDefault("otel_service_name", "geosync")
	v.SetDefault("geosync_service_name", "geosync")
	v.SetDefault("geosync_version", "dev")
	v.SetDefault("otel_service_version", "")
	v.SetDefault("geosync_otel_sampling_ratio", 1.0)
	v.SetDefault("geosync_otel_metrics_console", false)

	env := resolveEnvironment(v)
	port := v.GetInt("geosync_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid GEOSYNC_PORT: %d", port)
	}

	samplingRatio := v.GetFloat64("geosync_otel_sampling_ratio")
	if samplingRatio < 0 {
		samplingRatio = 0
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}

	maxRetries := v.GetInt("geosync_webhook_max_retries")
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if maxRetries > 10 {
		maxRetries = 10
	}

	baseDelay := v.GetInt("geosync_webhook_base_delay_ms")
	if baseDelay <= 0 {
		baseDelay = 1000
	}

	webhookTimeout := v.GetInt("geosync_webhook_timeout_ms")
	if webhookTimeout <= 0 {
		webhookTimeout = 10000
	}

	providerTimeout := v.GetInt("geosync_provider_timeout_ms")
	if providerTimeout <= 0 {
		providerTimeout = 15000
	}

	heartbeat := v.GetInt("geosync_sse_heartbeat_seconds")
	if heartbeat <= 0 {
		heartbeat = 30
	}

	workers := v.GetInt("geosync_task_workers")
	if workers <= 0 {
		workers = 4
	}
	if workers > 64 {
		workers = 64
	}

	queueDepth := v.GetInt("geosync_task_queue_depth")
	if queueDepth <= 0 {
		queueDepth = 64
	}
	if queueDepth > 4096 {
		queueDepth = 4096
	}

	serviceName := strings.TrimSpace(v.GetString("otel_service_name"))
	if serviceName == "" {
		serviceName = strings.TrimSpace(v.GetString("geosync_service_name"))
	}
	if serviceName == "" {
		serviceName = "geosync"
	}

	serviceVersion := strings.TrimSpace(v.GetString("geosync_version"))
	if serviceVersion == "" {
		serviceVersion = strings.TrimSpace(v.GetString("otel_service_version"))
	}
	if serviceVersion == "" {
		serviceVersion = "dev"
	}

	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))
	otlpCommonHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_headers"))
	otlpTraceHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_traces_headers"))
	otlpMetricHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_metrics_headers"))
	metricsConsole := v.GetBool("geosync_otel_metrics_console")
	otelEnabled := v.GetBool("geosync_otel_enabled") || otlpEndpoint != "" || metricsConsole
	traceHeaders := mergeHeaderMaps(otlpCommonHeaders, otlpTraceHeaders)
	metricHeaders := mergeHeaderMaps(otlpCommonHeaders, otlpMetricHeaders)

	cfg := Config{
		Environment: env,
		Server:      ServerConfig{Port: port},
		Database: DatabaseConfig{
			Path:      strings.TrimSpace(v.GetString("geosync_db_path")),
			LogTiming: v.GetBool("geosync_db_timing"),
		},
		Provider: ProviderConfig{
			BaseURL:   strings.TrimSpace(v.GetString("geosync_provider_base_url")),
			APIKey:    strings.TrimSpace(v.GetString("geosync_provider_api_key")),
			TimeoutMS: providerTimeout,
		},
		Webhooks: WebhookConfig{
			MaxRetries:    maxRetries,
			BaseDelayMS:   baseDelay,
			TimeoutMS:     webhookTimeout,
			SigningSecret: strings.TrimSpace(v.GetString("geosync_webhook_signing_secret")),
		},
		Events: EventsConfig{
			HeartbeatSeconds: heartbeat,
		},
		Tasks: TasksConfig{
			Workers:    workers,
			QueueDepth: queueDepth,
		},
		Observability: ObservabilityConfig{
			Enabled:           otelEnabled,
			OTLPEndpoint:      otlpEndpoint,
			OTLPTraceHeaders:  traceHeaders,
			OTLPMetricHeaders: metricHeaders,
			ServiceName:       serviceName,
			ServiceVer:        serviceVersion,
			SamplingRatio:     samplingRatio,
			MetricsConsole:    metricsConsole,
		},
	}

	if strings.TrimSpace(cfg.Database.Path) == "" {
		cfg.Database.Path = "data/geosync"
	}
	if requireProvider && !cfg.IsLocalDevelopment() && cfg.Provider.BaseURL == "" {
		return Config{}, fmt.Errorf("GEOSYNC_PROVIDER_BASE_URL is required outside local/dev environments")
	}
	if cfg.IsLocalDevelopment() && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "http://localhost:9090"
	}

	return cfg, nil
}

func parseOTLPHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pair := strings.SplitN(part, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.TrimSpace(pair[0])
		value := strings.TrimSpace(pair[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeHeaderMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutMS) * time.Millisecond
}

func (c Config) WebhookBaseDelay() time.Duration {
	return time.Duration(c.Webhooks.BaseDelayMS) * time.Millisecond
}

func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhooks.TimeoutMS) * time.Millisecond
}

func (c Config) EventsHeartbeat() time.Duration {
	return time.Duration(c.Events.HeartbeatSeconds) * time.Second
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"geosync_env", "app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
