package appconfig

import (
	"time"

	"github.com/clovid/prisma-sub000/internal/app/appcontext"
)

type ConfigSpec struct {
	// ServiceAddress is the listen address for the HTTP API.
	ServiceAddress string `required:"true" split_words:"true" default:"localhost:9010"`

	// DevMode enables trace logging and pprof, and skips graceful shutdown.
	DevMode bool `split_words:"true"`

	// LogJsonStdout writes raw JSON (instead of pretty-printed lines) to stdout.
	LogJsonStdout bool `split_words:"true" default:"false"`

	// LogFile is the rotated log file every log line is additionally written to.
	LogFile string `split_words:"true" default:"logs/app.log"`

	// TrustedProxies may report the real client IP via X-Forwarded-For.
	TrustedProxies []string `split_words:"true" default:"::1,127.0.0.1,10.0.0.0/8"`

	// TracingEnabled enables OpenTelemetry tracing of requests and upstream calls.
	TracingEnabled bool `split_words:"true"`

	// TracingExporters selects trace exporters. Valid values are: stdout, otlp, jaeger.
	TracingExporters []string `split_words:"true" default:"stdout"`

	// TracingSampleRate is the ratio of traces sampled, between 0.0 and 1.0.
	TracingSampleRate float64 `split_words:"true" default:"1.0"`

	// RedisURL selects the shared cache store. Leaving it empty uses an in-process cache,
	// which is only suitable for a single instance.
	RedisURL string `split_words:"true"`

	// CachePrefix namespaces every cache key written by this instance.
	CachePrefix string `split_words:"true" default:"prisma"`

	// PostgresDSN enables persistence of privacy audit entries. Leaving it empty keeps
	// the audit trail in the logs only.
	PostgresDSN string `split_words:"true"`

	PostgresMaxOpenConns int  `split_words:"true" default:"4"`
	BunDebugVerbose      bool `split_words:"true"`

	// SentryDSN enables error reporting to Sentry.
	SentryDSN string `split_words:"true"`

	// ModulesConfigPath is the YAML file describing every upstream module.
	ModulesConfigPath string `required:"true" split_words:"true" default:"config/modules.yaml"`

	// TabsConfigDir holds the per-module tab configuration trees.
	TabsConfigDir string `required:"true" split_words:"true" default:"config/tabs"`

	// UpstreamConnectTimeout bounds establishing a connection to an upstream module.
	UpstreamConnectTimeout time.Duration `split_words:"true" default:"10s"`

	// UpstreamTimeout bounds a whole upstream request, including reading the body.
	UpstreamTimeout time.Duration `split_words:"true" default:"60s"`

	// UpstreamRetryAttempts is the number of attempts for idempotent upstream requests.
	UpstreamRetryAttempts uint `split_words:"true" default:"2"`

	// ConcurrentTaskFetches bounds how many task structures/answers are fetched at once
	// when several task ids are aggregated together.
	ConcurrentTaskFetches int `split_words:"true" default:"4"`

	// MinimumUsersFilter is the smallest cohort that may be filtered on without an audit entry.
	MinimumUsersFilter int `split_words:"true" default:"5"`

	// MinimumTaskDatasets is the smallest dataset count a task may be summarized with
	// without an audit entry.
	MinimumTaskDatasets int `split_words:"true" default:"5"`

	// HTTPServerShutdownTimeout is the timeout for the HTTP server to shut down gracefully.
	HTTPServerShutdownTimeout time.Duration `required:"true" split_words:"true" default:"60s"`
}

type Config struct {
	// ConfigSpec is the configuration specification injected to the config.
	ConfigSpec

	// Modules is the upstream module registry loaded from ModulesConfigPath.
	Modules *ModuleRegistry

	// AppContext is the application context
	AppContext appcontext.Ctx
}
