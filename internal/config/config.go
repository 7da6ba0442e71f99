// Package config loads and validates the SalesLive YAML configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Remote backends.
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Environment variables consulted when the matching YAML key is empty.
const (
	EnvDBPath          = "SALESLIVE_DB_PATH"
	EnvCredentials     = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	EnvFirebaseProject = "FIREBASE_PROJECT_ID"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// DBPath is the SQLite file of the local store. Defaults to
	// ~/.local/share/saleslive/local.db when empty.
	DBPath string `yaml:"db_path,omitempty"`

	// Firestore configures the remote document store.
	Firestore FirestoreConfig `yaml:"firestore"`

	// Remote tunes calls to the remote store.
	Remote RemoteConfig `yaml:"remote"`

	// Connectivity configures the reachability probe.
	Connectivity ConnectivityConfig `yaml:"connectivity"`

	// HTTP configures the local JSON API.
	HTTP HTTPConfig `yaml:"http"`

	// AI configures the optional chart summaries.
	AI AIConfig `yaml:"ai,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// FirestoreConfig identifies the Firebase project.
type FirestoreConfig struct {
	ProjectID string `yaml:"project_id"`

	// CredentialsFile is a service account JSON key. Application Default
	// Credentials are used when empty.
	CredentialsFile string `yaml:"credentials_file,omitempty"`

	// EmulatorHost points the client at a local Firestore emulator
	// (e.g. "localhost:8080").
	EmulatorHost string `yaml:"emulator_host,omitempty"`
}

// RemoteConfig tunes remote store calls.
type RemoteConfig struct {
	// Backend is "firestore" (default) or "memory". The memory backend keeps
	// remote documents in process and is meant for demos and local testing.
	Backend string `yaml:"backend,omitempty"`

	// Timeout bounds each remote call, retries included. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxAttempts is the number of tries for transient failures. Defaults to 3.
	MaxAttempts int `yaml:"max_attempts,omitempty"`
}

// ConnectivityConfig configures how reachability is detected.
type ConnectivityConfig struct {
	// ProbeAddress is the host:port dialled to decide whether the device is
	// online. Defaults to "firestore.googleapis.com:443", or the emulator
	// host when one is configured.
	ProbeAddress string `yaml:"probe_address,omitempty"`

	// ProbeInterval is the time between probes. Minimum 1s, maximum 5m.
	// Defaults to 15s.
	ProbeInterval time.Duration `yaml:"probe_interval,omitempty"`
}

// HTTPConfig configures the local API server.
type HTTPConfig struct {
	// Listen is the address the API binds to. Defaults to "127.0.0.1:8787".
	Listen string `yaml:"listen,omitempty"`

	// AllowOrigins lists browser origins permitted to call the API
	// (e.g. "http://localhost:5173"). CORS is disabled when empty.
	AllowOrigins []string `yaml:"allow_origins,omitempty"`
}

// AIConfig configures sales chart summaries. Summaries fall back to a
// fixed message when no API key is set.
type AIConfig struct {
	// APIKey is a Gemini API key. Falls back to GEMINI_API_KEY.
	APIKey string `yaml:"api_key,omitempty"`

	// Model overrides the Gemini model name. Defaults to "gemini-flash-latest".
	Model string `yaml:"model,omitempty"`

	// Currency is the symbol summaries quote amounts in. Defaults to "₹".
	Currency string `yaml:"currency,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "saleslive".
	ServiceName string `yaml:"service_name"`

	// InstanceID names this device in exported telemetry (service.instance.id),
	// e.g. "till-2".
	InstanceID string `yaml:"instance_id,omitempty"`

	// SampleRatio is the fraction of traces exported, between 0 and 1.
	// Zero or omitted exports every trace.
	SampleRatio float64 `yaml:"sample_ratio,omitempty"`

	// ExportInterval is how often metrics are exported. Omit for the SDK
	// default of one minute.
	ExportInterval time.Duration `yaml:"export_interval,omitempty"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Equivalent to the OTEL_EXPORTER_OTLP_HEADERS environment
	// variable. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

const (
	defaultProbeAddress  = "firestore.googleapis.com:443"
	defaultProbeInterval = 15 * time.Second
	defaultListen        = "127.0.0.1:8787"
	defaultTimeout       = 10 * time.Second
	defaultMaxAttempts   = 3
)

// DefaultPath returns the default config file path: ~/.config/saleslive/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "saleslive", "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Write saves the configuration as YAML at path, creating parent
// directories. The file is readable by the owner only since it may name
// credentials.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// applyEnv fills empty keys from the environment.
func (c *Config) applyEnv() {
	fill := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fill(&c.DBPath, EnvDBPath)
	fill(&c.Firestore.ProjectID, EnvFirebaseProject)
	fill(&c.Firestore.CredentialsFile, EnvCredentials)
	fill(&c.Firestore.EmulatorHost, EnvEmulatorHost)
	fill(&c.AI.APIKey, EnvGeminiAPIKey)
}

// validate checks that all required fields are present and well-formed, and
// fills defaults.
func (c *Config) validate() error {
	if c.Remote.Backend == "" {
		c.Remote.Backend = BackendFirestore
	}
	switch c.Remote.Backend {
	case BackendFirestore:
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore.project_id is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("remote.backend %q must be %q or %q", c.Remote.Backend, BackendFirestore, BackendMemory)
	}

	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = defaultTimeout
	}
	if c.Remote.Timeout < time.Second {
		return fmt.Errorf("remote.timeout %v is too short (minimum 1s)", c.Remote.Timeout)
	}
	if c.Remote.MaxAttempts == 0 {
		c.Remote.MaxAttempts = defaultMaxAttempts
	}
	if c.Remote.MaxAttempts < 1 || c.Remote.MaxAttempts > 10 {
		return fmt.Errorf("remote.max_attempts %d must be between 1 and 10", c.Remote.MaxAttempts)
	}

	if c.Connectivity.ProbeAddress == "" {
		c.Connectivity.ProbeAddress = defaultProbeAddress
		if c.Firestore.EmulatorHost != "" {
			c.Connectivity.ProbeAddress = c.Firestore.EmulatorHost
		}
	}
	if _, _, err := net.SplitHostPort(c.Connectivity.ProbeAddress); err != nil {
		return fmt.Errorf("connectivity.probe_address %q must be host:port", c.Connectivity.ProbeAddress)
	}
	if c.Connectivity.ProbeInterval == 0 {
		c.Connectivity.ProbeInterval = defaultProbeInterval
	}
	if c.Connectivity.ProbeInterval < time.Second {
		return fmt.Errorf("connectivity.probe_interval %v is too short (minimum 1s)", c.Connectivity.ProbeInterval)
	}
	if c.Connectivity.ProbeInterval > 5*time.Minute {
		return fmt.Errorf("connectivity.probe_interval %v is too long (maximum 5m)", c.Connectivity.ProbeInterval)
	}

	if c.HTTP.Listen == "" {
		c.HTTP.Listen = defaultListen
	}
	if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
		return fmt.Errorf("http.listen %q must be host:port", c.HTTP.Listen)
	}
	for _, o := range c.HTTP.AllowOrigins {
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("http.allow_origins entry %q must start with http:// or https://", o)
		}
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
		if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
			return fmt.Errorf("telemetry.sample_ratio %v must be between 0 and 1", c.Telemetry.SampleRatio)
		}
		if c.Telemetry.ExportInterval != 0 && c.Telemetry.ExportInterval < time.Second {
			return fmt.Errorf("telemetry.export_interval %v is too short (minimum 1s)", c.Telemetry.ExportInterval)
		}
	}

	return nil
}
