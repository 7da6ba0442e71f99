package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	f.Close()
	return f.Name()
}

// clearEnv keeps the caller's environment out of Load.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDBPath, EnvCredentials, EnvEmulatorHost, EnvFirebaseProject, EnvGeminiAPIKey} {
		t.Setenv(k, "")
	}
}

func TestLoad_Valid(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
db_path: /var/lib/saleslive/local.db
firestore:
  project_id: saleslive-prod
  credentials_file: /etc/saleslive/key.json
remote:
  timeout: 5s
  max_attempts: 4
connectivity:
  probe_address: "example.com:443"
  probe_interval: 30s
http:
  listen: "0.0.0.0:9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "/var/lib/saleslive/local.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Firestore.ProjectID != "saleslive-prod" {
		t.Errorf("ProjectID = %q", cfg.Firestore.ProjectID)
	}
	if cfg.Remote.Backend != BackendFirestore {
		t.Errorf("Backend = %q, want default firestore", cfg.Remote.Backend)
	}
	if cfg.Remote.Timeout != 5*time.Second || cfg.Remote.MaxAttempts != 4 {
		t.Errorf("Remote = %+v", cfg.Remote)
	}
	if cfg.Connectivity.ProbeInterval != 30*time.Second {
		t.Errorf("ProbeInterval = %v, want 30s", cfg.Connectivity.ProbeInterval)
	}
	if cfg.HTTP.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q", cfg.HTTP.Listen)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
firestore:
  project_id: p
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Remote.Timeout != defaultTimeout || cfg.Remote.MaxAttempts != defaultMaxAttempts {
		t.Errorf("Remote = %+v, want defaults", cfg.Remote)
	}
	if cfg.Connectivity.ProbeAddress != defaultProbeAddress {
		t.Errorf("ProbeAddress = %q", cfg.Connectivity.ProbeAddress)
	}
	if cfg.Connectivity.ProbeInterval != defaultProbeInterval {
		t.Errorf("ProbeInterval = %v", cfg.Connectivity.ProbeInterval)
	}
	if cfg.HTTP.Listen != defaultListen {
		t.Errorf("Listen = %q", cfg.HTTP.Listen)
	}
}

func TestLoad_EmulatorBecomesReachabilityTarget(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
firestore:
  project_id: demo
  emulator_host: "localhost:8080"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Connectivity.ProbeAddress != "localhost:8080" {
		t.Errorf("ProbeAddress = %q, want emulator host", cfg.Connectivity.ProbeAddress)
	}
}

func TestLoad_EnvFillsEmptyKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvFirebaseProject, "from-env")
	t.Setenv(EnvCredentials, "/tmp/key.json")
	t.Setenv(EnvGeminiAPIKey, "gem-key")
	path := writeConfig(t, `
http:
  listen: "127.0.0.1:9999"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Firestore.ProjectID != "from-env" || cfg.Firestore.CredentialsFile != "/tmp/key.json" {
		t.Errorf("Firestore = %+v", cfg.Firestore)
	}
	if cfg.AI.APIKey != "gem-key" {
		t.Errorf("AI.APIKey = %q, want gem-key", cfg.AI.APIKey)
	}
}

func TestLoad_AIKeyFromFileWinsOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvGeminiAPIKey, "from-env")
	path := writeConfig(t, `
remote:
  backend: memory
ai:
  api_key: from-file
  model: gemini-2.0-flash-001
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AI.APIKey != "from-file" || cfg.AI.Model != "gemini-2.0-flash-001" {
		t.Errorf("AI = %+v", cfg.AI)
	}
}

func TestLoad_MemoryBackendNeedsNoProject(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
remote:
  backend: memory
`)
	if _, err := Load(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing project", `http: {listen: "127.0.0.1:1"}`},
		{"unknown backend", "remote: {backend: dynamo}"},
		{"timeout too short", "firestore: {project_id: p}\nremote: {timeout: 10ms}"},
		{"too many attempts", "firestore: {project_id: p}\nremote: {max_attempts: 50}"},
		{"probe without port", "firestore: {project_id: p}\nconnectivity: {probe_address: example.com}"},
		{"probe interval too short", "firestore: {project_id: p}\nconnectivity: {probe_interval: 100ms}"},
		{"probe interval too long", "firestore: {project_id: p}\nconnectivity: {probe_interval: 1h}"},
		{"bad listen", "firestore: {project_id: p}\nhttp: {listen: nope}"},
		{"origin without scheme", "firestore: {project_id: p}\nhttp: {allow_origins: [localhost:5173]}"},
		{"unknown key", "firestore: {project_id: p}\nunknown_key: x"},
		{"telemetry without endpoint", "firestore: {project_id: p}\ntelemetry: {insecure: true}"},
		{"sample ratio above one", "firestore: {project_id: p}\ntelemetry: {otlp_endpoint: \"c:4317\", sample_ratio: 2}"},
		{"export interval too short", "firestore: {project_id: p}\ntelemetry: {otlp_endpoint: \"c:4317\", export_interval: 10ms}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefaultPath(t *testing.T) {
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != "saleslive" {
		t.Errorf("DefaultPath = %q", path)
	}
}

func TestLoad_Telemetry(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
firestore:
  project_id: p
telemetry:
  otlp_endpoint: "localhost:4317"
  insecure: true
  service_name: "saleslive-till-2"
  instance_id: till-2
  sample_ratio: 0.5
  export_interval: 30s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telemetry == nil {
		t.Fatal("expected Telemetry to be non-nil")
	}
	if cfg.Telemetry.OTLPEndpoint != "localhost:4317" || !cfg.Telemetry.Insecure {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.ServiceName != "saleslive-till-2" {
		t.Errorf("ServiceName = %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.InstanceID != "till-2" || cfg.Telemetry.SampleRatio != 0.5 || cfg.Telemetry.ExportInterval != 30*time.Second {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := &Config{
		Firestore: FirestoreConfig{ProjectID: "p", EmulatorHost: "localhost:8080"},
		HTTP:      HTTPConfig{Listen: "127.0.0.1:8000"},
	}
	if err := in.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Firestore.EmulatorHost != "localhost:8080" || out.HTTP.Listen != "127.0.0.1:8000" {
		t.Errorf("round trip = %+v", out)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file: %v", err)
	}

	const key = "SALESLIVE_TEST_DOTENV"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=localhost:9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(key); got != "localhost:9090" {
		t.Errorf("%s = %q", key, got)
	}
}
