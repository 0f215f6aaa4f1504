package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/kailas-cloud/planguard/internal/domain/plan"
	"github.com/kailas-cloud/planguard/internal/domain/role"
)

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 0}}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	for _, driver := range []string{DriverRedis, DriverValkey} {
		t.Run(driver, func(t *testing.T) {
			cfg := Config{
				HTTP:     HTTPConfig{Port: 8080},
				Database: DatabaseConfig{Driver: driver},
			}
			cfg.ApplyDefaults()

			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error for missing addrs")
			}
		})
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "postgres"},
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	for _, pct := range []float64{-1, 101} {
		cfg := Config{HTTP: HTTPConfig{Port: 8080}, Alerts: AlertsConfig{DefaultThresholdPct: pct}}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for threshold %v", pct)
		}
	}
}

func TestValidate_StreamNeedsRedis(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{Port: 8080},
		Alerts: AlertsConfig{Stream: StreamConfig{Enabled: true}},
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for stream sink on memory driver")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("expected driver=memory, got %q", cfg.Database.Driver)
	}
	if cfg.Ledger.Timeout().Milliseconds() != 2000 {
		t.Errorf("expected ledger timeout 2s, got %s", cfg.Ledger.Timeout())
	}
	if cfg.Ledger.ArchiveTTLDays != 400 {
		t.Errorf("expected ArchiveTTLDays=400, got %d", cfg.Ledger.ArchiveTTLDays)
	}
	if cfg.Ledger.KeyPrefix != "planguard:" {
		t.Errorf("expected KeyPrefix='planguard:', got %q", cfg.Ledger.KeyPrefix)
	}
	if cfg.Alerts.DefaultThresholdPct != 80 {
		t.Errorf("expected DefaultThresholdPct=80, got %v", cfg.Alerts.DefaultThresholdPct)
	}
	if cfg.Alerts.Stream.Name != "planguard:alerts" {
		t.Errorf("expected stream name 'planguard:alerts', got %q", cfg.Alerts.Stream.Name)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Ledger: LedgerConfig{TimeoutMs: 150, KeyPrefix: "custom:"},
		Alerts: AlertsConfig{DefaultThresholdPct: 90, Workers: 8},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Ledger.TimeoutMs != 150 {
		t.Errorf("expected TimeoutMs=150, got %d", cfg.Ledger.TimeoutMs)
	}
	if cfg.Alerts.Stream.Name != "custom:alerts" {
		t.Errorf("expected stream name to follow key prefix, got %q", cfg.Alerts.Stream.Name)
	}
	if cfg.Alerts.Workers != 8 {
		t.Errorf("expected Workers=8, got %d", cfg.Alerts.Workers)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("PLANGUARD_TEST_PORT", "9191")

	cfg, err := Parse([]byte(`
http:
  port: ${PLANGUARD_TEST_PORT}
database:
  driver: ${PLANGUARD_TEST_DRIVER:-memory}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9191 {
		t.Errorf("expected port 9191, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %q", cfg.Database.Driver)
	}
}

func TestParse_Catalog(t *testing.T) {
	cfg, err := Parse([]byte(`
http:
  port: 8080
catalog:
  roles:
    viewer: [view-dashboard]
    member: [invoke-models]
    admin: [manage-members]
    owner: [edit-billing]
  plans:
    - id: free
      token_quota: 1000
    - id: STARTER
      models: [gpt-4]
      cost_quota: 12.5
    - id: professional
      models: [gpt-4, gpt-4o]
    - id: enterprise
      all_models: true
  models:
    - id: gpt-4
      provider: openai
      tier: paid
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	grants, err := cfg.Catalog.RoleGrants()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grants[role.Owner]) != 1 || grants[role.Owner][0] != role.EditBilling {
		t.Errorf("unexpected owner grants: %v", grants[role.Owner])
	}

	defs, err := cfg.Catalog.PlanDefinitions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 4 {
		t.Fatalf("expected 4 plans, got %d", len(defs))
	}
	if defs[1].Plan != plan.Starter || defs[1].CostQuota == nil || *defs[1].CostQuota != 12_500_000 {
		t.Errorf("unexpected starter definition: %+v", defs[1])
	}
	if !defs[3].ModelAccess.IsAll() {
		t.Error("enterprise must allow all models")
	}
	if defs[0].DisplayName != "free" {
		t.Errorf("expected display name fallback, got %q", defs[0].DisplayName)
	}

	ms, err := cfg.Catalog.ModelList()
	if err != nil || len(ms) != 1 || ms[0].ID() != "gpt-4" {
		t.Errorf("unexpected models: %v (err=%v)", ms, err)
	}
}

func TestParse_InvalidCatalog(t *testing.T) {
	tests := map[string]string{
		"unknown role": "catalog:\n  roles:\n    guest: [view-dashboard]\n",
		"unknown plan": "catalog:\n  plans:\n    - id: gold\n",
		"bad tier":     "catalog:\n  models:\n    - id: m\n      tier: premium\n",
		"empty model":  "catalog:\n  models:\n    - tier: free\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte("http:\n  port: 8080\n" + body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := "models:\n  - id: llama-3-8b\n    tier: free\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ms, _ := c.ModelList()
	if len(ms) != 1 || !ms[0].IsFree() {
		t.Errorf("unexpected models: %v", ms)
	}
}

func TestLoadCatalogFile_Missing(t *testing.T) {
	if _, err := LoadCatalogFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_ShippedEnvironments(t *testing.T) {
	t.Setenv("DB_ADDR", "valkey:6379")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("PLANGUARD_API_KEY", "k1")

	for _, env := range []string{"local", "prod"} {
		t.Run(env, func(t *testing.T) {
			cfg, err := Load(env)
			if err != nil {
				t.Fatalf("Load(%s): %v", env, err)
			}
			if cfg.HTTP.Port != 8080 {
				t.Errorf("port: got %d", cfg.HTTP.Port)
			}
		})
	}

	cfg, err := Load("prod")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Driver != DriverValkey || cfg.Database.Addrs[0] != "valkey:6379" {
		t.Errorf("prod database: got %+v", cfg.Database)
	}
	if !cfg.Alerts.Stream.Enabled || len(cfg.Auth.APIKeys) != 1 {
		t.Errorf("prod alerts/auth: got %+v / %v", cfg.Alerts.Stream, cfg.Auth.APIKeys)
	}
}

func TestLoadCatalogFile_Example(t *testing.T) {
	_, b, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(b))), "config", "catalog.example.yaml")

	c, err := LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("LoadCatalogFile: %v", err)
	}
	defs, err := c.PlanDefinitions()
	if err != nil || len(defs) != 4 {
		t.Fatalf("plans: got %d, err %v", len(defs), err)
	}
	grants, err := c.RoleGrants()
	if err != nil || len(grants[role.Owner]) != 4 {
		t.Errorf("owner grants: got %v, err %v", grants[role.Owner], err)
	}
}
