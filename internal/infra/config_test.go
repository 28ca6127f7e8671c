package infra

import (
	"reflect"
	"testing"
	"time"

	"promptfusion/internal/domain"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("PROVIDERS", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerConcurrency != 2 {
		t.Fatalf("WorkerConcurrency = %d, want 2", cfg.WorkerConcurrency)
	}
	if cfg.WorkerRateLimit != 10 || cfg.WorkerRateWindow != time.Minute {
		t.Fatalf("rate limit = %d per %s, want 10 per 1m", cfg.WorkerRateLimit, cfg.WorkerRateWindow)
	}
	if cfg.FluxPollAttempts != 30 || cfg.FluxPollInterval != 2*time.Second {
		t.Fatalf("flux polling = %d x %s, want 30 x 2s", cfg.FluxPollAttempts, cfg.FluxPollInterval)
	}
	if !reflect.DeepEqual(cfg.Providers, domain.AllProviders()) {
		t.Fatalf("Providers = %v, want all providers", cfg.Providers)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
}

func TestLoadConfigParsesProviderSubset(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PROVIDERS", "ideogram,FLUX_PRO_2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []domain.Provider{domain.ProviderIdeogram, domain.ProviderFluxPro2}
	if !reflect.DeepEqual(cfg.Providers, want) {
		t.Fatalf("Providers = %v, want %v", cfg.Providers, want)
	}
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PROVIDERS", "IDEOGRAM,MIDJOURNEY")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should reject unknown providers")
	}
}

func TestLoadConfigMemoryStoreWithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("QUEUE_DRIVER", "memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreDriver != "memory" {
		t.Fatalf("StoreDriver = %q, want memory", cfg.StoreDriver)
	}
}

func TestLoadConfigRequiresDatabaseForPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "postgres")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should require DATABASE_URL")
	}
}
