package di

import (
	"strings"
	"testing"

	"FxPipe/internal/repository/memory"
	"FxPipe/internal/service/cache"
	"FxPipe/pkg/config"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Bars = "memory"
	cfg.Log.Level = "error"
	return cfg
}

func TestInitializeRuntimeInMemory(t *testing.T) {
	rt, cleanup, err := InitializeRuntime(memoryConfig())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer cleanup()

	want := "fill-missing-bars,generate-signals,ingest-bars,ingest-history,notify,validate-bars"
	if got := strings.Join(rt.Jobs.Names(), ","); got != want {
		t.Fatalf("jobs = %s", got)
	}
	if rt.Runner == nil || rt.Logger == nil {
		t.Fatalf("runtime incomplete: %+v", rt)
	}
}

func TestProvideStoresMemory(t *testing.T) {
	s := ProvideStores(memoryConfig(), nil, nil, nil)
	if _, ok := s.Bars.(*memory.Store); !ok {
		t.Fatalf("bars store = %T", s.Bars)
	}
	if interface{}(s.Bars) != interface{}(s.Notifications) {
		t.Fatalf("memory backend should share one store")
	}
}

func TestProvideRateCacheFallsBackToTTL(t *testing.T) {
	c, cleanup, err := ProvideRateCache(memoryConfig(), nil)
	if err != nil {
		t.Fatalf("rate cache: %v", err)
	}
	defer cleanup()
	if _, ok := c.(*cache.TTLCache); !ok {
		t.Fatalf("cache = %T", c)
	}
}

func TestOptionalComponentsDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Scheduler.Enabled = false

	s, err := ProvideScheduler(cfg, nil, nil, nil)
	if err != nil || s != nil {
		t.Fatalf("scheduler should be nil when disabled: %v %v", s, err)
	}
	c, err := ProvideKafkaConsumer(cfg, nil, nil, nil)
	if err != nil || c != nil {
		t.Fatalf("consumer should be nil when kafka is off: %v %v", c, err)
	}
	pg, cleanup, err := ProvidePostgresClient(cfg, nil)
	if err != nil || pg != nil {
		t.Fatalf("postgres should not connect for memory storage: %v", err)
	}
	cleanup()
}
