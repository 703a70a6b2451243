package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/AaroSnid/stm32-driver-sync/internal/metrics"
)

func TestWriteTextfile(t *testing.T) {
	before := counterValue(t, "driversync_driver_not_found_total")

	metrics.GitCloneSucceeded("https://example.com/drivers.git", time.Now().Add(-time.Second))
	metrics.DriverInstalled("folder", "added", 3)
	metrics.DriverNotFound()

	if exp, act := before+1, counterValue(t, "driversync_driver_not_found_total"); exp != act {
		t.Fatalf("expected %v, got %v", exp, act)
	}

	path := filepath.Join(t.TempDir(), "driversync.prom")
	if err := metrics.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, exp := range []string{
		`driversync_driver_installed_total{action="added",layout="folder"}`,
		`driversync_git_clone_duration_seconds_count{repo="https://example.com/drivers.git"}`,
		"driversync_driver_not_found_total",
	} {
		if !strings.Contains(string(bs), exp) {
			t.Errorf("expected %q in textfile:\n%s", exp, bs)
		}
	}
}

func TestGitCloneFailed(t *testing.T) {
	metrics.GitCloneFailed("https://example.com/private.git")

	n, err := testutil.GatherAndCount(metrics.Registry, "driversync_git_clone_failed_total")
	if err != nil {
		t.Fatal(err)
	}
	if n < 1 {
		t.Fatalf("expected at least one failed clone series, got %d", n)
	}
}

func TestRegistryHasNoRuntimeCollectors(t *testing.T) {
	families, err := metrics.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "driversync_") {
			t.Errorf("unexpected metric %s", f.GetName())
		}
	}
}

func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) == 1 {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}
