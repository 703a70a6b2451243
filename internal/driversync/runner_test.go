package driversync_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AaroSnid/stm32-driver-sync/internal/config"
	"github.com/AaroSnid/stm32-driver-sync/internal/driver"
	"github.com/AaroSnid/stm32-driver-sync/internal/driversync"
	dsfs "github.com/AaroSnid/stm32-driver-sync/internal/fs"
)

// fakeSynchronizer "clones" by copying a fixture directory.
type fakeSynchronizer struct {
	fixture  string
	path     string
	err      error
	executed int
	closed   int
}

func (f *fakeSynchronizer) Execute(context.Context) error {
	f.executed++
	if f.err != nil {
		// Leave a half-written clone behind, as an interrupted clone does.
		if err := os.MkdirAll(filepath.Join(f.path, ".git"), 0o755); err != nil {
			return err
		}
		return f.err
	}
	if err := os.RemoveAll(f.path); err != nil {
		return err
	}
	return dsfs.CopyTree(f.fixture, f.path)
}

func (f *fakeSynchronizer) Close(context.Context) error {
	f.closed++
	return os.RemoveAll(f.path)
}

func (f *fakeSynchronizer) Path() string {
	return f.path
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		p := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		bs, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[filepath.ToSlash(rel)] = string(bs)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

var repository = map[string]string{
	"ICM-42688-P/icm_42688.c":    "icm source",
	"ICM-42688-P/icm_42688.h":    "icm header",
	"ICM-42688-P/docs/README.md": "docs",
	"SN74HC595/sn74hc595.c":      "shift register source",
	"SN74HC595/sn74hc595.h":      "shift register header",
	"unrelated.c":                "not a driver",
}

type fixture struct {
	project *driver.Project
	sync    *fakeSynchronizer
}

func newFixture(t *testing.T, repo map[string]string) *fixture {
	t.Helper()

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"Core/Src/main.c": "main", "Core/Inc/main.h": "main"})

	project, err := driver.NewProject(root, config.Default().Layout)
	if err != nil {
		t.Fatal(err)
	}

	remote := t.TempDir()
	writeFiles(t, remote, repo)

	return &fixture{
		project: project,
		sync:    &fakeSynchronizer{fixture: remote, path: project.Clone},
	}
}

func (f *fixture) run(t *testing.T, requested ...string) (*driversync.Report, string, error) {
	t.Helper()
	var out bytes.Buffer
	allowList := driver.NewAllowList(config.DefaultDrivers...)
	report, err := driversync.New(f.project, allowList, f.sync).WithOutput(&out).Run(context.Background(), requested)
	return report, out.String(), err
}

func TestRun(t *testing.T) {
	f := newFixture(t, repository)

	report, out, err := f.run(t, "icm-42688-p", "bogus-driver", "sn74hc595")
	if err != nil {
		t.Fatal(err)
	}

	root := f.project.Root
	exp := strings.Join([]string{
		"Processing 2 driver(s): ICM-42688-P, SN74HC595",
		"Cloning driver repository...",
		"Processing driver: ICM-42688-P",
		"  Adding new folder driver ICM-42688-P",
		"Processing driver: SN74HC595",
		"  Adding new folder driver SN74HC595",
		"Removing temporary driver repository",
		"",
		"If using CMake, make sure these paths are included:",
		"",
		"Include directories:",
		"  " + filepath.Join(root, "Drivers", "ICM-42688-P"),
		"  " + filepath.Join(root, "Drivers", "SN74HC595"),
		"",
		"Source directories:",
		"  " + filepath.Join(root, "Drivers", "ICM-42688-P", "icm_42688.c"),
		"  " + filepath.Join(root, "Drivers", "SN74HC595", "sn74hc595.c"),
		"",
	}, "\n")
	if diff := cmp.Diff(exp, out); diff != "" {
		t.Fatalf("unexpected output (-want,+got):\n%s", diff)
	}

	expTree := map[string]string{
		"Core/Src/main.c":                    "main",
		"Core/Inc/main.h":                    "main",
		"Drivers/ICM-42688-P/icm_42688.c":    "icm source",
		"Drivers/ICM-42688-P/icm_42688.h":    "icm header",
		"Drivers/ICM-42688-P/docs/README.md": "docs",
		"Drivers/SN74HC595/sn74hc595.c":      "shift register source",
		"Drivers/SN74HC595/sn74hc595.h":      "shift register header",
	}
	if diff := cmp.Diff(expTree, readTree(t, root)); diff != "" {
		t.Fatalf("unexpected project tree (-want,+got):\n%s", diff)
	}

	if f.sync.executed != 1 || f.sync.closed != 1 {
		t.Fatalf("expected one clone and one cleanup, got %d and %d", f.sync.executed, f.sync.closed)
	}
	if len(report.Results) != 2 || len(report.Missing) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRunIdempotent(t *testing.T) {
	f := newFixture(t, repository)

	if _, _, err := f.run(t, "ICM-42688-P", "SN74HC595"); err != nil {
		t.Fatal(err)
	}
	first := readTree(t, f.project.Root)

	report, out, err := f.run(t, "ICM-42688-P", "SN74HC595", "SN74HC595")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(first, readTree(t, f.project.Root)); diff != "" {
		t.Fatalf("second run changed the project (-want,+got):\n%s", diff)
	}
	if !strings.Contains(out, "  Updating existing folder driver ICM-42688-P") {
		t.Fatalf("expected folder driver update, got:\n%s", out)
	}
	if exp, act := 2, len(report.Hints.Sources()); exp != act {
		t.Fatalf("expected %d sources, got %d", exp, act)
	}
}

func TestRunMissingDriver(t *testing.T) {
	f := newFixture(t, map[string]string{"SN74HC595/sn74hc595.c": "shift register source"})

	report, out, err := f.run(t, "ICM-42688-P", "SN74HC595")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out, "  Driver ICM-42688-P not found in repository\n") {
		t.Fatalf("expected not found message, got:\n%s", out)
	}
	if diff := cmp.Diff([]string{"ICM-42688-P"}, report.Missing); diff != "" {
		t.Fatalf("unexpected missing drivers (-want,+got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{filepath.Join(f.project.Drivers, "SN74HC595", "sn74hc595.c")}, report.Hints.Sources()); diff != "" {
		t.Fatalf("unexpected sources (-want,+got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(f.project.Drivers, "ICM-42688-P")); !os.IsNotExist(err) {
		t.Fatalf("expected missing driver not to be installed, got %v", err)
	}
}

func TestRunOnlyMissingDrivers(t *testing.T) {
	f := newFixture(t, map[string]string{"OTHER/other.c": ""})

	report, out, err := f.run(t, "ICM-42688-P")
	if err != nil {
		t.Fatal(err)
	}
	if !report.Hints.Empty() {
		t.Fatal("expected no hints")
	}
	if strings.Contains(out, "Include directories:") || strings.Contains(out, "Source directories:") {
		t.Fatalf("expected empty report, got:\n%s", out)
	}
}

func TestRunNoValidDrivers(t *testing.T) {
	f := newFixture(t, repository)

	_, out, err := f.run(t, "W25Q64JV", "bogus")
	if !errors.Is(err, driversync.ErrNoValidDrivers) {
		t.Fatalf("expected ErrNoValidDrivers, got %v", err)
	}
	if out != "" {
		t.Fatalf("expected no output, got:\n%s", out)
	}
	if f.sync.executed != 0 {
		t.Fatal("expected no clone")
	}
}

func TestRunCloneFailure(t *testing.T) {
	f := newFixture(t, repository)
	f.sync.err = errors.New("authentication required")

	_, out, err := f.run(t, "ICM-42688-P")
	if err == nil || err.Error() != "authentication required" {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "Processing driver:") {
		t.Fatalf("expected no driver processing, got:\n%s", out)
	}
	if f.sync.closed != 0 {
		t.Fatal("expected failed clone not to be closed")
	}
	if _, err := os.Stat(filepath.Join(f.project.Clone, ".git")); err != nil {
		t.Fatalf("expected failed clone to be left in place: %v", err)
	}
	if _, err := os.Stat(f.project.Drivers); !os.IsNotExist(err) {
		t.Fatalf("expected project to be untouched, got %v", err)
	}
}

func TestRunInstallFailureCleansUp(t *testing.T) {
	// A flat driver entry that is a plain file cannot be listed.
	f := newFixture(t, map[string]string{
		"SN74HC595":   "",
		"SN74HC595.c": "shift register source",
		"unrelated.c": "not a driver",
	})

	_, out, err := f.run(t, "SN74HC595")
	if err == nil {
		t.Fatal("expected error")
	}
	if f.sync.closed != 1 {
		t.Fatal("expected cleanup after failure")
	}
	if _, err := os.Stat(f.project.Clone); !os.IsNotExist(err) {
		t.Fatalf("expected clone to be removed, got %v", err)
	}
	if !strings.HasSuffix(out, "Removing temporary driver repository\n") {
		t.Fatalf("expected no report after failure, got:\n%s", out)
	}
	if diff := cmp.Diff(map[string]string{"main.c": "main"}, readTree(t, f.project.Src)); diff != "" {
		t.Fatalf("unexpected Core/Src (-want,+got):\n%s", diff)
	}
}

func TestRunSummaryAndCMake(t *testing.T) {
	f := newFixture(t, repository)

	var out bytes.Buffer
	allowList := driver.NewAllowList(config.DefaultDrivers...)
	_, err := driversync.New(f.project, allowList, f.sync).
		WithOutput(&out).
		WithSummary(true).
		WithCMakeTarget("firmware").
		Run(context.Background(), []string{"ICM-42688-P", "SN74HC595"})
	if err != nil {
		t.Fatal(err)
	}

	for _, exp := range []string{
		"target_include_directories(firmware PRIVATE",
		"target_sources(firmware PRIVATE",
		"Driver",
		"ICM-42688-P",
		"SN74HC595",
		"folder",
		"added",
	} {
		if !strings.Contains(out.String(), exp) {
			t.Errorf("expected %q in output:\n%s", exp, out.String())
		}
	}
}

func TestRunProgress(t *testing.T) {
	f := newFixture(t, repository)

	var out, bar bytes.Buffer
	allowList := driver.NewAllowList(config.DefaultDrivers...)
	_, err := driversync.New(f.project, allowList, f.sync).
		WithOutput(&out).
		WithProgress(&bar).
		Run(context.Background(), []string{"ICM-42688-P"})
	if err != nil {
		t.Fatal(err)
	}
	if bar.Len() == 0 {
		t.Fatal("expected progress output")
	}
	if strings.Contains(out.String(), "installing") {
		t.Fatal("expected progress bar on its own writer")
	}
}
