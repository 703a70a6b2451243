// Package driversync runs one driver synchronization: validate the requested
// names, clone the driver repository, install each driver into the project,
// remove the clone and report the build hints.
package driversync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/AaroSnid/stm32-driver-sync/internal/driver"
	"github.com/AaroSnid/stm32-driver-sync/internal/hints"
	"github.com/AaroSnid/stm32-driver-sync/internal/logging"
	"github.com/AaroSnid/stm32-driver-sync/internal/metrics"
	"github.com/AaroSnid/stm32-driver-sync/internal/progress"
	"github.com/AaroSnid/stm32-driver-sync/internal/sync"
)

// ErrNoValidDrivers is returned when none of the requested names is on the
// allow-list. Nothing is cloned in that case.
var ErrNoValidDrivers = errors.New("no valid drivers requested")

// Runner drives a single synchronization. It is not reusable across projects
// and not safe for concurrent use.
type Runner struct {
	project      *driver.Project
	allowList    *driver.AllowList
	synchronizer sync.Synchronizer
	out          io.Writer
	progressOut  io.Writer
	summary      bool
	cmakeTarget  string
	log          *logging.Logger
}

// Report is what a run did.
type Report struct {
	Drivers []string // validated names, in processing order
	Results []*driver.Result
	Missing []string
	Hints   *hints.Accumulator
}

func New(project *driver.Project, allowList *driver.AllowList, synchronizer sync.Synchronizer) *Runner {
	return &Runner{
		project:      project,
		allowList:    allowList,
		synchronizer: synchronizer,
		out:          io.Discard,
		log:          logging.NewNop(),
	}
}

// WithOutput sets where progress lines and the report are printed.
func (r *Runner) WithOutput(w io.Writer) *Runner {
	r.out = w
	return r
}

func (r *Runner) WithLogger(log *logging.Logger) *Runner {
	r.log = log
	return r
}

// WithProgress renders a progress bar over the driver loop on w. A nil writer
// disables it.
func (r *Runner) WithProgress(w io.Writer) *Runner {
	r.progressOut = w
	return r
}

func (r *Runner) WithSummary(summary bool) *Runner {
	r.summary = summary
	return r
}

func (r *Runner) WithCMakeTarget(target string) *Runner {
	r.cmakeTarget = target
	return r
}

// Run synchronizes the requested drivers. Drivers missing from the repository
// are reported and skipped. Clone and filesystem errors abort the run; once
// the clone has succeeded it is removed whatever happens next.
func (r *Runner) Run(ctx context.Context, requested []string) (*Report, error) {
	report := &Report{
		Drivers: r.allowList.Filter(requested),
		Hints:   hints.NewAccumulator(),
	}

	if len(report.Drivers) == 0 {
		return report, ErrNoValidDrivers
	}

	fmt.Fprintf(r.out, "Processing %d driver(s): %s\n", len(report.Drivers), strings.Join(report.Drivers, ", "))

	fmt.Fprintln(r.out, "Cloning driver repository...")
	// A failed clone is left as the synchronizer left it.
	if err := r.synchronizer.Execute(ctx); err != nil {
		return report, err
	}

	err := r.install(report)
	r.cleanup(ctx)
	if err != nil {
		return report, err
	}

	if err := r.writeReport(report); err != nil {
		return report, err
	}

	return report, nil
}

func (r *Runner) install(report *Report) error {
	installer := driver.NewInstaller(r.project).WithOutput(r.out).WithLogger(r.log)

	var bar *progress.Bar
	if r.progressOut != nil {
		bar = progress.New(r.progressOut, len(report.Drivers), "installing")
	}
	defer bar.Finish()

	for _, name := range report.Drivers {
		fmt.Fprintf(r.out, "Processing driver: %s\n", name)
		bar.Describe(name)

		result, err := installer.Install(name)
		if errors.Is(err, driver.ErrNotFound) {
			fmt.Fprintf(r.out, "  Driver %s not found in repository\n", name)
			metrics.DriverNotFound()
			report.Missing = append(report.Missing, name)
			_ = bar.Add(1)
			continue
		} else if err != nil {
			return err
		}

		report.Results = append(report.Results, result)
		report.Hints.AddInclude(result.Includes...)
		report.Hints.AddSource(result.Sources...)
		metrics.DriverInstalled(result.Layout.String(), result.Action.String(), len(result.Copied))
		r.log.Debugf("driver %s %s (%s, %d files)", name, result.Action, result.Layout, len(result.Copied))

		_ = bar.Add(1)
	}

	return nil
}

// cleanup removes the clone. Failing to do so is reported but never fails
// the run.
func (r *Runner) cleanup(ctx context.Context) {
	fmt.Fprintln(r.out, "Removing temporary driver repository")

	if err := r.synchronizer.Close(ctx); err != nil {
		metrics.CleanupFailed()
		r.log.Warnf("Unable to remove %s folder, please remove manually", filepath.Base(r.synchronizer.Path()))
		r.log.Debugf("cleanup: %v", err)
	}
}

func (r *Runner) writeReport(report *Report) error {
	if err := report.Hints.Write(r.out); err != nil {
		return err
	}

	if r.cmakeTarget != "" {
		if err := report.Hints.WriteCMake(r.out, r.cmakeTarget); err != nil {
			return err
		}
	}

	if r.summary {
		return writeSummary(r.out, report)
	}

	return nil
}
