// Package cmd implements the driversync command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"

	"github.com/AaroSnid/stm32-driver-sync/internal/config"
	"github.com/AaroSnid/stm32-driver-sync/internal/driver"
	"github.com/AaroSnid/stm32-driver-sync/internal/driversync"
	"github.com/AaroSnid/stm32-driver-sync/internal/gitsync"
	"github.com/AaroSnid/stm32-driver-sync/internal/logging"
	"github.com/AaroSnid/stm32-driver-sync/internal/metrics"
)

const usage = "Usage: driversync <project_directory> <driver_1> <driver_2>..."

const (
	exitUsage          = 1
	exitNoValidDrivers = 2
)

// exitError carries the process exit code up to Run. err may be nil when the
// failure has already been reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

type rootParams struct {
	configFiles []string
	logLevel    logging.Level
	traceHTTP   bool
	progress    bool
	summary     bool
	cmakeTarget string
	metricsFile string
}

func newRootCommand(stdout, stderr io.Writer, lookuper envconfig.Lookuper) *cobra.Command {
	params := rootParams{logLevel: logging.LevelInfo}

	root := &cobra.Command{
		Use:   "driversync [flags] <project_directory> <driver_1> [<driver_2> ...]",
		Short: "Install STM32 drivers from the driver repository into a project",
		Long: `driversync clones the driver repository, copies the requested drivers into
the project (folder drivers into Drivers/<NAME>, flat drivers into Core/Src and
Core/Inc), removes the clone and prints the paths a CMake build has to include.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				fmt.Fprintln(cmd.OutOrStdout(), usage)
				return &exitError{code: exitUsage}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), params, args[0], args[1:], stdout, stderr, lookuper)
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	addRootFlags(root.Flags(), &params)

	return root
}

func addRootFlags(flags *pflag.FlagSet, params *rootParams) {
	flags.StringArrayVar(&params.configFiles, "config", nil, "configuration file or directory, may be repeated (default <project_directory>/"+config.DefaultFilename+" if present)")
	flags.Var(enumflag.New(&params.logLevel, "level", logging.LevelIds, enumflag.EnumCaseInsensitive), "log-level", "log level: debug, info, warn, error")
	flags.BoolVar(&params.traceHTTP, "trace-http", false, "log the HTTP requests and responses of the clone")
	flags.BoolVar(&params.progress, "progress", false, "show a progress bar while installing drivers")
	flags.BoolVar(&params.summary, "summary", false, "print a per-driver summary table")
	flags.StringVar(&params.cmakeTarget, "cmake-target", "", "print a CMake snippet adding the paths to this target")
	flags.StringVar(&params.metricsFile, "metrics-file", "", "write metrics in the Prometheus textfile format to this file")
}

func run(ctx context.Context, params rootParams, projectDir string, requested []string, stdout, stderr io.Writer, lookuper envconfig.Lookuper) error {
	log := logging.NewLogger(logging.Config{Level: params.logLevel, Output: stderr})

	// The driver names are checked before the project directory: a request
	// without a single valid driver exits 2 whatever the path.
	projectErr := checkProjectDir(projectDir)
	configDir := projectDir
	if projectErr != nil {
		configDir = ""
	}

	cfg, err := config.Load(params.configFiles, configDir)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	if err := cfg.ApplyEnv(ctx, lookuper); err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	allowList := driver.NewAllowList(cfg.Drivers...)
	if len(allowList.Filter(requested)) == 0 {
		fmt.Fprintln(stdout, "Warning: No valid drivers requested")
		return &exitError{code: exitNoValidDrivers}
	}

	if projectErr != nil {
		return &exitError{code: exitUsage, err: projectErr}
	}

	project, err := driver.NewProject(projectDir, cfg.Layout)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	if params.traceHTTP {
		gitsync.InstallTracing(logging.NewLogger(logging.Config{Level: logging.LevelDebug, Output: stderr}).With("component", "http"))
	}

	runner := driversync.New(project, allowList, gitsync.New(project.Clone, cfg.Repository, log)).
		WithOutput(stdout).
		WithLogger(log).
		WithSummary(params.summary).
		WithCMakeTarget(params.cmakeTarget)
	if params.progress {
		runner = runner.WithProgress(stderr)
	}

	_, err = runner.Run(ctx, requested)

	if params.metricsFile != "" {
		if werr := metrics.WriteTextfile(params.metricsFile); werr != nil {
			log.Warnf("failed to write metrics: %v", werr)
		}
	}

	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	return nil
}

func checkProjectDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("project directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("project directory: %s is not a directory", dir)
	}
	return nil
}

// Run executes the command line args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr, envconfig.OsLookuper())
	root.SetArgs(args)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", exit.err)
		}
		return exit.code
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitUsage
}

func Main() int {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}
