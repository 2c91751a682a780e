// Package cmd implements the packastack command line.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/packastack/packastack-core/internal/config"
	"github.com/packastack/packastack-core/internal/logsink"
	"github.com/packastack/packastack-core/providers/fetchers"
)

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	cfg     *config.Config
	sink    *logsink.Sink
	log     *slog.Logger
	verbose bool
	asJSON  bool
}

// NewRootCmd builds the packastack command tree.
func NewRootCmd(buildVersion string) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "packastack",
		Short:         "Track and import OpenStack upstream releases for Ubuntu packaging",
		Version:       buildVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg

			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.sink = logsink.New(cmd.ErrOrStderr(), level)
			path, err := a.sink.EnsureConfigured(cfg.LogDir)
			if err != nil {
				return err
			}
			a.log = a.sink.Logger().With("command", cmd.Name())
			a.log.Debug("logging configured", "path", path)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.sink == nil {
				return nil
			}
			return a.sink.Close()
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug messages to stderr")
	cmd.PersistentFlags().BoolVar(&a.asJSON, "json", false, "Print results as JSON")

	cmd.AddCommand(newUscanCmd(a))
	cmd.AddCommand(newConvertCmd(a))
	cmd.AddCommand(newReposCmd(a))
	cmd.AddCommand(newPyPICmd(a))
	cmd.AddCommand(newCheckCmd(a))
	cmd.AddCommand(newPlanCmd(a))
	cmd.AddCommand(newReleasesCmd(a))

	return cmd
}

// pageFetcher returns the configured HTTP fetcher with retries, cached for the
// duration of the command.
func (a *app) pageFetcher() (fetchers.PageFetcher, error) {
	hf := fetchers.NewHTTPFetcher(nil, a.cfg.Timeout)
	hf.UserAgent = a.cfg.UserAgent
	retry := fetchers.NewRetryFetcher(hf, fetchers.WithAttempts(a.cfg.Retries))
	if a.cfg.CacheSize == 0 {
		return retry, nil
	}
	return fetchers.NewCachingFetcher(retry, a.cfg.CacheSize)
}

// print writes v as indented JSON with --json, otherwise calls text.
func (a *app) print(w io.Writer, v interface{}, text func(w io.Writer)) error {
	if !a.asJSON {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("unable to encode the result: %w", err)
	}
	return nil
}

// ExitError carries a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit code of the error.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Execute runs the command line and returns the process exit code.
func Execute(buildVersion string, args []string) int {
	root := NewRootCmd(buildVersion)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var coded *ExitError
		if errors.As(err, &coded) {
			return coded.ExitCode()
		}
		return 1
	}
	return 0
}
