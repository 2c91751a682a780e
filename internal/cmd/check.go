package cmd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/packastack/packastack-core/packastack"
	"github.com/packastack/packastack-core/providers/api/pip"
)

type checkOptions struct {
	pypi     bool
	failFast bool
}

type checkResult struct {
	Updates  []packastack.Update `json:"updates"`
	Failures []checkFailure      `json:"failures,omitempty"`
}

type checkFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

func newCheckCmd(a *app) *cobra.Command {
	opts := checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <packaging-dir>...",
		Short: "Check packaging repositories for newer upstream releases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var uc packastack.UpdatesChecker
			if opts.pypi {
				base, err := url.Parse(a.cfg.PyPIURL)
				if err != nil {
					return fmt.Errorf("invalid pypi url: %w", err)
				}
				client := pip.NewPyPiClient(&http.Client{Timeout: a.cfg.Timeout}, base)
				client.UserAgent = a.cfg.UserAgent
				uc = packastack.NewPyPIUpdatesChecker(client)
			} else {
				pages, err := a.pageFetcher()
				if err != nil {
					return err
				}
				uc = packastack.NewWatchUpdatesChecker(pages)
			}

			sources := make([]packastack.PackagingSource, 0, len(args))
			for _, dir := range args {
				sources = append(sources, packastack.NewDirSource(dir))
			}

			updates, failures, err := packastack.LastUpdates(cmd.Context(), uc, sources, opts.failFast)
			if err != nil {
				return err
			}

			res := checkResult{Updates: updates}
			for _, f := range failures {
				a.log.Warn("check failed", "source", f.Source, "error", f.Err)
				res.Failures = append(res.Failures, checkFailure{Source: f.Source, Error: f.Err.Error()})
			}

			if err := a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				for _, u := range updates {
					mark := " "
					if u.NeedsUpdate {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %s\t%s\t%s\n", mark, u.Name, u.CurrentVersion, u.Version)
				}
				for _, f := range res.Failures {
					fmt.Fprintf(w, "! %s\t%s\n", f.Source, f.Error)
				}
			}); err != nil {
				return err
			}

			if len(failures) > 0 {
				return &ExitError{Code: 2, Err: fmt.Errorf("%d of %d checks failed", len(failures), len(sources))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.pypi, "pypi", false, "Look releases up on PyPI instead of debian/watch")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "Stop at the first failing repository")

	return cmd
}
