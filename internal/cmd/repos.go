package cmd

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/packastack/packastack-core/providers/api/launchpad"
)

type reposOptions struct {
	filters []string
	exclude bool
}

func newReposCmd(a *app) *cobra.Command {
	opts := reposOptions{}

	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List the packaging repositories of a Launchpad team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := url.Parse(a.cfg.LaunchpadURL)
			if err != nil {
				return fmt.Errorf("invalid launchpad url: %w", err)
			}

			pages, err := a.pageFetcher()
			if err != nil {
				return err
			}

			repos, err := launchpad.NewClient(pages, base).TeamRepositories(cmd.Context(), a.cfg.Team)
			if err != nil {
				return err
			}
			repos = launchpad.FilterRepositories(repos, opts.filters, opts.exclude)
			a.log.Info("repositories listed", "team", a.cfg.Team, "count", len(repos))

			return a.print(cmd.OutOrStdout(), repos, func(w io.Writer) {
				for _, r := range repos {
					fmt.Fprintf(w, "%s\t%s\n", r.Name, r.URL)
				}
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Repository name or glob to keep (repeatable)")
	cmd.Flags().BoolVar(&opts.exclude, "exclude", false, "Drop the repositories matching --filter instead")

	return cmd
}
