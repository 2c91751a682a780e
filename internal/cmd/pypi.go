package cmd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/packastack/packastack-core/providers/api/pip"
	"github.com/packastack/packastack-core/providers/versioneer"
)

type pypiResult struct {
	*pip.UpstreamRelease
	Packaged    string `json:"packaged,omitempty"`
	NeedsUpdate bool   `json:"needs_update"`
}

func newPyPICmd(a *app) *cobra.Command {
	var packaged string

	cmd := &cobra.Command{
		Use:   "pypi <project>",
		Short: "Show the newest PyPI release of a project as a Debian version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := url.Parse(a.cfg.PyPIURL)
			if err != nil {
				return fmt.Errorf("invalid pypi url: %w", err)
			}
			client := pip.NewPyPiClient(&http.Client{Timeout: a.cfg.Timeout}, base)
			client.UserAgent = a.cfg.UserAgent

			latest, err := pip.LatestRelease(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}

			res := pypiResult{UpstreamRelease: latest, Packaged: packaged}
			if packaged != "" {
				res.NeedsUpdate = versioneer.Compare(latest.DebianVersion, packaged) > 0
			}

			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s (%s)\n", latest.Name, latest.DebianVersion, latest.Version)
				if latest.URL != "" {
					fmt.Fprintln(w, latest.URL)
				}
				if packaged != "" {
					fmt.Fprintf(w, "packaged: %s (needs update: %t)\n", packaged, res.NeedsUpdate)
				}
			})
		},
	}

	cmd.Flags().StringVar(&packaged, "packaged", "", "Packaged Debian version to compare against")

	return cmd
}
