package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/packastack/packastack-core/providers/fetchers"
	"github.com/packastack/packastack-core/providers/parsers"
)

type releaseInfo struct {
	Cycle         string `json:"cycle"`
	PreviousCycle string `json:"previous_cycle,omitempty"`
	Project       string `json:"project,omitempty"`
	LatestVersion string `json:"latest_version,omitempty"`
	TarballURL    string `json:"tarball_url,omitempty"`
	SignatureURL  string `json:"signature_url,omitempty"`
}

func newReleasesCmd(a *app) *cobra.Command {
	var (
		cycle       string
		tarballsURL string
	)

	cmd := &cobra.Command{
		Use:   "releases <releases-dir> [project]",
		Short: "Read cycle and deliverable metadata from a checkout of the releases repository",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := parsers.NewReleasesRepo(fetchers.NewDirFetcher(args[0]))
			ctx := cmd.Context()

			info := releaseInfo{Cycle: cycle}
			if info.Cycle == "" {
				current, err := repo.CurrentCycle(ctx)
				if err != nil {
					return err
				}
				info.Cycle = current
			}
			previous, err := repo.PreviousCycle(ctx)
			if err != nil {
				return err
			}
			info.PreviousCycle = previous

			if len(args) == 2 {
				info.Project = args[1]
				d, err := repo.Deliverable(ctx, info.Cycle, args[1])
				if err != nil {
					return err
				}
				if d == nil {
					a.log.Warn("no deliverable", "cycle", info.Cycle, "project", args[1])
				} else if d.LatestVersion != "" {
					info.LatestVersion = d.LatestVersion
					info.TarballURL = d.TarballURL(tarballsURL, d.LatestVersion)
					info.SignatureURL = d.SignatureURL(tarballsURL, d.LatestVersion)
				}
			}

			return a.print(cmd.OutOrStdout(), info, func(w io.Writer) {
				fmt.Fprintf(w, "cycle: %s\n", info.Cycle)
				if info.PreviousCycle != "" {
					fmt.Fprintf(w, "previous: %s\n", info.PreviousCycle)
				}
				if info.LatestVersion != "" {
					fmt.Fprintf(w, "latest: %s\n%s\n%s\n", info.LatestVersion, info.TarballURL, info.SignatureURL)
				}
			})
		},
	}

	cmd.Flags().StringVar(&cycle, "cycle", "", "Release cycle (defaults to the one under development)")
	cmd.Flags().StringVar(&tarballsURL, "tarballs-url", parsers.TarballsBaseURL, "Base URL of the release tarballs")

	return cmd
}
