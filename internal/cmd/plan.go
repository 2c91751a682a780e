package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/packastack/packastack-core/packastack"
)

type planOptions struct {
	strategy   string
	tags       []string
	describe   string
	tarballDir string
}

func newPlanCmd(a *app) *cobra.Command {
	opts := planOptions{}

	cmd := &cobra.Command{
		Use:   "plan <package>",
		Short: "Select the import strategy and Debian version for an upstream HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := packastack.ParseStrategy(opts.strategy)
			if err != nil {
				return err
			}

			req := packastack.ImportRequest{
				Package:  args[0],
				Strategy: strategy,
				HeadTags: opts.tags,
				Describe: opts.describe,
			}
			if opts.tarballDir != "" {
				req.ExistingVersion = packastack.TarballDirLookup(opts.tarballDir)
			}

			plan, err := packastack.PlanImport(cmd.Context(), req)
			if err != nil {
				return err
			}
			a.log.Info("import planned", "package", args[0], "strategy", plan.Strategy, "version", plan.DebianVersion)

			return a.print(cmd.OutOrStdout(), plan, func(w io.Writer) {
				fmt.Fprintf(w, "strategy: %s\n", plan.Strategy)
				fmt.Fprintf(w, "upstream: %s\n", plan.UpstreamVersion)
				fmt.Fprintf(w, "debian: %s\n", plan.DebianVersion)
				fmt.Fprintf(w, "tarball: %s\n", plan.OrigTarball)
			})
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", string(packastack.StrategyAuto), "Import strategy: auto, release, candidate, beta or snapshot")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Tag pointing at the upstream HEAD (repeatable)")
	cmd.Flags().StringVar(&opts.describe, "describe", "", "'git describe --long --tags' output of HEAD, for snapshots")
	cmd.Flags().StringVar(&opts.tarballDir, "tarball-dir", "", "Directory holding previously imported orig tarballs")

	return cmd
}
