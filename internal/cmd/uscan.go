package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/packastack/packastack-core/providers/uscan"
)

type uscanOptions struct {
	packageName     string
	packagedVersion string
}

func newUscanCmd(a *app) *cobra.Command {
	opts := uscanOptions{}

	cmd := &cobra.Command{
		Use:   "uscan <debian-dir>",
		Short: "Scan the upstream locations of a debian/watch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := a.pageFetcher()
			if err != nil {
				return err
			}

			scanOpts := []uscan.Option{uscan.WithFetcher(pages)}
			if opts.packageName != "" {
				scanOpts = append(scanOpts, uscan.WithPackageName(opts.packageName))
			}
			if opts.packagedVersion != "" {
				scanOpts = append(scanOpts, uscan.WithPackagedVersion(opts.packagedVersion))
			}

			sc, err := uscan.NewScannerFromDir(cmd.Context(), args[0], scanOpts...)
			if err != nil {
				return err
			}
			res, err := sc.Scan(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info("scan finished", "dir", args[0], "matches", len(res.Matches), "needs_update", res.NeedsUpdate)

			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				latest, ok := res.Latest()
				if !ok {
					fmt.Fprintln(w, "no upstream release found")
					return
				}
				fmt.Fprintf(w, "latest: %s %s\n", latest.Version, latest.URL)
				if latest.SignatureURL != "" {
					fmt.Fprintf(w, "signature: %s\n", latest.SignatureURL)
				}
				if res.PackagedVersion != "" {
					fmt.Fprintf(w, "packaged: %s (needs update: %t)\n", res.PackagedVersion, res.NeedsUpdate)
				}
			})
		},
	}

	cmd.Flags().StringVar(&opts.packageName, "package", "", "Package name substituted for @PACKAGE@ (defaults to the changelog name)")
	cmd.Flags().StringVar(&opts.packagedVersion, "packaged-version", "", "Packaged version to compare against (defaults to the changelog version)")

	return cmd
}
