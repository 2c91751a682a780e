package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/packastack/packastack-core/providers/versioneer"
)

type convertOptions struct {
	describe bool
	existing string
}

type conversion struct {
	Upstream string                 `json:"upstream"`
	Type     versioneer.VersionType `json:"type"`
	Debian   string                 `json:"debian"`
}

func newConvertCmd(a *app) *cobra.Command {
	opts := convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <version>",
		Short: "Convert an upstream version (or git-describe output) into a Debian version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := conversion{Upstream: args[0]}

			var err error
			if opts.describe {
				c.Type = "snapshot"
				c.Debian, err = versioneer.ConvertSnapshot(args[0], opts.existing)
			} else {
				c.Type = versioneer.DetectType(args[0])
				c.Debian, err = versioneer.Convert(args[0])
			}
			if err != nil {
				return err
			}

			return a.print(cmd.OutOrStdout(), c, func(w io.Writer) {
				fmt.Fprintln(w, c.Debian)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.describe, "describe", false, "Treat the argument as 'git describe --long --tags' output")
	cmd.Flags().StringVar(&opts.existing, "existing", "", "Previously imported snapshot version (with --describe)")

	return cmd
}
