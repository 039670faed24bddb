package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/unitsynth/cmd/unitsynth/internal/build"
	"github.com/haivivi/unitsynth/pkg/cli"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionFormat == "" || versionFormat == "text" {
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
			return nil
		}
		format, err := cli.ParseOutputFormat(versionFormat)
		if err != nil {
			return err
		}
		return cli.Output(build.Get(), cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "output format: text, yaml or json")
	rootCmd.AddCommand(versionCmd)
}
