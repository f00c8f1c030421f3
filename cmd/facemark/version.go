package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/esimov/facemark/utils"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s %s/%s)\n",
				utils.Paint(utils.Banner, utils.StatusMessage),
				Version, runtime.Version(), runtime.GOOS, runtime.GOARCH,
			)
		},
	}
}
