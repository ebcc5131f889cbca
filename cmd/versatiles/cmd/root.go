// Package cmd implements the versatiles CLI commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRoot builds the root command with all subcommands attached.
func NewRoot(ctx context.Context, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "versatiles",
		Short:         "read, convert and transform map tile containers",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newVersionCmd(version),
		newConvertCmd(ctx),
		newProbeCmd(ctx),
		newPipelineCmd(ctx),
	)
	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
