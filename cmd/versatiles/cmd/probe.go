package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/versatiles-org/versatiles/internal/container/versatiles"
)

// newProbeCmd prints the structure of a container: header fields,
// pyramid and tile counts.
func newProbeCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file-or-url>",
		Short: "inspect a versatiles container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := versatiles.OpenAny(ctx, args[0], versatiles.ReaderOptions{})
			if err != nil {
				return err
			}
			defer reader.Close()

			header := reader.Header()
			fmt.Printf("container:   versatiles\n")
			fmt.Printf("source:      %s\n", reader.Name())
			fmt.Printf("tile format: %s\n", header.Format)
			fmt.Printf("compression: %s\n", header.Compression)
			fmt.Printf("zoom range:  %d..%d\n", header.ZoomMin, header.ZoomMax)
			fmt.Printf("bbox:        %s\n", header.GeoBBox())

			params := reader.Parameters()
			fmt.Printf("tiles:       %d\n", params.Pyramid.CountTiles())
			for _, level := range params.Pyramid.Levels() {
				fmt.Printf("  level %s\n", level)
			}

			meta, err := reader.Meta(ctx)
			if err != nil {
				return err
			}
			if !meta.IsEmpty() {
				fmt.Printf("metadata:    %s\n", meta.String())
			}
			return nil
		},
	}
}
