package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/versatiles-org/versatiles/internal/pipeline"
)

// newPipelineCmd runs a VPL pipeline definition and writes the result
// into a container.
func newPipelineCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline <pipeline.vpl> <output>",
		Short: "run a pipeline definition and write the resulting tiles",
		Long: `Reads a VPL pipeline definition, builds the operator graph and
streams the resulting tiles into the output container, e.g.:

    from_color color=FF5733 size=512 format=png
    read filename="world.versatiles" | filter_bbox bbox=[-10,-10,10,10] | raster_format format=webp quality=90`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vplPath, output := args[0], args[1]
			verbose, _ := cmd.Flags().GetBool("verbose")

			def, err := os.ReadFile(vplPath)
			if err != nil {
				return fmt.Errorf("reading pipeline definition: %w", err)
			}

			rt := pipeline.NewRuntime()
			rt.Dir = filepath.Dir(vplPath)
			factory := pipeline.NewFactory(rt)

			if verbose {
				go logEvents(rt.Bus.Subscribe())
			}

			source, err := factory.BuildPipeline(ctx, string(def))
			if err != nil {
				return err
			}

			writer, err := rt.Registry.CreateWriter(output)
			if err != nil {
				return err
			}
			reader := pipeline.NewSourceAsReader(vplPath, source)
			return writer.WriteFrom(ctx, reader)
		},
	}
	cmd.Flags().Bool("verbose", false, "log progress")
	return cmd
}
