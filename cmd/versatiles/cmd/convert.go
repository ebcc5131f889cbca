package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/versatiles-org/versatiles/internal/pipeline"
)

// newConvertCmd converts between tile containers, optionally clipping by
// bbox and zoom range.
func newConvertCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "convert a tile container into another container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, output := args[0], args[1]
			bbox, _ := cmd.Flags().GetFloat64Slice("bbox")
			minZoom, _ := cmd.Flags().GetInt("min-zoom")
			maxZoom, _ := cmd.Flags().GetInt("max-zoom")
			verbose, _ := cmd.Flags().GetBool("verbose")

			rt := pipeline.NewRuntime()
			factory := pipeline.NewFactory(rt)

			if verbose {
				go logEvents(rt.Bus.Subscribe())
			}

			def := fmt.Sprintf("read filename=%q", input)
			if len(bbox) == 4 {
				def += fmt.Sprintf(" | filter_bbox bbox=[%g,%g,%g,%g]", bbox[0], bbox[1], bbox[2], bbox[3])
			} else if len(bbox) != 0 {
				return fmt.Errorf("--bbox needs exactly 4 values west,south,east,north")
			}
			if minZoom >= 0 || maxZoom >= 0 {
				def += " | filter_bbox"
				if minZoom >= 0 {
					def += fmt.Sprintf(" min=%d", minZoom)
				}
				if maxZoom >= 0 {
					def += fmt.Sprintf(" max=%d", maxZoom)
				}
			}

			source, err := factory.BuildPipeline(ctx, def)
			if err != nil {
				return err
			}

			writer, err := rt.Registry.CreateWriter(output)
			if err != nil {
				return err
			}

			start := time.Now()
			reader := pipeline.NewSourceAsReader(input, source)
			if err := writer.WriteFrom(ctx, reader); err != nil {
				return fmt.Errorf("converting %s to %s: %w", input, output, err)
			}
			if verbose {
				log.Printf("converted %s to %s in %.1fs", input, output, time.Since(start).Seconds())
			}
			return nil
		},
	}

	pf := cmd.Flags()
	pf.Float64Slice("bbox", nil, "clip to bbox west,south,east,north in degrees")
	pf.Int("min-zoom", -1, "drop zoom levels below this")
	pf.Int("max-zoom", -1, "drop zoom levels above this")
	pf.Bool("verbose", false, "log progress")
	return cmd
}

// logEvents prints bus events; progress updates are sampled.
func logEvents(ch chan pipeline.Event) {
	lastProgress := time.Now()
	for e := range ch {
		switch e.Kind {
		case pipeline.EventProgress:
			if e.Done || time.Since(lastProgress) > time.Second {
				lastProgress = time.Now()
				if e.Total > 0 {
					log.Printf("%s: %d/%d (%.1f%%)", e.Message, e.Position, e.Total,
						100*float64(e.Position)/float64(e.Total))
				} else {
					log.Printf("%s: %d", e.Message, e.Position)
				}
			}
		case pipeline.EventWarning:
			log.Printf("warning: %s", e.Message)
		case pipeline.EventError:
			log.Printf("error: %s", e.Message)
		default:
			log.Print(e.Message)
		}
	}
}
