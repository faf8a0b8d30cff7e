package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/capturecfg/internal/encoders"
)

// CreateProbeEncodersCmd creates the probe-encoders command. It probes
// the local ffmpeg installation for working encoder backends and writes
// the availability snapshot to a TOML file the server loads at startup.
func CreateProbeEncodersCmd() *cobra.Command {
	var outputFile string
	var quiet bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe-encoders",
		Short: "Probe encoder availability",
		Long:  `Probes the local ffmpeg installation to determine which codec and backend combinations actually work on this machine, and writes the result to a TOML snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if quiet {
				level = slog.LevelWarn
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			probe := encoders.NewLocalProbe(logger)
			avail, err := probe.Availability(ctx)
			if err != nil {
				return fmt.Errorf("encoder probe failed: %w", err)
			}

			store := encoders.NewStore(outputFile)
			if err := store.Save(avail); err != nil {
				return fmt.Errorf("could not write %s: %w", outputFile, err)
			}

			if !quiet {
				for _, codec := range avail.AvailableCodecs() {
					backends := avail.AvailableBackends(codec)
					names := make([]string, len(backends))
					for i, b := range backends {
						names[i] = string(b.ID)
					}
					fmt.Printf("%-16s %v\n", codec.DisplayName(), names)
				}
				fmt.Printf("recommended: %s\n", avail.RecommendedCodec)
				fmt.Printf("wrote %s\n", outputFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "encoder_availability.toml", "Output file for the availability snapshot")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress probe progress output")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall probe timeout")

	return cmd
}
