package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/util"

	"github.com/spf13/cobra"
)

const streamWorkers = 4

var (
	resolveTimeout time.Duration
	resolveStream  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <query or url>",
	Short: "Look up a query through the configured sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), resolveTimeout)
		defer cancel()

		c, err := newCache(ctx, cfg, nil, log.Named("cache"))
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := newResolver(cfg, c, log)
		if err != nil {
			return err
		}

		result, err := res.Search(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		streams := make([]string, len(result.Tracks))
		if resolveStream {
			_ = util.Parallel(ctx, result.Tracks, streamWorkers, func(ctx context.Context, i int, t track.Track) error {
				u, err := res.StreamURL(ctx, t)
				if err != nil {
					u = err.Error()
				}
				streams[i] = u
				return nil
			})
		}

		out := cmd.OutOrStdout()
		if result.Name != "" {
			fmt.Fprintf(out, "Playlist: %s (%d tracks)\n", result.Name, len(result.Tracks))
		}
		for i, t := range result.Tracks {
			fmt.Fprintf(out, "%2d. [%s] %s (%s) %s\n", i+1, t.Source, t.Title, track.FormatDuration(t.Length), t.URI)
			if streams[i] != "" {
				fmt.Fprintf(out, "    stream: %s\n", streams[i])
			}
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 30*time.Second, "lookup timeout")
	resolveCmd.Flags().BoolVar(&resolveStream, "stream", false, "also resolve direct media URLs")
	rootCmd.AddCommand(resolveCmd)
}
