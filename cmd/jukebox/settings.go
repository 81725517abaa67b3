package main

import (
	"fmt"

	"github.com/keshon/jukebox/internal/storage"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings <guildID>",
	Short: "Print the stored music settings of a guild",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		store, err := storage.New(cfg.StoragePath, log.Named("storage"))
		if err != nil {
			return err
		}
		defer store.Close()

		guildID := args[0]
		music, err := store.GetMusicSettings(guildID)
		if err != nil {
			return err
		}
		disabled, err := store.GetDisabledGroups(guildID)
		if err != nil {
			return err
		}

		embed, volume := music.EmbedSize, fmt.Sprint(music.DefaultVolume)
		if embed == "" {
			embed = "default"
		}
		if music.DefaultVolume == 0 {
			volume = fmt.Sprintf("default (%d)", cfg.DefaultVolume)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Guild:           %s\n", guildID)
		fmt.Fprintf(out, "Embed size:      %s\n", embed)
		fmt.Fprintf(out, "Default volume:  %s\n", volume)
		fmt.Fprintf(out, "Disabled groups: %v\n", disabled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
}
