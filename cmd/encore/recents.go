package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"karolbroda.com/encore/internal/recents"
	"karolbroda.com/encore/internal/track"
)

var recentsCmd = &cobra.Command{
	Use:   "recents",
	Short: "recently played songs",
}

var recentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "list recently played songs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, history *recents.History) error {
			songs := history.Songs()
			if len(songs) == 0 {
				fmt.Println("nothing played yet")
				return nil
			}
			printSongs(songs)
			return nil
		})
	},
}

var recentsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "forget recently played songs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(ctx context.Context, history *recents.History) error {
			if err := history.Clear(ctx); err != nil {
				return fmt.Errorf("failed to clear recents: %w", err)
			}
			fmt.Println("recents cleared")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(recentsCmd)
	recentsCmd.AddCommand(recentsListCmd)
	recentsCmd.AddCommand(recentsClearCmd)
}

func withHistory(cmd *cobra.Command, fn func(ctx context.Context, history *recents.History) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := recents.OpenSQLite(cfg.RecentsPath())
	if err != nil {
		return fmt.Errorf("failed to open recents: %w", err)
	}
	history, err := recents.Open(ctx, store, cfg.RecentsLimit, commandLogger(cfg))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to load recents: %w", err)
	}
	defer history.Close()

	return fn(ctx, history)
}

func printSongs(songs []track.Song) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tARTIST\tALBUM\tLENGTH")
	for _, song := range songs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d:%02d\n",
			song.ID, song.Title, song.Artist, song.Album,
			song.DurationSecs/60, song.DurationSecs%60)
	}
	w.Flush()
}
