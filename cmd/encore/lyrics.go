package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"karolbroda.com/encore/internal/lyrics"
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "look up lyrics",
	Long:  `fetch lyrics through the configured source and print or inspect them.`,
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch <artist> <title>",
	Short: "fetch lyrics and report what was found",
	Long:  `fetch lyrics through the configured source. lrclib results are saved to the cache.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := fetchLyrics(cmd, args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("%s - %s\n", args[0], args[1])
		fmt.Printf("  kind:  %s\n", payload.Kind)
		switch payload.Kind {
		case lyrics.KindSynced:
			fmt.Printf("  lines: %d synced\n", len(lyrics.Parse(payload.Text)))
		case lyrics.KindPlain:
			fmt.Printf("  lines: %d plain (no timing)\n", len(strings.Split(payload.Text, "\n")))
		default:
			fmt.Println("  no lyrics available")
		}
		return nil
	},
}

var lyricsPreviewCmd = &cobra.Command{
	Use:   "preview <artist> <title>",
	Short: "print lyrics with timestamps",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := fetchLyrics(cmd, args[0], args[1])
		if err != nil {
			return err
		}

		switch payload.Kind {
		case lyrics.KindSynced:
			for _, line := range lyrics.SortStable(lyrics.Parse(payload.Text)) {
				fmt.Printf("[%s] %s\n", formatTimestamp(line.Time), line.Text)
			}
		case lyrics.KindPlain:
			fmt.Println(payload.Text)
		default:
			return fmt.Errorf("no lyrics available for %s - %s", args[0], args[1])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lyricsCmd)
	lyricsCmd.AddCommand(lyricsFetchCmd)
	lyricsCmd.AddCommand(lyricsPreviewCmd)
}

func fetchLyrics(cmd *cobra.Command, artist string, title string) (lyrics.Payload, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return lyrics.Payload{}, err
	}
	logger := commandLogger(cfg)
	ctx := context.Background()

	client, err := newCatalog(ctx, cfg, logger)
	if err != nil {
		return lyrics.Payload{}, err
	}
	diskCache, err := openCache(cfg, logger)
	if err != nil {
		return lyrics.Payload{}, err
	}

	payload, err := newLyricsSource(cfg, client, diskCache, logger).Lyrics(ctx, artist, title)
	if err != nil && payload.IsAbsent() {
		return lyrics.Payload{}, fmt.Errorf("failed to fetch lyrics: %w", err)
	}
	return payload, nil
}

func formatTimestamp(seconds float64) string {
	minutes := int(seconds) / 60
	return fmt.Sprintf("%02d:%05.2f", minutes, seconds-float64(minutes*60))
}
