package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"karolbroda.com/encore/internal/catalog"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "search the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(ctx context.Context, client *catalog.Client) error {
			query := strings.Join(args, " ")
			songs, err := client.Search(ctx, query)
			if err != nil {
				return fmt.Errorf("search %q: %w", query, err)
			}
			if len(songs) == 0 {
				fmt.Printf("no results for %q\n", query)
				return nil
			}
			printSongs(songs)
			return nil
		})
	},
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "show the catalog chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(ctx context.Context, client *catalog.Client) error {
			songs, err := client.Chart(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch chart: %w", err)
			}
			printSongs(songs)
			return nil
		})
	},
}

var likesCmd = &cobra.Command{
	Use:   "likes",
	Short: "list liked songs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(cmd, func(ctx context.Context, client *catalog.Client) error {
			songs, err := client.LikedSongs(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch liked songs: %w", err)
			}
			if len(songs) == 0 {
				fmt.Println("no liked songs")
				return nil
			}
			printSongs(songs)
			fmt.Printf("\ntotal: %d songs\n", len(songs))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(likesCmd)
}

func withCatalog(cmd *cobra.Command, fn func(ctx context.Context, client *catalog.Client) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()

	client, err := newCatalog(ctx, cfg, commandLogger(cfg))
	if err != nil {
		return err
	}
	return fn(ctx, client)
}
