package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"karolbroda.com/encore/internal/cache"
	"karolbroda.com/encore/internal/lyrics"
)

var (
	cacheSortBy  string
	cacheConfirm bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "manage the lyrics cache",
	Long:  `inspect and clean up lyrics fetched from lrclib and stored on disk.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		count, sizeBytes, err := diskCache.Stats()
		if err != nil {
			return fmt.Errorf("failed to get cache stats: %w", err)
		}

		fmt.Println("cache statistics:")
		fmt.Printf("  location: %s\n", diskCache.Path())
		fmt.Printf("  entries:  %d\n", count)
		fmt.Printf("  size:     %s\n", formatBytes(sizeBytes))
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "list all cached songs",
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		entries, err := diskCache.ListAll()
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("cache is empty")
			return nil
		}

		sortCacheEntries(entries, cacheSortBy)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ARTIST\tTITLE\tKIND\tCACHED")
		for _, entry := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				entryArtist(entry), entryTitle(entry),
				lyrics.Kind(entry.Kind),
				time.Unix(entry.CreatedAt, 0).Format("2006-01-02"))
		}
		w.Flush()

		fmt.Printf("\ntotal: %d songs\n", len(entries))
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show cached entry for specific song",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		entry, err := diskCache.Get(args[0], args[1])
		if err != nil {
			return notCachedError(diskCache, args[0], args[1], err)
		}

		fmt.Printf("artist:   %s\n", entryArtist(entry))
		fmt.Printf("title:    %s\n", entryTitle(entry))
		fmt.Printf("kind:     %s\n", lyrics.Kind(entry.Kind))
		fmt.Printf("cached:   %s\n", time.Unix(entry.CreatedAt, 0).Format("2006-01-02 15:04:05"))
		fmt.Printf("expires:  %s\n", time.Unix(entry.ExpiresAt, 0).Format("2006-01-02 15:04:05"))

		switch lyrics.Kind(entry.Kind) {
		case lyrics.KindSynced:
			fmt.Printf("\nsynced lyrics: %d lines\n", len(lyrics.Parse(entry.Text)))
		case lyrics.KindPlain:
			fmt.Printf("\nplain lyrics: %d lines (no sync data)\n", len(strings.Split(entry.Text, "\n")))
		default:
			fmt.Println("\nno lyrics available")
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "clear all cached entries",
	Long:  `remove all cached lyrics. use --confirm to skip the confirmation prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		if !cacheConfirm && !confirm("are you sure you want to clear all cache?") {
			fmt.Println("cancelled")
			return nil
		}

		if err := diskCache.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("cache cleared successfully")
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		pruned, err := diskCache.Prune()
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		fmt.Printf("removed %d expired entries\n", pruned)
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "remove specific song from cache",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		if _, err := diskCache.Get(args[0], args[1]); err != nil {
			return notCachedError(diskCache, args[0], args[1], err)
		}
		if err := diskCache.Delete(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to delete from cache: %w", err)
		}

		fmt.Printf("deleted '%s - %s' from cache\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)

	cacheListCmd.Flags().StringVar(&cacheSortBy, "sort", "date", "sort by: date, artist, title")
	cacheClearCmd.Flags().BoolVar(&cacheConfirm, "confirm", false, "skip confirmation prompt")
}

func cacheFromFlags(cmd *cobra.Command) (*cache.DiskCache, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openCache(cfg, commandLogger(cfg))
}

func confirm(question string) bool {
	fmt.Printf("%s (y/n): ", question)
	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// entryArtist prefers what the provider matched over what was asked for.
func entryArtist(entry *cache.LyricEntry) string {
	if entry.ArtistName != "" {
		return entry.ArtistName
	}
	return entry.Artist
}

func entryTitle(entry *cache.LyricEntry) string {
	if entry.TrackName != "" {
		return entry.TrackName
	}
	return entry.Title
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func sortCacheEntries(entries []*cache.LyricEntry, sortBy string) {
	switch sortBy {
	case "artist":
		slices.SortStableFunc(entries, func(a, b *cache.LyricEntry) int {
			return strings.Compare(strings.ToLower(entryArtist(a)), strings.ToLower(entryArtist(b)))
		})
	case "title":
		slices.SortStableFunc(entries, func(a, b *cache.LyricEntry) int {
			return strings.Compare(strings.ToLower(entryTitle(a)), strings.ToLower(entryTitle(b)))
		})
	default:
		slices.SortStableFunc(entries, func(a, b *cache.LyricEntry) int {
			return int(b.CreatedAt - a.CreatedAt)
		})
	}
}

// notCachedError prints close matches from the cache, if any, before
// reporting the miss.
func notCachedError(diskCache *cache.DiskCache, artist string, title string, err error) error {
	suggestions := similarCachedSongs(diskCache, artist, title, 5)
	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "did you mean one of these?\n")
		for _, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  %s - %s\n", entryArtist(s), entryTitle(s))
		}
	}
	return fmt.Errorf("song not found in cache: %w", err)
}

// similarCachedSongs ranks cached entries by edit distance to artist and
// title, keeping the closest few that are reasonably near.
func similarCachedSongs(diskCache *cache.DiskCache, artist string, title string, limit int) []*cache.LyricEntry {
	entries, err := diskCache.ListAll()
	if err != nil || len(entries) == 0 {
		return nil
	}

	want := strings.ToLower(artist + " " + title)
	type scored struct {
		entry    *cache.LyricEntry
		distance int
	}

	var candidates []scored
	for _, entry := range entries {
		have := strings.ToLower(entryArtist(entry) + " " + entryTitle(entry))
		distance := levenshtein.ComputeDistance(want, have)
		if distance <= max(len(want), len(have))/2 {
			candidates = append(candidates, scored{entry: entry, distance: distance})
		}
	}
	slices.SortStableFunc(candidates, func(a, b scored) int { return a.distance - b.distance })

	result := make([]*cache.LyricEntry, 0, limit)
	for _, c := range candidates {
		if len(result) == limit {
			break
		}
		result = append(result, c.entry)
	}
	return result
}
