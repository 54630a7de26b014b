package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"karolbroda.com/encore/internal/config"
	"karolbroda.com/encore/internal/logging"
)

var (
	// global flags
	catalogURL   string
	mprisService string
	syncOffset   float64
	hideHeader   bool
	lrclibURL    string
	lyricsSource string
	remoteAddr   string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "encore",
	Short: "terminal music player with synchronized lyrics",
	Long: `encore streams songs from a catalog server through an MPRIS media player
and shows synchronized lyrics, a play queue and likes in the terminal.

when run without a subcommand, it starts the interactive player.`,
	Version: "1.0.0",
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlayer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogURL, "catalog-url", "", "catalog server base url")
	rootCmd.PersistentFlags().StringVarP(&mprisService, "mpris-service", "m", "", "mpris service name (e.g., org.mpris.MediaPlayer2.vlc)")
	rootCmd.PersistentFlags().Float64VarP(&syncOffset, "sync-offset", "s", 0, "initial sync offset in seconds")
	rootCmd.PersistentFlags().BoolVarP(&hideHeader, "hide-header", "H", false, "hide header section")
	rootCmd.PersistentFlags().StringVar(&lrclibURL, "lrclib-url", "", "custom lrclib api url")
	rootCmd.PersistentFlags().StringVar(&lyricsSource, "lyrics-source", "", "lyrics source: catalog, lrclib or chain")
	rootCmd.PersistentFlags().StringVar(&remoteAddr, "remote-addr", "", "listen address for the remote control api")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig reads the environment, then applies any flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Load()

	flags := cmd.Flags()
	if catalogURL != "" {
		cfg.CatalogURL = catalogURL
	}
	if mprisService != "" {
		cfg.MprisService = mprisService
	}
	if lrclibURL != "" {
		cfg.LrclibURL = lrclibURL
	}
	if lyricsSource != "" {
		cfg.LyricsSource = lyricsSource
	}
	if remoteAddr != "" {
		cfg.RemoteAddr = remoteAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("sync-offset") {
		cfg.SyncOffset = syncOffset
	}
	if flags.Changed("hide-header") {
		cfg.HideHeader = hideHeader
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// commandLogger is for the short-lived inspection commands: warnings and up
// on stderr.
func commandLogger(cfg *config.Config) *zap.Logger {
	logCfg := cfg.Log
	logCfg.Output = "stderr"
	logCfg.Format = "console"
	if logLevel == "" {
		logCfg.Level = "warn"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
