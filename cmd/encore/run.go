package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"karolbroda.com/encore/internal/catalog"
	"karolbroda.com/encore/internal/likes"
	"karolbroda.com/encore/internal/logging"
	"karolbroda.com/encore/internal/recents"
	"karolbroda.com/encore/internal/remote"
	"karolbroda.com/encore/internal/session"
	"karolbroda.com/encore/internal/tasks"
	"karolbroda.com/encore/internal/track"
	"karolbroda.com/encore/internal/transport"
	"karolbroda.com/encore/internal/ui"
)

const (
	playerWaitTimeout = 5 * time.Second
	shutdownTimeout   = 3 * time.Second
)

var runEnqueue bool

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "start the interactive player",
	Long: `starts the terminal player. with a query, the first search hit starts
playing right away; --enqueue puts the remaining hits in the queue. without a
query, recommendations based on recently played songs are queued.`,
	Args: cobra.ArbitraryArgs,
	RunE: runPlayer,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.Flags().BoolVar(&runEnqueue, "enqueue", false, "queue the remaining search hits")
	runCmd.Flags().BoolVar(&runEnqueue, "enqueue", false, "queue the remaining search hits")
}

func runPlayer(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	defer restoreTerminal()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting encore",
		zap.String("catalog", cfg.CatalogURL),
		zap.String("mpris_service", cfg.MprisService),
		zap.String("lyrics_source", cfg.LyricsSource))

	client, err := newCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}

	diskCache, err := openCache(cfg, logger)
	if err != nil {
		return err
	}
	lyricsSource := newLyricsSource(cfg, client, diskCache, logger)

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	mpris, err := transport.NewMPRIS(bus, cfg.MprisService, cfg.PollInterval, logger.Named("mpris"))
	if err != nil {
		return fmt.Errorf("failed to create mpris transport: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, playerWaitTimeout)
	if err := mpris.Wait(waitCtx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	waitCancel()

	if err := mpris.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not set up dbus signals: %v\n", err)
	}
	defer mpris.Stop()

	runner := tasks.NewRunner(cfg.HTTPTimeout, logger.Named("tasks"))
	defer runner.Stop()

	likeSet := likes.NewCoordinator(client, runner, logger.Named("likes"))
	if err := likeSet.Refresh(ctx); err != nil {
		logger.Warn("Failed to load liked songs", zap.Error(err))
	}

	store, err := recents.OpenSQLite(cfg.RecentsPath())
	if err != nil {
		return fmt.Errorf("failed to open recents: %w", err)
	}
	history, err := recents.Open(ctx, store, cfg.RecentsLimit, logger.Named("recents"))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to load recents: %w", err)
	}
	defer history.Close()

	var volume *float64
	if saved, ok, err := store.LoadVolume(ctx); err != nil {
		logger.Warn("Failed to load saved volume", zap.Error(err))
	} else if ok {
		volume = &saved
	}

	bridge := ui.NewBridge(ui.DefaultBridgeBuffer)
	defer bridge.Close()

	controller := session.NewController(session.Options{
		Catalog:    client,
		Lyrics:     lyricsSource,
		Transport:  mpris,
		Likes:      likeSet,
		Recents:    history,
		Volumes:    store,
		Volume:     volume,
		Renderer:   bridge,
		Logger:     logger.Named("session"),
		SyncOffset: cfg.SyncOffset,
	})
	defer controller.Close()

	go func() {
		if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Transport event loop stopped", zap.Error(err))
		}
	}()

	if cfg.RemoteAddr != "" {
		server := remote.NewServer(controller, logger.Named("remote"))
		go func() {
			if err := server.Start(cfg.RemoteAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Remote control server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if err := startSongs(ctx, client, controller, args, logger); err != nil {
		return err
	}

	model := ui.NewModel(ui.ModelConfig{
		Controls:      controller,
		Bridge:        bridge,
		HTTPClient:    &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:        logger.Named("ui"),
		SyncOffset:    cfg.SyncOffset,
		HideHeader:    cfg.HideHeader,
		KittyGraphics: cfg.KittyGraphics,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running bubble tea: %w", err)
	}

	metrics := runner.Metrics()
	logger.Info("Stopped",
		zap.Int64("dropped_renders", bridge.Dropped()),
		zap.Int64("tasks_processed", metrics.Processed),
		zap.Int64("tasks_failed", metrics.Failed))
	return nil
}

// startSongs loads the first hit for a query, or queues recommendations when
// there is none.
func startSongs(ctx context.Context, client *catalog.Client, controller *session.Controller, args []string, logger *zap.Logger) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		songs, err := controller.Discover(ctx)
		if err != nil {
			logger.Warn("Failed to fetch recommendations", zap.Error(err))
		}
		if len(songs) == 0 {
			if songs, err = client.Chart(ctx); err != nil {
				logger.Warn("Failed to fetch chart", zap.Error(err))
			}
		}
		enqueueAll(controller, songs, logger)
		return nil
	}

	songs, err := client.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	if len(songs) == 0 {
		return fmt.Errorf("no results for %q", query)
	}
	if err := controller.LoadSong(songs[0]); err != nil {
		return err
	}
	if runEnqueue {
		enqueueAll(controller, songs[1:], logger)
	}
	return nil
}

func enqueueAll(controller *session.Controller, songs []track.Song, logger *zap.Logger) {
	for _, song := range songs {
		if err := controller.Enqueue(song); err != nil {
			logger.Debug("Skipping song", zap.Stringer("song", song), zap.Error(err))
		}
	}
}

func restoreTerminal() {
	os.Stdout.WriteString("\033[?25h")
	os.Stdout.WriteString("\033[0m")
	os.Stdout.WriteString("\033[?1049l")
	os.Stdout.WriteString("\033[?1000l")
	os.Stdout.WriteString("\033[?1002l")
	os.Stdout.WriteString("\033[?1006l")
}
