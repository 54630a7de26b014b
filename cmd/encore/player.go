package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/encore/internal/transport"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "inspect the mpris player",
}

var playerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "show what the player is doing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlayer(cmd, func(mpris *transport.MPRIS) error {
			status, err := mpris.Status()
			if err != nil {
				return fmt.Errorf("failed to read player status: %w", err)
			}

			state := "paused"
			if status.Playing {
				state = "playing"
			}
			fmt.Printf("service:  %s\n", mprisService)
			fmt.Printf("state:    %s\n", state)
			fmt.Printf("title:    %s\n", status.Title)
			fmt.Printf("artist:   %s\n", status.Artist)
			if status.Album != "" {
				fmt.Printf("album:    %s\n", status.Album)
			}
			fmt.Printf("position: %s / %s\n", formatTimestamp(status.PositionSecs), formatTimestamp(status.DurationSecs))
			return nil
		})
	},
}

var playerToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "play or pause the player",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlayer(cmd, func(mpris *transport.MPRIS) error {
			status, err := mpris.Status()
			if err != nil {
				return fmt.Errorf("failed to read player status: %w", err)
			}
			if status.Playing {
				return mpris.Pause()
			}
			return mpris.Play()
		})
	},
}

var playerOpenCmd = &cobra.Command{
	Use:   "open <uri>",
	Short: "hand a stream uri to the player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlayer(cmd, func(mpris *transport.MPRIS) error {
			return mpris.SetSource(args[0])
		})
	},
}

var playerVolumeCmd = &cobra.Command{
	Use:   "volume [0-100]",
	Short: "show or set the player volume in percent",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlayer(cmd, func(mpris *transport.MPRIS) error {
			if len(args) == 1 {
				percent, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid volume %q: %w", args[0], err)
				}
				if err := mpris.SetVolume(percent / 100); err != nil {
					return err
				}
			}

			volume, err := mpris.Volume()
			if err != nil {
				return err
			}
			fmt.Printf("volume: %d%%\n", int(math.Round(volume*100)))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)
	playerCmd.AddCommand(playerStatusCmd)
	playerCmd.AddCommand(playerToggleCmd)
	playerCmd.AddCommand(playerOpenCmd)
	playerCmd.AddCommand(playerVolumeCmd)
}

func withPlayer(cmd *cobra.Command, fn func(mpris *transport.MPRIS) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mprisService = cfg.MprisService

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	mpris, err := transport.NewMPRIS(bus, cfg.MprisService, cfg.PollInterval, commandLogger(cfg))
	if err != nil {
		return err
	}
	return fn(mpris)
}
