package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"canopus/audio_capture"
	"canopus/config"
	"canopus/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		modelPath  string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "canopus",
		Short:         "Voice-command assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(debug)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Listen for the wake word and run commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			if cfg.Debug && !debug {
				if err := logger.Init(true); err != nil {
					return err
				}
			}

			if modelPath != "" {
				cfg.STT.Model = modelPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	runCmd.Flags().StringVarP(&modelPath, "model", "m", "", "model file for whisper")

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := audio_capture.ListDevices()
			if err != nil {
				return err
			}

			for _, device := range devices {
				marker := " "
				if device.IsDefault {
					marker = "*"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %2d  %s (%d ch, %.0f Hz)\n",
					marker, device.Index, device.Name, device.MaxInputChannels, device.DefaultSampleRate)
			}

			return nil
		},
	}

	rootCmd.AddCommand(runCmd, devicesCmd)

	err := rootCmd.ExecuteContext(context.Background())

	if err != nil {
		var initErr *audio_capture.DeviceInitError
		if errors.As(err, &initErr) {
			logger.Error("Audio device unavailable", zap.String("op", initErr.Op), zap.Error(initErr.Err))
		} else {
			logger.Error("Exiting with error", zap.Error(err))
		}

		fmt.Fprintln(os.Stderr, "error:", err)
	}

	_ = logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}
